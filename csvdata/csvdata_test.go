package csvdata_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"seating/csvdata"
	"seating/solver"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadGuests(t *testing.T) {
	path := writeFile(t, "guests.csv", `name,meal_preference,single,plus_one,min_known,weight,must_with,must_separate
Alice,vegetarian,true,false,1,2,Bob,
Bob,meat,false,false,0,1,,Carol
Carol,,yes,no,0,1,,
`)
	guests, err := csvdata.LoadGuests(path)
	require.NoError(t, err)
	require.Len(t, guests, 3)

	alice := guests[0]
	require.Equal(t, "Alice", alice.Name)
	require.Equal(t, "vegetarian", alice.MealPreference)
	require.True(t, alice.Single)
	require.False(t, alice.PlusOne)
	require.Equal(t, 1, alice.MinKnown)
	require.Equal(t, 2, alice.Weight)
	require.Equal(t, []string{"Bob"}, alice.MustWith)

	require.Equal(t, []string{"Carol"}, guests[1].MustSeparate)
	require.True(t, guests[2].Single)
}

func TestLoadGuestsRejectsUnknownReference(t *testing.T) {
	path := writeFile(t, "guests.csv", `name,must_with
Alice,Nobody
`)
	_, err := csvdata.LoadGuests(path)
	require.ErrorIs(t, err, solver.ErrUnknownGuest)
}

func TestLoadTables(t *testing.T) {
	path := writeFile(t, "tables.csv", `name,capacity,tags
Head,8,family|vip
Side,6,
`)
	tables, err := csvdata.LoadTables(path)
	require.NoError(t, err)
	require.Equal(t, []solver.Table{
		{Name: "Head", Capacity: 8, Tags: []string{"family", "vip"}},
		{Name: "Side", Capacity: 6},
	}, tables)
}

func TestLoadTablesRejectsBadCapacity(t *testing.T) {
	path := writeFile(t, "tables.csv", `name,capacity
Head,lots
`)
	_, err := csvdata.LoadTables(path)
	require.Error(t, err)
}

func TestLoadRelationshipsValidatesEndpoints(t *testing.T) {
	guests := []solver.Guest{{Name: "Alice"}, {Name: "Bob"}}
	path := writeFile(t, "relationships.csv", `guest1_id,guest2_id,relationship,strength,notes
Alice,Bob,best friend,0,college
`)
	rels, err := csvdata.LoadRelationships(path, guests)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	require.Equal(t, "best friend", rels[0].Relation)
	require.Equal(t, "college", rels[0].Notes)

	bad := writeFile(t, "bad.csv", `guest1_id,guest2_id,relationship
Alice,Ghost,friend
`)
	_, err = csvdata.LoadRelationships(bad, guests)
	require.ErrorIs(t, err, solver.ErrUnknownGuest)
}

func TestLoadAllFeedsSolver(t *testing.T) {
	guestsPath := writeFile(t, "guests.csv", `name
A
B
C
D
`)
	relsPath := writeFile(t, "relationships.csv", `guest1_id,guest2_id,relationship
A,B,best friend
C,D,friend
`)
	tablesPath := writeFile(t, "tables.csv", `name,capacity
T1,4
`)

	guests, rels, tables, err := csvdata.LoadAll(guestsPath, relsPath, tablesPath)
	require.NoError(t, err)

	m, err := solver.Build(guests, tables, rels, solver.Options{})
	require.NoError(t, err)
	res, err := m.Solve()
	require.NoError(t, err)
	require.Len(t, res, 4)
	for _, p := range res {
		require.Equal(t, "T1", p.Table)
	}
}
