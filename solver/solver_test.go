package solver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"seating/solver"
)

func guest(name string, mutate ...func(*solver.Guest)) solver.Guest {
	g := solver.Guest{Name: name}
	for _, fn := range mutate {
		fn(&g)
	}
	return g
}

func tableNames(t *testing.T, res map[string]solver.Placed) map[string]int {
	t.Helper()
	counts := map[string]int{}
	for _, p := range res {
		counts[p.Table]++
	}
	return counts
}

func TestBuildRejectsUnknownMustWith(t *testing.T) {
	_, err := solver.Build(
		[]solver.Guest{guest("Ann", func(g *solver.Guest) { g.MustWith = []string{"Nobody"} })},
		[]solver.Table{{Name: "T1", Capacity: 4}},
		nil, solver.Options{},
	)
	require.ErrorIs(t, err, solver.ErrUnknownGuest)
}

func TestBuildRejectsUnknownRelationshipEndpoint(t *testing.T) {
	_, err := solver.Build(
		[]solver.Guest{guest("Ann"), guest("Bob")},
		[]solver.Table{{Name: "T1", Capacity: 4}},
		[]solver.Relationship{{A: "Ann", B: "Ghost", Relation: "friend"}},
		solver.Options{},
	)
	require.ErrorIs(t, err, solver.ErrUnknownGuest)
}

func TestBuildRejectsContradictoryHardConstraints(t *testing.T) {
	_, err := solver.Build(
		[]solver.Guest{
			guest("Ann", func(g *solver.Guest) {
				g.MustWith = []string{"Bob"}
				g.MustSeparate = []string{"Bob"}
			}),
			guest("Bob"),
		},
		[]solver.Table{{Name: "T1", Capacity: 4}},
		nil, solver.Options{},
	)
	require.ErrorIs(t, err, solver.ErrConflictingConstraints)
}

// Two guests sharing a display name would collapse into one model entry and
// leave the assignment short, so the build rejects them.
func TestBuildRejectsDuplicateGuests(t *testing.T) {
	_, err := solver.Build(
		[]solver.Guest{{ID: "1", Name: "Alex"}, {ID: "2", Name: "Alex"}},
		[]solver.Table{{Name: "T1", Capacity: 4}},
		nil, solver.Options{},
	)
	require.ErrorIs(t, err, solver.ErrDuplicateGuest)

	_, err = solver.Build(
		[]solver.Guest{{ID: "7", Name: "Ann"}, {ID: "7", Name: "Bea"}},
		[]solver.Table{{Name: "T1", Capacity: 4}},
		nil, solver.Options{},
	)
	require.ErrorIs(t, err, solver.ErrDuplicateGuest)
}

func TestSolveRejectsInsufficientCapacity(t *testing.T) {
	m, err := solver.Build(
		[]solver.Guest{guest("Ann"), guest("Bob"), guest("Cat")},
		[]solver.Table{{Name: "T1", Capacity: 2}},
		nil, solver.Options{},
	)
	require.NoError(t, err)
	_, err = m.Solve()
	require.ErrorIs(t, err, solver.ErrInsufficientCapacity)
}

// Four guests, one table: the trivially unique arrangement scores
// 5 (best friend) + 3 (friend) across six pairs, mean 8/6, grade C.
func TestSolveSingleTableScoresAndGrade(t *testing.T) {
	guests := []solver.Guest{guest("A"), guest("B"), guest("C"), guest("D")}
	tables := []solver.Table{{Name: "T1", Capacity: 4}}
	rels := []solver.Relationship{
		{A: "A", B: "B", Relation: "best friend"},
		{A: "C", B: "D", Relation: "friend"},
	}

	m, err := solver.Build(guests, tables, rels, solver.Options{})
	require.NoError(t, err)
	res, err := m.Solve()
	require.NoError(t, err)
	require.Len(t, res, 4)
	for _, g := range guests {
		require.Equal(t, "T1", res[g.Name].Table)
		require.False(t, res[g.Name].Relaxed)
	}

	stats := m.TableStats([]string{"A", "B", "C", "D"})
	require.Equal(t, 8, stats.TotalScore)
	require.Equal(t, 6, stats.PairCount)
	require.Equal(t, 2, stats.PosPairs)
	require.Equal(t, 0, stats.NegPairs)
	require.Equal(t, 4, stats.NeuPairs)
	require.Equal(t, "C", solver.GradeTables([]solver.TableStats{stats})[0].Grade)
}

// Two guests who must be separated with only one table to share: the solve
// must not silently co-seat them as a clean result; the forced co-seating is
// flagged via the relaxed marker.
func TestSolveFlagsForcedCoSeating(t *testing.T) {
	guests := []solver.Guest{
		guest("Ann", func(g *solver.Guest) { g.MustSeparate = []string{"Bob"} }),
		guest("Bob", func(g *solver.Guest) { g.MustSeparate = []string{"Ann"} }),
	}
	tables := []solver.Table{{Name: "T1", Capacity: 2}}
	rels := []solver.Relationship{{A: "Ann", B: "Bob", Relation: "conflict"}}

	m, err := solver.Build(guests, tables, rels, solver.Options{})
	require.NoError(t, err)
	res, err := m.Solve()
	require.NoError(t, err)
	require.Len(t, res, 2)

	flagged := 0
	for _, p := range res {
		if p.Relaxed {
			flagged++
		}
	}
	require.Greater(t, flagged, 0, "forced co-seating must be flagged")
}

// A five-guest must-with chain against capacity-4 tables is split into a
// 4-chunk and a 1-chunk instead of being rejected.
func TestSolveSplitsOversizedGroup(t *testing.T) {
	guests := []solver.Guest{
		guest("A", func(g *solver.Guest) { g.MustWith = []string{"B"} }),
		guest("B", func(g *solver.Guest) { g.MustWith = []string{"C"} }),
		guest("C", func(g *solver.Guest) { g.MustWith = []string{"D"} }),
		guest("D", func(g *solver.Guest) { g.MustWith = []string{"E"} }),
		guest("E"),
	}
	tables := []solver.Table{{Name: "T1", Capacity: 4}, {Name: "T2", Capacity: 4}}

	m, err := solver.Build(guests, tables, nil, solver.Options{})
	require.NoError(t, err)
	res, err := m.Solve()
	require.NoError(t, err)
	require.Len(t, res, 5)
	for table, n := range tableNames(t, res) {
		require.LessOrEqual(t, n, 4, "table %s over capacity", table)
	}
}

func TestSolveHardConstraintProperties(t *testing.T) {
	guests := []solver.Guest{
		guest("Ann", func(g *solver.Guest) { g.MustWith = []string{"Bob"} }),
		guest("Bob"),
		guest("Cat", func(g *solver.Guest) { g.MustSeparate = []string{"Dog"} }),
		guest("Dog"),
		guest("Eve"),
		guest("Fay"),
		guest("Gus"),
		guest("Hal"),
	}
	tables := []solver.Table{
		{Name: "T1", Capacity: 4},
		{Name: "T2", Capacity: 4},
		{Name: "T3", Capacity: 4},
	}
	rels := []solver.Relationship{
		{A: "Ann", B: "Eve", Relation: "friend"},
		{A: "Bob", B: "Fay", Relation: "know"},
		{A: "Eve", B: "Fay", Relation: "avoid"},
		{A: "Gus", B: "Hal", Relation: "best friend"},
		{A: "Cat", B: "Gus", Relation: "conflict"},
	}

	m, err := solver.Build(guests, tables, rels, solver.Options{})
	require.NoError(t, err)
	res, err := m.Solve()
	require.NoError(t, err)

	require.Len(t, res, len(guests), "every guest is assigned")
	for table, n := range tableNames(t, res) {
		require.LessOrEqual(t, n, 4, "capacity invariant at %s", table)
	}
	for _, p := range res {
		require.False(t, p.Relaxed, "strict solve must not relax")
	}
	require.Equal(t, res["Ann"].Table, res["Bob"].Table, "must-with co-location")
	require.NotEqual(t, res["Cat"].Table, res["Dog"].Table, "must-separate")
	require.NotEqual(t, res["Eve"].Table, res["Fay"].Table, "avoid pairs are never co-seated")
}

func TestSolveIsDeterministic(t *testing.T) {
	guests := []solver.Guest{
		guest("Ann"), guest("Bob"), guest("Cat"), guest("Dog"),
		guest("Eve"), guest("Fay"), guest("Gus"), guest("Hal"),
		guest("Ivy"), guest("Jon"), guest("Kim"), guest("Lou"),
	}
	tables := []solver.Table{
		{Name: "T1", Capacity: 5},
		{Name: "T2", Capacity: 5},
		{Name: "T3", Capacity: 5},
	}
	rels := []solver.Relationship{
		{A: "Ann", B: "Bob", Relation: "best friend"},
		{A: "Cat", B: "Dog", Relation: "friend"},
		{A: "Eve", B: "Fay", Relation: "know"},
		{A: "Gus", B: "Hal", Relation: "avoid"},
		{A: "Ivy", B: "Jon", Relation: "friend"},
		{A: "Kim", B: "Ann", Relation: "know"},
		{A: "Lou", B: "Dog", Relation: "conflict"},
	}
	opts := solver.Options{BalanceTables: true, MinKnown: 1}

	m1, err := solver.Build(guests, tables, rels, opts)
	require.NoError(t, err)
	first, err := m1.Solve()
	require.NoError(t, err)

	m2, err := solver.Build(guests, tables, rels, opts)
	require.NoError(t, err)
	second, err := m2.Solve()
	require.NoError(t, err)

	require.Equal(t, first, second)
}

// More refinement passes can only keep or improve the objective.
func TestRefinementNeverDecreasesObjective(t *testing.T) {
	guests := []solver.Guest{
		guest("Ann"), guest("Bob"), guest("Cat"), guest("Dog"),
		guest("Eve"), guest("Fay"), guest("Gus"), guest("Hal"),
	}
	tables := []solver.Table{
		{Name: "T1", Capacity: 4},
		{Name: "T2", Capacity: 4},
	}
	rels := []solver.Relationship{
		{A: "Ann", B: "Dog", Relation: "best friend"},
		{A: "Bob", B: "Cat", Relation: "conflict"},
		{A: "Eve", B: "Hal", Relation: "friend"},
		{A: "Fay", B: "Gus", Relation: "know"},
	}

	short, err := solver.Build(guests, tables, rels, solver.Options{MaxSwapPasses: 1})
	require.NoError(t, err)
	shortRes, err := short.Solve()
	require.NoError(t, err)

	long, err := solver.Build(guests, tables, rels, solver.Options{MaxSwapPasses: 14})
	require.NoError(t, err)
	longRes, err := long.Solve()
	require.NoError(t, err)

	require.GreaterOrEqual(t, long.Objective(longRes), short.Objective(shortRes))
}

func TestBalanceTablesEqualizesSizes(t *testing.T) {
	var guests []solver.Guest
	for _, n := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		guests = append(guests, guest(n))
	}
	tables := []solver.Table{
		{Name: "T1", Capacity: 8},
		{Name: "T2", Capacity: 8},
	}

	m, err := solver.Build(guests, tables, nil, solver.Options{BalanceTables: true})
	require.NoError(t, err)
	res, err := m.Solve()
	require.NoError(t, err)

	counts := tableNames(t, res)
	require.Equal(t, 4, counts["T1"])
	require.Equal(t, 4, counts["T2"])
}

func TestGroupSinglesClustersByThree(t *testing.T) {
	guests := []solver.Guest{
		guest("Sam", func(g *solver.Guest) { g.Single = true }),
		guest("Sid", func(g *solver.Guest) { g.Single = true }),
		guest("Sue", func(g *solver.Guest) { g.Single = true }),
		guest("Ned"),
		guest("Pat", func(g *solver.Guest) { g.Single = true; g.PlusOne = true }),
	}
	tables := []solver.Table{
		{Name: "T1", Capacity: 4},
		{Name: "T2", Capacity: 4},
	}

	m, err := solver.Build(guests, tables, nil, solver.Options{GroupSingles: true})
	require.NoError(t, err)
	res, err := m.Solve()
	require.NoError(t, err)

	require.Len(t, res, 5)
	require.Equal(t, res["Sam"].Table, res["Sid"].Table, "singles chunk stays together")
	require.Equal(t, res["Sam"].Table, res["Sue"].Table, "singles chunk stays together")
}

// Pulling singles out of a must-with group must leave the remaining members
// behind as a group of their own, not discard them.
func TestGroupSinglesKeepsGroupRemainders(t *testing.T) {
	guests := []solver.Guest{
		guest("Ann", func(g *solver.Guest) { g.MustWith = []string{"Sam"} }),
		guest("Sam", func(g *solver.Guest) { g.Single = true }),
		guest("Ned"),
	}
	tables := []solver.Table{{Name: "T1", Capacity: 4}}

	m, err := solver.Build(guests, tables, nil, solver.Options{GroupSingles: true})
	require.NoError(t, err)
	res, err := m.Solve()
	require.NoError(t, err)

	require.Len(t, res, 3, "every guest is assigned")
	for _, name := range []string{"Ann", "Sam", "Ned"} {
		require.Equal(t, "T1", res[name].Table)
	}
}

func TestGroupByMealPreference(t *testing.T) {
	guests := []solver.Guest{
		guest("V1", func(g *solver.Guest) { g.MealPreference = "vegetarian" }),
		guest("V2", func(g *solver.Guest) { g.MealPreference = "vegetarian" }),
		guest("M1", func(g *solver.Guest) { g.MealPreference = "meat" }),
		guest("M2", func(g *solver.Guest) { g.MealPreference = "meat" }),
	}
	tables := []solver.Table{
		{Name: "T1", Capacity: 2},
		{Name: "T2", Capacity: 2},
	}

	m, err := solver.Build(guests, tables, nil, solver.Options{GroupByMealPreference: true})
	require.NoError(t, err)
	res, err := m.Solve()
	require.NoError(t, err)

	require.Equal(t, res["V1"].Table, res["V2"].Table)
	require.Equal(t, res["M1"].Table, res["M2"].Table)
	require.NotEqual(t, res["V1"].Table, res["M1"].Table)
}

// With no soft target, Xan follows the pair scores to the table of people he
// knows; a min-unknown target of two makes the table of strangers worth
// more, so the same inputs seat him with Cal and Dee instead.
func TestMinUnknownSeatsGuestWithStrangers(t *testing.T) {
	guests := func(minUnknown int) []solver.Guest {
		return []solver.Guest{
			guest("Ann"), guest("Bob"), guest("Cal"), guest("Dee"),
			guest("Xan", func(g *solver.Guest) { g.MinUnknown = minUnknown }),
		}
	}
	tables := []solver.Table{
		{Name: "T1", Capacity: 3},
		{Name: "T2", Capacity: 3},
	}
	rels := []solver.Relationship{
		{A: "Ann", B: "Bob", Relation: "friend"},
		{A: "Ann", B: "Xan", Relation: "know"},
		{A: "Bob", B: "Xan", Relation: "know"},
	}

	m, err := solver.Build(guests(0), tables, rels, solver.Options{})
	require.NoError(t, err)
	res, err := m.Solve()
	require.NoError(t, err)
	require.Equal(t, res["Ann"].Table, res["Xan"].Table, "without a target, pair scores win")

	m, err = solver.Build(guests(2), tables, rels, solver.Options{})
	require.NoError(t, err)
	res, err = m.Solve()
	require.NoError(t, err)
	require.Equal(t, res["Cal"].Table, res["Xan"].Table)
	require.Equal(t, res["Dee"].Table, res["Xan"].Table)
	require.NotEqual(t, res["Ann"].Table, res["Xan"].Table)
}

// Zed cannot be seated cleanly anywhere, so the relaxed pass picks his table.
// Plain relaxed scoring sends him to the neutral table; maximize-known counts
// his positive relationships again and outweighs the conflict sitting next to
// them, so he lands with Bob instead.
func TestMaximizeKnownBiasesRelaxedPlacement(t *testing.T) {
	build := func(maximizeKnown bool) map[string]solver.Placed {
		guests := []solver.Guest{
			guest("Ann"),
			guest("Bob", func(g *solver.Guest) { g.MustWith = []string{"Cat"} }),
			guest("Cat"),
			guest("Dee"),
			guest("Eve"),
			guest("Zed", func(g *solver.Guest) {
				g.MustSeparate = []string{"Ann", "Bob", "Cat", "Dee", "Eve"}
			}),
		}
		tables := []solver.Table{
			{Name: "T1", Capacity: 4},
			{Name: "T2", Capacity: 4},
		}
		rels := []solver.Relationship{
			{A: "Zed", B: "Bob", Relation: "friend"},
			{A: "Zed", B: "Cat", Relation: "conflict"},
			{A: "Ann", B: "Dee", Relation: "conflict"},
			{A: "Ann", B: "Eve", Relation: "avoid"},
		}
		m, err := solver.Build(guests, tables, rels, solver.Options{MaximizeKnown: maximizeKnown})
		require.NoError(t, err)
		res, err := m.Solve()
		require.NoError(t, err)
		require.True(t, res["Zed"].Relaxed, "Zed can only be seated relaxed")
		return res
	}

	plain := build(false)
	require.Equal(t, plain["Dee"].Table, plain["Zed"].Table)

	biased := build(true)
	require.Equal(t, biased["Bob"].Table, biased["Zed"].Table)
}

// Weight multiplies the soft bonus: at weight 1 Xan's friends outscore the
// stranger bonus, at weight 2 the bonus wins.
func TestWeightScalesSoftBonus(t *testing.T) {
	build := func(weight int) map[string]solver.Placed {
		guests := []solver.Guest{
			guest("Ann"), guest("Bob"), guest("Cal"), guest("Dee"),
			guest("Xan", func(g *solver.Guest) {
				g.MinUnknown = 2
				g.Weight = weight
			}),
		}
		tables := []solver.Table{
			{Name: "T1", Capacity: 3},
			{Name: "T2", Capacity: 3},
		}
		rels := []solver.Relationship{
			{A: "Ann", B: "Bob", Relation: "best friend"},
			{A: "Ann", B: "Xan", Relation: "best friend"},
			{A: "Bob", B: "Xan", Relation: "friend"},
		}
		m, err := solver.Build(guests, tables, rels, solver.Options{})
		require.NoError(t, err)
		res, err := m.Solve()
		require.NoError(t, err)
		return res
	}

	light := build(1)
	require.Equal(t, light["Ann"].Table, light["Xan"].Table)

	heavy := build(2)
	require.Equal(t, heavy["Cal"].Table, heavy["Xan"].Table)
	require.NotEqual(t, heavy["Ann"].Table, heavy["Xan"].Table)
}

// Zero-valued tunables take the documented default; a negative value is an
// explicit off switch, not the default.
func TestNegativeTunablesDisable(t *testing.T) {
	guests := []solver.Guest{guest("A"), guest("B"), guest("C"), guest("D")}
	tables := []solver.Table{
		{Name: "T1", Capacity: 4},
		{Name: "T2", Capacity: 4},
	}
	lopsided := map[string]solver.Placed{
		"A": {Table: "T1"}, "B": {Table: "T1"},
		"C": {Table: "T1"}, "D": {Table: "T1"},
	}

	def, err := solver.Build(guests, tables, nil, solver.Options{BalanceTables: true})
	require.NoError(t, err)
	require.InDelta(t, -96.0, def.Objective(lopsided), 1e-9, "two tables off target by two at weight 12")

	off, err := solver.Build(guests, tables, nil, solver.Options{BalanceTables: true, BalanceWeight: -1})
	require.NoError(t, err)
	require.InDelta(t, 0.0, off.Objective(lopsided), 1e-9)

	bonusGuests := []solver.Guest{
		guest("Ann"), guest("Bob"), guest("Cal"), guest("Dee"),
		guest("Xan", func(g *solver.Guest) { g.MinUnknown = 2 }),
	}
	bonusTables := []solver.Table{
		{Name: "T1", Capacity: 3},
		{Name: "T2", Capacity: 3},
	}
	rels := []solver.Relationship{
		{A: "Ann", B: "Bob", Relation: "friend"},
		{A: "Ann", B: "Xan", Relation: "know"},
		{A: "Bob", B: "Xan", Relation: "know"},
	}
	m, err := solver.Build(bonusGuests, bonusTables, rels, solver.Options{KnownBonus: -1})
	require.NoError(t, err)
	res, err := m.Solve()
	require.NoError(t, err)
	require.Equal(t, res["Ann"].Table, res["Xan"].Table, "disabled bonus leaves only pair scores")
}

// Relationship endpoints may mix stable identifiers and display names; the
// index resolves both to the same entry.
func TestRelationshipAliasResolution(t *testing.T) {
	guests := []solver.Guest{
		{ID: "1", Name: "Alice"},
		{ID: "2", Name: "Bob"},
	}
	tables := []solver.Table{{Name: "T1", Capacity: 2}}
	rels := []solver.Relationship{{A: "1", B: "Bob", Relation: "friend"}}

	m, err := solver.Build(guests, tables, rels, solver.Options{})
	require.NoError(t, err)

	require.Equal(t, "friend", m.GetRelationship("Alice", "Bob").Relation)
	require.Equal(t, "friend", m.GetRelationship("Bob", "Alice").Relation)
	require.Equal(t, "friend", m.GetRelationship("1", "2").Relation)
	require.Equal(t, "friend", m.GetRelationship("2", "Alice").Relation)
	require.Equal(t, "neutral", m.GetRelationship("Alice", "Nobody").Relation)
}

func TestSolveEmptyInputs(t *testing.T) {
	m, err := solver.Build(nil, []solver.Table{{Name: "T1", Capacity: 4}}, nil, solver.Options{})
	require.NoError(t, err)
	res, err := m.Solve()
	require.NoError(t, err)
	require.Empty(t, res)
}

type recordingObserver struct {
	placed    int
	fallbacks []string
	swaps     int
}

func (r *recordingObserver) GroupPlaced([]string, string, float64) { r.placed++ }
func (r *recordingObserver) FallbackTriggered(reason string)       { r.fallbacks = append(r.fallbacks, reason) }
func (r *recordingObserver) SwapAccepted(_, _, _, _ string)        { r.swaps++ }

func TestObserverSeesFallback(t *testing.T) {
	ob := &recordingObserver{}
	guests := []solver.Guest{
		guest("Ann", func(g *solver.Guest) { g.MustSeparate = []string{"Bob"} }),
		guest("Bob", func(g *solver.Guest) { g.MustSeparate = []string{"Ann"} }),
	}
	tables := []solver.Table{{Name: "T1", Capacity: 2}}

	m, err := solver.Build(guests, tables, nil, solver.Options{Observer: ob})
	require.NoError(t, err)
	_, err = m.Solve()
	require.NoError(t, err)

	require.NotEmpty(t, ob.fallbacks)
	require.Greater(t, ob.placed, 0)
}
