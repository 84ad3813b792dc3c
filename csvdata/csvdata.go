// Package csvdata loads guests, tables and relationships from CSV files.
// List-valued columns (must_with, must_separate, interested_in, tags) are
// pipe-separated. Constraint and relationship references are validated
// against the guest set at load time.
package csvdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"seating/solver"
)

func readRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvdata: %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csvdata: %s: missing header row", path)
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := map[string]string{}
		for i, col := range header {
			if i < len(rec) {
				row[strings.TrimSpace(col)] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func pipeList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

// LoadGuests reads guests.csv and validates that every must_with and
// must_separate reference names a loaded guest.
func LoadGuests(path string) ([]solver.Guest, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	guests := make([]solver.Guest, 0, len(rows))
	for _, row := range rows {
		guests = append(guests, solver.Guest{
			ID:             row["id"],
			Name:           row["name"],
			MealPreference: row["meal_preference"],
			Single:         parseBool(row["single"]),
			PlusOne:        parseBool(row["plus_one"]),
			InterestedIn:   pipeList(row["interested_in"]),
			MinKnown:       parseInt(row["min_known"], 0),
			MinUnknown:     parseInt(row["min_unknown"], 0),
			Weight:         parseInt(row["weight"], 1),
			MustWith:       pipeList(row["must_with"]),
			MustSeparate:   pipeList(row["must_separate"]),
		})
	}

	known := map[string]bool{}
	for _, g := range guests {
		known[g.Name] = true
		if g.ID != "" {
			known[g.ID] = true
		}
	}
	for _, g := range guests {
		for _, other := range append(append([]string{}, g.MustWith...), g.MustSeparate...) {
			if !known[other] {
				return nil, fmt.Errorf("%w: %q referenced by %q in %s", solver.ErrUnknownGuest, other, g.Name, path)
			}
		}
	}
	return guests, nil
}

// LoadTables reads tables.csv.
func LoadTables(path string) ([]solver.Table, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	tables := make([]solver.Table, 0, len(rows))
	for _, row := range rows {
		capacity, err := strconv.Atoi(row["capacity"])
		if err != nil {
			return nil, fmt.Errorf("csvdata: table %q: bad capacity %q", row["name"], row["capacity"])
		}
		tables = append(tables, solver.Table{
			Name:     row["name"],
			Capacity: capacity,
			Tags:     pipeList(row["tags"]),
		})
	}
	return tables, nil
}

// LoadRelationships reads relationships.csv. When guests is non-nil both
// endpoints are validated against it (by name or id).
func LoadRelationships(path string, guests []solver.Guest) ([]solver.Relationship, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	known := map[string]bool{}
	for _, g := range guests {
		known[g.Name] = true
		if g.ID != "" {
			known[g.ID] = true
		}
	}
	rels := make([]solver.Relationship, 0, len(rows))
	for _, row := range rows {
		a, b := row["guest1_id"], row["guest2_id"]
		if guests != nil && (!known[a] || !known[b]) {
			return nil, fmt.Errorf("%w: relationship %q - %q in %s", solver.ErrUnknownGuest, a, b, path)
		}
		relation := row["relationship"]
		if relation == "" {
			relation = "neutral"
		}
		rels = append(rels, solver.Relationship{
			A:        a,
			B:        b,
			Relation: relation,
			Strength: parseInt(row["strength"], 0),
			Notes:    row["notes"],
		})
	}
	return rels, nil
}

// LoadAll reads the three input files and cross-validates relationships
// against the guest set.
func LoadAll(guestsPath, relationshipsPath, tablesPath string) ([]solver.Guest, []solver.Relationship, []solver.Table, error) {
	guests, err := LoadGuests(guestsPath)
	if err != nil {
		return nil, nil, nil, err
	}
	rels, err := LoadRelationships(relationshipsPath, guests)
	if err != nil {
		return nil, nil, nil, err
	}
	tables, err := LoadTables(tablesPath)
	if err != nil {
		return nil, nil, nil, err
	}
	return guests, rels, tables, nil
}
