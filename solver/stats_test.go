package solver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"seating/solver"
)

// fixedRel builds a lookup over an explicit pair table, neutral elsewhere.
func fixedRel(pairs map[[2]string]string) func(a, b string) solver.Relationship {
	return func(a, b string) solver.Relationship {
		if rel, ok := pairs[[2]string{a, b}]; ok {
			return solver.Relationship{A: a, B: b, Relation: rel}
		}
		if rel, ok := pairs[[2]string{b, a}]; ok {
			return solver.Relationship{A: a, B: b, Relation: rel}
		}
		return solver.Relationship{A: a, B: b, Relation: "neutral"}
	}
}

func TestComputeTableStatsBreakdown(t *testing.T) {
	rel := fixedRel(map[[2]string]string{
		{"A", "B"}: "best friend",
		{"A", "C"}: "conflict",
	})
	s := solver.ComputeTableStats([]string{"A", "B", "C"}, rel)
	require.Equal(t, 0, s.TotalScore) // +5 - 5 + 0
	require.Equal(t, 3, s.PairCount)
	require.Equal(t, 1, s.PosPairs)
	require.Equal(t, 1, s.NegPairs)
	require.Equal(t, 1, s.NeuPairs)
	require.InDelta(t, 0.0, s.MeanScore, 1e-9)
}

func TestComputeTableStatsEmpty(t *testing.T) {
	s := solver.ComputeTableStats(nil, fixedRel(nil))
	require.Zero(t, s.PairCount)
	require.Zero(t, s.MeanScore)
}

func TestRelationValueFallsBackToStrength(t *testing.T) {
	require.Equal(t, 5, solver.RelationValue(solver.Relationship{Relation: "best friend", Strength: 1}))
	require.Equal(t, -3, solver.RelationValue(solver.Relationship{Relation: "avoid", Strength: 9}))
	require.Equal(t, 4, solver.RelationValue(solver.Relationship{Relation: "college roommate", Strength: 4}))
	require.Equal(t, 0, solver.RelationValue(solver.Relationship{Relation: "neutral", Strength: 7}))
}

// Grade boundaries are exact: a mean of 2.5 is already an A, 0.8 a C, and
// anything under 0.2 an F.
func TestGradeThresholds(t *testing.T) {
	cases := []struct {
		mean  float64
		grade string
	}{
		{3.0, "A"},
		{2.5, "A"},
		{2.49, "B"},
		{1.5, "B"},
		{1.33, "C"},
		{0.8, "C"},
		{0.5, "D"},
		{0.2, "D"},
		{0.19, "F"},
		{0.0, "F"},
		{-2.0, "F"},
	}
	for _, tc := range cases {
		graded := solver.GradeTables([]solver.TableStats{{MeanScore: tc.mean}})
		require.Equal(t, tc.grade, graded[0].Grade, "mean %.2f", tc.mean)
	}
}

func TestGroupByTable(t *testing.T) {
	assign := map[string]solver.Placed{
		"Cat": {Table: "T1"},
		"Ann": {Table: "T1"},
		"Bob": {Table: "T2"},
	}
	tables := solver.GroupByTable(assign)
	require.Equal(t, []string{"Ann", "Cat"}, tables["T1"])
	require.Equal(t, []string{"Bob"}, tables["T2"])
}
