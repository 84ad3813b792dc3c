package solver

import "sort"

// TableStats summarizes the pairwise compatibility of one table's members.
type TableStats struct {
	TotalScore int
	MeanScore  float64
	PairCount  int
	PosPairs   int
	NegPairs   int
	NeuPairs   int
	Grade      string
}

// ComputeTableStats computes total and mean pair scores plus the sign
// breakdown for a set of members. The lookup must be symmetric and total;
// Model.GetRelationship qualifies, as does any caller-supplied function for
// grading an externally produced arrangement.
func ComputeTableStats(members []string, rel func(a, b string) Relationship) TableStats {
	var s TableStats
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			v := RelationValue(rel(members[i], members[j]))
			s.TotalScore += v
			s.PairCount++
			switch {
			case v > 0:
				s.PosPairs++
			case v < 0:
				s.NegPairs++
			default:
				s.NeuPairs++
			}
		}
	}
	if s.PairCount > 0 {
		s.MeanScore = float64(s.TotalScore) / float64(s.PairCount)
	}
	return s
}

// GradeTables assigns A to F letter grades from mean scores. The thresholds
// are fixed; reporting consumers depend on them.
func GradeTables(stats []TableStats) []TableStats {
	graded := make([]TableStats, len(stats))
	for i, s := range stats {
		s.Grade = gradeFor(s.MeanScore)
		graded[i] = s
	}
	return graded
}

func gradeFor(mean float64) string {
	switch {
	case mean >= 2.5:
		return "A"
	case mean >= 1.5:
		return "B"
	case mean >= 0.8:
		return "C"
	case mean >= 0.2:
		return "D"
	default:
		return "F"
	}
}

// GroupByTable inverts a finished assignment into sorted member lists per
// table, for reporting.
func GroupByTable(assign map[string]Placed) map[string][]string {
	tables := map[string][]string{}
	for g, p := range assign {
		tables[p.Table] = append(tables[p.Table], g)
	}
	for _, members := range tables {
		sort.Strings(members)
	}
	return tables
}
