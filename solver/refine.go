package solver

import "sort"

// refine runs pair-swap hill climbing over the finished assignment: exchange
// two guests at different tables whenever the swap is feasible at both
// tables and strictly increases the two tables' combined objective. Sweeps
// repeat until a full pass accepts nothing or the pass cap is hit.
//
// Only guests that are singleton placement units and were not relaxed are
// swapped individually; moving one member of a must-with chain would break
// co-location.
func (m *Model) refine(assign map[string]string, relaxed map[string]bool) {
	movable := func(name string) bool {
		return !relaxed[name] && m.unitSize[m.ufRoot[name]] == 1
	}

	names := make([]string, 0, len(assign))
	for g := range assign {
		names = append(names, g)
	}
	sort.Strings(names)

	for pass := 0; pass < m.opts.MaxSwapPasses; pass++ {
		improved := false
		for i := range names {
			for j := i + 1; j < len(names); j++ {
				g1, g2 := names[i], names[j]
				t1, t2 := assign[g1], assign[g2]
				if t1 == t2 || !movable(g1) || !movable(g2) {
					continue
				}

				before := m.twoTableObjective(assign, t1, t2)

				assign[g1], assign[g2] = t2, t1
				ok := m.swapFeasible(assign, t1) && m.swapFeasible(assign, t2)
				if !ok {
					assign[g1], assign[g2] = t1, t2
					continue
				}
				after := m.twoTableObjective(assign, t1, t2)
				if after > before {
					improved = true
					if ob := m.opts.Observer; ob != nil {
						ob.SwapAccepted(g1, g2, t1, t2)
					}
				} else {
					assign[g1], assign[g2] = t1, t2
				}
			}
		}
		if !improved {
			break
		}
	}
}

// swapFeasible rechecks the exclusion constraints for one table's current
// membership. Sizes are unchanged by a swap, so capacity needs no recheck.
func (m *Model) swapFeasible(assign map[string]string, table string) bool {
	members := m.membersAt(assign, table)
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			a, b := members[i], members[j]
			if m.mustSeparate[a][b] {
				return false
			}
			if m.pairLabel(a, b) == "avoid" {
				return false
			}
		}
	}
	return true
}

func (m *Model) twoTableObjective(assign map[string]string, t1, t2 string) float64 {
	total := 0.0
	for _, t := range []string{t1, t2} {
		members := m.membersAt(assign, t)
		total += float64(m.pairTotal(members))
		if m.opts.BalanceTables && len(m.targetSize) > 0 {
			total -= m.sizePenalty(len(members), m.targetSize[t])
		}
	}
	return total
}

// rebalanceTries caps the move loop when chasing target sizes.
const rebalanceTries = 50

// rebalance nudges tables toward their target sizes after refinement: move
// one guest at a time from an over-target table to an under-target one,
// picking the move with the best objective change and accepting it only
// when the objective does not decrease.
func (m *Model) rebalance(assign map[string]string, relaxed map[string]bool) {
	if !m.opts.BalanceTables || len(m.targetSize) == 0 {
		return
	}

	capOf := map[string]int{}
	for _, t := range m.tables {
		capOf[t.Name] = t.Capacity
	}
	movable := func(name string) bool {
		return !relaxed[name] && m.unitSize[m.ufRoot[name]] == 1
	}
	deviation := func(table string) int {
		return len(m.membersAt(assign, table)) - m.targetSize[table]
	}

	for try := 0; try < rebalanceTries; try++ {
		var over, under []string
		for _, t := range m.tables {
			switch d := deviation(t.Name); {
			case d > 0:
				over = append(over, t.Name)
			case d < 0:
				under = append(under, t.Name)
			}
		}
		sort.SliceStable(over, func(i, j int) bool { return deviation(over[i]) > deviation(over[j]) })
		sort.SliceStable(under, func(i, j int) bool { return deviation(under[i]) < deviation(under[j]) })
		if len(over) == 0 || len(under) == 0 {
			return
		}

		moved := false
		for _, from := range over {
			for _, to := range under {
				if len(m.membersAt(assign, to)) >= capOf[to] {
					continue
				}
				bestGain := 0.0
				bestGuest := ""
				for _, g := range m.membersAt(assign, from) {
					if !movable(g) {
						continue
					}
					before := m.twoTableObjective(assign, from, to)
					assign[g] = to
					ok := m.swapFeasible(assign, to)
					gain := m.twoTableObjective(assign, from, to) - before
					assign[g] = from
					if !ok {
						continue
					}
					if bestGuest == "" || gain > bestGain {
						bestGain = gain
						bestGuest = g
					}
				}
				if bestGuest != "" && bestGain >= 0 {
					assign[bestGuest] = to
					moved = true
					break
				}
			}
			if moved {
				break
			}
		}
		if !moved {
			return
		}
	}
}
