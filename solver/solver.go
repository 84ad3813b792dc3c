// Package solver assigns wedding guests to capacity-limited tables so that
// pairwise compatibility is maximized under hard togetherness, separation and
// avoidance constraints. The search is a beam search over placement groups
// with a greedy fallback and a local swap refinement; it is deterministic for
// identical inputs and options.
package solver

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

type Guest struct {
	ID             string
	Name           string
	MealPreference string
	Single         bool
	PlusOne        bool
	InterestedIn   []string
	MinKnown       int
	MinUnknown     int
	Weight         int
	MustWith       []string
	MustSeparate   []string
}

type Table struct {
	Name     string
	Capacity int
	Tags     []string
}

type Relationship struct {
	A        string
	B        string
	Relation string
	Strength int
	Notes    string
}

// relationValue is the canonical label scale. Labels outside this table fall
// back to the relationship's raw strength.
var relationValue = map[string]int{
	"best friend": 5,
	"friend":      3,
	"know":        2,
	"neutral":     0,
	"avoid":       -3,
	"conflict":    -5,
}

// RelationValue maps a relationship to its numeric compatibility score.
func RelationValue(r Relationship) int {
	if v, ok := relationValue[r.Relation]; ok {
		return v
	}
	return r.Strength
}

// Options tunes the solve. Zero-valued numeric tunables take their
// DefaultOptions value; KnownBonus, BalanceWeight and MaxSwapPasses accept a
// negative value to mean "explicitly off".
type Options struct {
	MaximizeKnown         bool
	GroupSingles          bool
	MinKnown              int
	MinUnknown            int
	GroupByMealPreference bool
	BalanceTables         bool
	BalanceWeight         float64
	MinTargetSlack        int
	BeamWidth             int
	MaxSwapPasses         int
	KnownBonus            float64
	Observer              Observer
}

var DefaultOptions = Options{
	BalanceWeight: 12.0,
	BeamWidth:     10,
	MaxSwapPasses: 14,
	KnownBonus:    6.0,
}

// Placed is the outcome for a single guest. Relaxed marks guests seated by
// the fallback path with some exclusion constraint waived; capacity is never
// waived.
type Placed struct {
	Table   string
	Relaxed bool
}

// singlesChunkSize is the fixed bucket size used by singles clustering.
const singlesChunkSize = 3

type Model struct {
	guests []Guest
	tables []Table
	opts   Options

	rels         map[[2]string]Relationship
	mustSeparate map[string]map[string]bool
	targetSize   map[string]int

	idByName map[string]string
	nameByID map[string]string
	guestBy  map[string]Guest

	// ufRoot keys every guest to the root of its must-with closure; unit
	// sizes gate which guests the refiner may swap individually.
	ufRoot   map[string]string
	unitSize map[string]int
}

// Build validates constraint references, resolves id/name aliases to one
// canonical identifier per guest, indexes relationships symmetrically and
// precomputes per-table target sizes. Zero-valued tunables in opts pick up
// the DefaultOptions value; a negative KnownBonus, BalanceWeight or
// MaxSwapPasses disables that mechanism outright.
func Build(guests []Guest, tables []Table, relationships []Relationship, opts Options) (*Model, error) {
	if opts.BeamWidth <= 0 {
		opts.BeamWidth = DefaultOptions.BeamWidth
	}
	switch {
	case opts.MaxSwapPasses == 0:
		opts.MaxSwapPasses = DefaultOptions.MaxSwapPasses
	case opts.MaxSwapPasses < 0:
		opts.MaxSwapPasses = 0
	}
	switch {
	case opts.KnownBonus == 0:
		opts.KnownBonus = DefaultOptions.KnownBonus
	case opts.KnownBonus < 0:
		opts.KnownBonus = 0
	}
	switch {
	case opts.BalanceWeight == 0:
		opts.BalanceWeight = DefaultOptions.BalanceWeight
	case opts.BalanceWeight < 0:
		opts.BalanceWeight = 0
	}

	m := &Model{
		guests:       guests,
		tables:       tables,
		opts:         opts,
		rels:         map[[2]string]Relationship{},
		mustSeparate: map[string]map[string]bool{},
		idByName:     map[string]string{},
		nameByID:     map[string]string{},
		guestBy:      map[string]Guest{},
	}

	for _, g := range guests {
		key := canonicalName(g)
		if _, ok := m.guestBy[key]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateGuest, key)
		}
		m.guestBy[key] = g
		if g.ID != "" {
			if _, ok := m.nameByID[g.ID]; ok {
				return nil, fmt.Errorf("%w: id %q", ErrDuplicateGuest, g.ID)
			}
			m.idByName[key] = g.ID
			m.nameByID[g.ID] = key
		}
	}

	for _, g := range guests {
		self := canonicalName(g)
		for _, other := range append(append([]string{}, g.MustWith...), g.MustSeparate...) {
			if _, ok := m.resolve(other); !ok {
				return nil, fmt.Errorf("%w: %q referenced by %q", ErrUnknownGuest, other, self)
			}
		}
	}

	for _, r := range relationships {
		a, aOk := m.resolve(r.A)
		b, bOk := m.resolve(r.B)
		if !aOk || !bOk {
			return nil, fmt.Errorf("%w: relationship %q - %q", ErrUnknownGuest, r.A, r.B)
		}
		m.rels[[2]string{a, b}] = r
		m.rels[[2]string{b, a}] = r
	}

	for _, g := range guests {
		self := canonicalName(g)
		for _, other := range g.MustSeparate {
			o, _ := m.resolve(other)
			m.addSeparate(self, o)
			m.addSeparate(o, self)
		}
	}

	m.buildUnits()
	for a, others := range m.mustSeparate {
		for b := range others {
			if m.ufRoot[a] == m.ufRoot[b] {
				return nil, fmt.Errorf("%w: %q and %q", ErrConflictingConstraints, a, b)
			}
		}
	}

	m.computeTargetSizes()
	return m, nil
}

func canonicalName(g Guest) string {
	if g.Name != "" {
		return g.Name
	}
	return g.ID
}

// resolve maps either a display name or a stable identifier to the canonical
// guest key.
func (m *Model) resolve(key string) (string, bool) {
	if _, ok := m.guestBy[key]; ok {
		return key, true
	}
	if name, ok := m.nameByID[key]; ok {
		return name, true
	}
	return key, false
}

func (m *Model) addSeparate(a, b string) {
	if m.mustSeparate[a] == nil {
		m.mustSeparate[a] = map[string]bool{}
	}
	m.mustSeparate[a][b] = true
}

// buildUnits runs union-find with path compression over must-with edges.
func (m *Model) buildUnits() {
	parent := map[string]string{}
	for _, g := range m.guests {
		parent[canonicalName(g)] = canonicalName(g)
	}
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for _, g := range m.guests {
		self := canonicalName(g)
		for _, other := range g.MustWith {
			o, _ := m.resolve(other)
			ra, rb := find(self), find(o)
			if ra != rb {
				parent[ra] = rb
			}
		}
	}
	m.ufRoot = map[string]string{}
	m.unitSize = map[string]int{}
	for _, g := range m.guests {
		root := find(canonicalName(g))
		m.ufRoot[canonicalName(g)] = root
		m.unitSize[root]++
	}
}

// computeTargetSizes spreads the guest count near-equally across tables,
// capped per table at capacity, remainder seats going to tables with the
// most headroom.
func (m *Model) computeTargetSizes() {
	total := len(m.guests)
	if len(m.tables) == 0 || total == 0 {
		m.targetSize = map[string]int{}
		return
	}

	names := make([]string, len(m.tables))
	caps := map[string]int{}
	for i, t := range m.tables {
		names[i] = t.Name
		caps[t.Name] = t.Capacity
	}

	base := total / len(names)
	rem := total % len(names)

	target := map[string]int{}
	for _, n := range names {
		target[n] = min(caps[n], base)
	}

	byHeadroom := func(a, b string) bool {
		return caps[a]-target[a] > caps[b]-target[b]
	}
	headroom := slices.Clone(names)
	sort.SliceStable(headroom, func(i, j int) bool { return byHeadroom(headroom[i], headroom[j]) })
	for _, n := range headroom {
		if rem <= 0 {
			break
		}
		if target[n] < caps[n] {
			target[n]++
			rem--
		}
	}

	placed := 0
	for _, n := range names {
		placed += target[n]
	}
	need := total - placed
	if need > 0 {
		headroom = slices.Clone(names)
		sort.SliceStable(headroom, func(i, j int) bool { return byHeadroom(headroom[i], headroom[j]) })
		i := 0
		for need > 0 && i < len(headroom) {
			n := headroom[i]
			if target[n] < caps[n] {
				target[n]++
				need--
			} else {
				i++
			}
		}
	}

	m.targetSize = target
}

// GetRelationship returns the relationship for a pair, resolving aliases.
// Unknown pairs default to neutral; it never fails.
func (m *Model) GetRelationship(a, b string) Relationship {
	ca, _ := m.resolve(a)
	cb, _ := m.resolve(b)
	if r, ok := m.rels[[2]string{ca, cb}]; ok {
		return r
	}
	return Relationship{A: a, B: b, Relation: "neutral"}
}

func (m *Model) pairValue(a, b string) int {
	if r, ok := m.rels[[2]string{a, b}]; ok {
		return RelationValue(r)
	}
	return 0
}

func (m *Model) pairLabel(a, b string) string {
	if r, ok := m.rels[[2]string{a, b}]; ok {
		return r.Relation
	}
	return "neutral"
}

func (m *Model) pairTotal(members []string) int {
	total := 0
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			total += m.pairValue(members[i], members[j])
		}
	}
	return total
}

// TableStats computes the grading statistics for one table's members using
// this model's relationship index.
func (m *Model) TableStats(members []string) TableStats {
	return ComputeTableStats(members, m.GetRelationship)
}

func (m *Model) membersAt(assign map[string]string, table string) []string {
	var members []string
	for g, t := range assign {
		if t == table {
			members = append(members, g)
		}
	}
	sort.Strings(members)
	return members
}

// feasible applies the hard checks only: remaining capacity, must-separate
// pairs and "avoid" relationships across everyone who would share the table.
func (m *Model) feasible(group []string, table string, assign map[string]string, slots map[string]int) bool {
	if slots[table] < len(group) {
		return false
	}
	combined := append(m.membersAt(assign, table), group...)
	for i := range combined {
		for j := i + 1; j < len(combined); j++ {
			a, b := combined[i], combined[j]
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

// sizePenalty is the quadratic, slack-tolerant deviation cost used by table
// balancing.
func (m *Model) sizePenalty(size, target int) float64 {
	d := size - target
	if d < 0 {
		d = -d
	}
	if d <= m.opts.MinTargetSlack {
		return 0
	}
	d -= m.opts.MinTargetSlack
	return m.opts.BalanceWeight * float64(d*d)
}

func (m *Model) minKnownFor(g Guest) int {
	if g.MinKnown > 0 {
		return g.MinKnown
	}
	return m.opts.MinKnown
}

func (m *Model) minUnknownFor(g Guest) int {
	if g.MinUnknown > 0 {
		return g.MinUnknown
	}
	return m.opts.MinUnknown
}

func (m *Model) guestWeight(name string) float64 {
	if g, ok := m.guestBy[name]; ok && g.Weight > 1 {
		return float64(g.Weight)
	}
	return 1
}

// tableDelta is the marginal objective change of seating group at table:
// pair-score delta plus soft min-known / min-unknown bonuses plus the
// balancing penalty change.
func (m *Model) tableDelta(group []string, table string, assign map[string]string) float64 {
	existing := m.membersAt(assign, table)
	combined := append(slices.Clone(existing), group...)

	oldTotal := 0
	if len(existing) >= 2 {
		oldTotal = m.pairTotal(existing)
	}
	delta := float64(m.pairTotal(combined) - oldTotal)

	for _, member := range group {
		g := m.guestBy[member]
		known, unknown := 0, 0
		for _, other := range combined {
			if other == member {
				continue
			}
			v := m.pairValue(member, other)
			if v > 0 {
				known++
			} else if v == 0 {
				unknown++
			}
		}
		if tgt := m.minKnownFor(g); tgt > 0 && known >= tgt {
			delta += m.opts.KnownBonus * m.guestWeight(member)
		}
		if tgt := m.minUnknownFor(g); tgt > 0 && unknown >= tgt {
			delta += m.opts.KnownBonus * m.guestWeight(member)
		}
	}

	if m.opts.BalanceTables && len(m.targetSize) > 0 {
		tgt := m.targetSize[table]
		delta += m.sizePenalty(len(existing), tgt) - m.sizePenalty(len(combined), tgt)
	}

	return delta
}

// relaxedDelta scores a placement when exclusion checks have been waived.
// With MaximizeKnown it additionally rewards strength-weighted positive
// relationships so relaxed guests land near people they know.
func (m *Model) relaxedDelta(group []string, table string, assign map[string]string) float64 {
	delta := m.tableDelta(group, table, assign)
	if !m.opts.MaximizeKnown {
		return delta
	}
	combined := append(m.membersAt(assign, table), group...)
	for _, member := range group {
		for _, other := range combined {
			if other == member {
				continue
			}
			if v := m.pairValue(member, other); v > 0 {
				delta += float64(v)
			}
		}
	}
	return delta
}

// placementGroups yields the atomic units the search places, in the
// deterministic order the beam commits to: must-with closures, optionally
// merged per meal preference, optionally with singles re-bucketed, then
// split to fit the largest table.
func (m *Model) placementGroups() [][]string {
	byRoot := map[string][]string{}
	for _, g := range m.guests {
		name := canonicalName(g)
		byRoot[m.ufRoot[name]] = append(byRoot[m.ufRoot[name]], name)
	}
	var groups [][]string
	for _, members := range byRoot {
		sort.Strings(members)
		groups = append(groups, members)
	}
	sortGroups(groups)

	if m.opts.GroupByMealPreference {
		groups = m.mealRegroup(groups)
	}
	if m.opts.GroupSingles {
		groups = m.singlesRegroup(groups)
	}

	if len(m.tables) > 0 {
		maxCap := 0
		for _, t := range m.tables {
			maxCap = max(maxCap, t.Capacity)
		}
		if maxCap > 0 {
			var split [][]string
			for _, g := range groups {
				for i := 0; i < len(g); i += maxCap {
					split = append(split, g[i:min(i+maxCap, len(g))])
				}
			}
			groups = split
		}
	}
	return groups
}

func sortGroups(groups [][]string) {
	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return groups[i][0] < groups[j][0]
	})
}

// mealRegroup merges whole base groups into one group per meal preference,
// keyed by each group's first member so must-with chains stay intact.
func (m *Model) mealRegroup(groups [][]string) [][]string {
	byMeal := map[string][]string{}
	for _, g := range groups {
		meal := m.guestBy[g[0]].MealPreference
		byMeal[meal] = append(byMeal[meal], g...)
	}
	meals := make([]string, 0, len(byMeal))
	for meal := range byMeal {
		meals = append(meals, meal)
	}
	sort.Strings(meals)
	var out [][]string
	for _, meal := range meals {
		members := byMeal[meal]
		sort.Strings(members)
		out = append(out, members)
	}
	sortGroups(out)
	return out
}

// singlesRegroup pulls single, no-plus-one guests out of their groups,
// keeps the non-single remainder of each group, and re-buckets the singles
// into fixed-size chunks independent of compatibility.
func (m *Model) singlesRegroup(groups [][]string) [][]string {
	singles := map[string]bool{}
	for _, g := range m.guests {
		if g.Single && !g.PlusOne {
			singles[canonicalName(g)] = true
		}
	}
	var out [][]string
	for _, g := range groups {
		rest := make([]string, 0, len(g))
		for _, n := range g {
			if !singles[n] {
				rest = append(rest, n)
			}
		}
		if len(rest) > 0 {
			out = append(out, rest)
		}
	}
	names := make([]string, 0, len(singles))
	for n := range singles {
		names = append(names, n)
	}
	sort.Strings(names)
	for i := 0; i < len(names); i += singlesChunkSize {
		out = append(out, names[i:min(i+singlesChunkSize, len(names))])
	}
	return out
}

type beamState struct {
	assign map[string]string
	slots  map[string]int
	score  float64
}

// Solve assigns every guest to a table. It fails only when a group literally
// cannot be seated; soft shortfalls degrade the score instead. The result
// covers every guest and is identical across runs for identical inputs and
// options.
func (m *Model) Solve() (map[string]Placed, error) {
	if len(m.guests) == 0 {
		return map[string]Placed{}, nil
	}
	totalCap := 0
	for _, t := range m.tables {
		totalCap += t.Capacity
	}
	if totalCap < len(m.guests) {
		return nil, fmt.Errorf("%w: %d guests, %d seats", ErrInsufficientCapacity, len(m.guests), totalCap)
	}

	groups := m.placementGroups()

	assign, relaxed, err := m.beamAssign(groups)
	if err != nil {
		return nil, err
	}

	m.refine(assign, relaxed)
	m.rebalance(assign, relaxed)

	out := make(map[string]Placed, len(assign))
	for g, t := range assign {
		out[g] = Placed{Table: t, Relaxed: relaxed[g]}
	}
	return out, nil
}

func (m *Model) beamAssign(groups [][]string) (map[string]string, map[string]bool, error) {
	initialSlots := map[string]int{}
	for _, t := range m.tables {
		initialSlots[t.Name] = t.Capacity
	}
	beam := []beamState{{assign: map[string]string{}, slots: initialSlots, score: 0}}
	width := m.opts.BeamWidth

	type candidate struct {
		table string
		delta float64
	}

	collapsed := false
	for _, group := range groups {
		var next []beamState
		for _, state := range beam {
			var candidates []candidate
			for _, t := range m.tables {
				if !m.feasible(group, t.Name, state.assign, state.slots) {
					continue
				}
				candidates = append(candidates, candidate{t.Name, m.tableDelta(group, t.Name, state.assign)})
			}
			sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].delta > candidates[j].delta })
			if len(candidates) > width {
				candidates = candidates[:width]
			}
			for _, c := range candidates {
				newAssign := make(map[string]string, len(state.assign)+len(group))
				for k, v := range state.assign {
					newAssign[k] = v
				}
				newSlots := make(map[string]int, len(state.slots))
				for k, v := range state.slots {
					newSlots[k] = v
				}
				for _, member := range group {
					newAssign[member] = c.table
					newSlots[c.table]--
				}
				next = append(next, beamState{assign: newAssign, slots: newSlots, score: state.score + c.delta})
			}
		}
		if len(next) == 0 {
			collapsed = true
			break
		}
		sort.SliceStable(next, func(i, j int) bool { return next[i].score > next[j].score })
		if len(next) > width {
			next = next[:width]
		}
		beam = next
		if ob := m.opts.Observer; ob != nil {
			ob.GroupPlaced(group, beam[0].assign[group[0]], beam[0].score)
		}
	}

	if !collapsed {
		best := beam[0]
		for _, s := range beam[1:] {
			if s.score > best.score {
				best = s
			}
		}
		return best.assign, map[string]bool{}, nil
	}

	if ob := m.opts.Observer; ob != nil {
		ob.FallbackTriggered("beam search collapsed")
	}
	return m.greedyAssign(groups)
}

// greedyAssign is the single-path fallback: best feasible table per group,
// then a relaxed pass waiving exclusion checks (capacity stays hard) with
// affected guests flagged.
func (m *Model) greedyAssign(groups [][]string) (map[string]string, map[string]bool, error) {
	assign := map[string]string{}
	relaxed := map[string]bool{}
	slots := map[string]int{}
	for _, t := range m.tables {
		slots[t.Name] = t.Capacity
	}

	for _, group := range groups {
		bestTable := ""
		bestDelta := math.Inf(-1)
		for _, t := range m.tables {
			if !m.feasible(group, t.Name, assign, slots) {
				continue
			}
			if delta := m.tableDelta(group, t.Name, assign); delta > bestDelta {
				bestDelta = delta
				bestTable = t.Name
			}
		}

		if bestTable == "" {
			for _, t := range m.tables {
				if slots[t.Name] < len(group) {
					continue
				}
				if delta := m.relaxedDelta(group, t.Name, assign); delta > bestDelta {
					bestDelta = delta
					bestTable = t.Name
				}
			}
			if bestTable == "" {
				return nil, nil, fmt.Errorf("%w: %s", ErrUnplaceableGroup, strings.Join(group, ", "))
			}
			for _, member := range group {
				relaxed[member] = true
			}
			if ob := m.opts.Observer; ob != nil {
				ob.FallbackTriggered("relaxed placement for group " + strings.Join(group, ", "))
			}
		}

		for _, member := range group {
			assign[member] = bestTable
			slots[bestTable]--
		}
		if ob := m.opts.Observer; ob != nil {
			ob.GroupPlaced(group, bestTable, bestDelta)
		}
	}
	return assign, relaxed, nil
}

// Objective is the total score of a finished assignment: pair scores summed
// per table minus size-balance penalties when balancing is enabled.
func (m *Model) Objective(assign map[string]Placed) float64 {
	plain := make(map[string]string, len(assign))
	for g, p := range assign {
		plain[g] = p.Table
	}
	return m.objectiveOf(plain)
}

func (m *Model) objectiveOf(assign map[string]string) float64 {
	total := 0.0
	for _, t := range m.tables {
		members := m.membersAt(assign, t.Name)
		total += float64(m.pairTotal(members))
		if m.opts.BalanceTables && len(m.targetSize) > 0 {
			total -= m.sizePenalty(len(members), m.targetSize[t.Name])
		}
	}
	return total
}
