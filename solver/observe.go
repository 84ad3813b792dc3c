package solver

// Observer receives solver progress callbacks. All methods are invoked
// synchronously from inside Solve; implementations must not call back into
// the model. A nil Observer disables tracing.
type Observer interface {
	// GroupPlaced fires after each placement group is committed, with the
	// table of the current best state and its cumulative score (beam phase)
	// or the chosen table and its delta (fallback phase).
	GroupPlaced(group []string, table string, score float64)
	// FallbackTriggered fires when the beam collapses and when a group is
	// seated with relaxed constraints.
	FallbackTriggered(reason string)
	// SwapAccepted fires for every improving swap the refiner keeps.
	SwapAccepted(g1, g2, table1, table2 string)
}
