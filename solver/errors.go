package solver

import "errors"

var (
	// ErrUnknownGuest indicates a constraint or relationship endpoint that
	// names a guest absent from the guest set.
	ErrUnknownGuest = errors.New("solver: unknown guest reference")
	// ErrDuplicateGuest indicates two guests that resolve to the same
	// canonical key (same display name, or same identifier).
	ErrDuplicateGuest = errors.New("solver: duplicate guest")
	// ErrConflictingConstraints indicates a must-with chain that joins two
	// guests who must be separated.
	ErrConflictingConstraints = errors.New("solver: conflicting hard constraints")
	// ErrInsufficientCapacity indicates total seating demand exceeds total
	// table capacity.
	ErrInsufficientCapacity = errors.New("solver: insufficient table capacity")
	// ErrUnplaceableGroup indicates a placement group that cannot be seated
	// even with exclusion constraints relaxed.
	ErrUnplaceableGroup = errors.New("solver: no table can seat group")
)
