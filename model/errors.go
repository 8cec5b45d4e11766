package model

import "fmt"

// ShapeOverflowError reports a Forward call whose B or T exceeds the
// capacity established by the first Forward call on this Model. The
// engine does not reallocate; the caller must build a new Model to grow
// capacity.
type ShapeOverflowError struct {
	GotB, GotT     int
	AllocB, AllocT int
}

func (e *ShapeOverflowError) Error() string {
	return fmt.Sprintf("model: forward shape (B=%d,T=%d) exceeds allocated capacity (B=%d,T=%d)",
		e.GotB, e.GotT, e.AllocB, e.AllocT)
}

// StateViolationError reports an operation invoked out of the required
// order: Backward without a prior targeted Forward, or Update before any
// Backward.
type StateViolationError struct {
	Op     string
	Reason string
}

func (e *StateViolationError) Error() string {
	return fmt.Sprintf("model: %s: %s", e.Op, e.Reason)
}
