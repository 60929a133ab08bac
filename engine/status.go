package engine

// Status is the lifecycle state of a live object. Transitions are monotonic
// except the repeat-group reset, which moves a completed body back to pending.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusComplete  Status = "complete"
	StatusRejected  Status = "rejected"
	StatusError     Status = "error"
	StatusWarning   Status = "warning"
)

// statusVersionComplete is emitted to the persistor when a repeat group
// finishes one loop iteration. It is an event, not a resting state.
const statusVersionComplete = "version-complete"

// Terminal reports whether the status is a resting state the scheduler will
// not advance further (absent a loop reset).
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusRejected, StatusError, StatusWarning:
		return true
	}
	return false
}

// Satisfied reports whether a dependency in this status counts as fulfilled.
// Warnings are recoverable: the object produced fallback output.
func (s Status) Satisfied() bool {
	return s == StatusComplete || s == StatusWarning
}

// Dead reports whether a dependency in this status can never be fulfilled.
func (s Status) Dead() bool {
	return s == StatusRejected || s == StatusError
}
