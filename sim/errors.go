package sim

import "errors"

// Sentinel errors returned by submission and admission paths.
// All failures are local to the offending submission or tick; the
// simulation itself never aborts on a task failure.
var (
	// ErrInvalidOrdering is returned when a submission carries a timestamp
	// earlier than the current virtual time. The task is rejected outright
	// and never enters the state machine.
	ErrInvalidOrdering = errors.New("submission timestamped before current virtual time")

	// ErrAdmissionRejected is returned when a submission exceeds the
	// remaining per-period CPU budget or the total memory capacity.
	// The task transitions to StateRejected and a Reject event is recorded.
	ErrAdmissionRejected = errors.New("admission rejected")

	// ErrResourceExhausted is returned when memory is required but no
	// evictable candidate exists. Fatal only to the requesting submission.
	ErrResourceExhausted = errors.New("resource exhausted: no evictable candidate")

	// ErrUnknownTask is returned for operations referencing a task id the
	// active strategy does not own.
	ErrUnknownTask = errors.New("unknown task")

	// ErrDuplicateTask is returned when a submission reuses a live task id.
	ErrDuplicateTask = errors.New("task id already exists")
)
