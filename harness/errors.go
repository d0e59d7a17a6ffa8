package harness

import "errors"

var (
	// ErrOperationTimeout indicates a unit failed to clear its busy flag
	// within the cycle budget. Reported as a failed test case; never
	// fatal to the surrounding run.
	ErrOperationTimeout = errors.New("harness: operation timed out")

	// ErrResultMismatch indicates a decoded result differs from the
	// reference multiply beyond the configured tolerance.
	ErrResultMismatch = errors.New("harness: result mismatch")

	// ErrSessionClosed indicates the simulation session wound down while
	// an operation was still in flight.
	ErrSessionClosed = errors.New("harness: session closed")

	// ErrUnitIndex indicates a unit index outside the start/busy
	// bit-vector width.
	ErrUnitIndex = errors.New("harness: unit index out of range")
)
