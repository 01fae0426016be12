package replaycore

import "errors"

// Error kinds from spec.md §7. Each is a sentinel wrapped at the point of
// failure so callers can dispatch on kind with errors.Is while still
// getting a descriptive message via %w.
var (
	// ErrMalformedInput covers playlist parse failures: missing
	// required fields, invalid JSON, unknown action kind.
	ErrMalformedInput = errors.New("malformed input")

	// ErrResolution covers unexpandable ${VAR}/$(VAR) references under
	// strict mode and unbalanced sources/destinations.
	ErrResolution = errors.New("resolution error")

	// ErrGraph covers cycle detection, duplicate producers, and exclusive
	// input violations discovered during graph construction.
	ErrGraph = errors.New("graph error")

	// ErrIO covers action-handler filesystem failures.
	ErrIO = errors.New("io error")

	// ErrCancellation covers the stop-on-error path: the scheduler
	// refused further submissions because a prior task recorded an
	// error.
	ErrCancellation = errors.New("cancelled")
)
