// Package errors defines all exported error sentinels for the groupdata
// library.
//
// This is the single source of truth for error values. Both the top-level
// groupdata package and any internal packages import from here, ensuring
// errors.Is checks work across package boundaries.
package errors

import "errors"

// Build errors
var (
	ErrNilStorage    = errors.New("groupdata: offset and data arrays must be non-nil")
	ErrNoWorkers     = errors.New("groupdata: worker count must be at least 1")
	ErrPhase         = errors.New("groupdata: call does not follow the build protocol order")
	ErrIndexOverflow = errors.New("groupdata: total element count exceeds the index type's range")
)

// Verification errors
var (
	ErrOffsetsCorrupted = errors.New("groupdata: offset array is inconsistent")
	ErrBudgetMismatch   = errors.New("groupdata: push count does not match the recorded budget")
	ErrKeyOutOfRange    = errors.New("groupdata: key outside the worker's key range")
)
