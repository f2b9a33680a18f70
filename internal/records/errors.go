package records

import "errors"

var (
	// ErrNotFound reports a missing record.
	ErrNotFound = errors.New("record not found")
	// ErrStale reports a guarded patch whose expectations no longer hold,
	// typically because another sweep advanced the record first.
	ErrStale = errors.New("record changed concurrently")
)
