package domain

import "errors"

// ErrNotFound is returned by repositories when a lookup misses. It is
// deliberately the only signal a miss produces, so engines can map it
// to the protocol error taxonomy without leaking storage detail. Any
// other repository error is an I/O failure and may be retried.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with an existing
// unique key (code or token value already present).
var ErrDuplicate = errors.New("duplicate key")
