package ledger

import "errors"

// ErrInvalidInput is returned before any mutation when arguments are
// missing or out of range.  It is never retried.
var ErrInvalidInput = errors.New("invalid input")

// ErrNotFound is returned when a revoke references an unknown grant.
var ErrNotFound = errors.New("credit grant not found")

// ErrPersistence is returned when a mutation and its audit entry could not
// be durably recorded together.  Callers must not treat it as success.
var ErrPersistence = errors.New("ledger persistence failure")
