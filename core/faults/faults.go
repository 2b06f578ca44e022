package faults

import "errors"

// ErrValidation marks malformed or out-of-range input: bad day indices,
// negative counts, empty required fields. Never retried automatically.
var ErrValidation = errors.New("validation failed")

// ErrNotFound marks a lookup for an unknown disease or location.
var ErrNotFound = errors.New("not found")

// ErrUnreachable is returned when no route exists between two registered
// locations. It is a normal result state, not a fatal error.
var ErrUnreachable = errors.New("no route exists")

// ErrEmptyQueue is returned when popping from an empty triage queue.
var ErrEmptyQueue = errors.New("triage queue is empty")

// ErrOffline marks a hand-off that could not reach the persistence store.
// Callers fall back to the offline ledger instead of dropping the report.
var ErrOffline = errors.New("persistence unavailable")
