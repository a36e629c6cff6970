// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package workqueue

import "errors"

// Result classifies the outcome of a mutating queue operation, so
// that callers can tell "retry" from "escalate".
type Result int

const (
	// OK means the operation took effect.
	OK Result = iota

	// NotFound means the element does not exist.  Retrying will
	// not help.
	NotFound

	// Conflict means the element is not in a state that allows
	// the operation, or another caller changed it first.
	Conflict

	// TransientError means the operation failed for a reason that
	// may go away, such as a store outage; retry later.
	TransientError
)

// OK reports whether this result is a success.
func (r Result) OK() bool {
	return r == OK
}

// ResultOf classifies an error returned by the queue.  A nil error is
// OK; unrecognized errors are assumed to be transient.
func ResultOf(err error) Result {
	if err == nil {
		return OK
	}
	var (
		noElement  ErrNoSuchElement
		noDocument ErrNoSuchDocument
		conflict   ErrConflict
		transition ErrInvalidTransition
	)
	switch {
	case errors.As(err, &noElement), errors.As(err, &noDocument):
		return NotFound
	case errors.As(err, &conflict), errors.As(err, &transition):
		return Conflict
	}
	return TransientError
}
