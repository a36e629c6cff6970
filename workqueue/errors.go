// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package workqueue

import (
	"errors"
	"fmt"
)

// ErrNoSuchView is returned from DocumentStore.QueryByView() if the
// store was not configured with the requested view.
var ErrNoSuchView = errors.New("No such view")

// ErrStoreClosed is returned by document stores after Close().
var ErrStoreClosed = errors.New("Document store is closed")

// ErrConfiguration is returned by the task splitter when a task's
// splitting parameters are invalid or contradictory, and by the
// queue for unusable settings.  It is not retryable without changing
// the input.
type ErrConfiguration struct {
	Reason string
}

func (err ErrConfiguration) Error() string {
	return fmt.Sprintf("Invalid configuration: %v", err.Reason)
}

// ErrLocationService wraps a failure to find the locations of a
// block.
type ErrLocationService struct {
	Block string
	Err   error
}

func (err ErrLocationService) Error() string {
	return fmt.Sprintf("Location lookup for %v failed: %v", err.Block, err.Err)
}

func (err ErrLocationService) Unwrap() error {
	return err.Err
}

// ErrConflict is returned by a document store when a conditional
// write finds a revision other than the expected one; some other
// caller changed the document first.
type ErrConflict struct {
	ID       string
	Expected int64
}

func (err ErrConflict) Error() string {
	return fmt.Sprintf("Document %v changed since revision %v", err.ID, err.Expected)
}

// ErrNoSuchDocument is returned by a document store when a document
// does not exist.
type ErrNoSuchDocument struct {
	ID string
}

func (err ErrNoSuchDocument) Error() string {
	return fmt.Sprintf("No such document %v", err.ID)
}

// ErrDocumentExists is returned by DocumentStore.Insert() if the
// document ID is already taken.
type ErrDocumentExists struct {
	ID string
}

func (err ErrDocumentExists) Error() string {
	return fmt.Sprintf("Document %v already exists", err.ID)
}

// ErrNoSuchElement is returned when an operation names an element
// (or subscription) the queue does not know about.
type ErrNoSuchElement struct {
	ID string
}

func (err ErrNoSuchElement) Error() string {
	return fmt.Sprintf("No such element %v", err.ID)
}

// ErrInvalidTransition is returned when an element is asked to move
// to a status its current status does not allow.
type ErrInvalidTransition struct {
	ID   string
	From ElementStatus
	To   ElementStatus
}

func (err ErrInvalidTransition) Error() string {
	from, _ := err.From.MarshalText()
	to, _ := err.To.MarshalText()
	return fmt.Sprintf("Element %v cannot go from %s to %s", err.ID, from, to)
}

// ErrTransient wraps an error that may go away if the operation is
// retried, such as a database or network failure.
type ErrTransient struct {
	Op  string
	Err error
}

func (err ErrTransient) Error() string {
	return fmt.Sprintf("%v: %v", err.Op, err.Err)
}

func (err ErrTransient) Unwrap() error {
	return err.Err
}
