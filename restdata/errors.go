// Copyright 2015-2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/dmwm/go-workqueue/workqueue"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// ErrUnsupportedMediaType is returned from Decode() if the provided
// Content-Type: is unrecognized.  This translates directly into the
// equivalent HTTP 415 error.
type ErrUnsupportedMediaType struct {
	Type string
}

func (e ErrUnsupportedMediaType) Error() string {
	return fmt.Sprintf("Unsupported media type %q", e.Type)
}

// HTTPStatus returns a fixed 415 Unsupported Media Type error code.
func (e ErrUnsupportedMediaType) HTTPStatus() int {
	return http.StatusUnsupportedMediaType
}

// ErrNotFound is a wrapper error that indicates that, due to the
// embedded error, a REST service should return a 404 Not Found error.
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrNotFound) HTTPStatus() int {
	return http.StatusNotFound
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrBadRequest is returned as an error when there is an error decoding
// HTTP headers or the request body.
type ErrBadRequest struct {
	Err error
}

func (e ErrBadRequest) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e ErrBadRequest) HTTPStatus() int {
	return http.StatusBadRequest
}

func (e ErrBadRequest) Unwrap() error {
	return e.Err
}

// HTTPStatus picks the HTTP status code for an error.  Errors that
// know their own status keep it; workqueue errors map by kind.
func HTTPStatus(err error) int {
	var withStatus ErrorStatus
	if errors.As(err, &withStatus) {
		return withStatus.HTTPStatus()
	}
	var (
		config    workqueue.ErrConfiguration
		transient workqueue.ErrTransient
		location  workqueue.ErrLocationService
	)
	switch {
	case errors.As(err, &config):
		return http.StatusBadRequest
	case errors.As(err, &transient), errors.As(err, &location), errors.Is(err, workqueue.ErrStoreClosed):
		return http.StatusServiceUnavailable
	}
	switch workqueue.ResultOf(err) {
	case workqueue.NotFound:
		return http.StatusNotFound
	case workqueue.Conflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// FromError populates an ErrorResponse to fill in its fields based
// on an error value.  This remaps the well-known workqueue errors
// to specific e.Error codes.
func (e *ErrorResponse) FromError(err error) {
	if e.Message == "" {
		e.Message = err.Error()
	}
	var (
		config     workqueue.ErrConfiguration
		noElement  workqueue.ErrNoSuchElement
		noDocument workqueue.ErrNoSuchDocument
		exists     workqueue.ErrDocumentExists
		conflict   workqueue.ErrConflict
		transition workqueue.ErrInvalidTransition
		location   workqueue.ErrLocationService
		transient  workqueue.ErrTransient
	)
	switch {
	case errors.Is(err, workqueue.ErrStoreClosed):
		e.Error = "ErrStoreClosed"
	case errors.Is(err, workqueue.ErrNoSuchView):
		e.Error = "ErrNoSuchView"
	case errors.As(err, &config):
		e.Error = "ErrConfiguration"
		e.Value = config.Reason
	case errors.As(err, &noElement):
		e.Error = "ErrNoSuchElement"
		e.Value = noElement.ID
	case errors.As(err, &noDocument):
		e.Error = "ErrNoSuchDocument"
		e.Value = noDocument.ID
	case errors.As(err, &exists):
		e.Error = "ErrDocumentExists"
		e.Value = exists.ID
	case errors.As(err, &conflict):
		e.Error = "ErrConflict"
		e.Value = conflict.ID
	case errors.As(err, &transition):
		e.Error = "ErrInvalidTransition"
		e.Value = transition.ID
		e.From = transition.From.String()
		e.To = transition.To.String()
	case errors.As(err, &location):
		e.Error = "ErrLocationService"
		e.Value = location.Block
	case errors.As(err, &transient):
		e.Error = "ErrTransient"
		e.Value = transient.Op
	}
}

// ToError converts e back to a workqueue error, if that is possible.
// If not, returns a plain error with e.Message text.
func (e *ErrorResponse) ToError() error {
	switch e.Error {
	case "ErrStoreClosed":
		return workqueue.ErrStoreClosed
	case "ErrNoSuchView":
		return workqueue.ErrNoSuchView
	case "ErrConfiguration":
		return workqueue.ErrConfiguration{Reason: e.Value}
	case "ErrNoSuchElement":
		return workqueue.ErrNoSuchElement{ID: e.Value}
	case "ErrNoSuchDocument":
		return workqueue.ErrNoSuchDocument{ID: e.Value}
	case "ErrDocumentExists":
		return workqueue.ErrDocumentExists{ID: e.Value}
	case "ErrConflict":
		return workqueue.ErrConflict{ID: e.Value}
	case "ErrInvalidTransition":
		err := workqueue.ErrInvalidTransition{ID: e.Value}
		// Unknown status names leave AnyStatus
		_ = err.From.UnmarshalText([]byte(e.From))
		_ = err.To.UnmarshalText([]byte(e.To))
		return err
	case "ErrLocationService":
		return workqueue.ErrLocationService{Block: e.Value, Err: errors.New(e.Message)}
	case "ErrTransient":
		return workqueue.ErrTransient{Op: e.Value, Err: errors.New(e.Message)}
	default:
		return errors.New(e.Message)
	}
}

// FromPanic populates an error response based on a panic.  Typical use
// is:
//
//     defer func() {
//         if obj := recover(); obj != nil {
//             resp := restdata.ErrorResponse{}
//             resp.FromPanic(obj)
//             // write resp out as makes sense
//         }
//    }
func (e *ErrorResponse) FromPanic(obj interface{}) {
	e.Error = "panic"
	if recoveredError, isError := obj.(error); isError {
		e.Message = recoveredError.Error()
	} else {
		e.Message = fmt.Sprintf("%+v", obj)
	}
	var stack [4096]byte
	len := runtime.Stack(stack[:], false)
	e.Stack = string(stack[:len])
}
