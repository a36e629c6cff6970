// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package restserver

// Every workqueue route speaks JSON only.  An endpoint decodes the
// request body into its Input type, calls the handler for the
// method, and writes the result or a restdata.ErrorResponse.  Status
// changes on elements are POSTs of an empty restdata.Action to an
// action URL, and answer with a restdata.ActionResponse.

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/dmwm/go-workqueue/restdata"
	"github.com/sirupsen/logrus"
)

// responseTypes maps each Accept: media range we can satisfy to the
// Content-Type we answer with.
var responseTypes = map[string]string{
	"*/*":                    restdata.V1JSONMediaType,
	"application/*":          restdata.V1JSONMediaType,
	"text/*":                 "text/json",
	"text/json":              "text/json",
	"application/json":       "application/json",
	restdata.JSONMediaType:   restdata.V1JSONMediaType,
	restdata.V1JSONMediaType: restdata.V1JSONMediaType,
}

var errBadAccept = errors.New("Invalid Accept: header")

// errNotAcceptable is returned if the Accept: header names no JSON
// type.
type errNotAcceptable struct{}

func (e errNotAcceptable) Error() string {
	return "Only JSON responses are available"
}

func (e errNotAcceptable) HTTPStatus() int {
	return http.StatusNotAcceptable
}

type errMethodNotAllowed struct {
	Method string
	Allow  []string
}

func (e errMethodNotAllowed) Error() string {
	return fmt.Sprintf("Method %v not allowed, use %v", e.Method, strings.Join(e.Allow, ", "))
}

func (e errMethodNotAllowed) HTTPStatus() int {
	return http.StatusMethodNotAllowed
}

// created is returned by a Post handler that queued something new.
type created struct {
	// Location is where the new things can be found.
	Location string

	Body interface{}
}

// endpoint serves one route.
type endpoint struct {
	// Input is a zero value of the type PUT and POST bodies
	// decode into.
	Input interface{}

	// Context extracts the route variables from a request.
	Context func(req *http.Request) (*context, error)

	Get func(*context) (interface{}, error)

	// Put changes the resource; it usually returns nil, giving
	// 204 No Content.
	Put func(*context, interface{}) (interface{}, error)

	// Post submits work or runs an element action.  It may
	// return created.
	Post func(*context, interface{}) (interface{}, error)

	// Logger, if non-nil, records server-side failures.
	Logger logrus.FieldLogger
}

// allowed lists the methods this endpoint answers.
func (e *endpoint) allowed() []string {
	var methods []string
	if e.Get != nil {
		methods = append(methods, http.MethodGet, http.MethodHead)
	}
	if e.Put != nil {
		methods = append(methods, http.MethodPut)
	}
	if e.Post != nil {
		methods = append(methods, http.MethodPost)
	}
	sort.Strings(methods)
	return methods
}

// call runs the handler for req's method.
func (e *endpoint) call(req *http.Request) (interface{}, error) {
	ctx, err := e.Context(req)
	if err != nil {
		return nil, err
	}
	var handler func(*context, interface{}) (interface{}, error)
	switch req.Method {
	case http.MethodGet, http.MethodHead:
		if e.Get != nil {
			return e.Get(ctx)
		}
	case http.MethodPut:
		handler = e.Put
	case http.MethodPost:
		handler = e.Post
	}
	if handler == nil {
		return nil, errMethodNotAllowed{Method: req.Method, Allow: e.allowed()}
	}
	in := reflect.Zero(reflect.TypeOf(e.Input)).Interface()
	err = restdata.Decode(req.Header.Get("Content-Type"), req.Body, &in)
	if err != nil {
		return nil, err
	}
	return handler(ctx, in)
}

func (e *endpoint) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	responseType, err := negotiateResponse(req)
	if err != nil {
		// Errors still need a body
		responseType = restdata.V1JSONMediaType
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			response := restdata.ErrorResponse{}
			response.FromPanic(recovered)
			e.write(resp, req, restdata.V1JSONMediaType, http.StatusInternalServerError, response)
		}
	}()

	var out interface{}
	if err == nil {
		out, err = e.call(req)
	}

	status := http.StatusOK
	switch result := out.(type) {
	case nil:
		status = http.StatusNoContent
	case created:
		status = http.StatusCreated
		if result.Location != "" {
			resp.Header().Set("Location", result.Location)
		}
		out = result.Body
	}
	if err != nil {
		status = restdata.HTTPStatus(err)
		if notAllowed, ok := err.(errMethodNotAllowed); ok {
			resp.Header().Set("Allow", strings.Join(notAllowed.Allow, ", "))
		}
		if e.Logger != nil && status >= http.StatusInternalServerError {
			e.Logger.WithFields(logrus.Fields{
				"method": req.Method,
				"path":   req.URL.Path,
				"status": status,
			}).WithError(err).Error("Request failed")
		}
		errResp := restdata.ErrorResponse{Error: "error"}
		errResp.FromError(err)
		out = errResp
	}
	if req.Method == http.MethodHead && err == nil {
		out = nil
	}
	e.write(resp, req, responseType, status, out)
}

// write sends the status line and, if there is one, the JSON body.
// Once the status is out a failed write can only be logged.
func (e *endpoint) write(resp http.ResponseWriter, req *http.Request, responseType string, status int, out interface{}) {
	if out != nil {
		resp.Header().Set("Content-Type", responseType)
	}
	resp.WriteHeader(status)
	if out == nil {
		return
	}
	if err := restdata.Encode(resp, out); err != nil && e.Logger != nil {
		e.Logger.WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.URL.Path,
		}).WithError(err).Debug("Could not write response")
	}
}

// negotiateResponse picks the JSON media type to answer with, from
// the Accept: header as RFC 7231 section 5.3 describes.  At equal
// quality a named type beats a wildcard, and the first named type
// wins.
func negotiateResponse(req *http.Request) (string, error) {
	accept := req.Header.Get("Accept")
	if accept == "" {
		return restdata.V1JSONMediaType, nil
	}
	best := ""
	bestQ := 0.0
	bestWild := false
	for _, mediaRange := range strings.Split(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(mediaRange))
		if err != nil {
			return "", restdata.ErrBadRequest{Err: err}
		}
		q := 1.0
		if qStr, haveQ := params["q"]; haveQ {
			q, err = strconv.ParseFloat(qStr, 64)
			if err != nil || q < 0.0 || q > 1.0 {
				return "", restdata.ErrBadRequest{Err: errBadAccept}
			}
		}
		responseType, known := responseTypes[mediaType]
		if !known || q == 0.0 {
			continue
		}
		wild := strings.HasSuffix(mediaType, "/*")
		if q > bestQ || (q == bestQ && bestWild && !wild) {
			best, bestQ, bestWild = responseType, q, wild
		}
	}
	if best == "" {
		return "", errNotAcceptable{}
	}
	return best, nil
}
