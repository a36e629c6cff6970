// Copyright 2015 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/dmwm/go-workqueue/restdata"
	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/gorilla/mux"
)

// errUnmarshal is returned if the put/post contract is violated and
// a handler function is passed the wrong type.
var errUnmarshal = restdata.ErrBadRequest{
	Err: errors.New("Invalid input format"),
}

// context holds all of the information that can be extracted from
// the request URL.
type context struct {
	// Request is the original request; its Context() bounds
	// every queue call.
	Request *http.Request

	// Handle names an element, by element ID or subscription ID.
	Handle string

	QueryParams url.Values
}

func (api *restAPI) Context(req *http.Request) (ctx *context, err error) {
	ctx = &context{Request: req}
	ctx.QueryParams = req.URL.Query()
	vars := mux.Vars(req)

	if handle, present := vars["element"]; present {
		ctx.Handle, err = restdata.MaybeDecodeName(handle)
		if err != nil {
			err = restdata.ErrBadRequest{Err: err}
		}
	}
	return
}

// ElementQuery builds an element query from query parameters.  This
// can fail (if invalid statuses are named, or the time is not RFC
// 3339) so it should only be called if a specific route wants it.
func (ctx *context) ElementQuery() (q workqueue.ElementQuery, err error) {
	if len(ctx.QueryParams["status"]) > 0 {
		q.Statuses = make([]workqueue.ElementStatus, len(ctx.QueryParams["status"]))
		for i, status := range ctx.QueryParams["status"] {
			err = q.Statuses[i].UnmarshalText([]byte(status))
			if err != nil {
				return q, restdata.ErrBadRequest{Err: err}
			}
		}
	}
	q.SpecURL = ctx.QueryParams.Get("spec")
	if before := ctx.QueryParams.Get("updated_before"); before != "" {
		q.UpdatedBefore, err = time.Parse(time.RFC3339, before)
		if err != nil {
			err = restdata.ErrBadRequest{Err: err}
		}
	}
	return
}
