// Copyright 2015 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"

	"github.com/dmwm/go-workqueue/queue"
	"github.com/dmwm/go-workqueue/restdata"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new HTTP handler that processes all work queue
// requests.  All resources are under the URL path root, e.g.
// /element/foo.  For more control over this setup, create a
// mux.Router and call PopulateRouter instead.
func NewRouter(q *queue.WorkQueue) http.Handler {
	r := mux.NewRouter()
	PopulateRouter(r, q)
	return r
}

// PopulateRouter adds work queue routes to an existing
// github.com/gorilla/mux router object.  This can be used, for
// instance, to place the interface under a subpath:
//
//     r := mux.NewRouter()
//     s := r.PathPrefix("/workqueue").Subrouter()
//     PopulateRouter(s, q)
func PopulateRouter(r *mux.Router, q *queue.WorkQueue) {
	api := &restAPI{Queue: q, Router: r, Logger: q.Backend.Logger}
	api.PopulateRouter(r)
}

// restAPI holds the persistent state for the REST API.
type restAPI struct {
	Queue  *queue.WorkQueue
	Router *mux.Router
	Logger logrus.FieldLogger
}

// endpoint creates the handler for one route, decoding request
// bodies into input's type.
func (api *restAPI) endpoint(input interface{}) *endpoint {
	return &endpoint{
		Input:   input,
		Context: api.Context,
		Logger:  api.Logger,
	}
}

// PopulateRouter adds all URL paths to a router.
func (api *restAPI) PopulateRouter(r *mux.Router) {
	api.PopulateWorkload(r)
	api.PopulateWork(r)
	api.PopulateElement(r)
	api.PopulateSummary(r)
	root := api.endpoint(restdata.RootData{})
	root.Get = api.RootDocument
	r.Path("/").Name("root").Handler(root)
}

func (api *restAPI) RootDocument(ctx *context) (interface{}, error) {
	resp := restdata.RootData{}
	err := linksFor(api.Router).
		URL(&resp.URL, "root").
		URL(&resp.WorkloadURL, "workload").
		URL(&resp.WorkURL, "work").
		URL(&resp.ElementsURL, "elements").
		Template(&resp.ElementURL, "element", "element").
		URL(&resp.SummaryURL, "summary").
		Err()
	return resp, err
}
