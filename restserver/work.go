// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"net/url"

	"github.com/dmwm/go-workqueue/restdata"
	"github.com/dmwm/go-workqueue/wmspec"
	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/gorilla/mux"
)

func (api *restAPI) WorkloadPost(ctx *context, in interface{}) (interface{}, error) {
	repr, valid := in.(restdata.Workload)
	if !valid {
		return nil, errUnmarshal
	}
	spec, err := wmspec.FromMap(repr.Spec)
	if err != nil {
		var config workqueue.ErrConfiguration
		if !errors.As(err, &config) {
			err = restdata.ErrBadRequest{Err: err}
		}
		return nil, err
	}
	count, err := api.Queue.QueueWork(ctx.Request.Context(), spec)
	if err != nil {
		return nil, err
	}
	resp := restdata.WorkloadResponse{Elements: count}
	err = linksFor(api.Router).
		URL(&resp.ElementsURL, "elements").
		Query(&resp.ElementsURL, url.Values{"spec": []string{spec.URL()}}).
		Err()
	if err != nil {
		return nil, err
	}
	return created{Location: resp.ElementsURL, Body: resp}, nil
}

func (api *restAPI) WorkPost(ctx *context, in interface{}) (interface{}, error) {
	req, valid := in.(restdata.WorkRequest)
	if !valid {
		return nil, errUnmarshal
	}
	subs, err := api.Queue.GetWork(ctx.Request.Context(), workqueue.Conditions(req.Conditions))
	if err != nil {
		return nil, err
	}
	resp := restdata.WorkResponse{Subscriptions: make([]restdata.Subscription, len(subs))}
	for i, sub := range subs {
		resp.Subscriptions[i] = restdata.FromSubscription(sub)
		err = linksFor(api.Router, "element", sub.ElementID).
			URL(&resp.Subscriptions[i].ElementURL, "element").
			Err()
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (api *restAPI) SummaryGet(ctx *context) (interface{}, error) {
	summary, err := api.Queue.Backend.Summarize(ctx.Request.Context())
	if err != nil {
		return nil, err
	}
	return restdata.FromSummary(summary), nil
}

// PopulateWorkload adds the workload submission route.
func (api *restAPI) PopulateWorkload(r *mux.Router) {
	h := api.endpoint(restdata.Workload{})
	h.Post = api.WorkloadPost
	r.Path("/workload").Name("workload").Handler(h)
}

// PopulateWork adds the work request route.
func (api *restAPI) PopulateWork(r *mux.Router) {
	h := api.endpoint(restdata.WorkRequest{})
	h.Post = api.WorkPost
	r.Path("/work").Name("work").Handler(h)
}

// PopulateSummary adds the summary route.
func (api *restAPI) PopulateSummary(r *mux.Router) {
	h := api.endpoint(restdata.Summary{})
	h.Get = api.SummaryGet
	r.Path("/summary").Name("summary").Handler(h)
}
