// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"github.com/dmwm/go-workqueue/restdata"
	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/gorilla/mux"
)

func (api *restAPI) fillElementShort(element *workqueue.Element, short *restdata.ElementShort) error {
	short.ID = element.ID
	short.Status = element.Status.String()
	return linksFor(api.Router, "element", element.ID).
		URL(&short.URL, "element").
		Err()
}

func (api *restAPI) fillElement(element *workqueue.Element, repr *restdata.Element) error {
	*repr = restdata.FromElement(element)
	err := api.fillElementShort(element, &repr.ElementShort)
	if err == nil {
		err = linksFor(api.Router, "element", element.ID).
			URL(&repr.GotURL, "elementGot").
			URL(&repr.DoneURL, "elementDone").
			URL(&repr.FailURL, "elementFail").
			URL(&repr.ReleaseURL, "elementRelease").
			Err()
	}
	return err
}

func (api *restAPI) ElementsGet(ctx *context) (interface{}, error) {
	q, err := ctx.ElementQuery()
	if err != nil {
		return nil, err
	}
	elements, err := api.Queue.Backend.Elements(ctx.Request.Context(), q)
	if err != nil {
		return nil, err
	}
	resp := restdata.ElementList{Elements: make([]restdata.ElementShort, len(elements))}
	for i, element := range elements {
		err = api.fillElementShort(element, &resp.Elements[i])
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (api *restAPI) ElementGet(ctx *context) (interface{}, error) {
	element, err := api.Queue.Backend.Element(ctx.Request.Context(), ctx.Handle)
	if err != nil {
		return nil, err
	}
	var repr restdata.Element
	err = api.fillElement(element, &repr)
	if err != nil {
		return nil, err
	}
	return repr, nil
}

func (api *restAPI) ElementPut(ctx *context, in interface{}) (interface{}, error) {
	update, valid := in.(restdata.ElementUpdate)
	if !valid {
		return nil, errUnmarshal
	}
	element, err := api.Queue.Backend.Element(ctx.Request.Context(), ctx.Handle)
	if err == nil && update.Priority != nil {
		err = api.Queue.Backend.SetPriority(ctx.Request.Context(), element.ID, *update.Priority)
	}
	if err == nil && update.Online != nil {
		err = api.Queue.Backend.SetOnline(ctx.Request.Context(), element.ID, *update.Online)
	}
	return nil, err
}

// action builds a POST handler that runs one status change.
func (api *restAPI) action(f func(*context) error) func(*context, interface{}) (interface{}, error) {
	return func(ctx *context, in interface{}) (interface{}, error) {
		if _, valid := in.(restdata.Action); !valid {
			return nil, errUnmarshal
		}
		if err := f(ctx); err != nil {
			return nil, err
		}
		return restdata.ActionResponse{Result: workqueue.OK.String()}, nil
	}
}

func (api *restAPI) ElementGot(ctx *context) error {
	return api.Queue.Backend.GotWork(ctx.Request.Context(), ctx.Handle)
}

func (api *restAPI) ElementDone(ctx *context) error {
	return api.Queue.Backend.DoneWork(ctx.Request.Context(), ctx.Handle)
}

func (api *restAPI) ElementFail(ctx *context) error {
	return api.Queue.Backend.FailWork(ctx.Request.Context(), ctx.Handle)
}

func (api *restAPI) ElementRelease(ctx *context) error {
	return api.Queue.Backend.ReleaseWork(ctx.Request.Context(), ctx.Handle)
}

// PopulateElement adds routes to inspect and change elements.
func (api *restAPI) PopulateElement(r *mux.Router) {
	elements := api.endpoint(restdata.ElementList{})
	elements.Get = api.ElementsGet
	r.Path("/element").Name("elements").Handler(elements)

	element := api.endpoint(restdata.ElementUpdate{})
	element.Get = api.ElementGet
	element.Put = api.ElementPut
	r.Path("/element/{element}").Name("element").Handler(element)

	actions := []struct {
		path, name string
		f          func(*context) error
	}{
		{"got", "elementGot", api.ElementGot},
		{"done", "elementDone", api.ElementDone},
		{"fail", "elementFail", api.ElementFail},
		{"release", "elementRelease", api.ElementRelease},
	}
	for _, a := range actions {
		h := api.endpoint(restdata.Action{})
		h.Post = api.action(a.f)
		r.Path("/element/{element}/" + a.path).Name(a.name).Handler(h)
	}
}
