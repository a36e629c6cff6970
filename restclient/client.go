// Copyright 2015 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

// Package restclient provides an HTTP REST client that talks to the
// matching server in the "restserver" package.  A Client can stand
// in for a local queue: it satisfies agent.Queue.
//
// The server in github.com/dmwm/go-workqueue/cmd/workqueued runs a
// compatible REST server.  Call New() with the base URL of that
// service; for instance,
//
//     c, err := restclient.New(ctx, "http://localhost:5980/")
package restclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/dmwm/go-workqueue/restdata"
	"github.com/dmwm/go-workqueue/workqueue"
)

// Client is a remote work queue.
type Client struct {
	conn

	// Root is the server's root document, naming every other
	// URL.
	Root restdata.RootData
}

// New creates a new client that speaks to an external REST server,
// fetching its root document.
func New(ctx context.Context, baseURL string) (*Client, error) {
	return NewWithHTTPClient(ctx, baseURL, http.DefaultClient)
}

// NewWithHTTPClient is New with a specific HTTP client, for instance
// one with a timeout or client certificates.
func NewWithHTTPClient(ctx context.Context, baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{conn: conn{base: u, http: httpClient}}
	if err = c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh reloads the root document.
func (c *Client) Refresh(ctx context.Context) error {
	c.Root = restdata.RootData{}
	return c.call(ctx, http.MethodGet, c.base, nil, &c.Root)
}

// send resolves a URL from the root document and calls it.
func (c *Client) send(ctx context.Context, method, ref, handle string, in, out interface{}) error {
	u, err := c.resolve(ref, handle)
	if err != nil {
		return err
	}
	return c.call(ctx, method, u, in, out)
}

// QueueWork submits a workload specification, returning the number
// of elements the server created.
func (c *Client) QueueWork(ctx context.Context, spec map[string]interface{}) (int, error) {
	var resp restdata.WorkloadResponse
	err := c.send(ctx, http.MethodPost, c.Root.WorkloadURL, "",
		restdata.Workload{Spec: restdata.DataDict(spec)}, &resp)
	return resp.Elements, err
}

// GetWork asks for work for the free job slots in conditions.
func (c *Client) GetWork(ctx context.Context, conditions workqueue.Conditions) ([]workqueue.Subscription, error) {
	var resp restdata.WorkResponse
	err := c.send(ctx, http.MethodPost, c.Root.WorkURL, "",
		restdata.WorkRequest{Conditions: conditions}, &resp)
	if err != nil {
		return nil, err
	}
	subs := make([]workqueue.Subscription, len(resp.Subscriptions))
	for i, sub := range resp.Subscriptions {
		subs[i] = sub.ToSubscription()
	}
	return subs, nil
}

// Element fetches one element by element or subscription ID.
func (c *Client) Element(ctx context.Context, handle string) (restdata.Element, error) {
	var repr restdata.Element
	err := c.send(ctx, http.MethodGet, c.Root.ElementURL, handle, nil, &repr)
	return repr, err
}

// Elements lists the elements matching a query.
func (c *Client) Elements(ctx context.Context, query workqueue.ElementQuery) ([]restdata.ElementShort, error) {
	u, err := c.resolve(c.Root.ElementsURL, "")
	if err != nil {
		return nil, err
	}
	params := u.Query()
	for _, status := range query.Statuses {
		params.Add("status", status.String())
	}
	if query.SpecURL != "" {
		params.Set("spec", query.SpecURL)
	}
	if !query.UpdatedBefore.IsZero() {
		params.Set("updated_before", query.UpdatedBefore.UTC().Format(time.RFC3339))
	}
	u.RawQuery = params.Encode()

	var resp restdata.ElementList
	if err = c.call(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Elements, nil
}

// Summary fetches the per-workload, per-status element counts.
func (c *Client) Summary(ctx context.Context) (workqueue.Summary, error) {
	var resp restdata.Summary
	err := c.send(ctx, http.MethodGet, c.Root.SummaryURL, "", nil, &resp)
	if err != nil {
		return nil, err
	}
	return resp.ToSummary()
}

// update changes an element's priority or online flag.
func (c *Client) update(ctx context.Context, handle string, update restdata.ElementUpdate) workqueue.Result {
	err := c.send(ctx, http.MethodPut, c.Root.ElementURL, handle, update, nil)
	return workqueue.ResultOf(err)
}

// SetPriority changes the priority of an element.
func (c *Client) SetPriority(ctx context.Context, handle string, priority int) workqueue.Result {
	return c.update(ctx, handle, restdata.ElementUpdate{Priority: &priority})
}

// SetOnline changes whether an element's data is on disk.
func (c *Client) SetOnline(ctx context.Context, handle string, online bool) workqueue.Result {
	return c.update(ctx, handle, restdata.ElementUpdate{Online: &online})
}

// action finds an element and posts to one of its action URLs.
func (c *Client) action(ctx context.Context, handle string, which func(restdata.Element) string) workqueue.Result {
	element, err := c.Element(ctx, handle)
	if err == nil {
		var resp restdata.ActionResponse
		err = c.send(ctx, http.MethodPost, which(element), "", restdata.Action{}, &resp)
	}
	return workqueue.ResultOf(err)
}
// GotWork confirms an acquired element.
func (c *Client) GotWork(ctx context.Context, handle string) workqueue.Result {
	return c.action(ctx, handle, func(e restdata.Element) string { return e.GotURL })
}

// DoneWork marks an element successfully finished.
func (c *Client) DoneWork(ctx context.Context, handle string) workqueue.Result {
	return c.action(ctx, handle, func(e restdata.Element) string { return e.DoneURL })
}

// FailWork marks an element permanently failed.
func (c *Client) FailWork(ctx context.Context, handle string) workqueue.Result {
	return c.action(ctx, handle, func(e restdata.Element) string { return e.FailURL })
}

// ReleaseWork returns an element to the queue.
func (c *Client) ReleaseWork(ctx context.Context, handle string) workqueue.Result {
	return c.action(ctx, handle, func(e restdata.Element) string { return e.ReleaseURL })
}
