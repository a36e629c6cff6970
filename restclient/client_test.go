// Copyright 2015-2016 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package restclient_test

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmwm/go-workqueue/agent"
	"github.com/dmwm/go-workqueue/dbs"
	"github.com/dmwm/go-workqueue/memory"
	"github.com/dmwm/go-workqueue/queue"
	"github.com/dmwm/go-workqueue/restclient"
	"github.com/dmwm/go-workqueue/restserver"
	"github.com/dmwm/go-workqueue/wmbs"
	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ agent.Queue = &restclient.Client{}

var workload = map[string]interface{}{
	"name":     "ReReco",
	"url":      "http://reqmgr/ReReco",
	"priority": 10,
	"tasks": []interface{}{
		map[string]interface{}{
			"name":                "DataProcessing",
			"input_dataset":       "/JetHT/Run2016B-v1/RAW",
			"splitting_algorithm": "FileBased",
			"split_size":          2,
		},
		map[string]interface{}{
			"name":                "Production",
			"splitting_algorithm": "EventBased",
			"split_size":          100,
			"total_events":        300,
		},
	},
}

// newClient sets up an object stack where the REST client code talks
// to the REST server code, which points at an in-memory backend.
func newClient(t *testing.T) (*restclient.Client, *queue.WorkQueue) {
	logger := logrus.New()
	logger.Out = ioutil.Discard
	blocks := dbs.NewStatic()
	blocks.AddBlock("/JetHT/Run2016B-v1/RAW", workqueue.BlockInfo{Name: "/JetHT/Run2016B-v1/RAW#1", NumFiles: 4}, "T1_US_FNAL")
	backend := queue.NewBackend(memory.New(workqueue.ElementViews), blocks, wmbs.New())
	backend.Logger = logger
	q := queue.New(backend, blocks)

	server := httptest.NewServer(restserver.NewRouter(q))
	t.Cleanup(server.Close)
	client, err := restclient.New(context.Background(), server.URL)
	require.NoError(t, err)
	return client, q
}

func TestEmptyURL(t *testing.T) {
	_, err := restclient.New(context.Background(), "")
	assert.Error(t, err)
}

func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t)

	count, err := c.QueueWork(ctx, workload)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	elements, err := c.Elements(ctx, workqueue.ElementQuery{
		Statuses: []workqueue.ElementStatus{workqueue.Available},
		SpecURL:  "http://reqmgr/ReReco",
	})
	require.NoError(t, err)
	assert.Len(t, elements, 2)

	subs, err := c.GetWork(ctx, workqueue.Conditions{"T1_US_FNAL": 2})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	sub := subs[0]
	assert.Equal(t, "/JetHT/Run2016B-v1/RAW#1", sub.Fileset)
	assert.Equal(t, "http://reqmgr/ReReco#DataProcessing", sub.Workflow)
	assert.Equal(t, 2, sub.Jobs)

	assert.Equal(t, workqueue.OK, c.GotWork(ctx, sub.ID))
	assert.Equal(t, workqueue.OK, c.DoneWork(ctx, sub.ID))
	assert.Equal(t, workqueue.OK, c.DoneWork(ctx, sub.ElementID))
	assert.Equal(t, workqueue.Conflict, c.ReleaseWork(ctx, sub.ID))
	assert.Equal(t, workqueue.NotFound, c.FailWork(ctx, "nothing"))

	element, err := c.Element(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ElementID, element.ID)
	assert.Equal(t, "done", element.Status)

	summary, err := c.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, workqueue.Summary{
		{SpecURL: "http://reqmgr/ReReco", Status: workqueue.Available, Count: 1, Jobs: 3},
		{SpecURL: "http://reqmgr/ReReco", Status: workqueue.Done, Count: 1, Jobs: 2},
	}, summary)
}

func TestClientUpdate(t *testing.T) {
	ctx := context.Background()
	c, q := newClient(t)
	e, err := q.Backend.InsertElement(ctx, workqueue.ElementParams{SpecURL: "http://reqmgr/s", TaskName: "Production", Jobs: 1})
	require.NoError(t, err)

	assert.Equal(t, workqueue.OK, c.SetPriority(ctx, e.ID, 42))
	assert.Equal(t, workqueue.OK, c.SetOnline(ctx, e.ID, false))
	assert.Equal(t, workqueue.NotFound, c.SetPriority(ctx, "nothing", 1))

	element, err := c.Element(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, element.Priority)
	assert.False(t, element.Online)
}

func TestClientBadWorkload(t *testing.T) {
	c, _ := newClient(t)
	_, err := c.QueueWork(context.Background(), map[string]interface{}{"name": "w"})
	assert.Error(t, err)
}

// TestClientPlainError checks that a failure response without a
// workqueue error body, as from a proxy, still reaches the caller.
func TestClientPlainError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream gone"))
	}))
	defer server.Close()

	_, err := restclient.NewWithHTTPClient(context.Background(), server.URL, &http.Client{Timeout: 5 * time.Second})
	if assert.IsType(t, restclient.ErrorHTTP{}, err) {
		httpErr := err.(restclient.ErrorHTTP)
		assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
		assert.Equal(t, "upstream gone", httpErr.Body)
	}
}

func TestClientSubscriptionHandle(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t)
	_, err := c.QueueWork(ctx, workload)
	require.NoError(t, err)

	subs, err := c.GetWork(ctx, workqueue.Conditions{"T1_US_FNAL": 100})
	require.NoError(t, err)
	require.NotEmpty(t, subs)

	// Actions work by subscription ID as well as element ID
	assert.Equal(t, workqueue.OK, c.GotWork(ctx, subs[0].ID))
	assert.Equal(t, workqueue.OK, c.ReleaseWork(ctx, subs[0].ID))
	element, err := c.Element(ctx, subs[0].ElementID)
	require.NoError(t, err)
	assert.Equal(t, "available", element.Status)
	assert.Equal(t, workqueue.NotFound, c.DoneWork(ctx, subs[0].ID))
}
