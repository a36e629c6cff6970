// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

// Package wmbs provides an in-process workqueue.SubscriptionFactory.
// It records the filesets, workflows and subscriptions a local agent
// would create in its WMBS database, keyed by generated IDs.
package wmbs

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/satori/go.uuid"
)

// ErrUnavailable is returned by CreateSubscription while the factory
// is marked unavailable.
var ErrUnavailable = errors.New("WMBS unavailable")

// Factory creates and remembers subscriptions.  It is safe for
// concurrent use.
type Factory struct {
	lock          sync.Mutex
	subscriptions map[string]workqueue.Subscription
	failing       bool
}

// New creates an empty subscription factory.
func New() *Factory {
	return &Factory{subscriptions: make(map[string]workqueue.Subscription)}
}

// SetAvailable controls whether CreateSubscription succeeds.
func (f *Factory) SetAvailable(available bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.failing = !available
}

// CreateSubscription creates a subscription of workflow to fileset.
// Creating the same pair twice returns the existing subscription.
func (f *Factory) CreateSubscription(ctx context.Context, fileset, workflow string) (workqueue.Subscription, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.failing {
		return workqueue.Subscription{}, ErrUnavailable
	}
	for _, sub := range f.subscriptions {
		if sub.Fileset == fileset && sub.Workflow == workflow {
			return sub, nil
		}
	}
	sub := workqueue.Subscription{
		ID:       uuid.NewV4().String(),
		Fileset:  fileset,
		Workflow: workflow,
	}
	f.subscriptions[sub.ID] = sub
	return sub, nil
}

// Subscription returns a previously created subscription.
func (f *Factory) Subscription(id string) (workqueue.Subscription, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	sub, ok := f.subscriptions[id]
	return sub, ok
}

// Subscriptions returns every subscription, ordered by ID.
func (f *Factory) Subscriptions() []workqueue.Subscription {
	f.lock.Lock()
	defer f.lock.Unlock()
	result := make([]workqueue.Subscription, 0, len(f.subscriptions))
	for _, sub := range f.subscriptions {
		result = append(result, sub)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
