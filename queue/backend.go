// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

// Package queue implements the work queue matching engine and its
// caller-facing facade on top of any workqueue.DocumentStore.
//
// The document store is the source of truth.  Every status change is
// a conditional write against the revision the Backend read, so two
// Backends sharing one store (two daemons in front of one PostgreSQL
// database, say) still acquire each element at most once.  Within one
// process, GetWork and the location refresh are additionally
// serialized by a mutex.
package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// modifyAttempts bounds how many times a read-modify-write is retried
// after losing a conditional write.
const modifyAttempts = 3

// Backend owns the collection of elements in a document store.
type Backend struct {
	// Store holds the elements.  It must have been created with
	// workqueue.ElementViews.
	Store workqueue.DocumentStore

	// Locations answers block location queries.
	Locations workqueue.LocationService

	// Subscriptions creates the WMBS subscription for each
	// acquired element.
	Subscriptions workqueue.SubscriptionFactory

	// Clock provides element timestamps and ages.
	Clock clock.Clock

	// Logger receives per-element and per-block problems that do
	// not fail the whole operation.
	Logger logrus.FieldLogger

	// matching serializes GetWork and location refreshes.
	matching sync.Mutex
}

// NewBackend creates a Backend using the wall clock.
func NewBackend(store workqueue.DocumentStore, locations workqueue.LocationService, subscriptions workqueue.SubscriptionFactory) *Backend {
	return NewBackendWithClock(store, locations, subscriptions, clock.New())
}

// NewBackendWithClock creates a Backend with an alternate time
// source.  This is mostly useful for testing.
func NewBackendWithClock(store workqueue.DocumentStore, locations workqueue.LocationService, subscriptions workqueue.SubscriptionFactory, clk clock.Clock) *Backend {
	return &Backend{
		Store:         store,
		Locations:     locations,
		Subscriptions: subscriptions,
		Clock:         clk,
		Logger:        logrus.StandardLogger(),
	}
}

// InsertElement creates a new Available element.  Its block locations
// start empty, so it cannot be matched before the next location
// refresh.
func (b *Backend) InsertElement(ctx context.Context, params workqueue.ElementParams) (*workqueue.Element, error) {
	now := b.Clock.Now()
	element := &workqueue.Element{
		ID:             uuid.NewV4().String(),
		SpecURL:        params.SpecURL,
		TaskName:       params.TaskName,
		PrimaryBlock:   params.PrimaryBlock,
		ParentBlocks:   append([]string(nil), params.ParentBlocks...),
		BlockLocations: make(map[string][]string),
		Priority:       params.Priority,
		Online:         true,
		Jobs:           params.Jobs,
		WhiteList:      append([]string(nil), params.WhiteList...),
		BlackList:      append([]string(nil), params.BlackList...),
		InsertTime:     now,
		UpdateTime:     now,
		Status:         workqueue.Available,
	}
	if params.PrimaryBlock != "" {
		element.BlockLocations[params.PrimaryBlock] = []string{}
	}
	for _, parent := range params.ParentBlocks {
		element.BlockLocations[parent] = []string{}
	}
	doc, err := b.Store.Insert(ctx, workqueue.ElementToDocument(element))
	if err != nil {
		return nil, err
	}
	element.Revision = doc.Revision
	return element, nil
}

// Element retrieves a single element by element or subscription ID.
func (b *Backend) Element(ctx context.Context, handle string) (*workqueue.Element, error) {
	return b.resolve(ctx, handle)
}

// Elements retrieves the elements selected by a query, oldest first.
func (b *Backend) Elements(ctx context.Context, query workqueue.ElementQuery) ([]*workqueue.Element, error) {
	var elements []*workqueue.Element
	var statuses []workqueue.ElementStatus
	seen := make(map[workqueue.ElementStatus]bool)
	for _, status := range query.Statuses {
		if status == workqueue.AnyStatus {
			statuses = nil
			break
		}
		if !seen[status] {
			seen[status] = true
			statuses = append(statuses, status)
		}
	}
	switch {
	case len(statuses) > 0:
		for _, status := range statuses {
			some, err := b.queryView(ctx, workqueue.ViewByStatus, workqueue.Key(workqueue.StatusKey(status)))
			if err != nil {
				return nil, err
			}
			elements = append(elements, some...)
		}
	case query.SpecURL != "":
		var err error
		elements, err = b.queryView(ctx, workqueue.ViewBySpec, workqueue.Key(query.SpecURL))
		if err != nil {
			return nil, err
		}
	default:
		var err error
		elements, err = b.queryView(ctx, workqueue.ViewByStatus, workqueue.KeyRange{})
		if err != nil {
			return nil, err
		}
	}

	result := elements[:0]
	for _, element := range elements {
		if query.SpecURL != "" && element.SpecURL != query.SpecURL {
			continue
		}
		if !query.UpdatedBefore.IsZero() && !element.UpdateTime.Before(query.UpdatedBefore) {
			continue
		}
		result = append(result, element)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].InsertTime.Equal(result[j].InsertTime) {
			return result[i].InsertTime.Before(result[j].InsertTime)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Summarize counts elements and jobs per workload and status.
func (b *Backend) Summarize(ctx context.Context) (workqueue.Summary, error) {
	elements, err := b.Elements(ctx, workqueue.ElementQuery{})
	if err != nil {
		return nil, err
	}
	return workqueue.Summarize(elements), nil
}

// SetPriority changes the priority of an element.  The new priority
// takes effect at the next match.  A missing element is logged and
// reported as ErrNoSuchElement.
func (b *Backend) SetPriority(ctx context.Context, id string, priority int) error {
	_, err := b.modify(ctx, id, func(element *workqueue.Element) (bool, error) {
		if element.Priority == priority {
			return false, nil
		}
		element.Priority = priority
		return true, nil
	})
	if workqueue.ResultOf(err) == workqueue.NotFound {
		b.Logger.WithFields(logrus.Fields{
			"element":  id,
			"priority": priority,
		}).Warn("Element not found")
	}
	return err
}

// SetOnline records whether the data of an element is staged.
// Offline elements are never matched.
func (b *Backend) SetOnline(ctx context.Context, id string, online bool) error {
	_, err := b.modify(ctx, id, func(element *workqueue.Element) (bool, error) {
		if element.Online == online {
			return false, nil
		}
		element.Online = online
		return true, nil
	})
	return err
}

// CleanUp deletes Done and Failed elements last changed before some
// time, returning how many were deleted.  Elements that change while
// this runs are left alone.
func (b *Backend) CleanUp(ctx context.Context, before time.Time) (int, error) {
	elements, err := b.Elements(ctx, workqueue.ElementQuery{
		Statuses:      []workqueue.ElementStatus{workqueue.Done, workqueue.Failed},
		UpdatedBefore: before,
	})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, element := range elements {
		err = b.Store.Delete(ctx, element.ID, element.Revision)
		switch workqueue.ResultOf(err) {
		case workqueue.OK:
			count++
		case workqueue.NotFound, workqueue.Conflict:
		default:
			return count, err
		}
	}
	return count, nil
}

// load reads one element by its ID.
func (b *Backend) load(ctx context.Context, id string) (*workqueue.Element, error) {
	doc, err := b.Store.Get(ctx, id)
	var missing workqueue.ErrNoSuchDocument
	if errors.As(err, &missing) {
		return nil, workqueue.ErrNoSuchElement{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return workqueue.DocumentToElement(doc)
}

// resolve finds an element by element ID or, failing that, by the ID
// of its subscription.  If several elements share a subscription,
// the one with the lowest ID wins.
func (b *Backend) resolve(ctx context.Context, handle string) (*workqueue.Element, error) {
	element, err := b.load(ctx, handle)
	if workqueue.ResultOf(err) != workqueue.NotFound {
		return element, err
	}
	elements, err := b.queryView(ctx, workqueue.ViewBySubscription, workqueue.Key(handle))
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, workqueue.ErrNoSuchElement{ID: handle}
	}
	return elements[0], nil
}

// queryView decodes every element in a view range.
func (b *Backend) queryView(ctx context.Context, view string, r workqueue.KeyRange) ([]*workqueue.Element, error) {
	docs, err := b.Store.QueryByView(ctx, view, r)
	if err != nil {
		return nil, err
	}
	elements := make([]*workqueue.Element, 0, len(docs))
	for _, doc := range docs {
		element, err := workqueue.DocumentToElement(doc)
		if err != nil {
			return nil, err
		}
		elements = append(elements, element)
	}
	return elements, nil
}

// save writes an element back, provided nobody else has written it
// since it was read.  On success the element's revision is updated.
func (b *Backend) save(ctx context.Context, element *workqueue.Element) error {
	revision, err := b.Store.Update(ctx, workqueue.ElementToDocument(element), element.Revision)
	if err != nil {
		return err
	}
	element.Revision = revision
	return nil
}

// modify runs a read-modify-write cycle on the element named by
// handle.  f changes the element and reports whether anything needs
// to be written.  If another writer gets there first, the cycle is
// repeated on a fresh copy.
func (b *Backend) modify(ctx context.Context, handle string, f func(*workqueue.Element) (bool, error)) (*workqueue.Element, error) {
	var err error
	for attempt := 0; attempt < modifyAttempts; attempt++ {
		var element *workqueue.Element
		element, err = b.resolve(ctx, handle)
		if err != nil {
			return nil, err
		}
		var changed bool
		changed, err = f(element)
		if err != nil || !changed {
			return element, err
		}
		element.UpdateTime = b.Clock.Now()
		err = b.save(ctx, element)
		if workqueue.ResultOf(err) != workqueue.Conflict {
			return element, err
		}
	}
	return nil, err
}
