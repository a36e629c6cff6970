// Copyright 2016-2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

// Package cache provides ID-based caching of documents.  The cache
// wraps some other DocumentStore.  Get returns a cached copy if it has
// one; every write goes through to the underlying store and refreshes
// or drops the cached copy.  View queries always go to the underlying
// store.
//
// Staleness
//
// If several processes share the underlying store, a cached document
// may be older than the stored one.  Conditional writes still go
// through the underlying store, so a write based on a stale copy
// fails with ErrConflict exactly as it would without the cache, and
// the stale copy is dropped:
//
//     doc, _ := store.Get(ctx, "e1")          // possibly stale
//     _, err := store.Update(ctx, doc, doc.Revision)
//     // err is ErrConflict if someone else wrote e1 first;
//     // the next Get fetches the current revision
package cache

import (
	"context"
	"errors"

	"github.com/dmwm/go-workqueue/workqueue"
)

type cache struct {
	backend   workqueue.DocumentStore
	documents *lru
}

// New creates a new caching store holding up to size documents,
// wrapping some other store.
func New(backend workqueue.DocumentStore, size int) workqueue.DocumentStore {
	if size < 1 {
		size = 1
	}
	return &cache{
		backend:   backend,
		documents: newLRU(size),
	}
}

func toEntry(doc workqueue.Document) (entry, error) {
	data, err := workqueue.MarshalData(doc.Data)
	if err != nil {
		return entry{}, err
	}
	return entry{ID: doc.ID, Revision: doc.Revision, Data: data}, nil
}

func fromEntry(item entry) (workqueue.Document, error) {
	data, err := workqueue.UnmarshalData(item.Data)
	if err != nil {
		return workqueue.Document{}, err
	}
	return workqueue.Document{ID: item.ID, Revision: item.Revision, Data: data}, nil
}

// remember caches a document, dropping any old copy if it cannot be
// encoded.
func (c *cache) remember(doc workqueue.Document) {
	item, err := toEntry(doc)
	if err != nil {
		c.documents.Remove(doc.ID)
		return
	}
	c.documents.Put(item)
}

// forget drops a cached document if err says our copy is wrong.
func (c *cache) forget(id string, err error) {
	var conflict workqueue.ErrConflict
	var missing workqueue.ErrNoSuchDocument
	if errors.As(err, &conflict) || errors.As(err, &missing) {
		c.documents.Remove(id)
	}
}

func (c *cache) Insert(ctx context.Context, doc workqueue.Document) (workqueue.Document, error) {
	stored, err := c.backend.Insert(ctx, doc)
	if err != nil {
		return stored, err
	}
	c.remember(stored)
	return stored, nil
}

func (c *cache) Get(ctx context.Context, id string) (workqueue.Document, error) {
	item, err := c.documents.Get(id, func(id string) (entry, error) {
		doc, err := c.backend.Get(ctx, id)
		if err != nil {
			return entry{}, err
		}
		return toEntry(doc)
	})
	if err != nil {
		return workqueue.Document{}, err
	}
	return fromEntry(item)
}

func (c *cache) QueryByView(ctx context.Context, view string, r workqueue.KeyRange) ([]workqueue.Document, error) {
	docs, err := c.backend.QueryByView(ctx, view, r)
	if err != nil {
		return nil, err
	}
	// These are fresh; remember them
	for _, doc := range docs {
		c.remember(doc)
	}
	return docs, nil
}

func (c *cache) Update(ctx context.Context, doc workqueue.Document, expectedRevision int64) (int64, error) {
	revision, err := c.backend.Update(ctx, doc, expectedRevision)
	if err != nil {
		c.forget(doc.ID, err)
		return revision, err
	}
	doc.Revision = revision
	c.remember(doc)
	return revision, nil
}

func (c *cache) Delete(ctx context.Context, id string, revision int64) error {
	err := c.backend.Delete(ctx, id, revision)
	if err != nil {
		c.forget(id, err)
		return err
	}
	c.documents.Remove(id)
	return nil
}

func (c *cache) Close() error {
	return c.backend.Close()
}
