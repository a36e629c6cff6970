// Copyright 2015-2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

// Package memory provides an in-process, in-memory implementation of
// workqueue.DocumentStore.  There is no persistence in this store,
// nor is there any automatic sharing.  The entire store is behind a
// single global lock to protect against concurrent updates; in some
// cases this can limit performance in the name of correctness.
//
// This is mostly intended as a simple reference implementation that
// can be used for testing, including in-process testing of the queue
// itself and of multiple queue instances sharing one store.  Views
// are computed by scanning every document.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dmwm/go-workqueue/workqueue"
)

// New creates a new document store that operates purely in memory.
// views maps view names to their key functions; it is typically
// workqueue.ElementViews.
func New(views map[string]workqueue.ViewFunc) workqueue.DocumentStore {
	store := &memStore{
		views:     make(map[string]workqueue.ViewFunc, len(views)),
		documents: make(map[string]*document),
	}
	for name, f := range views {
		store.views[name] = f
	}
	return store
}

type document struct {
	revision int64
	data     map[string]interface{}
}

type memStore struct {
	sem       sync.Mutex
	views     map[string]workqueue.ViewFunc
	documents map[string]*document
	revision  int64
	closed    bool
}

// do runs f under the global lock, provided the store is still open.
func (s *memStore) do(f func() error) error {
	s.sem.Lock()
	defer s.sem.Unlock()

	if s.closed {
		return workqueue.ErrStoreClosed
	}
	return f()
}

// nextRevision returns a new store-wide unique revision number.  It
// must be called under the global lock.
func (s *memStore) nextRevision() int64 {
	s.revision++
	return s.revision
}

func (s *memStore) Insert(ctx context.Context, doc workqueue.Document) (result workqueue.Document, err error) {
	err = s.do(func() error {
		if _, exists := s.documents[doc.ID]; exists {
			return workqueue.ErrDocumentExists{ID: doc.ID}
		}
		stored := &document{
			revision: s.nextRevision(),
			data:     copyMap(doc.Data),
		}
		s.documents[doc.ID] = stored
		result = stored.export(doc.ID)
		return nil
	})
	return
}

func (s *memStore) Get(ctx context.Context, id string) (result workqueue.Document, err error) {
	err = s.do(func() error {
		stored, exists := s.documents[id]
		if !exists {
			return workqueue.ErrNoSuchDocument{ID: id}
		}
		result = stored.export(id)
		return nil
	})
	return
}

func (s *memStore) QueryByView(ctx context.Context, view string, r workqueue.KeyRange) (result []workqueue.Document, err error) {
	err = s.do(func() error {
		f, ok := s.views[view]
		if !ok {
			return workqueue.ErrNoSuchView
		}
		type hit struct {
			key string
			id  string
		}
		var hits []hit
		for id, stored := range s.documents {
			// The smallest in-range key decides the position
			var best string
			found := false
			for _, key := range f(stored.data) {
				if r.Contains(key) && (!found || key < best) {
					best = key
					found = true
				}
			}
			if found {
				hits = append(hits, hit{key: best, id: id})
			}
		}
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].key != hits[j].key {
				return hits[i].key < hits[j].key
			}
			return hits[i].id < hits[j].id
		})
		result = make([]workqueue.Document, len(hits))
		for i, h := range hits {
			result[i] = s.documents[h.id].export(h.id)
		}
		return nil
	})
	return
}

func (s *memStore) Update(ctx context.Context, doc workqueue.Document, expectedRevision int64) (revision int64, err error) {
	err = s.do(func() error {
		stored, exists := s.documents[doc.ID]
		if !exists {
			return workqueue.ErrNoSuchDocument{ID: doc.ID}
		}
		if stored.revision != expectedRevision {
			return workqueue.ErrConflict{ID: doc.ID, Expected: expectedRevision}
		}
		stored.revision = s.nextRevision()
		stored.data = copyMap(doc.Data)
		revision = stored.revision
		return nil
	})
	return
}

func (s *memStore) Delete(ctx context.Context, id string, revision int64) error {
	return s.do(func() error {
		stored, exists := s.documents[id]
		if !exists {
			return workqueue.ErrNoSuchDocument{ID: id}
		}
		if stored.revision != revision {
			return workqueue.ErrConflict{ID: id, Expected: revision}
		}
		delete(s.documents, id)
		return nil
	})
}

func (s *memStore) Close() error {
	s.sem.Lock()
	defer s.sem.Unlock()
	s.closed = true
	return nil
}

// export returns an independent copy of a stored document.
func (d *document) export(id string) workqueue.Document {
	return workqueue.Document{
		ID:       id,
		Revision: d.revision,
		Data:     copyMap(d.data),
	}
}

// copyMap deep-copies document data, so that callers never share
// mutable state with the store.
func copyMap(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		return copyMap(value)
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, item := range value {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), value...)
	case map[string][]string:
		out := make(map[string][]string, len(value))
		for k, list := range value {
			out[k] = append([]string(nil), list...)
		}
		return out
	default:
		return v
	}
}
