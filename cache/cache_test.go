// Copyright 2016-2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package cache_test

import (
	"context"
	"testing"

	"github.com/dmwm/go-workqueue/cache"
	"github.com/dmwm/go-workqueue/memory"
	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/dmwm/go-workqueue/workqueue/workqueuetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// TestDocumentStore runs the generic document store tests against a
// cache small enough to evict.
func TestDocumentStore(t *testing.T) {
	suite.Run(t, &workqueuetest.Suite{
		NewStore: func(views map[string]workqueue.ViewFunc) (workqueue.DocumentStore, error) {
			return cache.New(memory.New(views), 3), nil
		},
	})
}

// TestStaleWriteConflicts has one writer go behind the cache's back
// and checks that a write from the stale copy fails and refreshes.
func TestStaleWriteConflicts(t *testing.T) {
	ctx := context.Background()
	backend := memory.New(nil)
	cached := cache.New(backend, 10)

	doc, err := cached.Insert(ctx, workqueue.Document{ID: "a", Data: map[string]interface{}{"v": "1"}})
	require.NoError(t, err)

	// Someone else updates the shared store
	behind := doc
	behind.Data = map[string]interface{}{"v": "2"}
	_, err = backend.Update(ctx, behind, doc.Revision)
	require.NoError(t, err)

	stale, err := cached.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", stale.Data["v"])

	stale.Data["v"] = "3"
	_, err = cached.Update(ctx, stale, stale.Revision)
	assert.Equal(t, workqueue.Conflict, workqueue.ResultOf(err))

	fresh, err := cached.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "2", fresh.Data["v"])
}

// TestGetCopies checks that mutating a returned document does not
// change the cached copy.
func TestGetCopies(t *testing.T) {
	ctx := context.Background()
	cached := cache.New(memory.New(nil), 10)
	_, err := cached.Insert(ctx, workqueue.Document{ID: "a", Data: map[string]interface{}{"v": "1"}})
	require.NoError(t, err)

	doc, err := cached.Get(ctx, "a")
	require.NoError(t, err)
	doc.Data["v"] = "changed"

	doc, err = cached.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", doc.Data["v"])
}

// TestDeleteForgets checks that deleting through the cache drops the
// cached copy.
func TestDeleteForgets(t *testing.T) {
	ctx := context.Background()
	cached := cache.New(memory.New(nil), 10)
	doc, err := cached.Insert(ctx, workqueue.Document{ID: "a", Data: map[string]interface{}{}})
	require.NoError(t, err)
	require.NoError(t, cached.Delete(ctx, "a", doc.Revision))
	_, err = cached.Get(ctx, "a")
	assert.Equal(t, workqueue.ErrNoSuchDocument{ID: "a"}, err)
}
