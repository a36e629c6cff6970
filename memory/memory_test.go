// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"context"
	"testing"

	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/dmwm/go-workqueue/workqueue/workqueuetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// TestDocumentStore runs the generic document store tests.
func TestDocumentStore(t *testing.T) {
	suite.Run(t, &workqueuetest.Suite{
		NewStore: func(views map[string]workqueue.ViewFunc) (workqueue.DocumentStore, error) {
			return New(views), nil
		},
	})
}

// TestNoAliasing checks that neither inserted nor returned data
// shares state with the store.
func TestNoAliasing(t *testing.T) {
	ctx := context.Background()
	store := New(nil)
	tags := []interface{}{"a"}
	data := map[string]interface{}{"tags": tags}
	doc, err := store.Insert(ctx, workqueue.Document{ID: "x", Data: data})
	require.NoError(t, err)

	tags[0] = "changed"
	doc.Data["tags"].([]interface{})[0] = "also changed"

	got, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a"}, got.Data["tags"])
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	store := New(nil)
	require.NoError(t, store.Close())
	_, err := store.Get(ctx, "x")
	assert.Equal(t, workqueue.ErrStoreClosed, err)
	_, err = store.Insert(ctx, workqueue.Document{ID: "x"})
	assert.Equal(t, workqueue.ErrStoreClosed, err)
}
