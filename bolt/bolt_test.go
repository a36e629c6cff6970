// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package bolt

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/dmwm/go-workqueue/workqueue/workqueuetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "workqueue-bolt")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// TestDocumentStore runs the generic document store tests.
func TestDocumentStore(t *testing.T) {
	dir := tempDir(t)
	n := 0
	suite.Run(t, &workqueuetest.Suite{
		NewStore: func(views map[string]workqueue.ViewFunc) (workqueue.DocumentStore, error) {
			n++
			return New(filepath.Join(dir, fmt.Sprintf("store%d.db", n)), views)
		},
	})
}

// TestReopen checks that documents, revisions and indexes persist,
// and that a view added later is built from existing documents.
func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(tempDir(t), "queue.db")
	byColor := map[string]workqueue.ViewFunc{
		"by_color": func(data map[string]interface{}) []string {
			color, _ := data["color"].(string)
			return []string{color}
		},
	}

	store, err := New(path, byColor)
	require.NoError(t, err)
	doc, err := store.Insert(ctx, workqueue.Document{ID: "a", Data: map[string]interface{}{"color": "red", "shape": "round"}})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	byShape := map[string]workqueue.ViewFunc{
		"by_color": byColor["by_color"],
		"by_shape": func(data map[string]interface{}) []string {
			shape, _ := data["shape"].(string)
			return []string{shape}
		},
	}
	store, err = New(path, byShape)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, doc.Revision, got.Revision)

	docs, err := store.QueryByView(ctx, "by_color", workqueue.Key("red"))
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = store.QueryByView(ctx, "by_shape", workqueue.Key("round"))
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	// Revisions keep increasing across reopen
	doc.Data = map[string]interface{}{"color": "blue"}
	rev, err := store.Update(ctx, doc, doc.Revision)
	require.NoError(t, err)
	assert.True(t, rev > doc.Revision)
}
