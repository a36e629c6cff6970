// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

// Package workqueuetest provides generic functional tests for the
// DocumentStore interface.  A typical store test module needs to wrap
// Suite to create its store:
//
//     package mystore
//
//     import (
//             "testing"
//             "github.com/dmwm/go-workqueue/workqueue"
//             "github.com/dmwm/go-workqueue/workqueue/workqueuetest"
//             "github.com/stretchr/testify/suite"
//     )
//
//     // TestDocumentStore runs the generic document store tests.
//     func TestDocumentStore(t *testing.T) {
//             suite.Run(t, &workqueuetest.Suite{
//                     NewStore: func(views map[string]workqueue.ViewFunc) (workqueue.DocumentStore, error) {
//                             return New(views), nil
//                     },
//             })
//     }
package workqueuetest

import (
	"context"

	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/stretchr/testify/suite"
)

// Suite is the generic DocumentStore test suite.
type Suite struct {
	suite.Suite

	// NewStore creates an empty store configured with views.  It
	// is called before every test and set by importing packages.
	NewStore func(views map[string]workqueue.ViewFunc) (workqueue.DocumentStore, error)

	// Store is the store under test for the current test.
	Store workqueue.DocumentStore

	ctx context.Context
}

// Views returns the views every test store is built with: the
// element views plus two simple test views.
func Views() map[string]workqueue.ViewFunc {
	views := map[string]workqueue.ViewFunc{
		"by_color": func(data map[string]interface{}) []string {
			if color, ok := data["color"].(string); ok {
				return []string{color}
			}
			return nil
		},
		"by_tag": func(data map[string]interface{}) []string {
			tags, _ := data["tags"].([]interface{})
			var keys []string
			for _, tag := range tags {
				if s, ok := tag.(string); ok {
					keys = append(keys, s)
				}
			}
			return keys
		},
	}
	for name, f := range workqueue.ElementViews {
		views[name] = f
	}
	return views
}

// SetupTest creates a fresh store.
func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	store, err := s.NewStore(Views())
	s.Require().NoError(err)
	s.Store = store
}

// TearDownTest closes the store.
func (s *Suite) TearDownTest() {
	if s.Store != nil {
		s.NoError(s.Store.Close())
		s.Store = nil
	}
}

// insert is a helper that stores a document and fails the test if
// that does not work.
func (s *Suite) insert(id string, data map[string]interface{}) workqueue.Document {
	doc, err := s.Store.Insert(s.ctx, workqueue.Document{ID: id, Data: data})
	s.Require().NoError(err)
	return doc
}

// ids extracts the IDs of a list of documents.
func ids(docs []workqueue.Document) []string {
	result := make([]string, len(docs))
	for i, doc := range docs {
		result[i] = doc.ID
	}
	return result
}
