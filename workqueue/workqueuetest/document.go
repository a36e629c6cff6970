// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package workqueuetest

import (
	"fmt"
	"sync"

	"github.com/dmwm/go-workqueue/workqueue"
)

// TestInsertGet checks that a stored document can be read back.
func (s *Suite) TestInsertGet() {
	doc := s.insert("a", map[string]interface{}{
		"color": "red",
		"tags":  []interface{}{"x", "y"},
		"ok":    true,
	})
	s.Equal("a", doc.ID)
	s.True(doc.Revision > 0)

	got, err := s.Store.Get(s.ctx, "a")
	if s.NoError(err) {
		s.Equal("a", got.ID)
		s.Equal(doc.Revision, got.Revision)
		s.Equal("red", got.Data["color"])
		s.Equal([]interface{}{"x", "y"}, got.Data["tags"])
		s.Equal(true, got.Data["ok"])
	}
}

// TestInsertDuplicate checks that IDs are unique.
func (s *Suite) TestInsertDuplicate() {
	s.insert("a", map[string]interface{}{"color": "red"})
	_, err := s.Store.Insert(s.ctx, workqueue.Document{ID: "a", Data: map[string]interface{}{"color": "blue"}})
	s.Equal(workqueue.ErrDocumentExists{ID: "a"}, err)

	got, err := s.Store.Get(s.ctx, "a")
	if s.NoError(err) {
		s.Equal("red", got.Data["color"])
	}
}

// TestGetMissing checks the error for a nonexistent document.
func (s *Suite) TestGetMissing() {
	_, err := s.Store.Get(s.ctx, "missing")
	s.Equal(workqueue.ErrNoSuchDocument{ID: "missing"}, err)
}

// TestUpdateRevisions checks optimistic concurrency on Update.
func (s *Suite) TestUpdateRevisions() {
	doc := s.insert("a", map[string]interface{}{"color": "red"})
	first := doc.Revision

	doc.Data = map[string]interface{}{"color": "green"}
	second, err := s.Store.Update(s.ctx, doc, first)
	s.Require().NoError(err)
	s.True(second > first)

	// A writer holding the old revision loses
	doc.Data = map[string]interface{}{"color": "blue"}
	_, err = s.Store.Update(s.ctx, doc, first)
	s.Equal(workqueue.ErrConflict{ID: "a", Expected: first}, err)
	s.Equal(workqueue.Conflict, workqueue.ResultOf(err))

	got, err := s.Store.Get(s.ctx, "a")
	if s.NoError(err) {
		s.Equal(second, got.Revision)
		s.Equal("green", got.Data["color"])
	}
}

// TestUpdateMissing checks updating a nonexistent document.
func (s *Suite) TestUpdateMissing() {
	_, err := s.Store.Update(s.ctx, workqueue.Document{ID: "missing", Data: map[string]interface{}{}}, 1)
	s.Equal(workqueue.ErrNoSuchDocument{ID: "missing"}, err)
}

// TestDelete checks deletion with revision checks.
func (s *Suite) TestDelete() {
	doc := s.insert("a", map[string]interface{}{"color": "red"})
	s.insert("b", map[string]interface{}{"color": "red"})

	err := s.Store.Delete(s.ctx, "a", doc.Revision+1)
	s.Equal(workqueue.ErrConflict{ID: "a", Expected: doc.Revision + 1}, err)

	err = s.Store.Delete(s.ctx, "a", doc.Revision)
	s.NoError(err)

	_, err = s.Store.Get(s.ctx, "a")
	s.Equal(workqueue.ErrNoSuchDocument{ID: "a"}, err)

	err = s.Store.Delete(s.ctx, "a", doc.Revision)
	s.Equal(workqueue.ErrNoSuchDocument{ID: "a"}, err)

	docs, err := s.Store.QueryByView(s.ctx, "by_color", workqueue.Key("red"))
	if s.NoError(err) {
		s.Equal([]string{"b"}, ids(docs))
	}

	// The ID can be reused
	s.insert("a", map[string]interface{}{"color": "blue"})
}

// TestQueryByView checks view ordering and key ranges.
func (s *Suite) TestQueryByView() {
	s.insert("d", map[string]interface{}{"color": "red"})
	s.insert("c", map[string]interface{}{"color": "blue"})
	s.insert("b", map[string]interface{}{"color": "red"})
	s.insert("a", map[string]interface{}{"color": "green"})
	s.insert("z", map[string]interface{}{"shape": "square"})

	docs, err := s.Store.QueryByView(s.ctx, "by_color", workqueue.Key("red"))
	if s.NoError(err) {
		s.Equal([]string{"b", "d"}, ids(docs))
	}

	docs, err = s.Store.QueryByView(s.ctx, "by_color", workqueue.KeyRange{})
	if s.NoError(err) {
		s.Equal([]string{"c", "a", "b", "d"}, ids(docs))
	}

	docs, err = s.Store.QueryByView(s.ctx, "by_color", workqueue.KeyRange{Start: "c", End: "h"})
	if s.NoError(err) {
		s.Equal([]string{"a"}, ids(docs))
	}

	docs, err = s.Store.QueryByView(s.ctx, "by_color", workqueue.Key("purple"))
	if s.NoError(err) {
		s.Empty(docs)
	}

	_, err = s.Store.QueryByView(s.ctx, "no_such_view", workqueue.KeyRange{})
	s.Equal(workqueue.ErrNoSuchView, err)
}

// TestQueryMultipleKeys checks that a document emitting several keys
// in range comes back once.
func (s *Suite) TestQueryMultipleKeys() {
	s.insert("a", map[string]interface{}{"tags": []interface{}{"x", "y"}})
	s.insert("b", map[string]interface{}{"tags": []interface{}{"y"}})

	docs, err := s.Store.QueryByView(s.ctx, "by_tag", workqueue.KeyRange{})
	if s.NoError(err) {
		s.Equal([]string{"a", "b"}, ids(docs))
	}

	docs, err = s.Store.QueryByView(s.ctx, "by_tag", workqueue.Key("y"))
	if s.NoError(err) {
		s.Equal([]string{"a", "b"}, ids(docs))
	}
}

// TestViewFollowsUpdates checks that view keys are recomputed when a
// document changes.
func (s *Suite) TestViewFollowsUpdates() {
	doc := s.insert("a", map[string]interface{}{"color": "red"})
	doc.Data = map[string]interface{}{"color": "blue"}
	_, err := s.Store.Update(s.ctx, doc, doc.Revision)
	s.Require().NoError(err)

	docs, err := s.Store.QueryByView(s.ctx, "by_color", workqueue.Key("red"))
	if s.NoError(err) {
		s.Empty(docs)
	}
	docs, err = s.Store.QueryByView(s.ctx, "by_color", workqueue.Key("blue"))
	if s.NoError(err) {
		s.Equal([]string{"a"}, ids(docs))
		if s.Len(docs, 1) {
			s.Equal("blue", docs[0].Data["color"])
		}
	}
}

// TestElementDocuments checks that element documents survive the
// store's encoding and are indexed by the element views.
func (s *Suite) TestElementDocuments() {
	element := &workqueue.Element{
		ID:           "e1",
		SpecURL:      "http://spec/a",
		TaskName:     "Processing",
		PrimaryBlock: "/a/b/c#1",
		ParentBlocks: []string{"/a/b/p#1"},
		BlockLocations: map[string][]string{
			"/a/b/c#1": {"T1_US_FNAL", "T2_CH_CERN"},
			"/a/b/p#1": {"T2_CH_CERN"},
		},
		Priority:   7,
		Online:     true,
		Jobs:       12,
		WhiteList:  []string{"T2_CH_CERN"},
		InsertTime: workqueue.FromEpochSeconds(1500000000.25),
		UpdateTime: workqueue.FromEpochSeconds(1500000001),
		Status:     workqueue.Available,
	}
	doc, err := s.Store.Insert(s.ctx, workqueue.ElementToDocument(element))
	s.Require().NoError(err)

	got, err := s.Store.Get(s.ctx, "e1")
	s.Require().NoError(err)
	back, err := workqueue.DocumentToElement(got)
	s.Require().NoError(err)
	s.Equal(doc.Revision, back.Revision)
	s.Equal(element.SpecURL, back.SpecURL)
	s.Equal(element.PrimaryBlock, back.PrimaryBlock)
	s.Equal(element.ParentBlocks, back.ParentBlocks)
	s.Equal(element.BlockLocations, back.BlockLocations)
	s.Equal(7, back.Priority)
	s.Equal(12, back.Jobs)
	s.True(back.Online)
	s.Equal(element.WhiteList, back.WhiteList)
	s.True(element.InsertTime.Equal(back.InsertTime))
	s.Equal(workqueue.Available, back.Status)

	docs, err := s.Store.QueryByView(s.ctx, workqueue.ViewByStatus, workqueue.Key(workqueue.StatusKey(workqueue.Available)))
	if s.NoError(err) {
		s.Equal([]string{"e1"}, ids(docs))
	}
	docs, err = s.Store.QueryByView(s.ctx, workqueue.ViewBySpec, workqueue.Key("http://spec/a"))
	if s.NoError(err) {
		s.Equal([]string{"e1"}, ids(docs))
	}
	docs, err = s.Store.QueryByView(s.ctx, workqueue.ViewBySubscription, workqueue.KeyRange{})
	if s.NoError(err) {
		s.Empty(docs)
	}

	// An element queued at the epoch keeps that time
	epoch := &workqueue.Element{
		ID:         "e0",
		InsertTime: workqueue.FromEpochSeconds(0),
		Status:     workqueue.Available,
	}
	_, err = s.Store.Insert(s.ctx, workqueue.ElementToDocument(epoch))
	s.Require().NoError(err)
	got, err = s.Store.Get(s.ctx, "e0")
	s.Require().NoError(err)
	back, err = workqueue.DocumentToElement(got)
	s.Require().NoError(err)
	s.Equal(int64(0), back.InsertTime.Unix())
	s.True(back.UpdateTime.IsZero())
}

// TestConcurrentUpdates has many writers race to append to the same
// document; every append must land exactly once.
func (s *Suite) TestConcurrentUpdates() {
	s.insert("counter", map[string]interface{}{"tags": []interface{}{}})

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(tag string) {
			defer wg.Done()
			for {
				doc, err := s.Store.Get(s.ctx, "counter")
				if err != nil {
					errs <- err
					return
				}
				tags, _ := doc.Data["tags"].([]interface{})
				doc.Data = map[string]interface{}{
					"tags": append(append([]interface{}{}, tags...), tag),
				}
				_, err = s.Store.Update(s.ctx, doc, doc.Revision)
				if err == nil {
					return
				}
				if workqueue.ResultOf(err) != workqueue.Conflict {
					errs <- err
					return
				}
			}
		}(fmt.Sprintf("w%d", i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	doc, err := s.Store.Get(s.ctx, "counter")
	if s.NoError(err) {
		tags, _ := doc.Data["tags"].([]interface{})
		s.Len(tags, writers)
	}
}
