// Copyright 2016-2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Make(id string) (entry, error) {
	return entry{ID: id, Revision: 1}, nil
}

func DoNotMake(id string) (entry, error) {
	return entry{}, assert.AnError
}

type LRUAssertions struct {
	*assert.Assertions
	LRU *lru
}

func NewLRUAssertions(t assert.TestingT, size int) *LRUAssertions {
	return &LRUAssertions{
		assert.New(t),
		newLRU(size),
	}
}

// PutName adds an item with an ID to the cache.
func (a *LRUAssertions) PutName(id string) {
	a.LRU.Put(entry{ID: id})
}

// GetName fetches an item from the cache; if not present, it is
// added.
func (a *LRUAssertions) GetName(id string) {
	item, err := a.LRU.Get(id, Make)
	if a.NoError(err) {
		a.Equal(id, item.ID)
	}
}

// GetPresent fetches an item from the cache; if not present, it
// should produce an assertion error.
func (a *LRUAssertions) GetPresent(id string) {
	item, err := a.LRU.Get(id, DoNotMake)
	if a.NoError(err) {
		a.Equal(id, item.ID)
	}
}

// GetError tries to fetch an item from the cache, but it should not
// exist, and the resulting error will be caught.
func (a *LRUAssertions) GetError(id string) {
	_, err := a.LRU.Get(id, DoNotMake)
	a.Error(err)
}

// LRUHas asserts that an item is in the cache.
func (a *LRUAssertions) LRUHas(id string) {
	item, present := a.LRU.Peek(id)
	if a.True(present, id) {
		a.Equal(id, item.ID)
	}
}

// LRUDoesNotHave asserts that an item is not in the cache.
func (a *LRUAssertions) LRUDoesNotHave(id string) {
	_, present := a.LRU.Peek(id)
	a.False(present, id)
}

// TestLRUSimple tests minimal object presence.
func TestLRUSimple(t *testing.T) {
	a := NewLRUAssertions(t, 2)
	a.PutName("Sam")

	a.LRUHas("Sam")
	a.LRUDoesNotHave("Horton")
}

// TestLRUAutoInsert tests lru.Get() adding absent items.
func TestLRUAutoInsert(t *testing.T) {
	a := NewLRUAssertions(t, 2)

	// Get (and insert) two names
	a.GetName("Marvin")
	a.GetName("Horton")

	// At this point "Marvin" and "Horton" should both be present
	a.LRUHas("Marvin")
	a.LRUHas("Horton")

	// Now add one more name; since it is a third one, the oldest
	// (Marvin) should be evicted
	a.GetName("Sam")
	a.LRUDoesNotHave("Marvin")
	a.LRUHas("Horton")
	a.LRUHas("Sam")
}

func TestLRUInsertError(t *testing.T) {
	a := NewLRUAssertions(t, 2)

	// As before
	a.GetName("Marvin")
	a.GetName("Horton")
	a.LRUHas("Marvin")
	a.LRUHas("Horton")

	// Now try to add "Sam", but the add function will return an error
	a.GetError("Sam")
	// Since no item was added, nothing will be evicted
	a.LRUHas("Marvin")
	a.LRUHas("Horton")
	a.LRUDoesNotHave("Sam")

	// We can call the erroring version of Get() but since the item
	// is present it will not fail
	a.GetPresent("Marvin")
	a.GetPresent("Horton")
}

// TestLRUOrder tests that getting an item causes it to not get evicted.
func TestLRUOrder(t *testing.T) {
	a := NewLRUAssertions(t, 2)

	a.GetName("Marvin")
	a.GetName("Horton")
	a.LRUHas("Marvin")
	a.LRUHas("Horton")

	// Do an *additional* get for Marvin, so he is more-recently-used
	a.GetName("Marvin")

	// Now when we add Sam, Horton gets pushed out
	a.GetName("Sam")
	a.LRUHas("Marvin")
	a.LRUDoesNotHave("Horton")
	a.LRUHas("Sam")
}

// TestLRURemoval does simple tests on the Remove call.
func TestLRURemoval(t *testing.T) {
	a := NewLRUAssertions(t, 2)

	// Obvious thing #1:
	a.GetName("Marvin")
	a.LRUHas("Marvin")
	a.LRU.Remove("Marvin")
	a.LRUDoesNotHave("Marvin")

	// Obvious thing #2:
	a.LRU.Remove("Sam")
	a.LRUDoesNotHave("Sam")

	// Also if we remove a more-recent thing, the
	// older-but-present thing shouldn't get evicted
	a.GetName("Marvin")
	a.GetName("Horton")
	a.LRU.Remove("Horton")
	a.GetName("Sam")
	a.LRUHas("Marvin")
	a.LRUDoesNotHave("Horton")
	a.LRUHas("Sam")
}

// TestLRUReplace checks that Put replaces an existing item in place.
func TestLRUReplace(t *testing.T) {
	a := NewLRUAssertions(t, 2)
	a.GetName("Marvin")
	a.LRU.Put(entry{ID: "Marvin", Revision: 7})
	item, present := a.LRU.Peek("Marvin")
	if a.True(present) {
		a.Equal(int64(7), item.Revision)
	}
	a.Equal(1, a.LRU.Len())
}
