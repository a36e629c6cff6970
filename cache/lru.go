// Copyright 2016-2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package cache

// This file provides a simple LRU cache of documents, keyed by
// document ID.

import (
	"container/list"
	"sync"
)

// entry is one cached document.  Its data is kept encoded so that
// every reader gets an independent copy.
type entry struct {
	ID       string
	Revision int64
	Data     []byte
}

// lru is a least-recently-used cache with a fixed capacity.  The cache
// can be safely accessed from multiple goroutines.
type lru struct {
	size      int
	lock      sync.RWMutex
	evictList *list.List
	index     map[string]*list.Element
}

func newLRU(size int) *lru {
	return &lru{
		size:      size,
		evictList: list.New(),
		index:     make(map[string]*list.Element),
	}
}

// Get retrieves an item from the cache.  If it is not present, calls
// the fetch function, and if that succeeds, saves the item and
// returns it.  This should return an error only if the item is not
// present and the fetch function returns an error.
func (lru *lru) Get(id string, fetch func(string) (entry, error)) (entry, error) {
	// This sadly happens under a writer lock, since we need to move
	// the item to the back of the list if it is present
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[id]; present {
		lru.evictList.MoveToBack(element)
		return element.Value.(entry), nil
	}

	item, err := fetch(id)
	if err != nil {
		return item, err
	}
	lru.add(item)
	return item, nil
}

// Peek looks for an item in the cache and returns it if present.
// This runs under a reader lock and does not affect the recency of
// the item.
func (lru *lru) Peek(id string) (entry, bool) {
	lru.lock.RLock()
	defer lru.lock.RUnlock()

	if element, present := lru.index[id]; present {
		return element.Value.(entry), true
	}
	return entry{}, false
}

// Put adds an item to the LRU cache, possibly evicting something.
func (lru *lru) Put(item entry) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	// Are we just updating an existing item?
	if element, present := lru.index[item.ID]; present {
		element.Value = item
		lru.evictList.MoveToBack(element)
		return
	}

	lru.add(item)
}

// Remove takes an item out of the cache.  It does nothing if that
// ID is not cached.
func (lru *lru) Remove(id string) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[id]; present {
		delete(lru.index, id)
		lru.evictList.Remove(element)
	}
}

// Len returns the number of cached items.
func (lru *lru) Len() int {
	lru.lock.RLock()
	defer lru.lock.RUnlock()
	return len(lru.index)
}

// add is an internal helper, running under the write lock, that adds a
// new item to the cache.  The item is known to not already exist.
func (lru *lru) add(item entry) {
	element := lru.evictList.PushBack(item)
	lru.index[item.ID] = element

	// If this caused the cache to go over size, start evicting items
	for len(lru.index) > lru.size {
		head := lru.evictList.Front()
		old := head.Value.(entry)
		delete(lru.index, old.ID)
		lru.evictList.Remove(head)
	}
}
