// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package dbs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dmwm/go-workqueue/workqueue"
)

// ErrUnknownDataset is returned by Static for datasets it was never
// told about.
type ErrUnknownDataset struct {
	Dataset string
}

func (err ErrUnknownDataset) Error() string {
	return fmt.Sprintf("unknown dataset %v", err.Dataset)
}

// Static is an in-memory workqueue.BlockService.  It answers from
// whatever blocks and locations it has been given, can be told to
// fail for specific names, and counts location lookups.  It is safe
// for concurrent use.
type Static struct {
	lock      sync.Mutex
	datasets  map[string][]workqueue.BlockInfo
	locations map[string][]string
	failures  map[string]error
	calls     map[string]int
}

// NewStatic creates an empty static block service.
func NewStatic() *Static {
	return &Static{
		datasets:  make(map[string][]workqueue.BlockInfo),
		locations: make(map[string][]string),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

// AddBlock records a block of a dataset, hosted at some sites.
func (s *Static) AddBlock(dataset string, info workqueue.BlockInfo, sites ...string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.datasets[dataset] = append(s.datasets[dataset], info)
	s.locations[info.Name] = append([]string(nil), sites...)
}

// SetLocations replaces the locations of a block.
func (s *Static) SetLocations(block string, sites ...string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.locations[block] = append([]string(nil), sites...)
}

// Fail makes every later lookup of name, a block or a dataset, return
// err.  A nil err clears the failure.
func (s *Static) Fail(name string, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err == nil {
		delete(s.failures, name)
	} else {
		s.failures[name] = err
	}
}

// LocationCalls returns how many times BlockLocations was called for
// block.
func (s *Static) LocationCalls(block string) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.calls[block]
}

// BlockLocations returns the recorded sites of a block.  Unknown
// blocks have no locations.
func (s *Static) BlockLocations(ctx context.Context, block string) ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.calls[block]++
	if err := s.failures[block]; err != nil {
		return nil, err
	}
	return append([]string{}, s.locations[block]...), nil
}

// DatasetBlocks returns every block recorded for dataset.
func (s *Static) DatasetBlocks(ctx context.Context, dbsURL, dataset string) ([]workqueue.BlockInfo, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.failures[dataset]; err != nil {
		return nil, err
	}
	blocks, ok := s.datasets[dataset]
	if !ok {
		return nil, ErrUnknownDataset{Dataset: dataset}
	}
	result := make([]workqueue.BlockInfo, len(blocks))
	for i, block := range blocks {
		result[i] = block
		result[i].Parents = append([]string(nil), block.Parents...)
	}
	return result, nil
}

// DatasetInfo sums the blocks of dataset.  Its parents are the union
// of the blocks' parents.
func (s *Static) DatasetInfo(ctx context.Context, dbsURL, dataset string) (workqueue.BlockInfo, error) {
	blocks, err := s.DatasetBlocks(ctx, dbsURL, dataset)
	if err != nil {
		return workqueue.BlockInfo{}, err
	}
	info := workqueue.BlockInfo{Name: dataset}
	parents := make(map[string]struct{})
	for _, block := range blocks {
		info.NumEvents += block.NumEvents
		info.NumFiles += block.NumFiles
		for _, parent := range block.Parents {
			parents[parent] = struct{}{}
		}
	}
	for parent := range parents {
		info.Parents = append(info.Parents, parent)
	}
	sort.Strings(info.Parents)
	return info, nil
}
