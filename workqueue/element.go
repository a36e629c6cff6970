// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package workqueue

import (
	"sort"
	"time"
)

// ElementStatus is the lifecycle state of an element.
type ElementStatus int

const (
	// AnyStatus is not a real element status, but in queries
	// specifies that any status is acceptable.
	AnyStatus ElementStatus = iota

	// Available elements are waiting to be matched.  New
	// elements start here.
	Available

	// Acquired elements have been matched to a site and handed
	// to a local queue.  No further match returns them.
	Acquired

	// Done elements completed successfully.  This is terminal.
	Done

	// Failed elements completed unsuccessfully.  This is
	// terminal.
	Failed
)

// Terminal reports whether no transition leaves this status.
func (status ElementStatus) Terminal() bool {
	return status == Done || status == Failed
}

// CanTransition reports whether an element may move from one status
// to another.  Acquired->Acquired and Done->Done are allowed so that
// confirmations can be repeated.
func CanTransition(from, to ElementStatus) bool {
	switch from {
	case Available:
		return to == Acquired
	case Acquired:
		return to == Acquired || to == Available || to == Done || to == Failed
	case Done:
		return to == Done
	}
	return false
}

// Element is one unit of distributable work: a slice of a workload
// bound to specific input blocks.
type Element struct {
	// ID is the document ID of this element.
	ID string

	// Revision is the document revision this copy was read at.
	Revision int64

	SpecURL  string
	TaskName string

	// PrimaryBlock drives location affinity.  It is empty for
	// production work.
	PrimaryBlock string
	ParentBlocks []string

	// BlockLocations maps each block (primary and parents) to the
	// sites that host it.
	BlockLocations map[string][]string

	// Priority is serviced highest first.
	Priority int

	// Online is false while any referenced block is only on
	// archival storage; such elements are never matched.
	Online bool

	// Jobs is the estimated number of jobs, consumed from a
	// site's free slots when matched.
	Jobs int

	WhiteList []string
	BlackList []string

	// InsertTime is when the element was queued, used for the
	// age bonus in Score.
	InsertTime time.Time

	// UpdateTime is when the element last changed.
	UpdateTime time.Time

	Status ElementStatus

	// Subscription is the WMBS subscription created when the
	// element was acquired.
	Subscription string

	// Site is the site the element was matched to.
	Site string
}

// Blocks returns the names of all blocks this element tracks, in
// sorted order.
func (e *Element) Blocks() []string {
	blocks := make([]string, 0, len(e.BlockLocations))
	for block := range e.BlockLocations {
		blocks = append(blocks, block)
	}
	sort.Strings(blocks)
	return blocks
}

// LocationConstrained reports whether this element is tied to the
// locations of its blocks.  Production elements are not.
func (e *Element) LocationConstrained() bool {
	return e.PrimaryBlock != "" || len(e.BlockLocations) > 0
}

// CommonLocations returns the sorted intersection of the locations of
// every block of this element.
func (e *Element) CommonLocations() []string {
	var common map[string]struct{}
	for _, sites := range e.BlockLocations {
		here := make(map[string]struct{}, len(sites))
		for _, site := range sites {
			if common == nil {
				here[site] = struct{}{}
			} else if _, ok := common[site]; ok {
				here[site] = struct{}{}
			}
		}
		common = here
		if len(common) == 0 {
			break
		}
	}
	result := make([]string, 0, len(common))
	for site := range common {
		result = append(result, site)
	}
	sort.Strings(result)
	return result
}

// SiteAllowed checks the white and black lists: a site is allowed if
// it is not blacklisted and either the whitelist is empty or it
// contains the site.
func (e *Element) SiteAllowed(site string) bool {
	if contains(e.BlackList, site) {
		return false
	}
	return len(e.WhiteList) == 0 || contains(e.WhiteList, site)
}

// EligibleSites returns the sorted subset of candidate sites this
// element may run at, considering its locations and site lists but
// not capacity.
func (e *Element) EligibleSites(candidates []string) []string {
	var located map[string]struct{}
	if e.LocationConstrained() {
		located = make(map[string]struct{})
		for _, site := range e.CommonLocations() {
			located[site] = struct{}{}
		}
	}
	var result []string
	for _, site := range candidates {
		if located != nil {
			if _, ok := located[site]; !ok {
				continue
			}
		}
		if e.SiteAllowed(site) {
			result = append(result, site)
		}
	}
	sort.Strings(result)
	return result
}

// Score returns the ordering score of this element at some time.
// Higher scores are matched first.
func (e *Element) Score(now time.Time) float64 {
	age := now.Sub(e.InsertTime).Seconds()
	return float64(e.Priority) + AgeWeight*age
}

func contains(list []string, item string) bool {
	for _, candidate := range list {
		if candidate == item {
			return true
		}
	}
	return false
}
