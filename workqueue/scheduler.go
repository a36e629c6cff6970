// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package workqueue

import (
	"sort"
	"time"
)

// AgeWeight is the score bonus an element earns per second of age.
const AgeWeight = 0.01

// Match pairs an element with the site it was matched to.
type Match struct {
	Element *Element
	Site    string
}

// isElementBefore returns true if a should be matched before b at
// time now.
func isElementBefore(a, b *Element, now time.Time) bool {
	sa, sb := a.Score(now), b.Score(now)
	if sa != sb {
		return sa > sb
	}
	if !a.InsertTime.Equal(b.InsertTime) {
		return a.InsertTime.Before(b.InsertTime)
	}
	return a.ID < b.ID
}

// SortElements orders elements in place for matching at time now.
// The ordering key is
//
//     priority + AgeWeight * age in seconds
//
// descending, so priority dominates and age breaks ties, with a very
// old element eventually overtaking a marginally more important new
// one.  Equal scores fall back to the older element, then to ID.
func SortElements(elements []*Element, now time.Time) {
	sort.SliceStable(elements, func(i, j int) bool {
		return isElementBefore(elements[i], elements[j], now)
	})
}

// MatchElements chooses elements to run against free site capacity.
// It works as follows:
//
//     * Sort the elements with SortElements
//     * Skip elements that are not Available or are not online
//     * For each remaining element, find the sites in conditions
//       that are in its common location set (any site, for
//       production work), pass its white and black lists, and have
//       at least as many free slots as the element has jobs
//     * Pick the one of those with the most free slots, breaking
//       ties by name, and charge the element's jobs to it
//
// The conditions map passed in is not modified; the capacity left
// over after matching is returned instead.  The elements slice is
// reordered.
func MatchElements(elements []*Element, conditions Conditions, now time.Time) ([]Match, Conditions) {
	remaining := conditions.Clone()
	var matches []Match

	SortElements(elements, now)
	for _, element := range elements {
		if element.Status != Available || !element.Online {
			continue
		}
		jobs := element.Jobs
		if jobs < 0 {
			jobs = 0
		}
		bestSite := ""
		bestSlots := 0
		for _, site := range element.EligibleSites(remaining.Sites()) {
			slots := remaining[site]
			if slots < jobs {
				continue
			}
			// Sites come back sorted, so strict > keeps the
			// lowest name among equals
			if slots > bestSlots {
				bestSite = site
				bestSlots = slots
			}
		}
		if bestSite == "" {
			continue
		}
		remaining.Subtract(bestSite, jobs)
		matches = append(matches, Match{Element: element, Site: bestSite})
	}
	return matches, remaining
}
