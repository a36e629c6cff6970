// Statistics for queue elements.
//
// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package workqueue

import (
	"sort"
)

// SummaryRecord is a single piece of summary data, recording how
// many elements of some workload were in some status and how many
// jobs they represent.
type SummaryRecord struct {
	SpecURL string
	Status  ElementStatus
	Count   int
	Jobs    int
}

// Summary is a summary of element statuses.  The records are in no
// particular order and never have zero count.
type Summary []SummaryRecord

// Sort sorts the records of a summary in place.
func (s Summary) Sort() {
	less := func(i, j int) bool {
		if s[i].SpecURL != s[j].SpecURL {
			return s[i].SpecURL < s[j].SpecURL
		}
		return s[i].Status < s[j].Status
	}
	sort.Slice(s, less)
}

// Summarize builds a summary from a set of elements.
func Summarize(elements []*Element) Summary {
	type key struct {
		spec   string
		status ElementStatus
	}
	index := make(map[key]int)
	var result Summary
	for _, e := range elements {
		k := key{spec: e.SpecURL, status: e.Status}
		i, ok := index[k]
		if !ok {
			i = len(result)
			index[k] = i
			result = append(result, SummaryRecord{SpecURL: e.SpecURL, Status: e.Status})
		}
		result[i].Count++
		result[i].Jobs += e.Jobs
	}
	result.Sort()
	return result
}
