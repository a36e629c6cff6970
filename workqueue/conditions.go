// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package workqueue

import "sort"

// Conditions describes free capacity: a map from site name to the
// number of job slots available there.
type Conditions map[string]int

// Clone returns an independent copy.
func (c Conditions) Clone() Conditions {
	result := make(Conditions, len(c))
	for site, slots := range c {
		result[site] = slots
	}
	return result
}

// Sites returns the site names with at least one free slot, sorted.
func (c Conditions) Sites() []string {
	sites := make([]string, 0, len(c))
	for site, slots := range c {
		if slots > 0 {
			sites = append(sites, site)
		}
	}
	sort.Strings(sites)
	return sites
}

// Subtract removes slots from a site, never going below zero.
func (c Conditions) Subtract(site string, slots int) {
	remaining := c[site] - slots
	if remaining < 0 {
		remaining = 0
	}
	c[site] = remaining
}

// Merge adds the slots of other into c.
func (c Conditions) Merge(other Conditions) {
	for site, slots := range other {
		c[site] += slots
	}
}

// Total returns the number of free slots across all sites.
func (c Conditions) Total() int {
	total := 0
	for _, slots := range c {
		if slots > 0 {
			total += slots
		}
	}
	return total
}
