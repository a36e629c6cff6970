// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

// Package splitter turns workload tasks into work chunks, one per
// input block (or dataset), each of which becomes a queue element.
package splitter

import (
	"context"
	"fmt"

	"github.com/dmwm/go-workqueue/workqueue"
)

// Splitting algorithm names understood by Split.
const (
	EventBased = "EventBased"
	FileBased  = "FileBased"
)

// EstimateJobs returns how many jobs of unit size it takes to cover
// total, which is the ceiling of total/unit.  A zero or negative total
// needs no jobs.  unit must be positive.
func EstimateJobs(unit, total int) int {
	if total <= 0 {
		return 0
	}
	return (total + unit - 1) / unit
}

// Split decomposes a task into chunks.  If the task has no input
// dataset it is a production task and produces a single chunk with
// no name.  Otherwise the input dataset is looked up in the task's
// DBS instance, either as a whole (splitByBlock false) or block by
// block.
//
// Returns an instance of workqueue.ErrConfiguration if the task's
// site lists overlap, its splitting algorithm or size is unusable, a
// production task lacks a total event count, or parent processing is
// required but the metadata lists no parents.  Nothing is returned
// alongside an error.
func Split(ctx context.Context, task workqueue.Task, splitByBlock bool, dbs workqueue.MetadataService) ([]workqueue.Chunk, error) {
	if err := checkSiteLists(task); err != nil {
		return nil, err
	}
	unit := task.SplittingParameters().Size
	if unit <= 0 {
		return nil, workqueue.ErrConfiguration{
			Reason: fmt.Sprintf("task %v: splitting size must be positive, got %v", task.Name(), unit),
		}
	}

	dataset := task.InputDataset()
	if dataset == nil {
		return splitProduction(task, unit)
	}

	algorithm := task.SplittingAlgorithm()
	if algorithm != EventBased && algorithm != FileBased {
		return nil, workqueue.ErrConfiguration{
			Reason: fmt.Sprintf("task %v: unsupported splitting algorithm %q", task.Name(), algorithm),
		}
	}

	var units []workqueue.BlockInfo
	if splitByBlock {
		blocks, err := dbs.DatasetBlocks(ctx, task.DBSURL(), dataset.Path())
		if err != nil {
			return nil, fmt.Errorf("listing blocks of %v: %w", dataset.Path(), err)
		}
		units = blocks
	} else {
		info, err := dbs.DatasetInfo(ctx, task.DBSURL(), dataset.Path())
		if err != nil {
			return nil, fmt.Errorf("looking up %v: %w", dataset.Path(), err)
		}
		if info.Name == "" {
			info.Name = dataset.Path()
		}
		units = []workqueue.BlockInfo{info}
	}

	chunks := make([]workqueue.Chunk, 0, len(units))
	for _, info := range units {
		total := info.NumFiles
		if algorithm == EventBased {
			total = info.NumEvents
		}
		chunk := workqueue.Chunk{
			Name: info.Name,
			Jobs: EstimateJobs(unit, total),
		}
		if task.ParentProcessing() {
			if len(info.Parents) == 0 {
				return nil, workqueue.ErrConfiguration{
					Reason: fmt.Sprintf("task %v: parent processing requested but %v has no parents", task.Name(), info.Name),
				}
			}
			chunk.Parents = append([]string(nil), info.Parents...)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// splitProduction handles a task with no input data.
func splitProduction(task workqueue.Task, unit int) ([]workqueue.Chunk, error) {
	if task.SplittingAlgorithm() != EventBased {
		return nil, workqueue.ErrConfiguration{
			Reason: fmt.Sprintf("task %v: production tasks must use %v splitting, not %q",
				task.Name(), EventBased, task.SplittingAlgorithm()),
		}
	}
	events, ok := task.TotalEvents()
	if !ok {
		return nil, workqueue.ErrConfiguration{
			Reason: fmt.Sprintf("task %v: production task has no total events", task.Name()),
		}
	}
	return []workqueue.Chunk{{Jobs: EstimateJobs(unit, events)}}, nil
}

// checkSiteLists fails if any whitelisted site is also blacklisted.
func checkSiteLists(task workqueue.Task) error {
	white := task.SiteWhitelist()
	if len(white) == 0 {
		return nil
	}
	black := make(map[string]struct{}, len(task.SiteBlacklist()))
	for _, site := range task.SiteBlacklist() {
		black[site] = struct{}{}
	}
	for _, site := range white {
		if _, ok := black[site]; ok {
			return workqueue.ErrConfiguration{
				Reason: fmt.Sprintf("task %v: site %v is both whitelisted and blacklisted", task.Name(), site),
			}
		}
	}
	return nil
}
