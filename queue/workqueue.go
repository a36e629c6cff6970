// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package queue

import (
	"context"
	"fmt"

	"github.com/dmwm/go-workqueue/splitter"
	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/sirupsen/logrus"
)

// WorkQueue is the interface external callers, ReqMgr and local
// agents, use.  It turns workloads into elements and reports the
// outcome of status changes as workqueue.Result values rather than
// errors.
type WorkQueue struct {
	Backend *Backend

	// Metadata answers dataset and block queries while splitting.
	Metadata workqueue.MetadataService

	// SplitByBlock makes one element per input block rather than
	// one per input dataset.
	SplitByBlock bool
}

// New creates a WorkQueue that splits by block.
func New(backend *Backend, metadata workqueue.MetadataService) *WorkQueue {
	return &WorkQueue{
		Backend:      backend,
		Metadata:     metadata,
		SplitByBlock: true,
	}
}

// QueueWork splits every task of a workload and inserts one element
// per chunk, returning the number of elements created.  Every task
// is split before anything is inserted, so a workload with any
// invalid task queues nothing.
func (q *WorkQueue) QueueWork(ctx context.Context, workload workqueue.Workload) (int, error) {
	type split struct {
		task   workqueue.Task
		chunks []workqueue.Chunk
	}
	var splits []split
	for _, task := range workload.Tasks() {
		chunks, err := splitter.Split(ctx, task, q.SplitByBlock, q.Metadata)
		if err != nil {
			return 0, fmt.Errorf("workload %v: %w", workload.Name(), err)
		}
		splits = append(splits, split{task: task, chunks: chunks})
	}

	count := 0
	for _, s := range splits {
		for _, chunk := range s.chunks {
			_, err := q.Backend.InsertElement(ctx, workqueue.ElementParams{
				SpecURL:      workload.URL(),
				TaskName:     s.task.Name(),
				PrimaryBlock: chunk.Name,
				ParentBlocks: chunk.Parents,
				Priority:     workload.Priority(),
				Jobs:         chunk.Jobs,
				WhiteList:    s.task.SiteWhitelist(),
				BlackList:    s.task.SiteBlacklist(),
			})
			if err != nil {
				return count, err
			}
			count++
		}
	}
	q.Backend.Logger.WithFields(logrus.Fields{
		"workload": workload.Name(),
		"elements": count,
	}).Info("Queued work")
	return count, nil
}

// GetWork hands out work for the free job slots in conditions.  See
// Backend.GetWork.
func (q *WorkQueue) GetWork(ctx context.Context, conditions workqueue.Conditions) ([]workqueue.Subscription, error) {
	return q.Backend.GetWork(ctx, conditions)
}

// GotWork confirms an acquired element, by element or subscription
// ID.
func (q *WorkQueue) GotWork(ctx context.Context, handle string) workqueue.Result {
	return workqueue.ResultOf(q.Backend.GotWork(ctx, handle))
}

// DoneWork marks an element successfully finished.
func (q *WorkQueue) DoneWork(ctx context.Context, handle string) workqueue.Result {
	return workqueue.ResultOf(q.Backend.DoneWork(ctx, handle))
}

// FailWork marks an element permanently failed.
func (q *WorkQueue) FailWork(ctx context.Context, handle string) workqueue.Result {
	return workqueue.ResultOf(q.Backend.FailWork(ctx, handle))
}

// ReleaseWork returns an element to the queue.
func (q *WorkQueue) ReleaseWork(ctx context.Context, handle string) workqueue.Result {
	return workqueue.ResultOf(q.Backend.ReleaseWork(ctx, handle))
}

// SetPriority changes the priority of an element.
func (q *WorkQueue) SetPriority(ctx context.Context, id string, priority int) workqueue.Result {
	return workqueue.ResultOf(q.Backend.SetPriority(ctx, id, priority))
}
