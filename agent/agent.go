// Copyright 2016 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

// Package agent provides the local-agent side of the work queue: a
// loop that asks a queue for as much work as its sites have free job
// slots, runs each subscription it gets, and reports the outcome.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// ErrRelease may be returned (possibly wrapped) by a Handler to give
// its subscription back to the queue rather than failing it.
var ErrRelease = errors.New("release work")

// Queue is the part of the work queue an agent talks to.  Both
// *queue.WorkQueue and *restclient.Client implement it.
type Queue interface {
	GetWork(ctx context.Context, conditions workqueue.Conditions) ([]workqueue.Subscription, error)
	GotWork(ctx context.Context, handle string) workqueue.Result
	DoneWork(ctx context.Context, handle string) workqueue.Result
	FailWork(ctx context.Context, handle string) workqueue.Result
	ReleaseWork(ctx context.Context, handle string) workqueue.Result
}

// Agent pulls work from a Queue.
type Agent struct {
	// Queue is where work comes from.  This field is required.
	Queue Queue

	// Sites maps each site this agent schedules for to its total
	// number of job slots.  While subscriptions run, their jobs
	// are charged against their site.
	Sites workqueue.Conditions

	// Handler runs one subscription.  Returning nil marks the
	// element Done.  Returning ErrRelease, or returning anything
	// after the context is cancelled, puts it back in the queue.
	// Any other error marks it Failed.  This field is required.
	Handler func(context.Context, workqueue.Subscription) error

	// AgentID names this agent in logs.  If unset, a UUID is
	// generated.
	AgentID string

	// PollInterval states how often the agent asks for more work
	// while it has free slots.  If unset, defaults to 1 minute.
	PollInterval time.Duration

	// Clock defines a time source for the agent.  Only test code
	// should need to set this.
	Clock clock.Clock

	// Logger receives queue and handler problems.  If unset, uses
	// the logrus standard logger.
	Logger logrus.FieldLogger

	// running holds the subscriptions currently being handled,
	// keyed by subscription ID.  It is only touched by Run.
	running map[string]workqueue.Subscription
}

// setDefaults sets default values for any Agent fields that are
// uninitialized.
func (a *Agent) setDefaults() {
	if a.AgentID == "" {
		a.AgentID = uuid.NewV4().String()
	}
	if a.PollInterval == time.Duration(0) {
		a.PollInterval = time.Minute
	}
	if a.Clock == nil {
		a.Clock = clock.New()
	}
	if a.Logger == nil {
		a.Logger = logrus.StandardLogger()
	}
	a.Logger = a.Logger.WithField("agent", a.AgentID)
	a.running = make(map[string]workqueue.Subscription)
}

// free returns the job slots not used by running subscriptions.
func (a *Agent) free() workqueue.Conditions {
	free := a.Sites.Clone()
	for _, sub := range a.running {
		if _, ok := free[sub.Site]; ok {
			free.Subtract(sub.Site, sub.Jobs)
		}
	}
	return free
}

// Run gets and runs work until ctx is cancelled.  It then waits for
// running handlers, whose contexts are also cancelled, to return and
// report, and returns nil.  It returns an error only if the agent is
// not configured.
func (a *Agent) Run(ctx context.Context) error {
	if a.Queue == nil {
		return errors.New("agent has no queue")
	}
	if a.Handler == nil {
		return errors.New("agent has no handler")
	}
	a.setDefaults()

	finished := make(chan string)
	ticker := a.Clock.Ticker(a.PollInterval)
	defer ticker.Stop()

	a.poll(ctx, finished)
	for {
		select {
		case <-ctx.Done():
			for len(a.running) > 0 {
				delete(a.running, <-finished)
			}
			return nil

		case id := <-finished:
			delete(a.running, id)
			a.poll(ctx, finished)

		case <-ticker.C:
			a.poll(ctx, finished)
		}
	}
}

// poll asks the queue for work for the free slots and starts a
// goroutine for each subscription it gets.
func (a *Agent) poll(ctx context.Context, finished chan<- string) {
	free := a.free()
	if free.Total() == 0 {
		return
	}
	subs, err := a.Queue.GetWork(ctx, free)
	if err != nil {
		a.Logger.WithField("err", err).Warn("Could not get work")
		return
	}
	for _, sub := range subs {
		result := a.Queue.GotWork(ctx, sub.ID)
		if !result.OK() {
			a.Logger.WithFields(logrus.Fields{
				"subscription": sub.ID,
				"result":       result.String(),
			}).Warn("Could not confirm work")
			a.release(ctx, sub)
			continue
		}
		a.running[sub.ID] = sub
		go a.doWork(ctx, sub, finished)
	}
}

// release hands an unconfirmed subscription back to the queue, by
// subscription ID or, if that is unknown, by element ID.
func (a *Agent) release(ctx context.Context, sub workqueue.Subscription) {
	result := a.Queue.ReleaseWork(ctx, sub.ID)
	if result == workqueue.NotFound && sub.ElementID != "" {
		result = a.Queue.ReleaseWork(ctx, sub.ElementID)
	}
	if !result.OK() {
		a.Logger.WithFields(logrus.Fields{
			"subscription": sub.ID,
			"element":      sub.ElementID,
			"result":       result.String(),
		}).Error("Could not release work")
	}
}

// doWork runs the handler for one subscription and reports its
// outcome.  It assumes it is running in its own goroutine, and
// signals finished with the subscription ID immediately before
// returning.
func (a *Agent) doWork(ctx context.Context, sub workqueue.Subscription, finished chan<- string) {
	defer func() {
		finished <- sub.ID
	}()

	err := a.Handler(ctx, sub)

	// Report even if ctx is already cancelled
	report := context.Background()
	var result workqueue.Result
	switch {
	case err == nil:
		result = a.Queue.DoneWork(report, sub.ID)
	case errors.Is(err, ErrRelease), ctx.Err() != nil:
		result = a.Queue.ReleaseWork(report, sub.ID)
	default:
		a.Logger.WithFields(logrus.Fields{
			"subscription": sub.ID,
			"element":      sub.ElementID,
			"err":          err,
		}).Warn("Work failed")
		result = a.Queue.FailWork(report, sub.ID)
	}
	if !result.OK() {
		a.Logger.WithFields(logrus.Fields{
			"subscription": sub.ID,
			"result":       result.String(),
		}).Error("Could not report work")
	}
}
