// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package queue

import (
	"context"

	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/sirupsen/logrus"
)

// Match finds the Available elements that would be matched against
// conditions right now, in matching order, along with the capacity
// left over.  It does not change any element.
func (b *Backend) Match(ctx context.Context, conditions workqueue.Conditions) ([]workqueue.Match, workqueue.Conditions, error) {
	elements, err := b.queryView(ctx, workqueue.ViewByStatus, workqueue.Key(workqueue.StatusKey(workqueue.Available)))
	if err != nil {
		return nil, nil, err
	}
	matches, remaining := workqueue.MatchElements(elements, conditions, b.Clock.Now())
	return matches, remaining, nil
}

// GetWork refreshes block locations, matches elements against the
// free job slots in conditions, acquires each matched element, and
// creates a WMBS subscription for it.  Elements that cannot be
// acquired, because another caller got them first or the subscription
// could not be created, are left out of the result; only failures
// that prevent matching at all are returned as errors.
func (b *Backend) GetWork(ctx context.Context, conditions workqueue.Conditions) ([]workqueue.Subscription, error) {
	b.matching.Lock()
	defer b.matching.Unlock()

	err := b.updateLocationInfo(ctx)
	if err != nil {
		return nil, err
	}
	matches, _, err := b.Match(ctx, conditions)
	if err != nil {
		return nil, err
	}
	var result []workqueue.Subscription
	for _, match := range matches {
		sub, err := b.acquire(ctx, match)
		if err != nil {
			continue
		}
		result = append(result, sub)
	}
	return result, nil
}

// acquire moves one matched element from Available to Acquired and
// creates its subscription.
func (b *Backend) acquire(ctx context.Context, match workqueue.Match) (workqueue.Subscription, error) {
	element := match.Element
	log := b.Logger.WithFields(logrus.Fields{
		"element": element.ID,
		"site":    match.Site,
	})

	element.Status = workqueue.Acquired
	element.Site = match.Site
	element.UpdateTime = b.Clock.Now()
	err := b.save(ctx, element)
	if err != nil {
		if workqueue.ResultOf(err) == workqueue.Conflict {
			acquireConflicts.Inc()
			log.Debug("Element acquired elsewhere")
		} else {
			log.WithField("err", err).Warn("Could not acquire element")
		}
		return workqueue.Subscription{}, err
	}

	sub, err := b.Subscriptions.CreateSubscription(ctx, filesetName(element), workflowName(element))
	if err != nil {
		log.WithField("err", err).Warn("Could not create subscription")
		b.unacquire(ctx, element.ID, match.Site, log)
		return workqueue.Subscription{}, err
	}

	// Other writers may have touched the element since it was
	// acquired, so record the subscription with retries
	recorded, err := b.modify(ctx, element.ID, func(e *workqueue.Element) (bool, error) {
		if e.Status != workqueue.Acquired || e.Site != match.Site || e.Subscription != "" {
			return false, workqueue.ErrInvalidTransition{ID: e.ID, From: e.Status, To: workqueue.Acquired}
		}
		e.Subscription = sub.ID
		return true, nil
	})
	if err != nil {
		log.WithFields(logrus.Fields{
			"subscription": sub.ID,
			"err":          err,
		}).Warn("Could not record subscription")
		b.unacquire(ctx, element.ID, match.Site, log)
		return workqueue.Subscription{}, err
	}
	element = recorded
	sub.ElementID = element.ID
	sub.Site = match.Site
	sub.Jobs = element.Jobs
	elementsAcquired.WithLabelValues(match.Site).Inc()
	return sub, nil
}

// unacquire puts an element acquired for site back to Available,
// unless something else has already moved it on.
func (b *Backend) unacquire(ctx context.Context, id, site string, log logrus.FieldLogger) {
	_, err := b.modify(ctx, id, func(e *workqueue.Element) (bool, error) {
		if e.Status != workqueue.Acquired || e.Site != site {
			return false, nil
		}
		e.Status = workqueue.Available
		e.Site = ""
		e.Subscription = ""
		return true, nil
	})
	if err != nil {
		log.WithField("err", err).Error("Could not release element")
	}
}

// filesetName names the WMBS fileset of an element after its primary
// block.  Production elements get their own fileset.
func filesetName(element *workqueue.Element) string {
	if element.PrimaryBlock != "" {
		return element.PrimaryBlock
	}
	return element.ID
}

// workflowName names the WMBS workflow of an element after its
// workload and task.
func workflowName(element *workqueue.Element) string {
	if element.TaskName == "" {
		return element.SpecURL
	}
	return element.SpecURL + "#" + element.TaskName
}

// GotWork confirms that the agent owning an acquired element has it.
// The handle is an element ID or a subscription ID.  Confirming an
// element that was never acquired is an ErrInvalidTransition.
func (b *Backend) GotWork(ctx context.Context, handle string) error {
	return b.transition(ctx, handle, workqueue.Acquired)
}

// DoneWork marks an acquired element as successfully finished.
// Repeating it is harmless.
func (b *Backend) DoneWork(ctx context.Context, handle string) error {
	return b.transition(ctx, handle, workqueue.Done)
}

// FailWork marks an acquired element as permanently failed.
func (b *Backend) FailWork(ctx context.Context, handle string) error {
	return b.transition(ctx, handle, workqueue.Failed)
}

// ReleaseWork returns an acquired element to Available so that a
// later GetWork can match it again, dropping its subscription.
func (b *Backend) ReleaseWork(ctx context.Context, handle string) error {
	return b.transition(ctx, handle, workqueue.Available)
}

func (b *Backend) transition(ctx context.Context, handle string, to workqueue.ElementStatus) error {
	element, err := b.modify(ctx, handle, func(element *workqueue.Element) (bool, error) {
		from := element.Status
		// Only GetWork acquires available elements
		if !workqueue.CanTransition(from, to) || (from == workqueue.Available && to == workqueue.Acquired) {
			return false, workqueue.ErrInvalidTransition{ID: element.ID, From: from, To: to}
		}
		if from == to {
			return false, nil
		}
		element.Status = to
		if to == workqueue.Available {
			element.Subscription = ""
			element.Site = ""
		}
		return true, nil
	})
	if err != nil {
		b.Logger.WithFields(logrus.Fields{
			"element": handle,
			"status":  to.String(),
			"err":     err,
		}).Info("Element status not changed")
		return err
	}
	elementTransitions.WithLabelValues(to.String()).Inc()
	b.Logger.WithFields(logrus.Fields{
		"element": element.ID,
		"status":  to.String(),
	}).Debug("Element status changed")
	return nil
}
