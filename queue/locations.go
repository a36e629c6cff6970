// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package queue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/hashicorp/go-multierror"
	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"
)

// UpdateLocationInfo re-queries the location of every block of every
// Available element and replaces each element's stored location list
// with the fresh one.  Each distinct block is looked up once.  A
// block whose lookup fails keeps its previous list; these failures
// are logged, not returned.  Elements changed by someone else during
// the refresh are skipped until the next one.
func (b *Backend) UpdateLocationInfo(ctx context.Context) error {
	b.matching.Lock()
	defer b.matching.Unlock()
	return b.updateLocationInfo(ctx)
}

func (b *Backend) updateLocationInfo(ctx context.Context) error {
	elements, err := b.queryView(ctx, workqueue.ViewByStatus, workqueue.Key(workqueue.StatusKey(workqueue.Available)))
	if err != nil {
		return err
	}

	blocks := make(map[string]struct{})
	for _, element := range elements {
		for block := range element.BlockLocations {
			blocks[block] = struct{}{}
		}
	}
	names := make([]string, 0, len(blocks))
	for block := range blocks {
		names = append(names, block)
	}
	sort.Strings(names)

	fresh := make(map[string][]string, len(names))
	var failures *multierror.Error
	for _, block := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		sites, err := b.Locations.BlockLocations(ctx, block)
		if err != nil {
			locationFailures.Inc()
			failures = multierror.Append(failures, workqueue.ErrLocationService{Block: block, Err: err})
			continue
		}
		sites = append([]string{}, sites...)
		sort.Strings(sites)
		fresh[block] = sites
	}
	if failures != nil {
		b.Logger.WithFields(logrus.Fields{
			"failed": len(failures.Errors),
			"blocks": len(names),
			"err":    failures.ErrorOrNil(),
		}).Warn("Some block locations could not be refreshed")
	}

	for _, element := range elements {
		changed := false
		for block, old := range element.BlockLocations {
			sites, ok := fresh[block]
			if !ok || sameSites(old, sites) {
				continue
			}
			element.BlockLocations[block] = sites
			changed = true
		}
		if !changed {
			continue
		}
		element.UpdateTime = b.Clock.Now()
		err = b.save(ctx, element)
		switch workqueue.ResultOf(err) {
		case workqueue.OK:
		case workqueue.Conflict, workqueue.NotFound:
			b.Logger.WithField("element", element.ID).Debug("Element changed during location refresh")
		default:
			return err
		}
	}
	return nil
}

func sameSites(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	a = append([]string(nil), a...)
	sort.Strings(a)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RunLocationRefresh calls UpdateLocationInfo every interval until
// ctx is cancelled, and then returns ctx's error.  After a failed
// refresh it retries sooner, backing off up to interval.  interval
// must be positive.
func (b *Backend) RunLocationRefresh(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return workqueue.ErrConfiguration{Reason: fmt.Sprintf("location refresh interval %v is not positive", interval)}
	}
	retry := &backoff.Backoff{
		Min:    interval / 16,
		Max:    interval,
		Factor: 2,
		Jitter: true,
	}
	for {
		wait := interval
		if err := b.UpdateLocationInfo(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait = retry.Duration()
			b.Logger.WithFields(logrus.Fields{
				"err":   err,
				"retry": wait,
			}).Error("Location refresh failed")
		} else {
			retry.Reset()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.Clock.After(wait):
		}
	}
}
