// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package queue

import (
	"context"
	"errors"
	"io/ioutil"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dmwm/go-workqueue/dbs"
	"github.com/dmwm/go-workqueue/memory"
	"github.com/dmwm/go-workqueue/wmbs"
	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	Clock   *clock.Mock
	Store   workqueue.DocumentStore
	Blocks  *dbs.Static
	WMBS    *wmbs.Factory
	Backend *Backend
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.Out = ioutil.Discard
	return logger
}

func newFixture() *fixture {
	f := &fixture{
		Clock:  clock.NewMock(),
		Store:  memory.New(workqueue.ElementViews),
		Blocks: dbs.NewStatic(),
		WMBS:   wmbs.New(),
	}
	f.Clock.Add(1500000000 * time.Second)
	f.Backend = f.newBackend()
	return f
}

// newBackend creates another Backend on the same store, as a second
// daemon would.
func (f *fixture) newBackend() *Backend {
	backend := NewBackendWithClock(f.Store, f.Blocks, f.WMBS, f.Clock)
	backend.Logger = quietLogger()
	return backend
}

func (f *fixture) insert(t *testing.T, params workqueue.ElementParams) *workqueue.Element {
	if params.SpecURL == "" {
		params.SpecURL = "http://reqmgr/spec"
	}
	element, err := f.Backend.InsertElement(context.Background(), params)
	require.NoError(t, err)
	return element
}

func (f *fixture) element(t *testing.T, handle string) *workqueue.Element {
	element, err := f.Backend.Element(context.Background(), handle)
	require.NoError(t, err)
	return element
}

func subscriptionElements(subs []workqueue.Subscription) []string {
	var ids []string
	for _, sub := range subs {
		ids = append(ids, sub.ElementID)
	}
	return ids
}

func TestInsertElement(t *testing.T) {
	f := newFixture()
	e := f.insert(t, workqueue.ElementParams{
		TaskName:     "DataProcessing",
		PrimaryBlock: "/a/b/RAW#1",
		ParentBlocks: []string{"/a/p/RAW#1"},
		Priority:     5,
		Jobs:         12,
		WhiteList:    []string{"T1_US_FNAL"},
	})
	assert.NotEmpty(t, e.ID)
	assert.NotZero(t, e.Revision)

	stored := f.element(t, e.ID)
	assert.Equal(t, workqueue.Available, stored.Status)
	assert.True(t, stored.Online)
	assert.Equal(t, 5, stored.Priority)
	assert.Equal(t, 12, stored.Jobs)
	assert.True(t, f.Clock.Now().Equal(stored.InsertTime))
	assert.Equal(t, []string{"/a/b/RAW#1", "/a/p/RAW#1"}, stored.Blocks())
	assert.Empty(t, stored.CommonLocations())
}

// TestEndToEnd inserts an element, acquires it, finishes it, and
// checks that it is never handed out twice.
func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.Blocks.SetLocations("b1", "siteA")
	e := f.insert(t, workqueue.ElementParams{PrimaryBlock: "b1", Priority: 1, Jobs: 1})

	subs, err := f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": 1000})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, e.ID, subs[0].ElementID)
	assert.Equal(t, "siteA", subs[0].Site)
	assert.Equal(t, "b1", subs[0].Fileset)
	assert.Equal(t, "http://reqmgr/spec", subs[0].Workflow)

	stored := f.element(t, e.ID)
	assert.Equal(t, workqueue.Acquired, stored.Status)
	assert.Equal(t, subs[0].ID, stored.Subscription)
	assert.Equal(t, "siteA", stored.Site)

	again, err := f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": 1000})
	require.NoError(t, err)
	assert.Empty(t, again)

	// Finish it by subscription ID
	require.NoError(t, f.Backend.DoneWork(ctx, subs[0].ID))
	assert.Equal(t, workqueue.Done, f.element(t, e.ID).Status)

	again, err = f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": 1000})
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestPriorityOrdering(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.Blocks.SetLocations("b1", "siteA")
	f.Blocks.SetLocations("b2", "siteA")
	low := f.insert(t, workqueue.ElementParams{PrimaryBlock: "b1", Priority: 1, Jobs: 10})
	high := f.insert(t, workqueue.ElementParams{PrimaryBlock: "b2", Priority: 2, Jobs: 10})

	require.NoError(t, f.Backend.UpdateLocationInfo(ctx))
	matches, remaining, err := f.Backend.Match(ctx, workqueue.Conditions{"siteA": 20})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, high.ID, matches[0].Element.ID)
	assert.Equal(t, low.ID, matches[1].Element.ID)
	assert.Equal(t, workqueue.Conditions{"siteA": 0}, remaining)

	subs, err := f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": 10})
	require.NoError(t, err)
	assert.Equal(t, []string{high.ID}, subscriptionElements(subs))
}

func TestCapacityConservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.Blocks.SetLocations("b1", "siteA", "siteB")
	for i := 0; i < 5; i++ {
		f.insert(t, workqueue.ElementParams{PrimaryBlock: "b1", Jobs: 3})
		f.Clock.Add(time.Second)
	}

	subs, err := f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": 10, "siteB": 4})
	require.NoError(t, err)
	jobs := map[string]int{}
	for _, sub := range subs {
		jobs[sub.Site] += f.element(t, sub.ElementID).Jobs
	}
	assert.Equal(t, map[string]int{"siteA": 9, "siteB": 3}, jobs)
}

func TestSiteLists(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.Blocks.SetLocations("b1", "siteA", "siteB", "siteC")
	white := f.insert(t, workqueue.ElementParams{PrimaryBlock: "b1", Jobs: 1, WhiteList: []string{"siteB"}})
	black := f.insert(t, workqueue.ElementParams{PrimaryBlock: "b1", Jobs: 1, BlackList: []string{"siteA", "siteB"}})

	subs, err := f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": 5, "siteB": 5, "siteC": 5})
	require.NoError(t, err)
	sites := map[string]string{}
	for _, sub := range subs {
		sites[sub.ElementID] = sub.Site
	}
	assert.Equal(t, map[string]string{white.ID: "siteB", black.ID: "siteC"}, sites)
}

func TestProductionRunsAnywhere(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	e := f.insert(t, workqueue.ElementParams{TaskName: "Production", Jobs: 4})

	subs, err := f.Backend.GetWork(ctx, workqueue.Conditions{"siteZ": 4})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, e.ID, subs[0].Fileset)
	assert.Equal(t, "http://reqmgr/spec#Production", subs[0].Workflow)
}

func TestLocationRefreshReplaces(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.Blocks.SetLocations("b1", "siteA", "siteB")
	e := f.insert(t, workqueue.ElementParams{PrimaryBlock: "b1", Jobs: 1})

	require.NoError(t, f.Backend.UpdateLocationInfo(ctx))
	assert.Equal(t, []string{"siteA", "siteB"}, f.element(t, e.ID).BlockLocations["b1"])

	// The block left siteA; the old location must not survive
	f.Blocks.SetLocations("b1", "siteC")
	require.NoError(t, f.Backend.UpdateLocationInfo(ctx))
	assert.Equal(t, []string{"siteC"}, f.element(t, e.ID).BlockLocations["b1"])

	subs, err := f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": 10})
	require.NoError(t, err)
	assert.Empty(t, subs)
}

// TestLocationRefreshIsolation fails one of three blocks and checks
// that the other two are still refreshed.
func TestLocationRefreshIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.Blocks.SetLocations("b1", "siteA", "siteB")
	f.Blocks.SetLocations("p1", "siteA", "siteB")
	f.Blocks.SetLocations("p2", "siteA")
	e := f.insert(t, workqueue.ElementParams{PrimaryBlock: "b1", ParentBlocks: []string{"p1", "p2"}, Jobs: 1})
	require.NoError(t, f.Backend.UpdateLocationInfo(ctx))
	assert.Equal(t, []string{"siteA"}, f.element(t, e.ID).CommonLocations())

	f.Blocks.SetLocations("b1", "siteB")
	f.Blocks.SetLocations("p1", "siteB", "siteC")
	f.Blocks.Fail("p2", errors.New("PhEDEx is down"))
	require.NoError(t, f.Backend.UpdateLocationInfo(ctx))

	stored := f.element(t, e.ID)
	assert.Equal(t, map[string][]string{
		"b1": {"siteB"},
		"p1": {"siteB", "siteC"},
		"p2": {"siteA"},
	}, stored.BlockLocations)
	assert.Empty(t, stored.CommonLocations())

	f.Blocks.Fail("p2", nil)
	f.Blocks.SetLocations("p2", "siteB")
	require.NoError(t, f.Backend.UpdateLocationInfo(ctx))
	assert.Equal(t, []string{"siteB"}, f.element(t, e.ID).CommonLocations())
}

func TestLocationLookupPerBlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.Blocks.SetLocations("b1", "siteA")
	f.insert(t, workqueue.ElementParams{PrimaryBlock: "b1"})
	f.insert(t, workqueue.ElementParams{PrimaryBlock: "b1"})
	f.insert(t, workqueue.ElementParams{PrimaryBlock: "b2", ParentBlocks: []string{"b1"}})

	require.NoError(t, f.Backend.UpdateLocationInfo(ctx))
	assert.Equal(t, 1, f.Blocks.LocationCalls("b1"))
	assert.Equal(t, 1, f.Blocks.LocationCalls("b2"))
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.Blocks.SetLocations("b1", "siteA")
	e := f.insert(t, workqueue.ElementParams{PrimaryBlock: "b1", Jobs: 1})
	conditions := workqueue.Conditions{"siteA": 1}

	// Only GetWork acquires
	err := f.Backend.GotWork(ctx, e.ID)
	assert.Equal(t, workqueue.Conflict, workqueue.ResultOf(err))
	assert.Equal(t, workqueue.Conflict, workqueue.ResultOf(f.Backend.DoneWork(ctx, e.ID)))

	subs, err := f.Backend.GetWork(ctx, conditions)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.NoError(t, f.Backend.GotWork(ctx, e.ID))
	assert.NoError(t, f.Backend.GotWork(ctx, subs[0].ID))

	require.NoError(t, f.Backend.ReleaseWork(ctx, subs[0].ID))
	stored := f.element(t, e.ID)
	assert.Equal(t, workqueue.Available, stored.Status)
	assert.Empty(t, stored.Subscription)
	assert.Empty(t, stored.Site)
	_, err = f.Backend.Element(ctx, subs[0].ID)
	assert.Equal(t, workqueue.NotFound, workqueue.ResultOf(err))

	subs, err = f.Backend.GetWork(ctx, conditions)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.NoError(t, f.Backend.FailWork(ctx, e.ID))
	assert.Equal(t, workqueue.Failed, f.element(t, e.ID).Status)

	for _, err := range []error{
		f.Backend.DoneWork(ctx, e.ID),
		f.Backend.ReleaseWork(ctx, e.ID),
		f.Backend.FailWork(ctx, e.ID),
	} {
		assert.Equal(t, workqueue.Conflict, workqueue.ResultOf(err))
	}

	err = f.Backend.DoneWork(ctx, "no-such-element")
	assert.Equal(t, workqueue.ErrNoSuchElement{ID: "no-such-element"}, err)
}

func TestDoneWorkRepeats(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	e := f.insert(t, workqueue.ElementParams{Jobs: 1})
	_, err := f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": 1})
	require.NoError(t, err)

	require.NoError(t, f.Backend.DoneWork(ctx, e.ID))
	revision := f.element(t, e.ID).Revision
	require.NoError(t, f.Backend.DoneWork(ctx, e.ID))
	assert.Equal(t, revision, f.element(t, e.ID).Revision)
}

func TestSetPriority(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	first := f.insert(t, workqueue.ElementParams{Priority: 10, Jobs: 1})
	second := f.insert(t, workqueue.ElementParams{Priority: 5, Jobs: 1})

	require.NoError(t, f.Backend.SetPriority(ctx, second.ID, 20))
	assert.Equal(t, 20, f.element(t, second.ID).Priority)

	subs, err := f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": 1})
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, subscriptionElements(subs))

	err = f.Backend.SetPriority(ctx, "missing", 1)
	assert.Equal(t, workqueue.NotFound, workqueue.ResultOf(err))
	assert.Equal(t, 10, f.element(t, first.ID).Priority)
}

func TestSetOnline(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	e := f.insert(t, workqueue.ElementParams{Jobs: 1})
	require.NoError(t, f.Backend.SetOnline(ctx, e.ID, false))

	subs, err := f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": 1})
	require.NoError(t, err)
	assert.Empty(t, subs)

	require.NoError(t, f.Backend.SetOnline(ctx, e.ID, true))
	subs, err = f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": 1})
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

// TestSubscriptionFailure checks that an element whose subscription
// cannot be created goes back to the queue.
func TestSubscriptionFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	e := f.insert(t, workqueue.ElementParams{Jobs: 1})

	f.WMBS.SetAvailable(false)
	subs, err := f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": 1})
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.Equal(t, workqueue.Available, f.element(t, e.ID).Status)

	f.WMBS.SetAvailable(true)
	subs, err = f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": 1})
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, subscriptionElements(subs))
}

// interleavedStore runs a hook once, right after the first
// successful Update through it.
type interleavedStore struct {
	workqueue.DocumentStore
	once sync.Once
	hook func()
}

func (s *interleavedStore) Update(ctx context.Context, doc workqueue.Document, expectedRevision int64) (int64, error) {
	revision, err := s.DocumentStore.Update(ctx, doc, expectedRevision)
	if err == nil {
		s.once.Do(s.hook)
	}
	return revision, err
}

// TestAcquireRacesPriorityChange checks that a priority change
// landing between acquiring an element and recording its
// subscription does not leave the subscription unresolvable.
func TestAcquireRacesPriorityChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	e := f.insert(t, workqueue.ElementParams{Jobs: 1})

	other := f.newBackend()
	store := &interleavedStore{DocumentStore: f.Store}
	store.hook = func() {
		assert.NoError(t, other.SetPriority(ctx, e.ID, 99))
	}
	b := NewBackendWithClock(store, f.Blocks, f.WMBS, f.Clock)
	b.Logger = quietLogger()

	subs, err := b.GetWork(ctx, workqueue.Conditions{"siteA": 1})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	sub := subs[0]

	stored := f.element(t, sub.ID)
	assert.Equal(t, e.ID, stored.ID)
	assert.Equal(t, sub.ID, stored.Subscription)
	assert.Equal(t, workqueue.Acquired, stored.Status)
	assert.Equal(t, 99, stored.Priority)

	assert.NoError(t, b.GotWork(ctx, sub.ID))
	assert.NoError(t, b.DoneWork(ctx, sub.ID))
	assert.Equal(t, workqueue.Done, f.element(t, e.ID).Status)
}

// TestAcquireLosesElement checks that an element moved on by someone
// else before its subscription is recorded is not handed out.
func TestAcquireLosesElement(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	e := f.insert(t, workqueue.ElementParams{Jobs: 1})

	other := f.newBackend()
	store := &interleavedStore{DocumentStore: f.Store}
	store.hook = func() {
		assert.NoError(t, other.FailWork(ctx, e.ID))
	}
	b := NewBackendWithClock(store, f.Blocks, f.WMBS, f.Clock)
	b.Logger = quietLogger()

	subs, err := b.GetWork(ctx, workqueue.Conditions{"siteA": 1})
	require.NoError(t, err)
	assert.Empty(t, subs)

	stored := f.element(t, e.ID)
	assert.Equal(t, workqueue.Failed, stored.Status)
	assert.Empty(t, stored.Subscription)
}

// TestConcurrentGetWork runs several Backends against one store at
// once and checks that no element is handed out twice.
func TestConcurrentGetWork(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.Blocks.SetLocations("b1", "siteA")
	const elements = 40
	for i := 0; i < elements; i++ {
		f.insert(t, workqueue.ElementParams{PrimaryBlock: "b1", Jobs: 1})
	}
	require.NoError(t, f.Backend.UpdateLocationInfo(ctx))

	const workers = 6
	var (
		wg    sync.WaitGroup
		lock  sync.Mutex
		seen  = map[string]int{}
		fails []error
	)
	for i := 0; i < workers; i++ {
		backend := f.newBackend()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := 0; round < 5; round++ {
				subs, err := backend.GetWork(ctx, workqueue.Conditions{"siteA": 3})
				lock.Lock()
				if err != nil {
					fails = append(fails, err)
				}
				for _, sub := range subs {
					seen[sub.ElementID]++
				}
				lock.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Empty(t, fails)
	for id, count := range seen {
		assert.Equal(t, 1, count, "element %v acquired %v times", id, count)
	}

	// Mop up anything lost to conflicts
	subs, err := f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": elements})
	require.NoError(t, err)
	for _, sub := range subs {
		seen[sub.ElementID]++
	}
	assert.Len(t, seen, elements)
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
}

func TestElementsAndSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a1 := f.insert(t, workqueue.ElementParams{SpecURL: "http://spec/a", Jobs: 2})
	f.Clock.Add(time.Second)
	a2 := f.insert(t, workqueue.ElementParams{SpecURL: "http://spec/a", Jobs: 3})
	f.Clock.Add(time.Second)
	b1 := f.insert(t, workqueue.ElementParams{SpecURL: "http://spec/b", Jobs: 7, Priority: 100})
	_, err := f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": 7})
	require.NoError(t, err)

	all, err := f.Backend.Elements(ctx, workqueue.ElementQuery{})
	require.NoError(t, err)
	var ids []string
	for _, e := range all {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{a1.ID, a2.ID, b1.ID}, ids)

	available, err := f.Backend.Elements(ctx, workqueue.ElementQuery{
		Statuses: []workqueue.ElementStatus{workqueue.Available},
	})
	require.NoError(t, err)
	assert.Len(t, available, 2)

	repeated, err := f.Backend.Elements(ctx, workqueue.ElementQuery{
		Statuses: []workqueue.ElementStatus{workqueue.Available, workqueue.Acquired, workqueue.Available},
	})
	require.NoError(t, err)
	assert.Len(t, repeated, 3)

	specA, err := f.Backend.Elements(ctx, workqueue.ElementQuery{SpecURL: "http://spec/a"})
	require.NoError(t, err)
	assert.Len(t, specA, 2)

	summary, err := f.Backend.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, workqueue.Summary{
		{SpecURL: "http://spec/a", Status: workqueue.Available, Count: 2, Jobs: 5},
		{SpecURL: "http://spec/b", Status: workqueue.Acquired, Count: 1, Jobs: 7},
	}, summary)
}

func TestCleanUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	done := f.insert(t, workqueue.ElementParams{Priority: 2, Jobs: 1})
	waiting := f.insert(t, workqueue.ElementParams{Priority: 1, Jobs: 1})
	_, err := f.Backend.GetWork(ctx, workqueue.Conditions{"siteA": 1})
	require.NoError(t, err)
	require.NoError(t, f.Backend.DoneWork(ctx, done.ID))

	count, err := f.Backend.CleanUp(ctx, f.Clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	f.Clock.Add(time.Hour)
	count, err = f.Backend.CleanUp(ctx, f.Clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = f.Backend.Element(ctx, done.ID)
	assert.Equal(t, workqueue.NotFound, workqueue.ResultOf(err))
	f.element(t, waiting.ID)
}

func TestRunLocationRefresh(t *testing.T) {
	f := newFixture()
	f.Blocks.SetLocations("b1", "siteA")
	f.insert(t, workqueue.ElementParams{PrimaryBlock: "b1"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- f.Backend.RunLocationRefresh(ctx, time.Minute)
	}()

	// The first refresh happens right away
	for i := 0; i < 100 && f.Blocks.LocationCalls("b1") == 0; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, f.Blocks.LocationCalls("b1"))

	// Give the loop a chance to start waiting, then advance
	time.Sleep(10 * time.Millisecond)
	f.Clock.Add(time.Minute)
	for i := 0; i < 100 && f.Blocks.LocationCalls("b1") < 2; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 2, f.Blocks.LocationCalls("b1"))

	cancel()
	assert.Equal(t, context.Canceled, <-done)
}

func TestRunLocationRefreshInterval(t *testing.T) {
	f := newFixture()
	err := f.Backend.RunLocationRefresh(context.Background(), 0)
	assert.IsType(t, workqueue.ErrConfiguration{}, err)
}
