// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

// Package workqueue defines the abstract API of the hierarchical work
// queue: the element data model, the priority ordering and site
// matching policy, and the collaborators the queue depends on.
//
// A global queue decomposes workload specifications into elements,
// each bound to an input data block and the sites that host it.  A
// local agent with free job slots asks for work; the queue matches
// elements against those slots, acquires them exactly once, and
// hands back WMBS subscriptions for them.
//
// Concrete document stores live in the memory, bolt and postgres
// packages; the matching engine and the caller-facing facade live in
// the queue package.
package workqueue

import (
	"context"
	"time"
)

// Document is a single record in a document store, in the manner of
// a CouchDB document.  Revision is assigned by the store; zero means
// the document has never been stored.
type Document struct {
	ID       string
	Revision int64
	Data     map[string]interface{}
}

// ViewFunc computes the keys under which a document appears in a
// view.  It may return no keys, in which case the document is not
// part of the view.
type ViewFunc func(data map[string]interface{}) []string

// KeyRange selects view keys lexicographically between Start and End,
// inclusive.  An empty End means no upper bound; the zero KeyRange
// selects every key.
type KeyRange struct {
	Start string
	End   string
}

// Key returns a KeyRange selecting exactly one key.
func Key(key string) KeyRange {
	return KeyRange{Start: key, End: key}
}

// Contains reports whether key falls within this range.
func (r KeyRange) Contains(key string) bool {
	if key < r.Start {
		return false
	}
	return r.End == "" || key <= r.End
}

// DocumentStore is the persistence collaborator of the queue.
// Implementations must provide per-document optimistic concurrency:
// Update and Delete fail with ErrConflict if the stored revision is
// not the expected one.
type DocumentStore interface {
	// Insert stores a new document.  If a document with the same
	// ID exists, returns ErrDocumentExists.  Returns the stored
	// document with its new revision.
	Insert(ctx context.Context, doc Document) (Document, error)

	// Get retrieves a document by ID, or returns
	// ErrNoSuchDocument.
	Get(ctx context.Context, id string) (Document, error)

	// QueryByView returns all documents that emit a key in r for
	// the named view, ordered by key and then ID.  A document
	// appears at most once.  Unknown views return ErrNoSuchView.
	QueryByView(ctx context.Context, view string, r KeyRange) ([]Document, error)

	// Update replaces the data of doc, provided its stored
	// revision is still expectedRevision.  Returns the new
	// revision.
	Update(ctx context.Context, doc Document, expectedRevision int64) (int64, error)

	// Delete removes a document at a specific revision.
	Delete(ctx context.Context, id string, revision int64) error

	// Close releases any resources held by the store.
	Close() error
}

// LocationService reports where blocks of data currently live.
type LocationService interface {
	// BlockLocations returns the sites currently hosting block.
	BlockLocations(ctx context.Context, block string) ([]string, error)
}

// BlockInfo describes a block or a whole dataset as reported by the
// metadata service.
type BlockInfo struct {
	Name      string
	NumEvents int
	NumFiles  int
	Parents   []string
}

// MetadataService answers dataset and block metadata queries against
// a specific DBS instance.
type MetadataService interface {
	// DatasetInfo returns totals for an entire dataset.
	DatasetInfo(ctx context.Context, dbsURL, dataset string) (BlockInfo, error)

	// DatasetBlocks returns one record per block of a dataset.
	DatasetBlocks(ctx context.Context, dbsURL, dataset string) ([]BlockInfo, error)
}

// BlockService is the combined data-management collaborator the
// WorkQueue facade needs.
type BlockService interface {
	LocationService
	MetadataService
}

// Dataset names an input dataset by its three path components.
type Dataset struct {
	Primary   string
	Processed string
	Tier      string
}

// Path returns the dataset path, /primary/processed/tier.
func (d Dataset) Path() string {
	return "/" + d.Primary + "/" + d.Processed + "/" + d.Tier
}

// SplitParams holds job-splitting parameters for a task.  Size is the
// per-job unit, in events or files depending on the algorithm.
type SplitParams struct {
	Size  int
	Extra map[string]interface{}
}

// Task is one task of a workload specification.
type Task interface {
	Name() string

	// InputDataset returns the input dataset, or nil for
	// production tasks.
	InputDataset() *Dataset

	DBSURL() string
	SplittingAlgorithm() string
	SplittingParameters() SplitParams

	// ParentProcessing reports whether the task must also read
	// the parents of its input.
	ParentProcessing() bool

	SiteWhitelist() []string
	SiteBlacklist() []string

	// TotalEvents returns the number of events to generate for a
	// production task, and whether it was set at all.
	TotalEvents() (int, bool)
}

// Workload is an opaque handle on a workload specification.
type Workload interface {
	Name() string

	// URL locates the specification; it is copied into every
	// element.
	URL() string

	Priority() int
	Tasks() []Task
}

// Chunk is one piece of a split task.  Name is empty for production
// work.
type Chunk struct {
	Name    string
	Parents []string
	Jobs    int
}

// Subscription is a handle on the WMBS fileset/workflow/subscription
// created for an acquired element.
type Subscription struct {
	ID        string
	Fileset   string
	Workflow  string
	ElementID string
	Site      string

	// Jobs is the job count of the element, which the agent
	// should consider charged against Site's slots.
	Jobs int
}

// SubscriptionFactory is the WMBS collaborator.
type SubscriptionFactory interface {
	CreateSubscription(ctx context.Context, fileset, workflow string) (Subscription, error)
}

// ElementParams describes a new element to insert.
type ElementParams struct {
	SpecURL      string
	TaskName     string
	PrimaryBlock string
	ParentBlocks []string
	Priority     int
	Jobs         int
	WhiteList    []string
	BlackList    []string
}

// ElementQuery selects some subset of elements.  Its zero value
// selects all elements.
type ElementQuery struct {
	// Statuses, if non-empty, limits the result to elements in
	// one of these statuses.  AnyStatus matches everything.
	Statuses []ElementStatus

	// SpecURL, if non-empty, limits the result to elements of
	// one workload.
	SpecURL string

	// UpdatedBefore, if non-zero, limits the result to elements
	// last changed before this time.
	UpdatedBefore time.Time
}
