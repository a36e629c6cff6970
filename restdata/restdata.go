// Copyright 2015-2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

// Package restdata defines common data structures shared between the
// restserver and restclient packages.  Generally JSON encodings of
// these are passed across the wire as the
// application/vnd.dmwm.workqueue.v1+json MIME type.
//
// API Usage
//
// HTTP GET the root document at its specified URL.  This will return
// a JSON serialization of the RootData object, which has links to
// every other resource.  Some of these are RFC 6570 URI templates,
// URL strings with a {parameter} in curly braces.  If the system is
// rooted at /, a JSON serialization of RootData will look like
//
//     {
//         "workload_url": "/workload",
//         "work_url": "/work",
//         "elements_url": "/element",
//         "element_url": "/element/{element}",
//         "summary_url": "/summary"
//     }
//
// While the URL structure is predictable, it is not part of the API
// contract.  The only specific guarantee is that retrieving the root
// resource will return a serialization of RootData.
//
// An element in a URL may be named by its element ID or by the ID of
// its WMBS subscription.  Handles that are not URL-safe are encoded
// by base64 encoding their bytes using the URL-safe alphabet with no
// padding, and prepending a hyphen.
//
// Workloads are posted as a data dictionary, either a JSON object or
// a string holding base64 encoded CBOR.
//
// Timestamps are represented in JSON as RFC 3339 strings,
// "2012-03-04T05:06:07.890Z".
//
// Errors
//
// Errors are returned as encodings of the ErrorResponse type with a
// failing HTTP status: 400 for an invalid workload, 404 for an
// unknown element, 409 for a status change the element does not
// allow, 503 for a store or data service outage, and 500 for
// anything else.  ErrorResponse round-trips all of the workqueue
// package's errors.
package restdata

import (
	"time"

	"github.com/dmwm/go-workqueue/workqueue"
)

// V1JSONMediaType is the preferred, most specific MIME type for the
// JSON representation of this content.
const V1JSONMediaType = "application/vnd.dmwm.workqueue.v1+json"

// JSONMediaType requests the most recent version of the JSON
// representation of this content.
const JSONMediaType = "application/vnd.dmwm.workqueue+json"

// DataDict is an arbitrary data dictionary, such as a workload
// specification.
type DataDict map[string]interface{}

// Resource is a base type for all resources in this module.
type Resource struct {
	// URL points at this resource.
	URL string `json:"url"`
}

// RootData is returned by the root path.
type RootData struct {
	Resource

	// WorkloadURL accepts HTTP POST of a Workload, queueing its
	// elements and returning a WorkloadResponse.
	WorkloadURL string `json:"workload_url"`

	// WorkURL accepts HTTP POST of a WorkRequest, returning a
	// WorkResponse with the subscriptions acquired.
	WorkURL string `json:"work_url"`

	// ElementsURL supports HTTP GET, returning an ElementList.
	// It accepts query parameters "status" (repeatable), "spec"
	// and "updated_before" (RFC 3339).
	ElementsURL string `json:"elements_url"`

	// ElementURL points at a single Element.  It supports HTTP
	// GET, and HTTP PUT of an ElementUpdate.  This is a URI
	// template with a single parameter, "element".
	ElementURL string `json:"element_url"`

	// SummaryURL supports HTTP GET, returning a Summary.
	SummaryURL string `json:"summary_url"`
}

// Workload is the body of a workload submission.
type Workload struct {
	// Spec is the workload specification, decoded as by
	// wmspec.FromMap.
	Spec DataDict `json:"spec"`
}

// WorkloadResponse reports a queued workload.
type WorkloadResponse struct {
	// Elements is the number of elements created.
	Elements int `json:"elements"`

	// ElementsURL lists the elements of this workload.
	ElementsURL string `json:"elements_url"`
}

// WorkRequest asks for work.
type WorkRequest struct {
	// Conditions maps site name to free job slots.
	Conditions map[string]int `json:"conditions"`
}

// Subscription is a WMBS subscription handed out for an element.
type Subscription struct {
	ID        string `json:"id"`
	Fileset   string `json:"fileset"`
	Workflow  string `json:"workflow"`
	ElementID string `json:"element_id"`
	Site      string `json:"site"`
	Jobs      int    `json:"jobs"`

	// ElementURL points at the acquired element.  Its action
	// URLs report the outcome of the work.
	ElementURL string `json:"element_url,omitempty"`
}

// WorkResponse holds the subscriptions acquired by a WorkRequest.
type WorkResponse struct {
	Subscriptions []Subscription `json:"subscriptions"`
}

// ElementShort provides minimal data to identify a single element.
type ElementShort struct {
	Resource
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ElementList is a list of ElementShort.
type ElementList struct {
	Elements []ElementShort `json:"elements"`
}

// Element is the full representation of an element.
type Element struct {
	ElementShort
	SpecURL        string              `json:"spec_url"`
	TaskName       string              `json:"task"`
	PrimaryBlock   string              `json:"primary_block,omitempty"`
	ParentBlocks   []string            `json:"parent_blocks,omitempty"`
	BlockLocations map[string][]string `json:"block_locations"`
	Priority       int                 `json:"priority"`
	Online         bool                `json:"online"`
	Jobs           int                 `json:"jobs"`
	WhiteList      []string            `json:"white_list,omitempty"`
	BlackList      []string            `json:"black_list,omitempty"`
	InsertTime     time.Time           `json:"insert_time"`
	UpdateTime     time.Time           `json:"update_time"`
	Subscription   string              `json:"subscription,omitempty"`
	Site           string              `json:"site,omitempty"`

	// GotURL, DoneURL, FailURL and ReleaseURL accept an empty
	// HTTP POST to change the element's status, returning an
	// ActionResponse.
	GotURL     string `json:"got_url"`
	DoneURL    string `json:"done_url"`
	FailURL    string `json:"fail_url"`
	ReleaseURL string `json:"release_url"`
}

// ElementUpdate is the body of an HTTP PUT to an element.  Absent
// fields are left unchanged.
type ElementUpdate struct {
	Priority *int  `json:"priority,omitempty"`
	Online   *bool `json:"online,omitempty"`
}

// Action is the (empty) body of an element action POST.
type Action struct{}

// ActionResponse reports the outcome of an element action.  Failed
// actions are reported as ErrorResponse instead.
type ActionResponse struct {
	Result string `json:"result"`
}

// SummaryRecord counts the elements of one workload in one status.
type SummaryRecord struct {
	SpecURL string `json:"spec_url"`
	Status  string `json:"status"`
	Count   int    `json:"count"`
	Jobs    int    `json:"jobs"`
}

// Summary is the result of the summary endpoint.
type Summary struct {
	Records []SummaryRecord `json:"records"`
}

// ErrorResponse is returned with most HTTP errors.
type ErrorResponse struct {
	// Error is a short description of the failure.  This may be
	// the name or type of a workqueue API error, the string
	// "panic", or the string "error" for some other kind of
	// error.
	Error string `json:"error"`

	// Message is a human-readable description of the failure.
	Message string `json:"message"`

	// Value is an extra parameter to the error if applicable,
	// usually an element ID.
	Value string `json:"value,omitempty"`

	// From and To are the statuses of an invalid transition.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// Stack holds a formatted backtrace, if the method failed
	// due to a panic.
	Stack string `json:"stack,omitempty"`
}

// FromSubscription converts a subscription to its wire form.
func FromSubscription(sub workqueue.Subscription) Subscription {
	return Subscription{
		ID:        sub.ID,
		Fileset:   sub.Fileset,
		Workflow:  sub.Workflow,
		ElementID: sub.ElementID,
		Site:      sub.Site,
		Jobs:      sub.Jobs,
	}
}

// ToSubscription converts a wire subscription back.
func (s Subscription) ToSubscription() workqueue.Subscription {
	return workqueue.Subscription{
		ID:        s.ID,
		Fileset:   s.Fileset,
		Workflow:  s.Workflow,
		ElementID: s.ElementID,
		Site:      s.Site,
		Jobs:      s.Jobs,
	}
}

// FromElement fills in the data fields of an element representation.
// URLs are left to the caller.
func FromElement(e *workqueue.Element) Element {
	return Element{
		ElementShort: ElementShort{
			ID:     e.ID,
			Status: e.Status.String(),
		},
		SpecURL:        e.SpecURL,
		TaskName:       e.TaskName,
		PrimaryBlock:   e.PrimaryBlock,
		ParentBlocks:   e.ParentBlocks,
		BlockLocations: e.BlockLocations,
		Priority:       e.Priority,
		Online:         e.Online,
		Jobs:           e.Jobs,
		WhiteList:      e.WhiteList,
		BlackList:      e.BlackList,
		InsertTime:     e.InsertTime,
		UpdateTime:     e.UpdateTime,
		Subscription:   e.Subscription,
		Site:           e.Site,
	}
}

// FromSummary converts a summary to its wire form.
func FromSummary(summary workqueue.Summary) Summary {
	result := Summary{Records: make([]SummaryRecord, len(summary))}
	for i, record := range summary {
		result.Records[i] = SummaryRecord{
			SpecURL: record.SpecURL,
			Status:  record.Status.String(),
			Count:   record.Count,
			Jobs:    record.Jobs,
		}
	}
	return result
}

// ToSummary converts a wire summary back.
func (s Summary) ToSummary() (workqueue.Summary, error) {
	result := make(workqueue.Summary, len(s.Records))
	for i, record := range s.Records {
		result[i] = workqueue.SummaryRecord{
			SpecURL: record.SpecURL,
			Count:   record.Count,
			Jobs:    record.Jobs,
		}
		if err := result[i].Status.UnmarshalText([]byte(record.Status)); err != nil {
			return nil, err
		}
	}
	return result, nil
}
