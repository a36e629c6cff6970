// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package workqueue

import (
	"fmt"
	"math"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ElementType is the "type" field of every element document.
const ElementType = "WorkQueueElement"

// Names of the views every document store holding elements must
// support; see ElementViews.
const (
	// ViewByStatus keys elements by their status text.
	ViewByStatus = "elements_by_status"

	// ViewBySubscription keys acquired elements by their
	// subscription ID.
	ViewBySubscription = "elements_by_subscription"

	// ViewBySpec keys elements by their workload URL.
	ViewBySpec = "elements_by_spec"
)

// ElementViews contains the view functions for element documents.
// Pass this to a document store constructor.
var ElementViews = map[string]ViewFunc{
	ViewByStatus:       stringFieldView("status"),
	ViewBySubscription: stringFieldView("subscription"),
	ViewBySpec:         stringFieldView("spec_url"),
}

// stringFieldView builds a view keyed on a single string field of
// element documents, skipping empty values.
func stringFieldView(field string) ViewFunc {
	return func(data map[string]interface{}) []string {
		if kind, _ := data["type"].(string); kind != ElementType {
			return nil
		}
		value, _ := data[field].(string)
		if value == "" {
			return nil
		}
		return []string{value}
	}
}

// StatusKey returns the ViewByStatus key for a status.
func StatusKey(status ElementStatus) string {
	return status.String()
}

// elementData is the stored form of an element.
type elementData struct {
	Type           string
	SpecURL        string              `mapstructure:"spec_url"`
	TaskName       string              `mapstructure:"task"`
	PrimaryBlock   string              `mapstructure:"primary_block"`
	ParentBlocks   []string            `mapstructure:"parent_blocks"`
	BlockLocations map[string][]string `mapstructure:"block_locations"`
	Priority       int
	Online         bool
	Jobs           int
	WhiteList      []string `mapstructure:"white_list"`
	BlackList      []string `mapstructure:"black_list"`
	InsertTime     *float64 `mapstructure:"insert_time"`
	UpdateTime     *float64 `mapstructure:"update_time"`
	Status         string
	Subscription   string
	Site           string
}

// EpochSeconds converts a time to floating-point seconds since the
// Unix epoch.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromEpochSeconds is the inverse of EpochSeconds.
func FromEpochSeconds(seconds float64) time.Time {
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC()
}

// putTime stores t under key, leaving the key out for the zero time.
func putTime(data map[string]interface{}, key string, t time.Time) {
	if !t.IsZero() {
		data[key] = EpochSeconds(t)
	}
}

// getTime is the inverse of putTime.
func getTime(seconds *float64) time.Time {
	if seconds == nil {
		return time.Time{}
	}
	return FromEpochSeconds(*seconds)
}

// ElementToDocument converts an element to its stored form.
func ElementToDocument(e *Element) Document {
	locations := make(map[string]interface{}, len(e.BlockLocations))
	for block, sites := range e.BlockLocations {
		locations[block] = stringsToList(sites)
	}
	data := map[string]interface{}{
		"type":            ElementType,
		"spec_url":        e.SpecURL,
		"task":            e.TaskName,
		"primary_block":   e.PrimaryBlock,
		"parent_blocks":   stringsToList(e.ParentBlocks),
		"block_locations": locations,
		"priority":        e.Priority,
		"online":          e.Online,
		"jobs":            e.Jobs,
		"white_list":      stringsToList(e.WhiteList),
		"black_list":      stringsToList(e.BlackList),
		"status":          e.Status.String(),
		"subscription":    e.Subscription,
		"site":            e.Site,
	}
	putTime(data, "insert_time", e.InsertTime)
	putTime(data, "update_time", e.UpdateTime)
	return Document{ID: e.ID, Revision: e.Revision, Data: data}
}

// DocumentToElement decodes an element from a stored document.  It
// fails if the document is not an element.
func DocumentToElement(doc Document) (*Element, error) {
	var data elementData
	config := mapstructure.DecoderConfig{
		Result:           &data,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(&config)
	if err != nil {
		return nil, err
	}
	err = decoder.Decode(doc.Data)
	if err != nil {
		return nil, err
	}
	if data.Type != ElementType {
		return nil, fmt.Errorf("document %v is not an element (type %q)", doc.ID, data.Type)
	}
	element := &Element{
		ID:             doc.ID,
		Revision:       doc.Revision,
		SpecURL:        data.SpecURL,
		TaskName:       data.TaskName,
		PrimaryBlock:   data.PrimaryBlock,
		ParentBlocks:   data.ParentBlocks,
		BlockLocations: data.BlockLocations,
		Priority:       data.Priority,
		Online:         data.Online,
		Jobs:           data.Jobs,
		WhiteList:      data.WhiteList,
		BlackList:      data.BlackList,
		InsertTime:     getTime(data.InsertTime),
		UpdateTime:     getTime(data.UpdateTime),
		Subscription:   data.Subscription,
		Site:           data.Site,
	}
	if element.BlockLocations == nil {
		element.BlockLocations = make(map[string][]string)
	}
	err = element.Status.UnmarshalText([]byte(data.Status))
	if err != nil {
		return nil, err
	}
	return element, nil
}

// stringsToList copies a string slice into the []interface{} form
// that every document encoder round-trips the same way.
func stringsToList(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
