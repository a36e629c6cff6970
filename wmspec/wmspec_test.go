// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package wmspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rereco = `
name: ReReco
url: http://reqmgr/spec/ReReco
priority: 100
tasks:
  - name: DataProcessing
    input_dataset: /JetHT/Run2016B-v1/RAW
    dbs_url: http://dbs/
    splitting_algorithm: EventBased
    split_size: 1000
    parent_processing: true
    site_whitelist: [T1_US_FNAL]
  - name: Production
    splitting_algorithm: EventBased
    split_size: 100
    total_events: 950
`

func TestParse(t *testing.T) {
	spec, err := Parse([]byte(rereco))
	require.NoError(t, err)
	assert.Equal(t, "ReReco", spec.Name())
	assert.Equal(t, "http://reqmgr/spec/ReReco", spec.URL())
	assert.Equal(t, 100, spec.Priority())

	tasks := spec.Tasks()
	require.Len(t, tasks, 2)

	processing := tasks[0]
	assert.Equal(t, "DataProcessing", processing.Name())
	if assert.NotNil(t, processing.InputDataset()) {
		assert.Equal(t, "/JetHT/Run2016B-v1/RAW", processing.InputDataset().Path())
	}
	assert.Equal(t, "http://dbs/", processing.DBSURL())
	assert.Equal(t, 1000, processing.SplittingParameters().Size)
	assert.True(t, processing.ParentProcessing())
	assert.Equal(t, []string{"T1_US_FNAL"}, processing.SiteWhitelist())
	_, ok := processing.TotalEvents()
	assert.False(t, ok)

	production := tasks[1]
	assert.Nil(t, production.InputDataset())
	events, ok := production.TotalEvents()
	assert.True(t, ok)
	assert.Equal(t, 950, events)
}

func TestFromMap(t *testing.T) {
	spec, err := FromMap(map[string]interface{}{
		"name":     "MC",
		"url":      "http://reqmgr/spec/MC",
		"priority": float64(5),
		"tasks": []interface{}{
			map[string]interface{}{
				"name":                "Generate",
				"splitting_algorithm": "EventBased",
				"split_size":          "10",
				"total_events":        0,
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, spec.Priority())
	require.Len(t, spec.Tasks(), 1)
	assert.Equal(t, 10, spec.Tasks()[0].SplittingParameters().Size)
	events, ok := spec.Tasks()[0].TotalEvents()
	assert.True(t, ok)
	assert.Equal(t, 0, events)
}

func TestValidate(t *testing.T) {
	for _, text := range []string{
		"url: x\ntasks: [{name: a}]",
		"name: x\ntasks: [{name: a}]",
		"name: x\nurl: y\n",
		"name: x\nurl: y\ntasks: [{name: ''}]",
		"name: x\nurl: y\ntasks: [{name: a}, {name: a}]",
		"name: x\nurl: y\ntasks: [{name: a, input_dataset: /only/two}]",
	} {
		_, err := Parse([]byte(text))
		assert.Error(t, err, text)
	}
}

func TestParseDataset(t *testing.T) {
	dataset, err := ParseDataset("/A/B/C")
	require.NoError(t, err)
	assert.Equal(t, "A", dataset.Primary)
	assert.Equal(t, "B", dataset.Processed)
	assert.Equal(t, "C", dataset.Tier)

	for _, path := range []string{"", "A/B/C", "/A/B", "/A//C", "/A/B/C/D"} {
		_, err := ParseDataset(path)
		assert.Error(t, err, path)
	}
}
