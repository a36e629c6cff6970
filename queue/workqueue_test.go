// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/dmwm/go-workqueue/wmspec"
	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jetHT = "/JetHT/Run2016B-v1/RAW"

const workloadYAML = `
name: ReReco_JetHT
url: http://reqmgr/ReReco_JetHT
priority: 50000
tasks:
  - name: DataProcessing
    input_dataset: /JetHT/Run2016B-v1/RAW
    dbs_url: https://cmsweb.cern.ch/dbs/prod/global/DBSReader
    splitting_algorithm: FileBased
    split_size: 2
    site_whitelist: [T1_US_FNAL, T2_CH_CERN]
  - name: Production
    splitting_algorithm: EventBased
    split_size: 100
    total_events: 950
`

func newWorkQueue(t *testing.T) (*fixture, *WorkQueue) {
	f := newFixture()
	f.Blocks.AddBlock(jetHT, workqueue.BlockInfo{Name: jetHT + "#1", NumEvents: 100, NumFiles: 3}, "T1_US_FNAL")
	f.Blocks.AddBlock(jetHT, workqueue.BlockInfo{Name: jetHT + "#2", NumEvents: 100, NumFiles: 4}, "T2_CH_CERN", "T2_DE_DESY")
	return f, New(f.Backend, f.Blocks)
}

func parseWorkload(t *testing.T, body string) workqueue.Workload {
	spec, err := wmspec.Parse([]byte(body))
	require.NoError(t, err)
	return spec
}

func TestQueueWork(t *testing.T) {
	ctx := context.Background()
	f, q := newWorkQueue(t)

	count, err := q.QueueWork(ctx, parseWorkload(t, workloadYAML))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	elements, err := f.Backend.Elements(ctx, workqueue.ElementQuery{SpecURL: "http://reqmgr/ReReco_JetHT"})
	require.NoError(t, err)
	require.Len(t, elements, 3)
	byBlock := map[string]*workqueue.Element{}
	for _, e := range elements {
		assert.Equal(t, 50000, e.Priority)
		byBlock[e.PrimaryBlock] = e
	}
	assert.Equal(t, 2, byBlock[jetHT+"#1"].Jobs)
	assert.Equal(t, 2, byBlock[jetHT+"#2"].Jobs)
	assert.Equal(t, []string{"T1_US_FNAL", "T2_CH_CERN"}, byBlock[jetHT+"#1"].WhiteList)
	assert.Equal(t, "DataProcessing", byBlock[jetHT+"#1"].TaskName)
	assert.Equal(t, 10, byBlock[""].Jobs)
	assert.Equal(t, "Production", byBlock[""].TaskName)
}

func TestQueueWorkByDataset(t *testing.T) {
	ctx := context.Background()
	f, q := newWorkQueue(t)
	q.SplitByBlock = false

	count, err := q.QueueWork(ctx, parseWorkload(t, workloadYAML))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	elements, err := f.Backend.Elements(ctx, workqueue.ElementQuery{})
	require.NoError(t, err)
	var blocks []string
	for _, e := range elements {
		blocks = append(blocks, e.PrimaryBlock)
	}
	assert.ElementsMatch(t, []string{jetHT, ""}, blocks)
}

// TestQueueWorkAllOrNothing checks that one bad task keeps the whole
// workload out of the queue.
func TestQueueWorkAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f, q := newWorkQueue(t)

	count, err := q.QueueWork(ctx, parseWorkload(t, workloadYAML+`
  - name: Broken
    input_dataset: /JetHT/Run2016B-v1/RAW
    splitting_algorithm: LumiBased
    split_size: 10
`))
	var config workqueue.ErrConfiguration
	assert.True(t, errors.As(err, &config))
	assert.Equal(t, 0, count)

	elements, err := f.Backend.Elements(ctx, workqueue.ElementQuery{})
	require.NoError(t, err)
	assert.Empty(t, elements)
}

func TestWorkQueueResults(t *testing.T) {
	ctx := context.Background()
	_, q := newWorkQueue(t)
	_, err := q.QueueWork(ctx, parseWorkload(t, workloadYAML))
	require.NoError(t, err)

	subs, err := q.GetWork(ctx, workqueue.Conditions{"T1_US_FNAL": 2})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, jetHT+"#1", subs[0].Fileset)
	assert.Equal(t, "http://reqmgr/ReReco_JetHT#DataProcessing", subs[0].Workflow)

	assert.Equal(t, workqueue.OK, q.GotWork(ctx, subs[0].ID))
	assert.Equal(t, workqueue.OK, q.DoneWork(ctx, subs[0].ID))
	assert.Equal(t, workqueue.OK, q.DoneWork(ctx, subs[0].ID))
	assert.Equal(t, workqueue.Conflict, q.ReleaseWork(ctx, subs[0].ID))
	assert.Equal(t, workqueue.Conflict, q.FailWork(ctx, subs[0].ElementID))
	assert.Equal(t, workqueue.NotFound, q.GotWork(ctx, "nothing"))
	assert.Equal(t, workqueue.NotFound, q.SetPriority(ctx, "nothing", 1))
	assert.Equal(t, workqueue.OK, q.SetPriority(ctx, subs[0].ElementID, 1))
}

func TestWorkQueueTransientErrors(t *testing.T) {
	ctx := context.Background()
	f, q := newWorkQueue(t)
	_, err := q.QueueWork(ctx, parseWorkload(t, workloadYAML))
	require.NoError(t, err)

	require.NoError(t, f.Store.Close())
	assert.Equal(t, workqueue.TransientError, q.DoneWork(ctx, "anything"))
	_, err = q.GetWork(ctx, workqueue.Conditions{"T1_US_FNAL": 2})
	assert.Error(t, err)
}
