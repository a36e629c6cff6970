// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

// Package wmspec provides a concrete workload specification that
// satisfies workqueue.Workload.  Specifications are usually written
// in YAML:
//
//     name: ReReco-Run2016B
//     url: http://reqmgr/couchdb/reqmgr_workload_cache/ReReco-Run2016B/spec
//     priority: 100000
//     tasks:
//       - name: DataProcessing
//         input_dataset: /JetHT/Run2016B-v1/RAW
//         dbs_url: https://cmsweb.cern.ch/dbs/prod/global/DBSReader
//         splitting_algorithm: EventBased
//         split_size: 1000
//         site_whitelist: [T1_US_FNAL]
//
// but may also arrive as a decoded JSON map through the REST API.
package wmspec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"
)

// TaskSpec is one task of a workload.
type TaskSpec struct {
	TaskName     string                 `yaml:"name" mapstructure:"name"`
	Input        string                 `yaml:"input_dataset" mapstructure:"input_dataset"`
	DBS          string                 `yaml:"dbs_url" mapstructure:"dbs_url"`
	Algorithm    string                 `yaml:"splitting_algorithm" mapstructure:"splitting_algorithm"`
	SplitSize    int                    `yaml:"split_size" mapstructure:"split_size"`
	SplitExtra   map[string]interface{} `yaml:"splitting_params" mapstructure:"splitting_params"`
	Parents      bool                   `yaml:"parent_processing" mapstructure:"parent_processing"`
	Whitelist    []string               `yaml:"site_whitelist" mapstructure:"site_whitelist"`
	Blacklist    []string               `yaml:"site_blacklist" mapstructure:"site_blacklist"`
	Events       *int                   `yaml:"total_events" mapstructure:"total_events"`
	inputDataset *workqueue.Dataset
}

// Spec is a complete workload.
type Spec struct {
	SpecName     string      `yaml:"name" mapstructure:"name"`
	SpecURL      string      `yaml:"url" mapstructure:"url"`
	SpecPriority int         `yaml:"priority" mapstructure:"priority"`
	TaskSpecs    []*TaskSpec `yaml:"tasks" mapstructure:"tasks"`
}

// Parse decodes and validates a YAML (or JSON) workload.
func Parse(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// FromMap decodes and validates a workload from a string-keyed map.
func FromMap(data map[string]interface{}) (*Spec, error) {
	var spec Spec
	config := mapstructure.DecoderConfig{
		Result:           &spec,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(&config)
	if err == nil {
		err = decoder.Decode(data)
	}
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks that the workload is structurally complete and
// fills in derived fields.  Problems with the splitting parameters
// are left to the splitter.
func (s *Spec) Validate() error {
	if s.SpecName == "" {
		return errors.New("workload has no name")
	}
	if s.SpecURL == "" {
		return fmt.Errorf("workload %v has no url", s.SpecName)
	}
	if len(s.TaskSpecs) == 0 {
		return fmt.Errorf("workload %v has no tasks", s.SpecName)
	}
	seen := make(map[string]bool)
	for _, task := range s.TaskSpecs {
		if task == nil || task.TaskName == "" {
			return fmt.Errorf("workload %v has an unnamed task", s.SpecName)
		}
		if seen[task.TaskName] {
			return fmt.Errorf("workload %v has duplicate task %v", s.SpecName, task.TaskName)
		}
		seen[task.TaskName] = true
		task.inputDataset = nil
		if task.Input != "" {
			dataset, err := ParseDataset(task.Input)
			if err != nil {
				return fmt.Errorf("task %v: %w", task.TaskName, err)
			}
			task.inputDataset = &dataset
		}
	}
	return nil
}

// ParseDataset splits a /primary/processed/tier dataset path.
func ParseDataset(path string) (workqueue.Dataset, error) {
	parts := strings.Split(path, "/")
	if len(parts) != 4 || parts[0] != "" || parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return workqueue.Dataset{}, fmt.Errorf("invalid dataset path %q", path)
	}
	return workqueue.Dataset{Primary: parts[1], Processed: parts[2], Tier: parts[3]}, nil
}

// Name returns the workload name.
func (s *Spec) Name() string { return s.SpecName }

// URL returns the location of the workload specification.
func (s *Spec) URL() string { return s.SpecURL }

// Priority returns the workload's initial priority.
func (s *Spec) Priority() int { return s.SpecPriority }

// Tasks returns the workload's tasks in order.
func (s *Spec) Tasks() []workqueue.Task {
	tasks := make([]workqueue.Task, len(s.TaskSpecs))
	for i, task := range s.TaskSpecs {
		tasks[i] = task
	}
	return tasks
}

func (t *TaskSpec) Name() string { return t.TaskName }

// InputDataset returns the parsed input dataset, or nil for a
// production task.  It is only valid after Validate.
func (t *TaskSpec) InputDataset() *workqueue.Dataset {
	if t.inputDataset == nil {
		return nil
	}
	dataset := *t.inputDataset
	return &dataset
}

func (t *TaskSpec) DBSURL() string { return t.DBS }

func (t *TaskSpec) SplittingAlgorithm() string { return t.Algorithm }

func (t *TaskSpec) SplittingParameters() workqueue.SplitParams {
	return workqueue.SplitParams{Size: t.SplitSize, Extra: t.SplitExtra}
}

func (t *TaskSpec) ParentProcessing() bool { return t.Parents }

func (t *TaskSpec) SiteWhitelist() []string { return t.Whitelist }

func (t *TaskSpec) SiteBlacklist() []string { return t.Blacklist }

func (t *TaskSpec) TotalEvents() (int, bool) {
	if t.Events == nil {
		return 0, false
	}
	return *t.Events, true
}
