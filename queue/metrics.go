// Copyright 2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package queue

import "github.com/prometheus/client_golang/prometheus"

var elementsAcquired = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dmwm",
		Subsystem: "workqueue",
		Name:      "elements_acquired_total",
		Help:      "Elements acquired by GetWork, by site",
	},
	[]string{
		"site",
	},
)

var acquireConflicts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "dmwm",
		Subsystem: "workqueue",
		Name:      "acquire_conflicts_total",
		Help:      "Matched elements another caller acquired first",
	},
)

var locationFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "dmwm",
		Subsystem: "workqueue",
		Name:      "location_failures_total",
		Help:      "Failed block location lookups",
	},
)

var elementTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dmwm",
		Subsystem: "workqueue",
		Name:      "element_transitions_total",
		Help:      "Element status changes reported by agents",
	},
	[]string{
		"status",
	},
)

func init() {
	prometheus.MustRegister(elementsAcquired)
	prometheus.MustRegister(acquireConflicts)
	prometheus.MustRegister(locationFailures)
	prometheus.MustRegister(elementTransitions)
}
