// Copyright 2015-2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dmwm/go-workqueue/queue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var elementSummary = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "dmwm",
		Subsystem: "workqueue",
		Name:      "elements",
		Help:      "Number of elements per workload and status",
	},
	[]string{
		"spec",
		"status",
	},
)

var jobSummary = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "dmwm",
		Subsystem: "workqueue",
		Name:      "jobs",
		Help:      "Estimated jobs per workload and status",
	},
	[]string{
		"spec",
		"status",
	},
)

func init() {
	prometheus.MustRegister(elementSummary)
	prometheus.MustRegister(jobSummary)
}

// observe refreshes the summary gauges every interval until ctx is
// cancelled.
func observe(ctx context.Context, backend *queue.Backend, clk clock.Clock, interval time.Duration) {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()
	for {
		summary, err := backend.Summarize(ctx)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"err": err,
			}).Warn("Could not summarize queue")
		} else {
			elementSummary.Reset()
			jobSummary.Reset()
			for _, record := range summary {
				labels := prometheus.Labels{
					"spec":   record.SpecURL,
					"status": record.Status.String(),
				}
				elementSummary.With(labels).Set(float64(record.Count))
				jobSummary.With(labels).Set(float64(record.Jobs))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
