// Copyright 2016 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmwm/go-workqueue/agent"
	"github.com/dmwm/go-workqueue/restclient"
	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var agentCommand = cli.Command{
	Name:  "agent",
	Usage: "run a demonstration local agent against a work queue",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "url",
			Value: "http://localhost:5980/",
			Usage: "base URL of the work queue",
		},
		cli.StringSliceFlag{
			Name:  "site",
			Usage: "site=slots this agent runs jobs at (repeatable)",
		},
		cli.DurationFlag{
			Name:  "poll",
			Value: 30 * time.Second,
			Usage: "how often to ask for work",
		},
		cli.DurationFlag{
			Name:  "job-time",
			Value: time.Second,
			Usage: "pretend each job takes this long",
		},
	},
	Action: runAgent,
}

// parseSites turns site=slots strings into conditions.
func parseSites(specs []string) (workqueue.Conditions, error) {
	sites := workqueue.Conditions{}
	for _, spec := range specs {
		parts := strings.SplitN(spec, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid site %q, want site=slots", spec)
		}
		slots, err := strconv.Atoi(parts[1])
		if err != nil || slots < 0 {
			return nil, fmt.Errorf("invalid slots for site %q", parts[0])
		}
		sites[parts[0]] += slots
	}
	return sites, nil
}

func runAgent(c *cli.Context) error {
	sites, err := parseSites(c.StringSlice("site"))
	if err != nil {
		return err
	}
	if len(sites) == 0 {
		return fmt.Errorf("no sites given")
	}
	ctx := signalContext()
	client, err := restclient.New(ctx, c.String("url"))
	if err != nil {
		return err
	}
	jobTime := c.Duration("job-time")
	a := agent.Agent{
		Queue:        client,
		Sites:        sites,
		PollInterval: c.Duration("poll"),
		Handler: func(ctx context.Context, sub workqueue.Subscription) error {
			logrus.WithFields(logrus.Fields{
				"subscription": sub.ID,
				"fileset":      sub.Fileset,
				"workflow":     sub.Workflow,
				"site":         sub.Site,
				"jobs":         sub.Jobs,
			}).Info("Running subscription")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(sub.Jobs) * jobTime):
				return nil
			}
		},
	}
	err = a.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}
