// Copyright 2015-2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

// Package workqueued runs a global work queue as an HTTP REST
// service, keeping block locations fresh in the background.  The
// "agent" subcommand runs a demonstration local agent against a
// running daemon.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dmwm/go-workqueue/backend"
	"github.com/dmwm/go-workqueue/cache"
	"github.com/dmwm/go-workqueue/dbs"
	"github.com/dmwm/go-workqueue/queue"
	"github.com/dmwm/go-workqueue/wmbs"
	"github.com/dmwm/go-workqueue/workqueue"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var storage = backend.Backend{Implementation: "memory"}

func main() {
	app := cli.NewApp()
	app.Name = "workqueued"
	app.Usage = "run the global work queue"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "global configuration YAML file",
		},
		cli.StringFlag{
			Name:  "http",
			Value: ":5980",
			Usage: "[ip]:port for HTTP REST interface",
		},
		cli.GenericFlag{
			Name:  "backend",
			Value: &storage,
			Usage: "impl[:address] of the storage backend",
		},
		cli.StringFlag{
			Name:  "phedex",
			Usage: "base URL of the PhEDEx data service",
		},
		cli.DurationFlag{
			Name:  "refresh-interval",
			Value: 10 * time.Minute,
			Usage: "how often to refresh block locations",
		},
		cli.IntFlag{
			Name:  "cache-size",
			Value: 1024,
			Usage: "documents to keep in the read cache (0 disables)",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "minimum level of log messages",
		},
	}
	app.Action = serve
	app.Commands = []cli.Command{
		agentCommand,
	}
	app.RunAndExitOnError()
}

// signalContext returns a context that is cancelled on SIGINT or
// SIGTERM.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logrus.WithField("signal", sig.String()).Info("Shutting down")
		cancel()
	}()
	return ctx
}

// loadConfig merges the defaults, the YAML file and explicit flags.
func loadConfig(c *cli.Context) (Config, error) {
	config := defaultConfig()
	if file := c.GlobalString("config"); file != "" {
		if err := loadConfigYaml(file, &config); err != nil {
			return config, err
		}
	}
	if c.GlobalIsSet("http") {
		config.HTTP = c.GlobalString("http")
	}
	if c.GlobalIsSet("backend") {
		config.Backend = storage
	}
	if c.GlobalIsSet("phedex") {
		config.PhEDEx = c.GlobalString("phedex")
	}
	if c.GlobalIsSet("refresh-interval") {
		config.RefreshInterval = c.GlobalDuration("refresh-interval")
	}
	if c.GlobalIsSet("cache-size") {
		config.CacheSize = c.GlobalInt("cache-size")
	}
	if c.GlobalIsSet("log-level") {
		config.LogLevel = c.GlobalString("log-level")
	}
	return config, config.Validate()
}

func serve(c *cli.Context) error {
	config, err := loadConfig(c)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"err": err,
		}).Error("Could not load configuration")
		return err
	}
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	store, err := config.Backend.Store(workqueue.ElementViews)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"err":     err,
			"backend": config.Backend.String(),
		}).Error("Could not create document store")
		return err
	}
	if config.CacheSize > 0 {
		store = cache.New(store, config.CacheSize)
	}
	defer store.Close()

	var blocks workqueue.BlockService
	if config.PhEDEx != "" {
		blocks, err = dbs.New(config.PhEDEx)
		if err != nil {
			return err
		}
	} else {
		logrus.Warn("No PhEDEx URL, using an empty block catalog")
		blocks = dbs.NewStatic()
	}

	clk := clock.New()
	b := queue.NewBackendWithClock(store, blocks, wmbs.New(), clk)
	q := queue.New(b, blocks)
	q.SplitByBlock = config.SplitByBlock

	ctx := signalContext()
	go func() {
		if err := b.RunLocationRefresh(ctx, config.RefreshInterval); err != nil && ctx.Err() == nil {
			logrus.WithField("err", err).Error("Location refresh stopped")
		}
	}()
	go observe(ctx, b, clk, time.Minute)
	if config.CleanupAge > 0 && config.CleanupInterval > 0 {
		go cleanUp(ctx, b, clk, config.CleanupAge, config.CleanupInterval)
	}

	logrus.WithFields(logrus.Fields{
		"http":    config.HTTP,
		"backend": config.Backend.String(),
	}).Info("Serving work queue")
	return serveHTTP(ctx, config.HTTP, newHandler(q))
}

// cleanUp periodically deletes finished elements older than age.
func cleanUp(ctx context.Context, b *queue.Backend, clk clock.Clock, age, interval time.Duration) {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		count, err := b.CleanUp(ctx, clk.Now().Add(-age))
		if err != nil {
			logrus.WithField("err", err).Warn("Clean up failed")
		} else if count > 0 {
			logrus.WithField("elements", count).Info("Cleaned up finished elements")
		}
	}
}
