// Copyright 2015-2017 The go-workqueue Authors.
// This software is released under an MIT/X11 open source license.

package main

import (
	"fmt"
	"io/ioutil"
	"time"

	"github.com/dmwm/go-workqueue/backend"
	"gopkg.in/yaml.v2"
)

// Config holds the daemon settings.  Values from a YAML file are
// overridden by explicitly given command-line flags.
type Config struct {
	// HTTP is the [ip]:port of the REST interface.
	HTTP string `yaml:"http"`

	// Backend is the document store, as impl[:address].
	Backend backend.Backend `yaml:"backend"`

	// PhEDEx is the base URL of the PhEDEx data service.  If
	// empty, an empty in-process block catalog is used.
	PhEDEx string `yaml:"phedex_url"`

	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// CleanupAge is how long finished elements are kept.  Zero
	// keeps them forever.
	CleanupAge      time.Duration `yaml:"cleanup_age"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	SplitByBlock bool `yaml:"split_by_block"`

	// CacheSize is the number of documents kept in the read
	// cache in front of the store; zero disables it.
	CacheSize int `yaml:"cache_size"`

	LogLevel string `yaml:"log_level"`
}

// defaultConfig returns the settings used when neither the file nor
// a flag says otherwise.
func defaultConfig() Config {
	return Config{
		HTTP:            ":5980",
		Backend:         backend.Backend{Implementation: "memory"},
		RefreshInterval: 10 * time.Minute,
		CleanupAge:      7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
		SplitByBlock:    true,
		CacheSize:       1024,
		LogLevel:        "info",
	}
}

func loadConfigYaml(filename string, config *Config) error {
	bytes, err := ioutil.ReadFile(filename)
	if err == nil {
		err = yaml.Unmarshal(bytes, config)
	}
	return err
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive, not %v", c.RefreshInterval)
	}
	if c.CleanupAge < 0 || c.CleanupInterval < 0 {
		return fmt.Errorf("cleanup_age and cleanup_interval must not be negative")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative, not %v", c.CacheSize)
	}
	return nil
}
