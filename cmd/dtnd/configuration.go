// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"

	"github.com/opendtn/dtn7-core/pkg/cbor"
	"github.com/opendtn/dtn7-core/pkg/reassembly"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Logging   logConf
	Cbor      cborConf
	Buffer    bufferConf
	Store     storeConf
	Agent     agentConf
	Spool     spoolConf
	Profiling bool
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// cborConf describes the decoder limits for received Bundles. Zero values take the defaults.
type cborConf struct {
	StringSize          uint64 `toml:"string-size"`
	UTF8Size            uint64 `toml:"utf8-size"`
	ArraySize           uint64 `toml:"array-size"`
	IndefiniteArraySize uint64 `toml:"indefinite-array-size"`
	MapSize             uint64 `toml:"map-size"`
	IndefiniteMapSize   uint64 `toml:"indefinite-map-size"`
	MaxDepth            int    `toml:"max-depth"`
}

// bufferConf describes the reassembly buffer.
type bufferConf struct {
	MaxBufferTime   string `toml:"max-buffer-time"`
	HistoryTTL      string `toml:"history-ttl"`
	CleanupInterval string `toml:"cleanup-interval"`
	LockTimeout     string `toml:"lock-timeout"`
}

// storeConf describes the payload store.
type storeConf struct {
	Path            string
	TTL             string `toml:"ttl"`
	CleanupInterval string `toml:"cleanup-interval"`
}

// agentConf describes the HTTP server for the REST and WebSocket agents.
type agentConf struct {
	Listen        string
	MaxBundleSize int64 `toml:"max-bundle-size"`
}

// spoolConf describes the directory watched for Bundle files.
type spoolConf struct {
	Directory string
	Remove    bool
}

func (conf cborConf) limits() cbor.Limits {
	return cbor.Limits{
		StringSize:          conf.StringSize,
		UTF8Size:            conf.UTF8Size,
		ArraySize:           conf.ArraySize,
		IndefiniteArraySize: conf.IndefiniteArraySize,
		MapSize:             conf.MapSize,
		IndefiniteMapSize:   conf.IndefiniteMapSize,
		MaxDepth:            conf.MaxDepth,
	}
}

// parseDuration parses an optional duration; an empty string results in zero.
func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func (conf bufferConf) config() (c reassembly.Config, err error) {
	for _, f := range []struct {
		name  string
		value string
		field *time.Duration
	}{
		{"buffer.max-buffer-time", conf.MaxBufferTime, &c.MaxBufferTime},
		{"buffer.history-ttl", conf.HistoryTTL, &c.HistoryTTL},
		{"buffer.cleanup-interval", conf.CleanupInterval, &c.CleanupInterval},
		{"buffer.lock-timeout", conf.LockTimeout, &c.LockTimeout},
	} {
		if *f.field, err = parseDuration(f.name, f.value); err != nil {
			return
		}
	}
	return
}

// configureLogging applies the Logging-configuration block to logrus.
func configureLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}
}

// parseConfig reads the TOML configuration and creates the node.
func parseConfig(filename string) (n *node, profiling bool, err error) {
	var conf tomlConfig
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	configureLogging(conf.Logging)

	if conf.Store.Path == "" {
		err = fmt.Errorf("store.path is empty")
		return
	}
	if conf.Agent.Listen == "" {
		err = fmt.Errorf("agent.listen is empty")
		return
	}

	nc := nodeConf{
		limits:        conf.Cbor.limits(),
		storePath:     conf.Store.Path,
		listen:        conf.Agent.Listen,
		maxBundleSize: conf.Agent.MaxBundleSize,
		spoolDir:      conf.Spool.Directory,
		spoolRemove:   conf.Spool.Remove,
	}

	if nc.buffer, err = conf.Buffer.config(); err != nil {
		return
	}
	if nc.storeTTL, err = parseDuration("store.ttl", conf.Store.TTL); err != nil {
		return
	}
	if nc.storeCleanup, err = parseDuration("store.cleanup-interval", conf.Store.CleanupInterval); err != nil {
		return
	}

	n, err = newNode(nc)
	profiling = conf.Profiling
	return
}
