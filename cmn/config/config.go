// Package config loads and publishes process-wide, read-mostly
// configuration, grounded on the teacher's cmn.GCO/Rom pattern
// (cmn/rom.go): a global atomically-swapped pointer, read far more
// often than it's written.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package config

import (
	"os"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Config holds every tunable named in the spec: tick duration, the
// catch-up tick cap, transport interval/timeout, the default
// state-scheduler buffering length, and the shared handshake secret.
type Config struct {
	Tick struct {
		Duration              time.Duration `json:"duration"`
		MaxConsecutiveUpdates int           `json:"max_consecutive_updates"`
		PreciseTiming         bool          `json:"precise_timing"`
	} `json:"tick"`

	Transport struct {
		Interval      int    `json:"interval"`        // ticks between heartbeats
		TimeoutMs     int    `json:"timeout_ms"`      // 0 disables the timer
		Passphrase    string `json:"passphrase"`
		MaxRetransmit int    `json:"max_retransmit_per_tick"`
		CompressAbove int    `json:"compress_above_bytes"`
	} `json:"transport"`

	Sync struct {
		DefaultBufferingLength int `json:"default_buffering_length"`
	} `json:"sync"`
}

var jsonc = jsoniter.ConfigCompatibleWithStandardLibrary

func Default() *Config {
	c := &Config{}
	c.Tick.Duration = 16 * time.Millisecond
	c.Tick.MaxConsecutiveUpdates = 4
	c.Transport.Interval = 1
	c.Transport.TimeoutMs = 30_000
	c.Transport.MaxRetransmit = 16
	c.Transport.CompressAbove = 8 * 1024
	c.Sync.DefaultBufferingLength = 2
	return c
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: failed to read %s", path)
	}
	c := Default()
	if err := jsonc.Unmarshal(b, c); err != nil {
		return nil, errors.Wrapf(err, "config: failed to parse %s", path)
	}
	return c, nil
}

// GCO mirrors the teacher's global-config-owner: one atomically
// swapped pointer, readers call GCO.Get(), writers call GCO.Set(cfg).
var GCO globalOwner

type globalOwner struct {
	p atomic.Pointer[Config]
}

func (g *globalOwner) Get() *Config {
	if c := g.p.Load(); c != nil {
		return c
	}
	return Default()
}

func (g *globalOwner) Set(c *Config) { g.p.Store(c) }

func init() { GCO.Set(Default()) }
