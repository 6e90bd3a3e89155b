// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package agent

import (
	"fmt"
	"math"
	"os"
	"strconv"
)

// MapSize forces the coverage bitmap size regardless of what the host advertises.
// It is meant to be set at link time:
//
//	go build -ldflags "-X github.com/google/nyx-agent/pkg/agent.MapSize=65536"
var MapSize = ""

// Environment variables consumed by AFL-style instrumentation in the target.
const (
	EnvShmID   = "__AFL_SHM_ID"
	EnvMapSize = "AFL_MAP_SIZE"
)

// OversizePolicy says what to do when the host declares an input larger than
// the caller buffer or the negotiated maximum.
type OversizePolicy int

const (
	// Clamp truncates the input and proceeds.
	Clamp OversizePolicy = iota
	// Reject returns a SizeOverrun fatal error.
	Reject
)

// QuiescePolicy says how the trace region is protected from target writes in Skip.
type QuiescePolicy int

const (
	// CallerStopsTarget assumes the target is not running when Skip is called.
	CallerStopsTarget QuiescePolicy = iota
	// QuiesceHook calls Config.QuiesceFunc before the trace region is reset.
	QuiesceHook
)

// Environ is where the trace region location is published for the target.
type Environ interface {
	Setenv(key, value string) error
}

type osEnviron struct{}

func (osEnviron) Setenv(key, value string) error {
	return os.Setenv(key, value)
}

type Config struct {
	// MapSize overrides the host bitmap size if non-zero (the link-time MapSize takes precedence).
	MapSize  int
	Oversize OversizePolicy
	Quiesce  QuiescePolicy
	// QuiesceFunc stops the target from writing to the trace region, used with QuiesceHook.
	QuiesceFunc func() error
	// Env defaults to the process environment.
	Env Environ
}

func (cfg *Config) mapSize(hostSize uint32) (int, string, error) {
	if MapSize != "" {
		size, err := strconv.ParseUint(MapSize, 0, 32)
		if err != nil {
			return 0, "", fmt.Errorf("bad link-time MapSize %q: %w", MapSize, err)
		}
		return int(size), "build", nil
	}
	if cfg.MapSize != 0 {
		return cfg.MapSize, "config", nil
	}
	return int(hostSize), "host", nil
}

func (cfg *Config) environ() Environ {
	if cfg.Env == nil {
		return osEnviron{}
	}
	return cfg.Env
}

func (cfg *Config) validate() error {
	if cfg.MapSize < 0 {
		return fmt.Errorf("negative map size %v", cfg.MapSize)
	}
	// The host receives the size as a 32-bit field.
	if uint64(cfg.MapSize) > math.MaxUint32 {
		return fmt.Errorf("map size %#x does not fit into 32 bits", cfg.MapSize)
	}
	if cfg.Quiesce == QuiesceHook && cfg.QuiesceFunc == nil {
		return fmt.Errorf("quiesce hook policy requires QuiesceFunc")
	}
	return nil
}
