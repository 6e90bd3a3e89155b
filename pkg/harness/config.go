// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package harness

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/nyx-agent/pkg/agent"
	"github.com/google/nyx-agent/pkg/osutil"
)

const (
	InputStdin = "stdin"
	InputFile  = "file"

	// FilePlaceholder in target arguments is replaced with the input file path.
	FilePlaceholder = "@@"
)

type Config struct {
	// Target command line, e.g. ["/bin/target", "-runs=1", "@@"].
	Target []string `json:"target"`
	// How the input is passed to the target: "stdin" or "file".
	Input     string `json:"input"`
	InputFile string `json:"input_file"`
	// Per-input execution timeout, e.g. "10s".
	Timeout string `json:"timeout"`
	// Skip empty inputs without running the target.
	SkipEmpty bool `json:"skip_empty"`
	// Exit codes that are not considered crashes (0 never is).
	IgnoreExitCodes []int `json:"ignore_exit_codes"`
	// Store target output of crashing inputs on the host.
	DumpOutput   bool `json:"dump_output"`
	CompressDump bool `json:"compress_dump"`
	// Coverage map size override, 0 means use the host value.
	MapSize int `json:"map_size"`
	// "clamp" or "reject" inputs that are larger than the negotiated maximum.
	Oversize string `json:"oversize"`
	// "caller": the target is always finished when the input is skipped;
	// "hook": kill background processes left by the previous target run before the trace
	// region is reset. Only useful when the host does not roll the VM back after every input.
	Quiesce string `json:"quiesce"`

	timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Input:     InputStdin,
		InputFile: "/tmp/nyx-input",
		Timeout:   "10s",
		Oversize:  "clamp",
		Quiesce:   "caller",
	}
}

func (cfg *Config) Validate() error {
	if len(cfg.Target) == 0 || cfg.Target[0] == "" {
		return fmt.Errorf("target command is not specified")
	}
	if strings.Contains(cfg.Target[0], "/") && !osutil.IsExist(cfg.Target[0]) {
		return fmt.Errorf("target binary %v does not exist", cfg.Target[0])
	}
	switch cfg.Input {
	case InputStdin:
	case InputFile:
		if cfg.InputFile == "" {
			return fmt.Errorf("input_file is required for file input")
		}
	default:
		return fmt.Errorf("unknown input mode %q, want %q or %q", cfg.Input, InputStdin, InputFile)
	}
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return fmt.Errorf("bad timeout %q: %w", cfg.Timeout, err)
	}
	if timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", timeout)
	}
	cfg.timeout = timeout
	if cfg.MapSize < 0 || uint64(cfg.MapSize) > math.MaxUint32 {
		return fmt.Errorf("map_size %v is out of range [0, %v]", cfg.MapSize, uint64(math.MaxUint32))
	}
	if _, err := cfg.oversize(); err != nil {
		return err
	}
	if _, err := cfg.quiesce(); err != nil {
		return err
	}
	return nil
}

func (cfg *Config) oversize() (agent.OversizePolicy, error) {
	switch cfg.Oversize {
	case "", "clamp":
		return agent.Clamp, nil
	case "reject":
		return agent.Reject, nil
	}
	return 0, fmt.Errorf("unknown oversize policy %q", cfg.Oversize)
}

func (cfg *Config) quiesce() (agent.QuiescePolicy, error) {
	switch cfg.Quiesce {
	case "", "caller":
		return agent.CallerStopsTarget, nil
	case "hook":
		return agent.QuiesceHook, nil
	}
	return 0, fmt.Errorf("unknown quiesce policy %q", cfg.Quiesce)
}
