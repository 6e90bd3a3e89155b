// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package harness runs an external target program on every input received from the host
// and reports the outcome back through the agent.
package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"github.com/google/nyx-agent/pkg/agent"
	"github.com/google/nyx-agent/pkg/log"
	"github.com/google/nyx-agent/pkg/osutil"
	"github.com/google/uuid"
	"github.com/ulikunitz/xz"
)

// Agent is the part of agent.Controller used by the harness.
type Agent interface {
	MaxInputSize() int
	NextInput(out []byte) (int, error)
	Skip() error
	Release()
	Fail(msg string)
	DumpFile(name string, data []byte, appendData bool) error
}

type Outcome int

const (
	Released Outcome = iota
	Skipped
	Crashed
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Released:
		return "released"
	case Skipped:
		return "skipped"
	case Crashed:
		return "crashed"
	case TimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

type Stats struct {
	Execs    uint64
	Skips    uint64
	Crashes  uint64
	Timeouts uint64
}

type Harness struct {
	cfg   *Config
	buf   []byte
	pgid  int
	Stats Stats
}

// New creates a harness for a validated config.
func New(cfg *Config) *Harness {
	return &Harness{cfg: cfg}
}

// AgentConfig returns the negotiation settings derived from the harness config.
func (h *Harness) AgentConfig() *agent.Config {
	oversize, _ := h.cfg.oversize()
	quiesce, _ := h.cfg.quiesce()
	cfg := &agent.Config{
		MapSize:  h.cfg.MapSize,
		Oversize: oversize,
		Quiesce:  quiesce,
	}
	if quiesce == agent.QuiesceHook {
		cfg.QuiesceFunc = h.quiesce
	}
	return cfg
}

// quiesce kills processes that the last target run left running in the background,
// they may still write coverage. A host that rolls the VM back after every input never
// leaves any, so this guards hosts running in non-reload mode and the simulated host.
func (h *Harness) quiesce() error {
	if h.pgid != 0 && osutil.ProcessGroupAlive(h.pgid) {
		log.Logf(1, "killing leftover processes of group %v", h.pgid)
		osutil.KillProcessGroup(h.pgid)
	}
	h.pgid = 0
	return nil
}

// Loop processes inputs until a fatal error.
func (h *Harness) Loop(a Agent) error {
	for {
		if _, err := h.RunOnce(a); err != nil {
			return err
		}
	}
}

// RunOnce receives one input, runs the target on it and reports the result.
func (h *Harness) RunOnce(a Agent) (Outcome, error) {
	if len(h.buf) != a.MaxInputSize() {
		h.buf = make([]byte, a.MaxInputSize())
	}
	n, err := a.NextInput(h.buf)
	if err != nil {
		return 0, err
	}
	input := h.buf[:n]
	if n == 0 && h.cfg.SkipEmpty {
		h.Stats.Skips++
		return Skipped, a.Skip()
	}
	cmd, err := h.command(input)
	if err != nil {
		return 0, err
	}
	h.Stats.Execs++
	output, err := osutil.Run(h.cfg.timeout, cmd)
	// Remember the group only while it has members, so a reused id is never killed.
	h.pgid = 0
	if cmd.Process != nil && osutil.ProcessGroupAlive(cmd.Process.Pid) {
		h.pgid = cmd.Process.Pid
	}
	if err == nil {
		log.Logf(2, "input of %v bytes: ok", n)
		a.Release()
		return Released, nil
	}
	var verr *osutil.VerboseError
	if !errors.As(err, &verr) {
		return 0, osutil.PrependContext("failed to run target", err)
	}
	if !verr.Timeout && verr.Signal == 0 && slices.Contains(h.cfg.IgnoreExitCodes, verr.ExitCode) {
		log.Logf(2, "input of %v bytes: ignored exit status %v", n, verr.ExitCode)
		a.Release()
		return Released, nil
	}
	outcome := Crashed
	h.Stats.Crashes++
	if verr.Timeout {
		outcome = TimedOut
		h.Stats.Timeouts++
	}
	title := crashTitle(h.cfg.Target[0], verr, output)
	log.Logf(0, "input of %v bytes %v: %v", n, outcome, title)
	if h.cfg.DumpOutput && len(output) != 0 {
		if name, err := h.dump(a, output); err != nil {
			log.Logf(0, "failed to dump target output: %v", err)
		} else {
			title = fmt.Sprintf("%v (output: %v)", title, name)
		}
	}
	a.Fail(title)
	// A real host never returns from Fail.
	return outcome, nil
}

func (h *Harness) command(input []byte) (*exec.Cmd, error) {
	args := append([]string{}, h.cfg.Target[1:]...)
	if h.cfg.Input == InputFile {
		if err := osutil.WriteFile(h.cfg.InputFile, input); err != nil {
			return nil, fmt.Errorf("failed to write input file: %w", err)
		}
		for i, arg := range args {
			args[i] = strings.ReplaceAll(arg, FilePlaceholder, h.cfg.InputFile)
		}
	}
	cmd := osutil.Command(h.cfg.Target[0], args...)
	if h.cfg.Input == InputStdin {
		cmd.Stdin = bytes.NewReader(input)
	}
	return cmd, nil
}

func (h *Harness) dump(a Agent, output []byte) (string, error) {
	name := fmt.Sprintf("crash-%v.log", uuid.New())
	data := output
	if h.cfg.CompressDump {
		buf := new(bytes.Buffer)
		w, err := xz.NewWriter(buf)
		if err != nil {
			return "", err
		}
		if _, err := w.Write(output); err != nil {
			return "", err
		}
		if err := w.Close(); err != nil {
			return "", err
		}
		name += ".xz"
		data = buf.Bytes()
	}
	if err := a.DumpFile(name, data, false); err != nil {
		return "", err
	}
	return name, nil
}
