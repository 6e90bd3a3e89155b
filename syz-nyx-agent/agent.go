// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// syz-nyx-agent runs inside a Nyx VM: it negotiates with the hypervisor, receives fuzz inputs,
// runs the target on every input and reports crashes. The VM is rolled back to a snapshot
// after every input, so the agent effectively processes one input per boot.
//
// Usage:
//
//	syz-nyx-agent -config agent.cfg
//	syz-nyx-agent -target "/bin/target @@" -input file
package main

import (
	"flag"
	"strings"

	"github.com/google/nyx-agent/pkg/agent"
	"github.com/google/nyx-agent/pkg/config"
	"github.com/google/nyx-agent/pkg/harness"
	"github.com/google/nyx-agent/pkg/hypercall"
	"github.com/google/nyx-agent/pkg/log"
	"github.com/google/nyx-agent/pkg/nyx"
	"github.com/google/nyx-agent/pkg/shmem"
)

var (
	flagConfig  = flag.String("config", "", "harness config file")
	flagTarget  = flag.String("target", "", "target command line (if not set in config)")
	flagInput   = flag.String("input", "", "how to pass inputs to the target: stdin or file (if not set in config)")
	flagHostLog = flag.Int("hostlog", 0, "mirror log messages up to this verbosity to the host console (-1 to disable)")
)

const agentLogFile = "syz-nyx-agent.log"

func main() {
	flag.Parse()
	log.EnableLogCaching(1000, 1<<20)
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	caller, err := hypercall.NewVMCall()
	if err != nil {
		log.Fatal(err)
	}
	alloc := shmem.System{}
	arena, err := alloc.Locked(nyx.ArenaSize)
	if err != nil {
		log.Fatalf("failed to allocate hypercall arena: %v", err)
	}
	host, err := nyx.NewHost(caller, arena.Mem)
	if err != nil {
		log.Fatal(err)
	}
	log.SetHostSink(host, *flagHostLog)
	log.Logf(0, "agent started, target: %q", cfg.Target)

	h := harness.New(cfg)
	ctrl, err := agent.Negotiate(host, alloc, h.AgentConfig())
	if err != nil {
		fatal(host, err)
	}
	log.Logf(0, "negotiated: %v", ctrl)
	fatal(host, h.Loop(ctrl))
}

func loadConfig() (*harness.Config, error) {
	cfg := harness.DefaultConfig()
	if *flagTarget != "" {
		cfg.Target = strings.Fields(*flagTarget)
	}
	if *flagInput != "" {
		cfg.Input = *flagInput
	}
	if *flagConfig != "" {
		// LoadFile validates the result.
		if err := config.LoadFile(*flagConfig, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fatal saves the agent log on the host, tells the host the agent is done for and exits.
// Anything left in the guest is lost with the next snapshot restore.
func fatal(host *nyx.Host, err error) {
	if dumpErr := host.DumpFile(agentLogFile, []byte(log.CachedLogOutput()), false); dumpErr != nil {
		log.Logf(0, "failed to save agent log: %v", dumpErr)
	}
	if agent.IsFatal(err) {
		host.Abort(err.Error())
	}
	log.Fatal(err)
}
