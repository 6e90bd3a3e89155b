// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package agent implements the guest half of the Nyx snapshot fuzzing loop:
// the one-time capability negotiation with the hypervisor and the per-input
// acquire/run/reset control flow.
package agent

import (
	"strconv"

	"github.com/google/nyx-agent/pkg/log"
	"github.com/google/nyx-agent/pkg/nyx"
	"github.com/google/nyx-agent/pkg/shmem"
)

// Negotiate performs the handshake with the host. It must be called once per process;
// the returned Controller carries all state needed by the fuzzing loop.
//
// Any *FatalError means the agent can't work in this environment.
func Negotiate(host *nyx.Host, alloc shmem.Allocator, cfg *Config) (*Controller, error) {
	if cfg == nil {
		cfg = new(Config)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	hc, err := host.GetHostConfig()
	if err != nil {
		return nil, fatalf(ProtocolMismatch, err, "failed to read host config")
	}
	if hc.Magic != nyx.HostMagic {
		return nil, fatalf(ProtocolMismatch, nil, "host magic %#x, want %#x: the hypervisor is not Nyx "+
			"or predates this protocol", hc.Magic, nyx.HostMagic)
	}
	if hc.Version != nyx.HostVersion {
		return nil, fatalf(ProtocolMismatch, nil, "host protocol version %v, want %v",
			hc.Version, nyx.HostVersion)
	}
	log.Logf(0, "[capabilities] host_config.bitmap_size: %#x", hc.BitmapSize)
	log.Logf(0, "[capabilities] host_config.ijon_bitmap_size: %#x", hc.IjonBitmapSize)
	log.Logf(0, "[capabilities] host_config.payload_buffer_size: %#x", hc.PayloadBufferSize)
	if hc.PayloadBufferSize <= nyx.PayloadHeaderSize {
		return nil, fatalf(ProtocolMismatch, nil, "host payload buffer size %v is too small",
			hc.PayloadBufferSize)
	}
	mapSize, source, err := cfg.mapSize(hc.BitmapSize)
	if err != nil {
		return nil, fatalf(ProtocolMismatch, err, "can't determine map size")
	}
	if mapSize == 0 {
		return nil, fatalf(ProtocolMismatch, nil, "coverage bitmap size is 0")
	}
	log.Logf(0, "[init] using %v map size: %#x", source, mapSize)

	trace, err := shmem.NewTraceRegion(alloc, mapSize)
	if err != nil {
		return nil, fatalf(ResourceExhaustion, err, "failed to create trace region")
	}
	env := cfg.environ()
	if err := env.Setenv(EnvShmID, strconv.Itoa(trace.ID())); err != nil {
		return nil, fatalf(ResourceExhaustion, err, "failed to publish %v", EnvShmID)
	}
	if err := env.Setenv(EnvMapSize, strconv.Itoa(mapSize)); err != nil {
		return nil, fatalf(ResourceExhaustion, err, "failed to publish %v", EnvMapSize)
	}

	host.SetAgentConfig(&nyx.AgentConfig{
		Magic:              nyx.AgentMagic,
		Version:            nyx.AgentVersion,
		TimeoutDetection:   false,
		Tracing:            true,
		IjonTracing:        false,
		NonReloadMode:      true,
		TraceBufferVaddr:   uint64(trace.Addr()),
		CoverageBitmapSize: uint32(mapSize),
	})

	return &Controller{
		host:       host,
		alloc:      alloc,
		cfg:        *cfg,
		hostConfig: *hc,
		maxInput:   int(hc.PayloadBufferSize),
		trace:      trace,
	}, nil
}
