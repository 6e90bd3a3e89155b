// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package shmem manages the memory regions shared between the agent and the hypervisor:
// the trace region (coverage bitmap written by the target, read by the host) and
// the payload region (fuzz input written by the host, read by the agent).
//
// Regions are never unmapped: the host keeps their addresses until the process dies
// or the VM is rolled back.
package shmem

import (
	"fmt"
	"unsafe"

	"github.com/google/nyx-agent/pkg/nyx"
)

// Mapping is a piece of memory that the host may access by virtual address.
type Mapping struct {
	// ID identifies the mapping for other processes (System V shm id), -1 if it is private.
	ID  int
	Mem []byte
}

type Allocator interface {
	// Shared creates a zeroed region that other processes can attach by Mapping.ID.
	Shared(size int) (*Mapping, error)
	// Locked creates a zeroed private region that can't be paged out.
	Locked(size int) (*Mapping, error)
}

// HeartbeatValue is stored in the first byte of the trace region while an iteration is in progress.
const HeartbeatValue = 1

// TraceRegion is the coverage bitmap shared with the host and the instrumented target.
type TraceRegion struct {
	m *Mapping
}

func NewTraceRegion(alloc Allocator, size int) (*TraceRegion, error) {
	if size <= 0 {
		return nil, fmt.Errorf("bad trace region size %v", size)
	}
	m, err := alloc.Shared(size)
	if err != nil {
		return nil, err
	}
	if len(m.Mem) != size {
		return nil, fmt.Errorf("allocator returned %v bytes for trace region of size %v", len(m.Mem), size)
	}
	tr := &TraceRegion{m: m}
	tr.Reset()
	return tr, nil
}

// Reset zeroes the whole region including the heartbeat byte.
func (tr *TraceRegion) Reset() {
	clear(tr.m.Mem)
}

// Heartbeat marks the current iteration as alive.
func (tr *TraceRegion) Heartbeat() {
	tr.m.Mem[0] = HeartbeatValue
}

func (tr *TraceRegion) Size() int {
	return len(tr.m.Mem)
}

func (tr *TraceRegion) ID() int {
	return tr.m.ID
}

func (tr *TraceRegion) Addr() uintptr {
	return addrOf(tr.m.Mem)
}

// Bytes returns the live region memory.
func (tr *TraceRegion) Bytes() []byte {
	return tr.m.Mem
}

// PayloadRegion is the locked buffer the host writes inputs into.
// Layout: a 32-bit length followed by the input data.
type PayloadRegion struct {
	m *Mapping
}

func NewPayloadRegion(alloc Allocator, size int) (*PayloadRegion, error) {
	if size <= nyx.PayloadHeaderSize {
		return nil, fmt.Errorf("payload region of size %v can't hold the header", size)
	}
	m, err := alloc.Locked(size)
	if err != nil {
		return nil, err
	}
	if len(m.Mem) != size {
		return nil, fmt.Errorf("allocator returned %v bytes for payload region of size %v", len(m.Mem), size)
	}
	clear(m.Mem)
	return &PayloadRegion{m: m}, nil
}

func (pr *PayloadRegion) Addr() uintptr {
	return addrOf(pr.m.Mem)
}

func (pr *PayloadRegion) Size() int {
	return len(pr.m.Mem)
}

// Capacity is the maximum number of input bytes the region can hold.
func (pr *PayloadRegion) Capacity() int {
	return len(pr.m.Mem) - nyx.PayloadHeaderSize
}

// DeclaredSize is the untrusted length written by the host.
func (pr *PayloadRegion) DeclaredSize() int32 {
	return nyx.PayloadSize(pr.m.Mem)
}

// Data returns the input area of the region (Capacity bytes).
func (pr *PayloadRegion) Data() []byte {
	return pr.m.Mem[nyx.PayloadHeaderSize:]
}

func addrOf(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(&mem[0]))
}

// Heap allocates regions from the Go heap.
// They are neither visible to other processes nor locked; Heap is meant for tests
// and for exercising the agent outside of a VM.
type Heap struct {
	// Regions keeps every allocation reachable.
	Regions []*Mapping
}

func (h *Heap) Shared(size int) (*Mapping, error) {
	return h.alloc(size)
}

func (h *Heap) Locked(size int) (*Mapping, error) {
	return h.alloc(size)
}

func (h *Heap) alloc(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, fmt.Errorf("bad region size %v", size)
	}
	m := &Mapping{ID: -1, Mem: make([]byte, size)}
	h.Regions = append(h.Regions, m)
	return m, nil
}
