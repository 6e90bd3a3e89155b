// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package nyxtest simulates the hypervisor side of the Nyx protocol for tests.
//
// FakeHost resolves the addresses passed in hypercalls against memory registered with Map
// and MapHeap, so tests never turn an address back into a pointer.
package nyxtest

import (
	"bytes"
	"fmt"
	"slices"
	"unsafe"

	"github.com/google/nyx-agent/pkg/hypercall"
	"github.com/google/nyx-agent/pkg/nyx"
	"github.com/google/nyx-agent/pkg/shmem"
)

type FakeHost struct {
	Config nyx.HostConfig
	// Inputs are delivered one per fast acquire; an empty input is delivered when the queue is exhausted.
	Inputs [][]byte
	// OnAcquire, if set, replaces Inputs and fills the payload buffer directly
	// (e.g. to declare a bogus size).
	OnAcquire func(payload []byte)
	// OnCall is invoked before every hypercall is handled.
	OnCall func(nr hypercall.Num)

	Calls        []hypercall.Num
	AgentConfig  *nyx.AgentConfig
	PayloadAddr  uintptr
	Registered   int
	SubmitModes  []nyx.Mode
	Snapshots    int
	Acquires     int
	Releases     int
	Panics       []string
	Aborts       []string
	Prints       []string
	Files        map[string][]byte
	Violations   []string
	LastDelivery []byte

	mem   [][]byte
	heaps []*shmem.Heap
}

// NewFakeHost returns a host that speaks the current protocol version.
func NewFakeHost(bitmapSize, payloadSize uint32) *FakeHost {
	return &FakeHost{
		Config: nyx.HostConfig{
			Magic:             nyx.HostMagic,
			Version:           nyx.HostVersion,
			BitmapSize:        bitmapSize,
			PayloadBufferSize: payloadSize,
		},
		Files: make(map[string][]byte),
	}
}

// Map makes mem addressable by the host.
func (h *FakeHost) Map(mem []byte) {
	h.mem = append(h.mem, mem)
}

// MapHeap makes all regions allocated from heap addressable, including future allocations.
func (h *FakeHost) MapHeap(heap *shmem.Heap) {
	h.heaps = append(h.heaps, heap)
}

// NewHost returns a client talking to h with a mapped argument arena.
func (h *FakeHost) NewHost() (*nyx.Host, error) {
	arena := make([]byte, nyx.ArenaSize)
	h.Map(arena)
	return nyx.NewHost(h, arena)
}

func (h *FakeHost) Call(nr hypercall.Num, arg uintptr) uintptr {
	if h.OnCall != nil {
		h.OnCall(nr)
	}
	h.Calls = append(h.Calls, nr)
	switch nr {
	case hypercall.GetHostConfig:
		copy(h.guestMem(arg, nyx.HostConfigSize), h.Config.Serialize())
	case hypercall.SetAgentConfig:
		ac, err := nyx.ParseAgentConfig(h.guestMem(arg, nyx.AgentConfigSize))
		if err != nil {
			h.violation("%v", err)
			break
		}
		h.AgentConfig = ac
	case hypercall.GetPayload:
		if arg == 0 {
			h.violation("payload registered at nil address")
		}
		h.PayloadAddr = arg
		h.Registered++
	case hypercall.UserSubmitMode:
		h.SubmitModes = append(h.SubmitModes, nyx.Mode(arg))
	case hypercall.UserFastAcquire:
		h.acquire()
	case hypercall.Release:
		if h.Snapshots == 0 {
			h.violation("release without a snapshot")
		}
		h.Releases++
	case hypercall.PanicExtended:
		h.Panics = append(h.Panics, h.guestString(arg))
	case hypercall.UserAbort:
		h.Aborts = append(h.Aborts, h.guestString(arg))
	case hypercall.Printf:
		h.Prints = append(h.Prints, h.guestString(arg))
	case hypercall.DumpFile:
		h.dumpFile(arg)
	default:
		h.violation("unexpected hypercall %v", nr)
	}
	return 0
}

func (h *FakeHost) acquire() {
	if h.PayloadAddr == 0 {
		h.violation("fast acquire before payload registration")
		return
	}
	if len(h.SubmitModes) == 0 {
		h.violation("fast acquire before submit mode")
	}
	if h.AgentConfig == nil {
		h.violation("fast acquire before agent config")
	}
	if h.Snapshots == 0 {
		h.Snapshots++
	}
	h.Acquires++
	payload := h.guestMem(h.PayloadAddr, int(h.Config.PayloadBufferSize))
	if payload == nil {
		return
	}
	if h.OnAcquire != nil {
		h.OnAcquire(payload)
		return
	}
	var input []byte
	if len(h.Inputs) != 0 {
		input, h.Inputs = h.Inputs[0], h.Inputs[1:]
	}
	n := nyx.PutPayload(payload, input)
	h.LastDelivery = input[:n]
}

func (h *FakeHost) dumpFile(arg uintptr) {
	req, err := nyx.ParseDumpFileRequest(h.guestMem(arg, 32))
	if err != nil {
		h.violation("%v", err)
		return
	}
	name := h.guestString(uintptr(req.FileNamePtr))
	var data []byte
	if req.Bytes != 0 {
		mem := h.guestMem(uintptr(req.DataPtr), int(req.Bytes))
		if mem == nil {
			return
		}
		data = bytes.Clone(mem)
	}
	if req.Append {
		h.Files[name] = append(h.Files[name], data...)
	} else {
		h.Files[name] = data
	}
}

// Count returns how many times nr was called.
func (h *FakeHost) Count(nr hypercall.Num) int {
	n := 0
	for _, call := range h.Calls {
		if call == nr {
			n++
		}
	}
	return n
}

func (h *FakeHost) violation(msg string, args ...any) {
	h.Violations = append(h.Violations, fmt.Sprintf(msg, args...))
}

// lookup returns the mapped memory starting at addr up to the end of its mapping.
func (h *FakeHost) lookup(addr uintptr) []byte {
	mappings := slices.Clone(h.mem)
	for _, heap := range h.heaps {
		for _, m := range heap.Regions {
			mappings = append(mappings, m.Mem)
		}
	}
	for _, mem := range mappings {
		if len(mem) == 0 {
			continue
		}
		base := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
		if addr >= base && addr-base < uintptr(len(mem)) {
			return mem[addr-base:]
		}
	}
	return nil
}

// guestMem returns size bytes of mapped memory at addr, or nil (and records a violation)
// if the range is not mapped.
func (h *FakeHost) guestMem(addr uintptr, size int) []byte {
	mem := h.lookup(addr)
	if len(mem) < size {
		h.violation("access to unmapped memory [%#x, %#x)", addr, addr+uintptr(size))
		return nil
	}
	return mem[:size:size]
}

// guestString reads a NUL-terminated string of at most MaxPrintf bytes.
func (h *FakeHost) guestString(addr uintptr) string {
	mem := h.lookup(addr)
	if mem == nil {
		h.violation("string at unmapped address %#x", addr)
		return ""
	}
	mem = mem[:min(len(mem), nyx.MaxPrintf)]
	n := bytes.IndexByte(mem, 0)
	if n == -1 {
		h.violation("unterminated string at %#x", addr)
		return string(mem)
	}
	return string(mem[:n])
}

// Env records published environment variables.
type Env map[string]string

func (env Env) Setenv(key, value string) error {
	env[key] = value
	return nil
}
