// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package nyxtest

import (
	"testing"
	"unsafe"

	"github.com/google/nyx-agent/pkg/hypercall"
	"github.com/google/nyx-agent/pkg/nyx"
	"github.com/google/nyx-agent/pkg/shmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addrOf(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
}

func TestMappedStrings(t *testing.T) {
	h := NewFakeHost(1<<10, 1<<10)
	mem := make([]byte, 64)
	h.Map(mem)
	copy(mem[10:], "hello\x00")
	h.Call(hypercall.Printf, addrOf(mem)+10)
	assert.Equal(t, []string{"hello"}, h.Prints)
	assert.Empty(t, h.Violations)

	// No terminator before the end of the mapping.
	copy(mem[60:], "abcd")
	h.Call(hypercall.Printf, addrOf(mem)+60)
	assert.Equal(t, "abcd", h.Prints[1])
	assert.Len(t, h.Violations, 1)
}

func TestUnmappedAccess(t *testing.T) {
	h := NewFakeHost(1<<10, 1<<10)
	mapped := make([]byte, nyx.HostConfigSize-1)
	h.Map(mapped)
	unmapped := make([]byte, nyx.HostConfigSize)
	h.Call(hypercall.GetHostConfig, addrOf(unmapped))
	h.Call(hypercall.GetHostConfig, addrOf(mapped))
	h.Call(hypercall.Printf, addrOf(unmapped))
	assert.Len(t, h.Violations, 3)
	for _, v := range unmapped {
		require.Zero(t, v, "host wrote to memory that was not mapped")
	}
	for _, v := range mapped {
		require.Zero(t, v, "host wrote past the end of a mapping")
	}
}

func TestMapHeap(t *testing.T) {
	h := NewFakeHost(1<<10, 64)
	heap := new(shmem.Heap)
	h.MapHeap(heap)
	h.Inputs = [][]byte{[]byte("input")}
	// Regions allocated after MapHeap are visible as well.
	m, err := heap.Locked(64)
	require.NoError(t, err)
	h.Call(hypercall.GetPayload, addrOf(m.Mem))
	h.AgentConfig = new(nyx.AgentConfig)
	h.SubmitModes = []nyx.Mode{nyx.Mode64}
	h.Call(hypercall.UserFastAcquire, 0)
	assert.Empty(t, h.Violations)
	assert.Equal(t, int32(5), nyx.PayloadSize(m.Mem))
	assert.Equal(t, []byte("input"), m.Mem[nyx.PayloadHeaderSize:nyx.PayloadHeaderSize+5])
}

func TestNewHostArenaIsMapped(t *testing.T) {
	h := NewFakeHost(1<<10, 1<<10)
	host, err := h.NewHost()
	require.NoError(t, err)
	hc, err := host.GetHostConfig()
	require.NoError(t, err)
	assert.Equal(t, h.Config, *hc)
	host.Printf("ok")
	assert.Equal(t, []string{"ok"}, h.Prints)
	assert.Empty(t, h.Violations)
}
