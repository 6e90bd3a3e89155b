// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package nyx

import (
	"fmt"
	"sync"
	"unicode/utf8"
	"unsafe"

	"github.com/google/nyx-agent/pkg/hypercall"
)

// Arena layout. Everything the host dereferences lives in the arena,
// the arena itself is locked in memory by the allocator.
const (
	arenaStructOff  = 0
	arenaStructSize = 64
	arenaStringOff  = arenaStructOff + arenaStructSize
	arenaDataOff    = arenaStringOff + MaxPrintf
	// ArenaSize is the size of the memory that must be passed to NewHost.
	ArenaSize    = 3 << 12
	dumpChunk    = ArenaSize - arenaDataOff
	maxFileName  = MaxPrintf - 1
	truncatedMsg = "...[truncated]"
)

// Host is a typed client for the hypercalls of the Nyx protocol.
type Host struct {
	mu     sync.Mutex
	caller hypercall.Caller
	arena  []byte
}

func NewHost(caller hypercall.Caller, arena []byte) (*Host, error) {
	if len(arena) < ArenaSize {
		return nil, fmt.Errorf("hypercall arena is too small: %v bytes, need %v", len(arena), ArenaSize)
	}
	return &Host{
		caller: caller,
		arena:  arena[:ArenaSize:ArenaSize],
	}, nil
}

func (h *Host) addr(off int) uintptr {
	return uintptr(unsafe.Pointer(&h.arena[off]))
}

func (h *Host) call(nr hypercall.Num, arg uintptr) uintptr {
	return h.caller.Call(nr, arg)
}

// GetHostConfig asks the host to describe itself.
// The call has no failure indication: a host that does not understand it leaves
// the buffer zeroed, which fails magic validation.
func (h *Host) GetHostConfig() (*HostConfig, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf := h.arena[arenaStructOff : arenaStructOff+arenaStructSize]
	clear(buf)
	h.call(hypercall.GetHostConfig, h.addr(arenaStructOff))
	return ParseHostConfig(buf)
}

func (h *Host) SetAgentConfig(ac *AgentConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf := h.arena[arenaStructOff : arenaStructOff+arenaStructSize]
	clear(buf)
	copy(buf, ac.Serialize())
	h.call(hypercall.SetAgentConfig, h.addr(arenaStructOff))
}

// GetPayload registers the payload buffer at addr; the host writes every future input there.
func (h *Host) GetPayload(addr uintptr) {
	h.call(hypercall.GetPayload, addr)
}

func (h *Host) SubmitMode(mode Mode) {
	h.call(hypercall.UserSubmitMode, uintptr(mode))
}

// FastAcquire takes the snapshot if the host does not have one yet,
// then suspends the VM until the host has written the next input.
func (h *Host) FastAcquire() {
	h.call(hypercall.UserFastAcquire, 0)
}

// Release rolls the VM back to the snapshot.
func (h *Host) Release() {
	h.call(hypercall.Release, 0)
}

// PanicExtended reports a failure of the current input. The host is not expected to return.
func (h *Host) PanicExtended(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.call(hypercall.PanicExtended, h.putString(msg))
}

// Abort tells the host that the agent cannot continue at all (e.g. protocol mismatch).
func (h *Host) Abort(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.call(hypercall.UserAbort, h.putString(msg))
}

// Printf prints msg on the host console. Long messages are split.
func (h *Host) Printf(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		chunk := utf8Prefix(msg, MaxPrintf-1)
		h.call(hypercall.Printf, h.putString(chunk))
		msg = msg[len(chunk):]
		if msg == "" {
			return
		}
	}
}

// DumpFile stores data in the host work directory under name.
// Data is transferred in arena-sized chunks; all chunks after the first one are appended.
func (h *Host) DumpFile(name string, data []byte, appendData bool) error {
	if name == "" || len(name) > maxFileName {
		return fmt.Errorf("bad dump file name %q", name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for first := true; first || len(data) != 0; first = false {
		n := min(len(data), dumpChunk)
		copy(h.arena[arenaDataOff:], data[:n])
		req := &DumpFileRequest{
			FileNamePtr: uint64(h.putString(name)),
			DataPtr:     uint64(h.addr(arenaDataOff)),
			Bytes:       uint64(n),
			Append:      appendData || !first,
		}
		buf := h.arena[arenaStructOff : arenaStructOff+arenaStructSize]
		clear(buf)
		copy(buf, req.Serialize())
		h.call(hypercall.DumpFile, h.addr(arenaStructOff))
		data = data[n:]
	}
	return nil
}

// putString stores a NUL-terminated copy of s in the arena and returns its address.
func (h *Host) putString(s string) uintptr {
	if len(s) > MaxPrintf-1 {
		s = utf8Prefix(s, MaxPrintf-1-len(truncatedMsg)) + truncatedMsg
	}
	buf := h.arena[arenaStringOff : arenaStringOff+MaxPrintf]
	n := copy(buf, s)
	buf[n] = 0
	return h.addr(arenaStringOff)
}

// utf8Prefix returns at most n bytes of s without splitting a UTF-8 sequence.
// Invalid input is cut at n.
func utf8Prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for i := n; i > 0 && i > n-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			return s[:i]
		}
	}
	return s[:n]
}
