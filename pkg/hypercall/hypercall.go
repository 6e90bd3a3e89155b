// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package hypercall provides the raw privileged call interface between a guest process
// and a Nyx/kAFL-style hypervisor.
//
// Every call takes a hypercall number and at most one pointer-sized argument.
// Calls block until the host has finished handling them; the host may also never return
// (e.g. it rolls the VM back to a snapshot instead).
package hypercall

import (
	"fmt"
)

// Num is a hypercall number passed in rbx.
type Num uintptr

// Note: the numbering is fixed by the hypervisor ABI, gaps are intentional.
const (
	Acquire         Num = 0
	GetPayload      Num = 1
	Release         Num = 4
	Panic           Num = 8
	NextPayload     Num = 12
	Printf          Num = 13
	UserSubmitMode  Num = 17
	UserFastAcquire Num = 18
	UserAbort       Num = 20
	PanicExtended   Num = 32
	GetHostConfig   Num = 35
	SetAgentConfig  Num = 36
	DumpFile        Num = 37
)

// ID is placed into rax to mark the vmcall as a kAFL hypercall.
const ID = 0x1f

var names = map[Num]string{
	Acquire:         "acquire",
	GetPayload:      "get_payload",
	Release:         "release",
	Panic:           "panic",
	NextPayload:     "next_payload",
	Printf:          "printf",
	UserSubmitMode:  "user_submit_mode",
	UserFastAcquire: "user_fast_acquire",
	UserAbort:       "user_abort",
	PanicExtended:   "panic_extended",
	GetHostConfig:   "get_host_config",
	SetAgentConfig:  "set_agent_config",
	DumpFile:        "dump_file",
}

func (nr Num) String() string {
	if name, ok := names[nr]; ok {
		return name
	}
	return fmt.Sprintf("hypercall(%d)", uintptr(nr))
}

// Caller issues hypercalls. The real implementation is VMCall,
// tests substitute a simulated host.
type Caller interface {
	Call(nr Num, arg uintptr) uintptr
}

// VMCall issues hypercalls with the vmcall instruction.
type VMCall struct{}

// NewVMCall returns the hardware hypercall implementation,
// or an error if the current architecture cannot issue vmcall.
func NewVMCall() (*VMCall, error) {
	if !supported {
		return nil, ErrUnsupported
	}
	return &VMCall{}, nil
}

func (*VMCall) Call(nr Num, arg uintptr) uintptr {
	return vmcall(uintptr(nr), arg)
}
