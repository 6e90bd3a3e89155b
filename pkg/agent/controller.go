// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package agent

import (
	"fmt"

	"github.com/google/nyx-agent/pkg/log"
	"github.com/google/nyx-agent/pkg/nyx"
	"github.com/google/nyx-agent/pkg/shmem"
)

type State int

const (
	// AwaitingFirstInput: negotiated, no payload region and no snapshot yet.
	AwaitingFirstInput State = iota
	// Running: the snapshot exists, every release rolls back to it.
	Running
)

func (s State) String() string {
	switch s {
	case AwaitingFirstInput:
		return "awaiting first input"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Controller drives the per-input loop:
//
//	n, err := ctrl.NextInput(buf)
//	... run the target on buf[:n] ...
//	ctrl.Release() // or ctrl.Skip() or ctrl.Fail(msg)
//
// With a real hypervisor NextInput is entered only once: the host snapshots the VM inside it
// and every rollback resumes right after the snapshot with a new input in the payload region.
type Controller struct {
	host       *nyx.Host
	alloc      shmem.Allocator
	cfg        Config
	hostConfig nyx.HostConfig
	maxInput   int
	trace      *shmem.TraceRegion
	payload    *shmem.PayloadRegion
	state      State
}

func (ctrl *Controller) String() string {
	return fmt.Sprintf("agent{state: %v, map: %#x, max input: %#x}", ctrl.state, ctrl.trace.Size(), ctrl.maxInput)
}

// MaxInputSize is the payload buffer size advertised by the host.
func (ctrl *Controller) MaxInputSize() int {
	return ctrl.maxInput
}

func (ctrl *Controller) State() State {
	return ctrl.state
}

func (ctrl *Controller) HostConfig() nyx.HostConfig {
	return ctrl.hostConfig
}

func (ctrl *Controller) Trace() *shmem.TraceRegion {
	return ctrl.trace
}

// NextInput waits for the next input from the host and copies it into out.
// The first call registers the payload region and takes the snapshot.
// Returns the number of bytes copied, never more than len(out) or MaxInputSize.
func (ctrl *Controller) NextInput(out []byte) (int, error) {
	switch ctrl.state {
	case AwaitingFirstInput:
		if err := ctrl.setupPayload(); err != nil {
			return 0, err
		}
		ctrl.trace.Reset()
		log.Logf(0, "[init] taking snapshot")
		ctrl.host.SubmitMode(nyx.Mode64)
		ctrl.host.FastAcquire()
		ctrl.state = Running
	case Running:
		ctrl.trace.Reset()
		ctrl.host.FastAcquire()
	}
	ctrl.trace.Heartbeat()
	return ctrl.copyInput(out)
}

func (ctrl *Controller) setupPayload() error {
	if ctrl.payload != nil {
		return nil
	}
	payload, err := shmem.NewPayloadRegion(ctrl.alloc, ctrl.maxInput)
	if err != nil {
		return fatalf(ResourceExhaustion, err, "failed to create payload region")
	}
	ctrl.host.GetPayload(payload.Addr())
	log.Logf(0, "[init] payload buffer is mapped at %#x (size: %#x)", payload.Addr(), payload.Size())
	ctrl.payload = payload
	return nil
}

func (ctrl *Controller) copyInput(out []byte) (int, error) {
	limit := min(len(out), ctrl.maxInput, ctrl.payload.Capacity())
	declared := ctrl.payload.DeclaredSize()
	size := int(declared)
	if declared < 0 || size > limit {
		if ctrl.cfg.Oversize == Reject {
			return 0, fatalf(SizeOverrun, nil, "host declared input size %v, limit is %v", declared, limit)
		}
		size = limit
		if declared < 0 {
			size = 0
		}
		log.Logf(1, "host declared input size %v, clamped to %v", declared, size)
	}
	return copy(out, ctrl.payload.Data()[:size]), nil
}

// Input is NextInput into a freshly allocated buffer of MaxInputSize bytes.
func (ctrl *Controller) Input() ([]byte, error) {
	buf := make([]byte, ctrl.maxInput)
	n, err := ctrl.NextInput(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Skip discards the current input: it resets coverage and rolls the VM back.
// Unless the quiesce hook is configured, the target must already be stopped,
// otherwise its coverage writes race with the reset.
func (ctrl *Controller) Skip() error {
	if ctrl.cfg.Quiesce == QuiesceHook {
		if err := ctrl.cfg.QuiesceFunc(); err != nil {
			return fmt.Errorf("failed to quiesce target: %w", err)
		}
	}
	ctrl.trace.Reset()
	ctrl.trace.Heartbeat()
	ctrl.host.Release()
	return nil
}

// Release rolls the VM back to the snapshot, the host sees the coverage of the current input.
func (ctrl *Controller) Release() {
	ctrl.host.Release()
}

// Fail reports a crash of the current input. The host does not return from the call
// under normal operation.
func (ctrl *Controller) Fail(msg string) {
	ctrl.host.PanicExtended(msg)
}

// Abort reports that the agent can't continue.
func (ctrl *Controller) Abort(msg string) {
	ctrl.host.Abort(msg)
}

// Printf prints msg on the host console.
func (ctrl *Controller) Printf(msg string) {
	ctrl.host.Printf(msg)
}

// DumpFile stores data on the host under name.
func (ctrl *Controller) DumpFile(name string, data []byte, appendData bool) error {
	return ctrl.host.DumpFile(name, data, appendData)
}
