// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package nyx implements the guest side of the Nyx host/agent protocol:
// the packed structures exchanged with the hypervisor and a typed client for hypercalls.
package nyx

import (
	"encoding/binary"
	"fmt"
)

const (
	HostMagic    = 0x4878794e // "NyxH"
	HostVersion  = 2
	AgentMagic   = 0x4178794e // "NyxA"
	AgentVersion = 1
)

// Mode is the execution mode declared with the user_submit_mode hypercall.
type Mode uintptr

const (
	Mode64 Mode = 0
	Mode32 Mode = 1
	Mode16 Mode = 2
)

const (
	HostConfigSize  = 24
	AgentConfigSize = 37
	// PayloadHeaderSize is the size of the length field that precedes input data in the payload buffer.
	PayloadHeaderSize = 4
	dumpFileSize      = 25
	// MaxPrintf is the maximum message size accepted by the printf hypercall (including the terminating NUL).
	MaxPrintf = 0x1000
)

// HostConfig is written by the host in response to get_host_config.
type HostConfig struct {
	Magic             uint32
	Version           uint32
	BitmapSize        uint32
	IjonBitmapSize    uint32
	PayloadBufferSize uint32
	WorkerID          uint32
}

// AgentConfig is published to the host with set_agent_config.
// The addresses must stay valid for the lifetime of the process.
type AgentConfig struct {
	Magic                uint32
	Version              uint32
	TimeoutDetection     bool
	Tracing              bool
	IjonTracing          bool
	NonReloadMode        bool
	TraceBufferVaddr     uint64
	IjonTraceBufferVaddr uint64
	CoverageBitmapSize   uint32
	// InputBufferSize overrides the host payload size if non-zero.
	InputBufferSize uint32
	DumpPayloads    bool
}

func ParseHostConfig(data []byte) (*HostConfig, error) {
	if len(data) < HostConfigSize {
		return nil, fmt.Errorf("host config is too short: %v bytes", len(data))
	}
	le := binary.LittleEndian
	return &HostConfig{
		Magic:             le.Uint32(data[0:]),
		Version:           le.Uint32(data[4:]),
		BitmapSize:        le.Uint32(data[8:]),
		IjonBitmapSize:    le.Uint32(data[12:]),
		PayloadBufferSize: le.Uint32(data[16:]),
		WorkerID:          le.Uint32(data[20:]),
	}, nil
}

func (hc *HostConfig) Serialize() []byte {
	data := make([]byte, HostConfigSize)
	le := binary.LittleEndian
	le.PutUint32(data[0:], hc.Magic)
	le.PutUint32(data[4:], hc.Version)
	le.PutUint32(data[8:], hc.BitmapSize)
	le.PutUint32(data[12:], hc.IjonBitmapSize)
	le.PutUint32(data[16:], hc.PayloadBufferSize)
	le.PutUint32(data[20:], hc.WorkerID)
	return data
}

func (ac *AgentConfig) Serialize() []byte {
	data := make([]byte, AgentConfigSize)
	le := binary.LittleEndian
	le.PutUint32(data[0:], ac.Magic)
	le.PutUint32(data[4:], ac.Version)
	data[8] = boolByte(ac.TimeoutDetection)
	data[9] = boolByte(ac.Tracing)
	data[10] = boolByte(ac.IjonTracing)
	data[11] = boolByte(ac.NonReloadMode)
	le.PutUint64(data[12:], ac.TraceBufferVaddr)
	le.PutUint64(data[20:], ac.IjonTraceBufferVaddr)
	le.PutUint32(data[28:], ac.CoverageBitmapSize)
	le.PutUint32(data[32:], ac.InputBufferSize)
	data[36] = boolByte(ac.DumpPayloads)
	return data
}

func ParseAgentConfig(data []byte) (*AgentConfig, error) {
	if len(data) < AgentConfigSize {
		return nil, fmt.Errorf("agent config is too short: %v bytes", len(data))
	}
	le := binary.LittleEndian
	return &AgentConfig{
		Magic:                le.Uint32(data[0:]),
		Version:              le.Uint32(data[4:]),
		TimeoutDetection:     data[8] != 0,
		Tracing:              data[9] != 0,
		IjonTracing:          data[10] != 0,
		NonReloadMode:        data[11] != 0,
		TraceBufferVaddr:     le.Uint64(data[12:]),
		IjonTraceBufferVaddr: le.Uint64(data[20:]),
		CoverageBitmapSize:   le.Uint32(data[28:]),
		InputBufferSize:      le.Uint32(data[32:]),
		DumpPayloads:         data[36] != 0,
	}, nil
}

// PayloadSize decodes the length field of a payload buffer.
// The field is signed on the wire; negative values are returned as is and must be rejected by the caller.
func PayloadSize(payload []byte) int32 {
	return int32(binary.LittleEndian.Uint32(payload))
}

// PutPayload is the host side of the payload layout: it stores data into payload
// and returns the number of data bytes that fit.
func PutPayload(payload, data []byte) int {
	n := copy(payload[PayloadHeaderSize:], data)
	binary.LittleEndian.PutUint32(payload, uint32(n))
	return n
}

// DumpFileRequest is the argument of the dump_file hypercall.
type DumpFileRequest struct {
	FileNamePtr uint64
	DataPtr     uint64
	Bytes       uint64
	Append      bool
}

func (req *DumpFileRequest) Serialize() []byte {
	data := make([]byte, dumpFileSize)
	le := binary.LittleEndian
	le.PutUint64(data[0:], req.FileNamePtr)
	le.PutUint64(data[8:], req.DataPtr)
	le.PutUint64(data[16:], req.Bytes)
	data[24] = boolByte(req.Append)
	return data
}

func ParseDumpFileRequest(data []byte) (*DumpFileRequest, error) {
	if len(data) < dumpFileSize {
		return nil, fmt.Errorf("dump file request is too short: %v bytes", len(data))
	}
	le := binary.LittleEndian
	return &DumpFileRequest{
		FileNamePtr: le.Uint64(data[0:]),
		DataPtr:     le.Uint64(data[8:]),
		Bytes:       le.Uint64(data[16:]),
		Append:      data[24] != 0,
	}, nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
