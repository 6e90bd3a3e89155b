// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package nyx

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostConfigLayout(t *testing.T) {
	data := []byte{
		0x4e, 0x79, 0x78, 0x48, // magic
		0x02, 0x00, 0x00, 0x00, // version
		0x00, 0x00, 0x01, 0x00, // bitmap
		0x00, 0x10, 0x00, 0x00, // ijon
		0x00, 0x10, 0x00, 0x00, // payload
		0x07, 0x00, 0x00, 0x00, // worker
	}
	hc, err := ParseHostConfig(data)
	require.NoError(t, err)
	want := &HostConfig{
		Magic:             HostMagic,
		Version:           HostVersion,
		BitmapSize:        64 << 10,
		IjonBitmapSize:    4096,
		PayloadBufferSize: 4096,
		WorkerID:          7,
	}
	if diff := cmp.Diff(want, hc); diff != "" {
		t.Fatal(diff)
	}
	assert.Equal(t, data, hc.Serialize())
	_, err = ParseHostConfig(data[:10])
	assert.Error(t, err)
}

func TestAgentConfigLayout(t *testing.T) {
	ac := &AgentConfig{
		Magic:              AgentMagic,
		Version:            AgentVersion,
		Tracing:            true,
		NonReloadMode:      true,
		TraceBufferVaddr:   0x7f0000001000,
		CoverageBitmapSize: 0x10000,
	}
	data := ac.Serialize()
	require.Len(t, data, AgentConfigSize)
	assert.Equal(t, []byte{0x4e, 0x79, 0x78, 0x41}, data[0:4])
	assert.Equal(t, []byte{0, 1, 0, 1}, data[8:12])
	assert.Equal(t, []byte{0x00, 0x10, 0x00, 0x00, 0x00, 0x7f, 0x00, 0x00}, data[12:20])
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x00}, data[28:32])
	parsed, err := ParseAgentConfig(data)
	require.NoError(t, err)
	if diff := cmp.Diff(ac, parsed); diff != "" {
		t.Fatal(diff)
	}
}

func TestPayload(t *testing.T) {
	payload := make([]byte, 16)
	assert.Equal(t, 10, PutPayload(payload, []byte("0123456789")))
	assert.Equal(t, int32(10), PayloadSize(payload))
	assert.Equal(t, []byte("0123456789"), payload[PayloadHeaderSize:PayloadHeaderSize+10])

	assert.Equal(t, 12, PutPayload(payload, make([]byte, 100)))
	assert.Equal(t, int32(12), PayloadSize(payload))

	copy(payload, []byte{0xff, 0xff, 0xff, 0xff})
	assert.Equal(t, int32(-1), PayloadSize(payload))
}

func TestDumpFileRequestLayout(t *testing.T) {
	req := &DumpFileRequest{FileNamePtr: 1, DataPtr: 2, Bytes: 3, Append: true}
	parsed, err := ParseDumpFileRequest(req.Serialize())
	require.NoError(t, err)
	assert.Equal(t, req, parsed)
}
