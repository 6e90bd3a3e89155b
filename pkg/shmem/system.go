// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package shmem

import (
	"github.com/google/nyx-agent/pkg/osutil"
)

const (
	// The trace segment key is derived the same way AFL-style runtimes expect it.
	traceKeyPath = "/tmp"
	traceKeyProj = 'T'
)

// System allocates shared regions as System V segments and locked regions as
// mlocked anonymous mappings.
type System struct{}

func (System) Shared(size int) (*Mapping, error) {
	key, err := osutil.Ftok(traceKeyPath, traceKeyProj)
	if err != nil {
		return nil, err
	}
	id, mem, err := osutil.CreateSysVShm(key, size)
	if err != nil {
		return nil, err
	}
	// The segment may be left over from a previous agent with the same key.
	clear(mem)
	return &Mapping{ID: id, Mem: mem}, nil
}

func (System) Locked(size int) (*Mapping, error) {
	mem, err := osutil.MapLocked(size)
	if err != nil {
		return nil, err
	}
	return &Mapping{ID: -1, Mem: mem}, nil
}
