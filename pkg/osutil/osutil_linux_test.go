// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestFtokStable(t *testing.T) {
	key1, err := Ftok("/tmp", 'T')
	require.NoError(t, err)
	key2, err := Ftok("/tmp", 'T')
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
	assert.Equal(t, int('T'), key1>>24)
	key3, err := Ftok("/tmp", 'P')
	require.NoError(t, err)
	assert.NotEqual(t, key1, key3)
}

func TestFtokMissing(t *testing.T) {
	_, err := Ftok("/this/path/does/not/exist", 'T')
	assert.Error(t, err)
}

func TestMapLocked(t *testing.T) {
	mem, err := MapLocked(4096)
	if err != nil {
		// RLIMIT_MEMLOCK may be tiny in containers.
		t.Skipf("mlock is not permitted: %v", err)
	}
	defer unix.Munmap(mem)
	require.Len(t, mem, 4096)
	for i, v := range mem {
		if v != 0 {
			t.Fatalf("byte %v is not zero", i)
		}
	}
	mem[100] = 1
}

func TestCreateSysVShm(t *testing.T) {
	id, mem, err := CreateSysVShm(unix.IPC_PRIVATE, 1<<12)
	if err != nil {
		t.Skipf("System V shm is not available: %v", err)
	}
	defer func() {
		unix.SysvShmDetach(mem)
		unix.SysvShmCtl(id, unix.IPC_RMID, nil)
	}()
	assert.Len(t, mem, 1<<12)
	mem[0] = 42
	other, err := unix.SysvShmAttach(id, 0, 0)
	require.NoError(t, err)
	defer unix.SysvShmDetach(other)
	assert.Equal(t, byte(42), other[0])
}

func TestProcessGroupAlive(t *testing.T) {
	requireShell(t)
	cmd := Command("sleep", "60")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	assert.True(t, ProcessGroupAlive(pid))
	KillProcessGroup(pid)
	cmd.Wait()
	assert.False(t, ProcessGroupAlive(pid))
}
