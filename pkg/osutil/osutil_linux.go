// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setPdeathsig(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = new(syscall.SysProcAttr)
	}
	cmd.SysProcAttr.Pdeathsig = syscall.SIGKILL
	// We will kill the whole process group.
	cmd.SysProcAttr.Setpgid = true
}

func killPgroup(cmd *exec.Cmd) {
	KillProcessGroup(cmd.Process.Pid)
}

// KillProcessGroup kills all processes in the group led by pid.
// Commands started via Command/Run lead their own group.
func KillProcessGroup(pid int) {
	unix.Kill(-pid, unix.SIGKILL)
}

// ProcessGroupAlive returns true if the group led by pid still has members.
// Zombies that are not yet reaped count as members.
func ProcessGroupAlive(pid int) bool {
	return unix.Kill(-pid, 0) != unix.ESRCH
}

// Ftok converts a path and a project identifier into a System V IPC key
// the same way glibc ftok(3) does.
func Ftok(path string, proj byte) (int, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, fmt.Errorf("ftok: stat %v failed: %w", path, err)
	}
	return int(uint32(st.Ino&0xffff) | uint32(st.Dev&0xff)<<16 | uint32(proj)<<24), nil
}

// CreateSysVShm creates (or reuses) the System V shared memory segment identified by key
// and attaches it to the current process. Other processes find the segment by the returned id.
func CreateSysVShm(key, size int) (int, []byte, error) {
	id, err := unix.SysvShmGet(key, size, unix.IPC_CREAT|0666)
	if err != nil {
		return 0, nil, fmt.Errorf("shmget(%#x, %v) failed: %w", key, size, err)
	}
	mem, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return 0, nil, fmt.Errorf("shmat(%v) failed: %w", id, err)
	}
	if len(mem) < size {
		unix.SysvShmDetach(mem)
		return 0, nil, fmt.Errorf("shm segment %v is %v bytes, need %v", id, len(mem), size)
	}
	return id, mem[:size:size], nil
}

// MapLocked creates an anonymous shared mapping and locks it into physical memory.
func MapLocked(size int) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mmap(%v) failed: %w", size, err)
	}
	if err := unix.Mlock(mem); err != nil {
		unix.Munmap(mem)
		return nil, fmt.Errorf("mlock(%v) failed: %w", size, err)
	}
	return mem, nil
}
