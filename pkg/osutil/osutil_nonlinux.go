// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build !linux

package osutil

import (
	"fmt"
	"os/exec"
	"runtime"
)

func setPdeathsig(cmd *exec.Cmd) {
}

func killPgroup(cmd *exec.Cmd) {
}

func KillProcessGroup(pid int) {
}

func ProcessGroupAlive(pid int) bool {
	return false
}

func Ftok(path string, proj byte) (int, error) {
	return 0, fmt.Errorf("ftok is not supported on %v", runtime.GOOS)
}

func CreateSysVShm(key, size int) (int, []byte, error) {
	return 0, nil, fmt.Errorf("System V shared memory is not supported on %v", runtime.GOOS)
}

func MapLocked(size int) ([]byte, error) {
	return nil, fmt.Errorf("locked mappings are not supported on %v", runtime.GOOS)
}
