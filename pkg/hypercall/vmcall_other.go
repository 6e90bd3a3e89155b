// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build !amd64

package hypercall

import (
	"errors"
	"runtime"
)

const supported = false

var ErrUnsupported = errors.New("hypercalls are not supported on " + runtime.GOARCH)

func vmcall(nr, arg uintptr) uintptr {
	panic(ErrUnsupported)
}
