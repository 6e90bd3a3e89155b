// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package hypercall

import "errors"

const supported = true

var ErrUnsupported = errors.New("hypercalls are not supported on this architecture")

// vmcall is implemented in vmcall_amd64.s.
//
//go:noescape
func vmcall(nr, arg uintptr) uintptr
