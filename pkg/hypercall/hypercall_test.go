// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package hypercall

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumString(t *testing.T) {
	assert.Equal(t, "user_fast_acquire", UserFastAcquire.String())
	assert.Equal(t, "get_host_config", GetHostConfig.String())
	assert.Equal(t, "hypercall(99)", Num(99).String())
}

func TestNumbersAreUnique(t *testing.T) {
	seen := make(map[string]Num)
	for nr, name := range names {
		if prev, ok := seen[name]; ok {
			t.Fatalf("name %q is used by both %d and %d", name, prev, nr)
		}
		seen[name] = nr
	}
}
