// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package harness

import (
	"strings"
	"syscall"
	"testing"
	"unicode/utf8"

	"github.com/google/nyx-agent/pkg/osutil"
	"github.com/stretchr/testify/assert"
)

const goPanicOutput = `starting target
panic: runtime error: index out of range

goroutine 1 [running]:
main.parse(0xc000010250, 0x3, 0x8)
	/src/target/main.go:17 +0x1a5
main.main()
	/src/target/main.go:9 +0x5d
exit status 2
`

const goThrowOutput = `fatal error: concurrent map writes

goroutine 7 [running]:
runtime.throw(0x4c1a3e, 0x15)
	/usr/local/go/src/runtime/panic.go:617 +0x72
runtime.mapassign_faststr(0x4a6e20, 0xc000070180, 0x4c0b1b, 0x3, 0x0)
	/usr/local/go/src/runtime/map_faststr.go:211 +0x42a
main.worker(0xc000070180)
	/src/target/main.go:21 +0x5e
created by main.main
	/src/target/main.go:12 +0x6f
`

func TestCrashTitle(t *testing.T) {
	tests := []struct {
		name   string
		verr   *osutil.VerboseError
		output string
		want   string
	}{
		{
			name:   "go-panic",
			verr:   &osutil.VerboseError{ExitCode: 2},
			output: goPanicOutput,
			want:   "panic: runtime error: index out of range in main.parse",
		},
		{
			name:   "go-throw",
			verr:   &osutil.VerboseError{ExitCode: 2},
			output: goThrowOutput,
			want:   "fatal error: concurrent map writes in main.worker",
		},
		{
			name:   "signal",
			verr:   &osutil.VerboseError{Signal: syscall.SIGSEGV},
			output: "",
			want:   "target killed by signal segmentation fault",
		},
		{
			name:   "last-line",
			verr:   &osutil.VerboseError{ExitCode: 1},
			output: "a\nb\n\n",
			want:   "target exited with status 1: b",
		},
		{
			name:   "timeout",
			verr:   &osutil.VerboseError{Timeout: true},
			output: "panic: ignored\n",
			want:   "timeout in target",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := crashTitle("/usr/bin/target", test.verr, []byte(test.output))
			assert.Equal(t, test.want, got)
		})
	}
}

func TestCrashTitleTruncated(t *testing.T) {
	verr := &osutil.VerboseError{ExitCode: 1}
	title := crashTitle("target", verr, []byte(strings.Repeat("x", 1000)))
	assert.Len(t, title, maxTitleLen)
}

func TestCrashTitleTruncatedUTF8(t *testing.T) {
	verr := &osutil.VerboseError{ExitCode: 1}
	// The fixed prefix has an odd length, so the cut lands inside a 2-byte character.
	title := crashTitle("target", verr, []byte(strings.Repeat("é", 1000)))
	assert.True(t, utf8.ValidString(title), "%q", title)
	assert.Len(t, title, maxTitleLen-1)
}
