// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package harness

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/nyx-agent/pkg/osutil"
	"github.com/maruel/panicparse/stack"
)

const maxTitleLen = 256

var (
	goPanicRe  = regexp.MustCompile(`^(panic: |fatal error: )`)
	oopsLineRe = regexp.MustCompile(`(?i)(panic|fatal|error|sanitizer|assert|abort|segmentation fault)`)
)

// crashTitle produces a one-line description of a failed target run that the host uses to bucket crashes.
func crashTitle(target string, verr *osutil.VerboseError, output []byte) string {
	name := filepath.Base(target)
	var title string
	switch {
	case verr.Timeout:
		title = fmt.Sprintf("timeout in %v", name)
	case verr.Signal != 0:
		title = fmt.Sprintf("%v killed by signal %v", name, verr.Signal)
	default:
		title = fmt.Sprintf("%v exited with status %v", name, verr.ExitCode)
	}
	if verr.Timeout {
		return title
	}
	if desc := goPanic(output); desc != "" {
		title = desc
	} else if line := interestingLine(output); line != "" {
		title = fmt.Sprintf("%v: %v", title, line)
	}
	if len(title) > maxTitleLen {
		// Drop a multi-byte character that the cut splits.
		title = strings.ToValidUTF8(title[:maxTitleLen], "")
	}
	return title
}

// goPanic recognizes Go runtime crash output and returns "panic message in pkg.Func".
func goPanic(output []byte) string {
	msg := ""
	for s := bufio.NewScanner(bytes.NewReader(output)); s.Scan(); {
		if line := s.Text(); goPanicRe.MatchString(line) {
			msg = strings.TrimSpace(line)
			break
		}
	}
	if msg == "" {
		return ""
	}
	ctx, err := stack.ParseDump(bytes.NewReader(output), io.Discard, false)
	if err != nil || ctx == nil {
		return msg
	}
	for _, g := range ctx.Goroutines {
		if !g.First {
			continue
		}
		for _, call := range g.Stack.Calls {
			fn := call.Func.PkgDotName()
			if fn == "" || strings.HasPrefix(fn, "runtime.") {
				continue
			}
			return fmt.Sprintf("%v in %v", msg, fn)
		}
	}
	return msg
}

func interestingLine(output []byte) string {
	last := ""
	for s := bufio.NewScanner(bytes.NewReader(output)); s.Scan(); {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if oopsLineRe.MatchString(line) {
			return line
		}
		last = line
	}
	return last
}
