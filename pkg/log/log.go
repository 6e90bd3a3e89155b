// Copyright 2016 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides functionality similar to standard log package with some extensions:
//   - verbosity levels
//   - global verbosity setting that can be used by multiple packages
//   - ability to cache recent output in memory
//   - ability to mirror important output to the hypervisor console
package log

import (
	"bytes"
	"flag"
	"fmt"
	golog "log"
	"strings"
	"sync"
	"time"
)

var (
	flagV        = flag.Int("vv", 0, "verbosity")
	mu           sync.Mutex
	cacheMem     int
	cacheMaxMem  int
	cachePos     int
	cacheEntries []string
	hostSink     HostSink
	hostLevel    int
	prependTime  = true // for testing
)

// HostSink receives log lines that must be visible outside of the VM.
// Output from inside the guest is lost on every snapshot restore,
// so anything interesting for the operator has to be pushed to the host.
type HostSink interface {
	Printf(msg string)
}

// SetHostSink mirrors all messages with verbosity <= level to sink.
// A nil sink or a negative level disables mirroring.
func SetHostSink(sink HostSink, level int) {
	mu.Lock()
	defer mu.Unlock()
	if level < 0 {
		sink = nil
	}
	hostSink = sink
	hostLevel = level
}

// EnableLogCaching enables in memory caching of log output.
// Caches up to maxLines, but no more than maxMem bytes.
// Cached output can later be queried with CachedLogOutput.
func EnableLogCaching(maxLines, maxMem int) {
	mu.Lock()
	defer mu.Unlock()
	if cacheEntries != nil {
		Fatalf("log caching is already enabled")
	}
	if maxLines < 1 || maxMem < 1 {
		panic("invalid maxLines/maxMem")
	}
	cacheMaxMem = maxMem
	cacheEntries = make([]string, maxLines)
}

// Retrieves cached log output.
func CachedLogOutput() string {
	mu.Lock()
	defer mu.Unlock()
	buf := new(bytes.Buffer)
	for i := range cacheEntries {
		pos := (cachePos + i) % len(cacheEntries)
		if cacheEntries[pos] == "" {
			continue
		}
		buf.WriteString(cacheEntries[pos])
		buf.Write([]byte{'\n'})
	}
	return buf.String()
}

func V(level int) bool {
	return level <= *flagV
}

func Logf(v int, msg string, args ...interface{}) {
	mu.Lock()
	doLog := V(v)
	if cacheEntries != nil && v <= 1 {
		cacheMem -= len(cacheEntries[cachePos])
		if cacheMem < 0 {
			panic("log cache size underflow")
		}
		timeStr := ""
		if prependTime {
			timeStr = time.Now().Format("2006/01/02 15:04:05 ")
		}
		cacheEntries[cachePos] = fmt.Sprintf(timeStr+msg, args...)
		cacheMem += len(cacheEntries[cachePos])
		cachePos++
		if cachePos == len(cacheEntries) {
			cachePos = 0
		}
		for i := 0; i < len(cacheEntries)-1 && cacheMem > cacheMaxMem; i++ {
			pos := (cachePos + i) % len(cacheEntries)
			cacheMem -= len(cacheEntries[pos])
			cacheEntries[pos] = ""
		}
		if cacheMem < 0 {
			panic("log cache size underflow")
		}
	}
	sink := hostSink
	if v > hostLevel {
		sink = nil
	}
	mu.Unlock()

	if sink != nil {
		line := fmt.Sprintf(msg, args...)
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		sink.Printf(line)
	}
	if doLog {
		golog.Printf(msg, args...)
	}
}

func Fatal(err error) {
	Fatalf("%v", err)
}

func Fatalf(msg string, args ...interface{}) {
	mu.Lock()
	sink := hostSink
	mu.Unlock()
	if sink != nil {
		sink.Printf(fmt.Sprintf("FATAL: "+msg+"\n", args...))
	}
	golog.Fatalf(msg, args...)
}
