// Copyright 2022 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package testutil

import (
	"math"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

func IterCount() int {
	iters := 1000
	if testing.Short() {
		iters /= 10
	}
	if RaceEnabled {
		iters /= 10
	}
	return iters
}

// RandSource returns a logged random source. NYX_SEED fixes the seed to reproduce a failure.
func RandSource(t *testing.T) rand.Source {
	seed := time.Now().UnixNano()
	if fixed := os.Getenv("NYX_SEED"); fixed != "" {
		var err error
		if seed, err = strconv.ParseInt(fixed, 0, 64); err != nil {
			t.Fatalf("bad NYX_SEED %q: %v", fixed, err)
		}
	}
	t.Logf("seed=%v (set NYX_SEED to reproduce)", seed)
	return rand.NewSource(seed)
}

// RandInput returns an input of length [0, maxLen] resembling what a fuzzer sends:
// boundary lengths are favored and contents are mostly special byte values.
func RandInput(r *rand.Rand, maxLen int) []byte {
	var n int
	switch r.Intn(8) {
	case 0:
		n = 0
	case 1:
		n = maxLen
	case 2:
		n = r.Intn(min(maxLen, 16) + 1)
	default:
		n = r.Intn(maxLen + 1)
	}
	data := make([]byte, n)
	for i := range data {
		switch r.Intn(4) {
		case 0:
			data[i] = 0
		case 1:
			data[i] = 0xff
		default:
			data[i] = byte(r.Intn(256))
		}
	}
	return data
}

// RandDeclaredSize returns a payload size header value for a buffer of the given capacity,
// including values a misbehaving host may write: negative, exactly at and just past capacity, huge.
func RandDeclaredSize(r *rand.Rand, capacity int) int32 {
	switch r.Intn(7) {
	case 0:
		return -int32(r.Intn(1<<10) + 1)
	case 1:
		return math.MinInt32
	case 2:
		return int32(capacity)
	case 3:
		return int32(capacity + 1 + r.Intn(16))
	case 4:
		return math.MaxInt32
	default:
		return int32(r.Intn(capacity + 1))
	}
}
