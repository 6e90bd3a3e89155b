// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package agent

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// ProtocolMismatch means the host is a different product or speaks another protocol version.
	ProtocolMismatch ErrorKind = iota
	// ResourceExhaustion means a shared region could not be created.
	ResourceExhaustion
	// SizeOverrun means the host declared an input larger than the negotiated maximum.
	SizeOverrun
)

func (kind ErrorKind) String() string {
	switch kind {
	case ProtocolMismatch:
		return "protocol mismatch"
	case ResourceExhaustion:
		return "resource exhaustion"
	case SizeOverrun:
		return "size overrun"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(kind))
	}
}

// FatalError is returned for conditions the agent can't recover from.
// The caller is expected to report it to the host and exit.
type FatalError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (err *FatalError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("%v: %v: %v", err.Kind, err.Msg, err.Err)
	}
	return fmt.Sprintf("%v: %v", err.Kind, err.Msg)
}

func (err *FatalError) Unwrap() error {
	return err.Err
}

func fatalf(kind ErrorKind, err error, msg string, args ...any) *FatalError {
	return &FatalError{
		Kind: kind,
		Msg:  fmt.Sprintf(msg, args...),
		Err:  err,
	}
}

// IsFatal returns true if err (or anything it wraps) is a FatalError.
func IsFatal(err error) bool {
	var ferr *FatalError
	return errors.As(err, &ferr)
}

// KindOf returns the kind of the FatalError wrapped in err.
func KindOf(err error) (ErrorKind, bool) {
	var ferr *FatalError
	if !errors.As(err, &ferr) {
		return 0, false
	}
	return ferr.Kind, true
}
