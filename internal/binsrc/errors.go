// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package binsrc

import (
	"errors"
	"fmt"
)

// ErrUnexpectedEOF is returned when the underlying channel is exhausted
// before a value finishes decoding. At a record boundary this is not an
// error at all -- it is the normal way a stream ends -- so callers that sit
// at a record boundary must test for it with errors.Is and treat it as a
// clean stop rather than propagating it.
var ErrUnexpectedEOF = errors.New("binsrc: unexpected end of stream")

// ErrVersionMismatch is returned by ReadHeader when the declared version
// exceeds the maximum this reader supports.
type ErrVersionMismatch struct {
	DeclaredMajor, DeclaredMinor byte
	MaxMajor, MaxMinor           byte
}

func (e *ErrVersionMismatch) Error() string {
	return fmt.Sprintf("binsrc: stream version %d.%d exceeds supported maximum %d.%d",
		e.DeclaredMajor, e.DeclaredMinor, e.MaxMajor, e.MaxMinor)
}

// ErrInterrupted is returned from a suspension point (a buffer refill) when
// the caller's cancellation signal was observed.
var ErrInterrupted = errors.New("binsrc: interrupted")
