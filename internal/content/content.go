// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package content provides random-access sub-channels over a stored dump:
// filecontent for a local file, s3content for a dump staged in object
// storage. Both satisfy CachedContent, so a Completer in internal/lazy
// stays backend agnostic.
package content

import (
	"context"
	"errors"
	"io"
)

// ErrRangeUnavailable is wrapped into the error a backend returns from
// OpenRange when the requested range extends past what is currently
// readable -- the dump is still being appended to and the scan that
// produced this range hasn't been caught up by the writer yet. A caller
// that can retry (internal/lazy's Completer) treats this, and only this,
// as a transient condition worth backing off and trying again for.
var ErrRangeUnavailable = errors.New("content: requested range not yet available")

// CachedContent opens seekable byte ranges of an underlying dump. A
// Completer calls OpenRange with a StreamEntry's [Start, End) to reload a
// single group or graph without holding the whole dump in memory.
type CachedContent interface {
	// OpenRange returns a seekable reader over [start, end). The caller
	// owns the returned ReadSeeker; it does not need to be closed, since
	// both backends hand back self-contained readers (a bounded
	// io.SectionReader over a backend-owned *os.File, or an in-memory
	// buffer for a range already fetched in full from object storage).
	OpenRange(ctx context.Context, start, end int64) (io.ReadSeeker, error)

	// Size returns the total byte length of the underlying dump.
	Size(ctx context.Context) (int64, error)

	// Close releases any backend resources (an open file descriptor, for
	// filecontent; a no-op for s3content).
	Close() error
}
