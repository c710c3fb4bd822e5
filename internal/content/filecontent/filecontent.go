// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package filecontent implements content.CachedContent over a dump stored
// as a plain local file: a single long-lived *os.File, ranges served via
// io.SectionReader rather than reading the whole file into memory.
package filecontent

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fau-hpc/bgvtrace/internal/content"
)

// Backend is a content.CachedContent over one local file, opened once and
// kept open for the Backend's lifetime. Size is restatted on every call
// rather than cached, so a dump still being appended to becomes readable
// to a retrying caller as soon as the writer catches up.
type Backend struct {
	f *os.File
}

var _ content.CachedContent = (*Backend)(nil)

// New opens path; the returned Backend owns the file descriptor until
// Close is called.
func New(path string) (*Backend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("filecontent: open %s: %w", path, err)
	}
	if _, err := f.Stat(); err != nil {
		f.Close()
		return nil, fmt.Errorf("filecontent: stat %s: %w", path, err)
	}
	return &Backend{f: f}, nil
}

func (b *Backend) OpenRange(ctx context.Context, start, end int64) (io.ReadSeeker, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("filecontent: invalid range [%d,%d)", start, end)
	}
	size, err := b.Size(ctx)
	if err != nil {
		return nil, err
	}
	if end > size {
		return nil, fmt.Errorf("filecontent: range [%d,%d) exceeds %d-byte file: %w", start, end, size, content.ErrRangeUnavailable)
	}
	return io.NewSectionReader(b.f, start, end-start), nil
}

func (b *Backend) Size(ctx context.Context) (int64, error) {
	info, err := b.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("filecontent: stat: %w", err)
	}
	return info.Size(), nil
}

func (b *Backend) Close() error {
	return b.f.Close()
}
