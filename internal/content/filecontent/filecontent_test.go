// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package filecontent

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fau-hpc/bgvtrace/internal/content"
)

func TestBackendOpenRangeReturnsExactSlice(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "dump")
	require.NoError(t, err)
	_, err = f.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	b, err := New(f.Name())
	require.NoError(t, err)
	defer b.Close()

	size, err := b.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)

	r, err := b.OpenRange(context.Background(), 3, 7)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "3456", string(got))
}

func TestBackendOpenRangeRejectsOutOfBounds(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "dump")
	require.NoError(t, err)
	_, err = f.Write([]byte("short"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	b, err := New(f.Name())
	require.NoError(t, err)
	defer b.Close()

	_, err = b.OpenRange(context.Background(), 0, 100)
	assert.Error(t, err)
}

func TestBackendOpenRangeBecomesAvailableAfterAppend(t *testing.T) {
	path := t.TempDir() + "/dump"
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = f.Write([]byte("0123"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	b, err := New(path)
	require.NoError(t, err)
	defer b.Close()

	_, err = b.OpenRange(context.Background(), 0, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, content.ErrRangeUnavailable))

	appended, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = appended.Write([]byte("456789"))
	require.NoError(t, err)
	require.NoError(t, appended.Close())

	r, err := b.OpenRange(context.Background(), 0, 10)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(got))
}
