// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lazy

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fau-hpc/bgvtrace/internal/binsrc"
	"github.com/fau-hpc/bgvtrace/internal/content/filecontent"
	"github.com/fau-hpc/bgvtrace/internal/scan"
)

func writeU16(buf *bytes.Buffer, v uint16) {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	buf.Write(b)
}

func writeU32(buf *bytes.Buffer, v int32) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	buf.Write(b)
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, int32(len(s)))
	buf.WriteString(s)
}

func writeNewPoolString(buf *bytes.Buffer, index uint16, s string) {
	buf.WriteByte(0x00)
	writeU16(buf, index)
	buf.WriteByte(0x01)
	writeString(buf, s)
}

// buildDump writes a single top-level group named "G" containing one
// empty graph named "Graph1" to a temp file, and returns a scan.StreamIndex
// over it plus the file path.
func buildDump(t *testing.T) (path string, idx *scan.StreamIndex) {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("BIGV")
	buf.WriteByte(1)
	buf.WriteByte(0)

	buf.WriteByte(0x00) // BEGIN_GROUP
	writeNewPoolString(&buf, 0, "G")
	buf.WriteByte(0x05) // shortName = POOL_NULL
	buf.WriteByte(0x05) // method = POOL_NULL
	writeU32(&buf, 0)   // bci
	writeU16(&buf, 0)   // properties count

	buf.WriteByte(0x01) // BEGIN_GRAPH
	writeNewPoolString(&buf, 1, "Graph1")
	writeU16(&buf, 0) // properties count
	writeU32(&buf, 0) // nodes count
	writeU32(&buf, 0) // blocks count

	buf.WriteByte(0x02) // CLOSE_GROUP

	path = filepath.Join(t.TempDir(), "dump.bgv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	idx, err := scan.Scan(binsrc.New(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)
	return path, idx
}

func newTestLoadSupport(t *testing.T, path string) *LoadSupport {
	t.Helper()
	cc, err := filecontent.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { cc.Close() })

	ls, err := NewLoadSupport(cc, 16, nil, true)
	require.NoError(t, err)
	return ls
}

func TestLoadGroupMaterializesChild(t *testing.T) {
	path, idx := buildDump(t)
	ls := newTestLoadSupport(t, path)

	top := idx.TopLevel()
	require.Len(t, top, 1)

	g, err := ls.LoadGroup(context.Background(), top[0])
	require.NoError(t, err)
	assert.Equal(t, "G", g.Name)

	graphs := g.Graphs()
	require.Len(t, graphs, 1)
	assert.Equal(t, "Graph1", graphs[0].Name)
}

func TestLoadGraphDirectly(t *testing.T) {
	path, idx := buildDump(t)
	ls := newTestLoadSupport(t, path)

	graphEntry := idx.TopLevel()[0].Children[0]
	graph, err := ls.LoadGraph(context.Background(), graphEntry)
	require.NoError(t, err)
	assert.Equal(t, "Graph1", graph.Name)
}

// TestLoadCoalescesConcurrentRequests: N concurrent LoadGroup calls for the
// same entry perform at most one underlying Completer run and return equal
// results.
func TestLoadCoalescesConcurrentRequests(t *testing.T) {
	path, idx := buildDump(t)
	ls := newTestLoadSupport(t, path)
	entry := idx.TopLevel()[0]

	const n = 16
	results := make([]*struct {
		name string
		err  error
	}, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			g, err := ls.LoadGroup(context.Background(), entry)
			r := &struct {
				name string
				err  error
			}{err: err}
			if g != nil {
				r.name = g.Name
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.NoError(t, r.err)
		assert.Equal(t, "G", r.name)
	}
}

// TestCancelledLoadLeavesEntryLoadable: a cancelled load surfaces the
// interruption, caches nothing, and a subsequent load starts fresh and
// succeeds.
func TestCancelledLoadLeavesEntryLoadable(t *testing.T) {
	path, idx := buildDump(t)
	ls := newTestLoadSupport(t, path)
	entry := idx.TopLevel()[0]

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ls.LoadGroup(ctx, entry)
	require.Error(t, err)
	assert.ErrorIs(t, err, binsrc.ErrInterrupted)

	g, err := ls.LoadGroup(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, "G", g.Name)
}

// recordingPublisher captures graph lifecycle events for assertions.
type recordingPublisher struct {
	materialized []string
	duplicate    []string
}

func (p *recordingPublisher) GraphMaterialized(offset int64, name string) {
	p.materialized = append(p.materialized, name)
}

func (p *recordingPublisher) GraphDuplicate(offset int64, name string) {
	p.duplicate = append(p.duplicate, name)
}

func (p *recordingPublisher) Close() {}

func TestOnlyGraphCompletionsPublishEvents(t *testing.T) {
	path, idx := buildDump(t)

	cc, err := filecontent.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { cc.Close() })

	pub := &recordingPublisher{}
	ls, err := NewLoadSupport(cc, 16, pub, true)
	require.NoError(t, err)

	groupEntry := idx.TopLevel()[0]
	_, err = ls.LoadGroup(context.Background(), groupEntry)
	require.NoError(t, err)
	assert.Empty(t, pub.materialized, "a group completion must not emit a graph event")
	assert.Empty(t, pub.duplicate)

	_, err = ls.LoadGraph(context.Background(), groupEntry.Children[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"Graph1"}, pub.materialized)
	assert.Empty(t, pub.duplicate)
}

func TestEvictForcesReload(t *testing.T) {
	path, idx := buildDump(t)
	ls := newTestLoadSupport(t, path)
	entry := idx.TopLevel()[0]

	first, err := ls.LoadGroup(context.Background(), entry)
	require.NoError(t, err)

	ls.Evict(entry)

	second, err := ls.LoadGroup(context.Background(), entry)
	require.NoError(t, err)
	assert.NotSame(t, first, second, "after Evict, LoadGroup must re-run its Completer rather than return the cached pointer")
}
