// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool

// StreamPool extends ConstantPool with copy-on-overwrite: before an
// occupied-and-already-read slot is overwritten, the full current contents
// are snapshotted, so a reference captured before the overwrite can still
// resolve the old value after the overwrite happens. ForkIfNeeded is the
// device that performs this handoff: it returns the pool holding the latest
// data (which the caller must adopt as the live pool going forward) while
// the receiver itself becomes the frozen historical reference, holding the
// state as it stood before the most recent risky overwrite.
//
// A StreamPool is mutated only by its owning scan/parse goroutine; the pools
// ForkIfNeeded hands out are immutable from the caller's perspective (read
// only, or cloned before further mutation).
type StreamPool struct {
	data       []Entry
	itemRead   bitset
	snapshot   []Entry
	generation uint64
}

// NewStream returns an empty StreamPool at generation 0.
func NewStream() *StreamPool {
	return &StreamPool{}
}

func (p *StreamPool) grow(n int) {
	if n <= len(p.data) {
		return
	}
	grown := make([]Entry, n)
	copy(grown, p.data)
	p.data = grown
}

// AddPoolEntry stores entry at index, snapshotting the pool's current
// contents first if index was already occupied and already read since the
// last snapshot/fork.
func (p *StreamPool) AddPoolEntry(index uint16, entry Entry, where int64) (Entry, error) {
	if int(index) < len(p.data) && p.data[index] != nil && p.itemRead.test(index) {
		p.takeSnapshotIfNeeded()
		p.itemRead = bitset{}
	}
	p.grow(int(index) + 1)
	p.data[index] = entry
	return entry, nil
}

func (p *StreamPool) takeSnapshotIfNeeded() {
	if p.snapshot != nil {
		return
	}
	snap := make([]Entry, len(p.data))
	copy(snap, p.data)
	p.snapshot = snap
}

func (p *StreamPool) Get(index uint16, where int64) (Entry, error) {
	if int(index) >= len(p.data) || p.data[index] == nil {
		return nil, &ErrUnsetIndex{Index: index, Where: where}
	}
	p.itemRead.set(index)
	return p.data[index], nil
}

func (p *StreamPool) Size() int {
	return len(p.data)
}

func (p *StreamPool) Clone() ConstantPool {
	cloned := make([]Entry, len(p.data))
	copy(cloned, p.data)
	sp := &StreamPool{data: cloned, generation: p.generation}
	sp.itemRead = p.itemRead.clone()
	return sp
}

func (p *StreamPool) Restart() ConstantPool {
	p.data = p.data[:0]
	p.itemRead = bitset{}
	p.snapshot = nil
	p.generation++
	return p
}

func (p *StreamPool) Snapshot() []Entry {
	snap := make([]Entry, len(p.data))
	copy(snap, p.data)
	return snap
}

func (p *StreamPool) Swap(newData []Entry) (ConstantPool, error) {
	old := &StreamPool{data: p.data, generation: p.generation}
	p.data = newData
	p.itemRead = bitset{}
	p.snapshot = nil
	p.generation++
	return old, nil
}

// Generation returns the number of forks/restarts this pool has undergone.
func (p *StreamPool) Generation() uint64 {
	return p.generation
}

// ForkIfNeeded returns the pool holding the latest (current) data, leaving
// the receiver holding the preserved pre-overwrite snapshot. Callers must
// install the returned pool as the one to keep decoding with (via
// reader.BinaryReader.ReplaceConstantPool): the receiver becomes a frozen
// historical handle from this call onward.
//
// If no overwrite-after-read has happened since the last fork, there is
// nothing to preserve, so the receiver itself is returned unchanged (no
// fork was needed, no generation bump) -- it is simultaneously still safe
// to keep using as the live pool and to stash as a StreamEntry's pool
// field, because the *next* time an overwrite does force a fork, the swap
// below routes the preserved historical data back into this exact
// receiver, making any such earlier alias resolve correctly.
func (p *StreamPool) ForkIfNeeded() *StreamPool {
	if p.snapshot == nil {
		return p
	}
	latest := p.data
	p.data = p.snapshot
	p.snapshot = nil
	p.itemRead = bitset{}
	p.generation++
	return &StreamPool{data: latest, generation: p.generation}
}

// bitset is a small growable bit vector over uint16 indices, used to track
// which pool slots have been read since the last snapshot.
type bitset struct {
	words []uint64
}

func (b *bitset) set(i uint16) {
	w := int(i) / 64
	for w >= len(b.words) {
		b.words = append(b.words, 0)
	}
	b.words[w] |= 1 << uint(int(i)%64)
}

func (b *bitset) test(i uint16) bool {
	w := int(i) / 64
	if w >= len(b.words) {
		return false
	}
	return b.words[w]&(1<<uint(int(i)%64)) != 0
}

func (b bitset) clone() bitset {
	words := make([]uint64, len(b.words))
	copy(words, b.words)
	return bitset{words: words}
}
