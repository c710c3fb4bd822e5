// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scan

import "math/bits"

// Bitset is a sparse bit vector over int32 node ids, used by GraphMetadata
// to record which node ids a graph contains (and which changed relative to
// its predecessor) without retaining the nodes themselves. Sparse because
// node ids in a dump are not guaranteed contiguous or small.
type Bitset struct {
	words map[int32]uint64
}

// NewBitset returns an empty Bitset.
func NewBitset() *Bitset {
	return &Bitset{words: make(map[int32]uint64)}
}

// Set marks id as present.
func (b *Bitset) Set(id int32) {
	word, bit := wordAndBit(id)
	b.words[word] |= uint64(1) << bit
}

// Test reports whether id is present.
func (b *Bitset) Test(id int32) bool {
	word, bit := wordAndBit(id)
	return b.words[word]&(uint64(1)<<bit) != 0
}

// Count returns the number of ids present.
func (b *Bitset) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Each calls fn once per present id, in no particular order.
func (b *Bitset) Each(fn func(id int32)) {
	for word, w := range b.words {
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			fn(word<<6 | int32(bit))
			w &^= uint64(1) << uint(bit)
		}
	}
}

// SymmetricDiff returns the ids present in exactly one of a, b.
func SymmetricDiff(a, b *Bitset) *Bitset {
	d := NewBitset()
	a.Each(func(id int32) {
		if !b.Test(id) {
			d.Set(id)
		}
	})
	b.Each(func(id int32) {
		if !a.Test(id) {
			d.Set(id)
		}
	})
	return d
}

func wordAndBit(id int32) (int32, uint) {
	return id >> 6, uint(id & 63)
}
