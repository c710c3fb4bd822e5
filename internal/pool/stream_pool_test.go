// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamPoolOverwriteSafety(t *testing.T) {
	sp := NewStream()

	_, err := sp.AddPoolEntry(5, String("alpha"), 10)
	require.NoError(t, err)

	v, err := sp.Get(5, 11)
	require.NoError(t, err)
	assert.Equal(t, String("alpha"), v)

	// The scanner reads index 5 (above), then a later record overwrites it.
	// Fork before the overwrite to capture "as it stood when read".
	initialPool := sp.ForkIfNeeded()

	_, err = sp.AddPoolEntry(5, String("beta"), 20)
	require.NoError(t, err)

	skipPool := sp.ForkIfNeeded()

	got, err := initialPool.Get(5, 0)
	require.NoError(t, err)
	assert.Equal(t, String("alpha"), got, "initialPool must still resolve the original value")

	got, err = skipPool.Get(5, 0)
	require.NoError(t, err)
	assert.Equal(t, String("beta"), got, "skipPool must resolve the overwritten value")

	// Mutating the live pool further must not perturb either fork. After the
	// second fork the live pool is skipPool; sp, the same object as
	// initialPool, is the frozen handle. An overwrite of a slot already read
	// through the live pool is handed off at its next fork.
	live := skipPool
	_, err = live.AddPoolEntry(5, String("gamma"), 30)
	require.NoError(t, err)
	_ = live.ForkIfNeeded()

	got, err = initialPool.Get(5, 0)
	require.NoError(t, err)
	assert.Equal(t, String("alpha"), got)

	got, err = skipPool.Get(5, 0)
	require.NoError(t, err)
	assert.Equal(t, String("beta"), got)
}

func TestStreamPoolForkNoopWithoutOverwrite(t *testing.T) {
	sp := NewStream()
	_, err := sp.AddPoolEntry(0, String("x"), 0)
	require.NoError(t, err)

	forked := sp.ForkIfNeeded()
	assert.Same(t, sp, forked, "without a pending snapshot, ForkIfNeeded must return the same instance")
}

func TestStreamPoolUnsetIndexIsError(t *testing.T) {
	sp := NewStream()
	_, err := sp.Get(3, 42)
	require.Error(t, err)
	var unset *ErrUnsetIndex
	require.ErrorAs(t, err, &unset)
	assert.Equal(t, uint16(3), unset.Index)
}

func TestStreamPoolGenerationIncrementsOnFork(t *testing.T) {
	sp := NewStream()
	startGen := sp.Generation()

	_, _ = sp.AddPoolEntry(0, String("a"), 0)
	_, _ = sp.Get(0, 0)
	_, _ = sp.AddPoolEntry(0, String("b"), 1) // triggers a pending snapshot

	_ = sp.ForkIfNeeded()
	assert.Equal(t, startGen+1, sp.Generation())
}

func TestPoolEntryEquality(t *testing.T) {
	k1 := Klass{Name: "java.lang.Object", SimpleName: "Object"}
	k2 := Klass{Name: "java.lang.Object", SimpleName: "Object"}
	k3 := Klass{Name: "java.lang.String", SimpleName: "String"}
	assert.True(t, k1.Equal(k2))
	assert.False(t, k1.Equal(k3))

	ek1 := EnumKlass{Name: "Kind", Values: []string{"A", "B"}}
	ek2 := EnumKlass{Name: "Kind", Values: []string{"A", "B"}}
	assert.True(t, ek1.Equal(ek2))

	ev1 := EnumValue{Klass: ek1, Ordinal: 1}
	ev2 := EnumValue{Klass: ek2, Ordinal: 1}
	assert.True(t, ev1.Equal(ev2))

	sig1 := Signature{ReturnType: "V", ArgTypes: []string{"I", "J"}}
	sig2 := Signature{ReturnType: "V", ArgTypes: []string{"I", "J"}}
	assert.True(t, sig1.Equal(sig2))

	m1 := Method{Holder: k1, Name: "foo", Signature: sig1, Code: []byte{1, 2}, Flags: 9}
	m2 := Method{Holder: k2, Name: "foo", Signature: sig2, Code: []byte{1, 2}, Flags: 9}
	assert.True(t, m1.Equal(m2))

	f1 := Field{Holder: k1, Name: "bar", Type: "I", Flags: 1}
	f2 := Field{Holder: k2, Name: "bar", Type: "I", Flags: 1}
	assert.True(t, f1.Equal(f2))

	nc1 := NodeClass{ClassName: "Add", NameTemplate: "Add", Inputs: []Port{{Name: "x"}, {Name: "y"}}}
	nc2 := NodeClass{ClassName: "Add", NameTemplate: "Add", Inputs: []Port{{Name: "x"}, {Name: "y"}}}
	assert.True(t, nc1.Equal(nc2))
}
