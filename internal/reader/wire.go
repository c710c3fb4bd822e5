// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package reader

import "github.com/fau-hpc/bgvtrace/internal/pool"

// Top-level record opcodes.
const (
	opBeginGroup byte = 0x00
	opBeginGraph byte = 0x01
	opCloseGroup byte = 0x02
)

// Property value tags.
const (
	propInt      byte = 0x01
	propLong     byte = 0x02
	propFloat    byte = 0x03
	propDouble   byte = 0x04
	propPool     byte = 0x05
	propArray    byte = 0x06
	propTrue     byte = 0x07
	propFalse    byte = 0x08
	propSubgraph byte = 0x09
)

// PROPERTY_ARRAY's inner discriminator reuses the primitive property tags
// for INT/DOUBLE, and the pool tag for POOL; the wire format names the
// three array kinds but does not assign them separate byte values, so this
// reuse is the natural choice.
const (
	arrayInt    = propInt
	arrayDouble = propDouble
	arrayPool   = propPool
)

// Pool reference tags.
const (
	poolNew       byte = 0x00
	poolString    byte = 0x01
	poolEnum      byte = 0x02
	poolClass     byte = 0x03
	poolMethod    byte = 0x04
	poolNull      byte = 0x05
	poolNodeClass byte = 0x06
	poolField     byte = 0x07
	poolSignature byte = 0x08
)

// Klass-type discriminator within a POOL_CLASS payload.
const (
	klassPlain byte = 0x01
	klassEnum  byte = 0x02
)

// kindToTag maps a pool.Kind to the wire tag used to reference an existing
// entry of that kind.
func kindToTag(k pool.Kind) byte {
	switch k {
	case pool.KindString:
		return poolString
	case pool.KindEnumValue:
		return poolEnum
	case pool.KindKlass, pool.KindEnumKlass:
		return poolClass
	case pool.KindMethod:
		return poolMethod
	case pool.KindNodeClass:
		return poolNodeClass
	case pool.KindField:
		return poolField
	case pool.KindSignature:
		return poolSignature
	default:
		return 0xFF
	}
}

// tagMatchesKind reports whether a reference tag read from the stream is
// compatible with the kind the call site expects. POOL_CLASS is compatible
// with both Klass and EnumKlass, since the wire format distinguishes them
// only inside the POOL_NEW payload, not in the reference tag.
func tagMatchesKind(tag byte, expected pool.Kind) bool {
	if expected == pool.KindAny {
		return true
	}
	if expected == pool.KindKlass || expected == pool.KindEnumKlass {
		return tag == poolClass
	}
	return tag == kindToTag(expected)
}

// kindCompatible reports whether an entry of kind actual satisfies a call
// site that expects kind. POOL_CLASS references are the one case where the
// wire tag alone cannot distinguish the two possible runtime kinds (Klass
// vs EnumKlass), so both directions are accepted there.
func kindCompatible(actual, expected pool.Kind) bool {
	if expected == pool.KindAny {
		return true
	}
	isClassLike := func(k pool.Kind) bool { return k == pool.KindKlass || k == pool.KindEnumKlass }
	if isClassLike(actual) && isClassLike(expected) {
		return true
	}
	return actual == expected
}
