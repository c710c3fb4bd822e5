// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package reader

import (
	"fmt"

	"github.com/fau-hpc/bgvtrace/internal/pool"
)

// ErrProtocolError is returned for any malformed record: an unknown opcode,
// property tag, pool tag, or klass type.
type ErrProtocolError struct {
	Detail string
	Where  int64
}

func (e *ErrProtocolError) Error() string {
	return fmt.Sprintf("reader: protocol error at offset %d: %s", e.Where, e.Detail)
}

// ErrPoolIndexOutOfRange is returned when a pool reference resolves to an
// entry whose kind does not match what the call site expected, or to no
// entry at all.
type ErrPoolIndexOutOfRange struct {
	Index    uint16
	Where    int64
	Expected pool.Kind
}

func (e *ErrPoolIndexOutOfRange) Error() string {
	return fmt.Sprintf("reader: pool index %d at offset %d does not resolve to a %s", e.Index, e.Where, e.Expected)
}

// ErrUnbalancedGroups is returned when CLOSE_GROUP appears with no matching
// open BEGIN_GROUP.
type ErrUnbalancedGroups struct {
	Where int64
}

func (e *ErrUnbalancedGroups) Error() string {
	return fmt.Sprintf("reader: stray CLOSE_GROUP at offset %d", e.Where)
}

// SkipRoot is not a failure: a Builder's StartGroup/StartGraph callback
// returns it to tell the reader to jump straight to End, installing Pool as
// the reader's constant pool, without decoding the record's contents. None
// of this module's Builders returns it (the ScanningModelBuilder records
// ranges instead of skipping them); the reader honours it for any Builder
// that fast-forwards over subtrees it doesn't materialize.
type SkipRoot struct {
	Start, End int64
	Pool       pool.ConstantPool
}

func (s *SkipRoot) Error() string {
	return fmt.Sprintf("reader: skip root [%d,%d)", s.Start, s.End)
}
