// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package reader implements the protocol state machine that turns a
// BinarySource into semantic events delivered to a Builder: groups, graphs,
// nodes, edges, blocks, properties, and the nested-subgraph and skip-record
// exceptions to that structure.
package reader

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fau-hpc/bgvtrace/internal/binsrc"
	"github.com/fau-hpc/bgvtrace/internal/pool"
)

// BinaryReader drives a single Builder from a single BinarySource. It is not
// safe for concurrent use; one parse runs on one goroutine, matching the
// single-writer discipline of the constant pool it mutates.
type BinaryReader struct {
	src   *binsrc.Source
	pool  pool.ConstantPool
	b     Builder
	level int // folderLevel: current group nesting depth

	// hashStack holds one digest slot per open folder (plus the document
	// level at index 0), used to detect adjacent duplicate top-level graphs.
	hashStack [][]byte
}

// New returns a BinaryReader that will decode src starting from initialPool
// (typically a fresh pool.New() for a cold start, or a clone of a
// StreamEntry's initialPool when resuming mid-stream).
func New(src *binsrc.Source, initialPool pool.ConstantPool) *BinaryReader {
	return &BinaryReader{src: src, pool: initialPool}
}

// Pool implements Ctx.
func (r *BinaryReader) Pool() pool.ConstantPool { return r.pool }

// Offset implements Ctx.
func (r *BinaryReader) Offset() int64 { return r.src.Offset() }

// Version implements Ctx.
func (r *BinaryReader) Version() (major, minor byte) { return r.src.Version() }

// ReplaceConstantPool swaps the reader's pool reference. Builders call this
// (via the Ctx handed to their callbacks is not enough; the concrete
// *BinaryReader is required) when they fork or install a clone at a record
// boundary, e.g. ScanningModelBuilder taking initialPool/skipPool snapshots.
func (r *BinaryReader) ReplaceConstantPool(p pool.ConstantPool) {
	r.pool = p
}

// Parse runs the main loop against b until the source reaches a clean
// top-level EOF, delivering every decoded record as a Builder event.
func (r *BinaryReader) Parse(b Builder) error {
	r.b = b
	r.hashStack = [][]byte{nil}
	first := true

	for {
		hadHeader, err := r.src.ReadHeader()
		if err != nil {
			return err
		}
		if hadHeader && !first {
			if err := r.closeDanglingGroups(); err != nil {
				return err
			}
			newPool, err := b.ResetStreamData(r)
			if err != nil {
				return err
			}
			if newPool != nil {
				r.pool = newPool
			}
			r.hashStack = [][]byte{nil}
		}
		first = false

		if r.src.AtTopLevelEOF() {
			break
		}
		if err := r.parseRoot(); err != nil {
			return err
		}
	}
	return r.closeDanglingGroups()
}

// ResumeGroup decodes a single group's content (properties, then the
// folder's nested records up to its matching CLOSE_GROUP) starting at the
// reader's current position, using header fields already known from a
// scan.StreamEntry instead of re-decoding them. It is the sub-range entry
// point internal/lazy uses to materialize a LazyGroup without re-parsing
// from the top of the stream; the caller is responsible for seeking the
// underlying source to the entry's Start offset and installing the
// entry's InitialPool first.
func (r *BinaryReader) ResumeGroup(b Builder, name, shortName string, method *pool.Method, bci int32) error {
	r.b = b
	r.level = 0
	r.hashStack = [][]byte{nil}

	if err := b.StartGroup(r, name, shortName, method, bci); err != nil {
		return err
	}
	if err := r.parseProperties(); err != nil {
		return err
	}
	if err := r.b.StartGroupContent(r); err != nil {
		return err
	}

	r.level = 1
	r.hashStack = append(r.hashStack, nil)
	for r.level > 0 {
		if r.src.AtTopLevelEOF() {
			return &ErrUnbalancedGroups{Where: r.src.Offset()}
		}
		if err := r.parseRoot(); err != nil {
			return err
		}
	}
	return nil
}

// ResumeGraph decodes a single graph starting at the reader's current
// position, the graph-level counterpart to ResumeGroup. title and
// toplevel are the values already known from the StreamEntry; toplevel
// should normally be passed true, since a lazily reloaded graph is always
// the root of its own resumed parse even if it was a nested subgraph
// property in the original stream.
func (r *BinaryReader) ResumeGraph(b Builder, title string, toplevel bool) error {
	r.b = b
	r.level = 0
	r.hashStack = [][]byte{nil}
	return r.parseGraph(title, toplevel)
}

func (r *BinaryReader) closeDanglingGroups() error {
	for r.level > 0 {
		if err := r.b.EndGroup(r); err != nil {
			return err
		}
		r.level--
		r.hashStack = r.hashStack[:len(r.hashStack)-1]
	}
	return nil
}

func (r *BinaryReader) parseRoot() error {
	opcode, err := r.src.ReadByte()
	if err != nil {
		return err
	}
	switch opcode {
	case opBeginGroup:
		return r.parseGroup()
	case opBeginGraph:
		title, err := r.readPoolString()
		if err != nil {
			return err
		}
		return r.parseGraph(title, true)
	case opCloseGroup:
		if r.level == 0 {
			return &ErrUnbalancedGroups{Where: r.src.Offset()}
		}
		r.level--
		r.hashStack = r.hashStack[:len(r.hashStack)-1]
		return r.b.EndGroup(r)
	default:
		return &ErrProtocolError{Detail: "unknown top-level opcode", Where: r.src.Offset()}
	}
}

func (r *BinaryReader) parseGroup() error {
	name, err := r.readPoolString()
	if err != nil {
		return err
	}
	shortName, err := r.readPoolString()
	if err != nil {
		return err
	}
	methodEntry, err := r.readPoolRef(pool.KindMethod)
	if err != nil {
		return err
	}
	var method *pool.Method
	if methodEntry != nil {
		m := methodEntry.(pool.Method)
		method = &m
	}
	bci, err := r.src.ReadInt()
	if err != nil {
		return err
	}

	skipped, err := r.dispatchStart(func() error { return r.b.StartGroup(r, name, shortName, method, bci) })
	if err != nil {
		return err
	}
	if skipped {
		// The group decodes to an empty shell: the skipped range runs up to
		// just before its CLOSE_GROUP, which the main loop will read next
		// and match against this increment.
		r.level++
		r.hashStack = append(r.hashStack, nil)
		return nil
	}

	if err := r.parseProperties(); err != nil {
		return err
	}
	if err := r.b.StartGroupContent(r); err != nil {
		return err
	}
	r.hashStack = append(r.hashStack, nil)
	r.level++
	return nil
}

func (r *BinaryReader) parseGraph(title string, toplevel bool) error {
	skipped, err := r.dispatchStart(func() error { return r.b.StartGraph(r, title, toplevel) })
	if err != nil {
		return err
	}
	if skipped {
		return nil
	}

	if err := r.parseProperties(); err != nil {
		return err
	}

	r.src.StartDigest()
	if err := r.parseNodesBlock(); err != nil {
		return err
	}
	if err := r.parseBlocksBlock(); err != nil {
		return err
	}
	r.b.MakeBlockEdges()
	digest := r.src.FinishDigest()

	if toplevel {
		top := r.hashStack[len(r.hashStack)-1]
		if top != nil && bytes.Equal(top, digest) {
			r.b.MarkGraphDuplicate()
		}
		r.hashStack[len(r.hashStack)-1] = digest
	}

	return r.b.EndGraph(r, toplevel)
}

// dispatchStart runs a StartGroup/StartGraph callback. If it returns a
// *SkipRoot, dispatchStart fast-forwards the source to SkipRoot.End,
// installs SkipRoot.Pool, and reports skipped=true so the caller knows not
// to decode the record's remaining fields.
func (r *BinaryReader) dispatchStart(fn func() error) (skipped bool, err error) {
	err = fn()
	if err == nil {
		return false, nil
	}
	var skip *SkipRoot
	if errors.As(err, &skip) {
		if n := int(skip.End - r.src.Offset()); n > 0 {
			if _, ferr := r.src.ReadBytesN(n); ferr != nil {
				return false, ferr
			}
		}
		r.pool = skip.Pool
		return true, nil
	}
	return false, err
}

func (r *BinaryReader) parseProperties() error {
	count, err := r.src.ReadUnsignedShort()
	if err != nil {
		return err
	}
	for i := uint16(0); i < count; i++ {
		key, err := r.readPoolString()
		if err != nil {
			return err
		}
		tag, err := r.src.ReadByte()
		if err != nil {
			return err
		}
		switch tag {
		case propInt:
			v, err := r.src.ReadInt()
			if err != nil {
				return err
			}
			r.b.Property(key, v)
		case propLong:
			v, err := r.src.ReadLong()
			if err != nil {
				return err
			}
			r.b.Property(key, v)
		case propFloat:
			v, err := r.src.ReadFloat()
			if err != nil {
				return err
			}
			r.b.Property(key, v)
		case propDouble:
			v, err := r.src.ReadDouble()
			if err != nil {
				return err
			}
			r.b.Property(key, v)
		case propPool:
			v, err := r.readPoolRef(pool.KindAny)
			if err != nil {
				return err
			}
			r.b.Property(key, v)
		case propTrue:
			r.b.Property(key, true)
		case propFalse:
			r.b.Property(key, false)
		case propArray:
			v, err := r.parsePropertyArray()
			if err != nil {
				return err
			}
			r.b.Property(key, v)
		case propSubgraph:
			r.b.StartNestedProperty(key)
			if err := r.parseGraph("", false); err != nil {
				return err
			}
		default:
			return &ErrProtocolError{Detail: "unknown property tag", Where: r.src.Offset()}
		}
	}
	return nil
}

func (r *BinaryReader) parsePropertyArray() (string, error) {
	subtag, err := r.src.ReadByte()
	if err != nil {
		return "", err
	}
	switch subtag {
	case arrayInt:
		return r.src.ReadIntsToString()
	case arrayDouble:
		return r.src.ReadDoublesToString()
	case arrayPool:
		// An array of pool references decoded to a textual array form: each
		// element is an independent pool reference of any kind.
		count, err := r.src.ReadInt()
		if err != nil {
			return "", err
		}
		parts := make([]string, count)
		for i := range parts {
			entry, err := r.readPoolRef(pool.KindAny)
			if err != nil {
				return "", err
			}
			parts[i] = poolEntryText(entry)
		}
		return "[" + joinComma(parts) + "]", nil
	default:
		return "", &ErrProtocolError{Detail: "unknown array subtag", Where: r.src.Offset()}
	}
}

// poolEntryText renders a decoded pool entry (or nil) as the textual form
// used inside a PROPERTY_ARRAY of pool references.
func poolEntryText(entry pool.Entry) string {
	if entry == nil {
		return "null"
	}
	switch e := entry.(type) {
	case pool.String:
		return string(e)
	case pool.Klass:
		return e.Name
	case pool.EnumKlass:
		return e.Name
	case pool.EnumValue:
		if e.Ordinal >= 0 && int(e.Ordinal) < len(e.Klass.Values) {
			return e.Klass.Values[e.Ordinal]
		}
		return e.Klass.Name
	case pool.Method:
		return e.Holder.Name + "." + e.Name
	case pool.Field:
		return e.Holder.Name + "." + e.Name
	default:
		return fmt.Sprintf("%v", entry)
	}
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func (r *BinaryReader) parseNodesBlock() error {
	count, err := r.src.ReadInt()
	if err != nil {
		return err
	}
	for i := int32(0); i < count; i++ {
		id, err := r.src.ReadInt()
		if err != nil {
			return err
		}
		classEntry, err := r.readPoolRef(pool.KindNodeClass)
		if err != nil {
			return err
		}
		class, _ := classEntry.(pool.NodeClass)

		preds, err := r.src.ReadByte()
		if err != nil {
			return err
		}
		r.b.StartNode(id, class, preds != 0)

		if err := r.parseProperties(); err != nil {
			return err
		}

		if err := r.parsePortSeries(id, class.Inputs, r.b.InputEdge); err != nil {
			return err
		}
		if err := r.parsePortSeries(id, class.Sux, r.b.SuccessorEdge); err != nil {
			return err
		}

		r.b.EndNode(id)
	}
	return nil
}

func (r *BinaryReader) parsePortSeries(id int32, ports []pool.Port, emit func(from, to int32, portIndex int, portName string, list bool)) error {
	for portIndex, port := range ports {
		if port.IsList {
			size, err := r.src.ReadUnsignedShort()
			if err != nil {
				return err
			}
			for i := uint16(0); i < size; i++ {
				peer, err := r.src.ReadInt()
				if err != nil {
					return err
				}
				if peer >= 0 {
					emit(peer, id, portIndex, port.Name, true)
				}
			}
			continue
		}
		peer, err := r.src.ReadInt()
		if err != nil {
			return err
		}
		if peer >= 0 {
			emit(peer, id, portIndex, port.Name, false)
		}
	}
	return nil
}

func (r *BinaryReader) parseBlocksBlock() error {
	count, err := r.src.ReadInt()
	if err != nil {
		return err
	}
	for i := int32(0); i < count; i++ {
		id, err := r.src.ReadInt()
		if err != nil {
			return err
		}
		r.b.StartBlock(id)

		nodeCount, err := r.src.ReadInt()
		if err != nil {
			return err
		}
		nodeIDs := make([]int32, 0, nodeCount)
		for j := int32(0); j < nodeCount; j++ {
			n, err := r.src.ReadInt()
			if err != nil {
				return err
			}
			if n >= 0 {
				nodeIDs = append(nodeIDs, n)
			}
		}

		edgeCount, err := r.src.ReadInt()
		if err != nil {
			return err
		}
		edgeTargets := make([]int32, edgeCount)
		for j := range edgeTargets {
			t, err := r.src.ReadInt()
			if err != nil {
				return err
			}
			edgeTargets[j] = t
		}

		r.b.EndBlock(id, nodeIDs, edgeTargets)
	}
	return nil
}

func (r *BinaryReader) readPoolString() (string, error) {
	entry, err := r.readPoolRef(pool.KindString)
	if err != nil {
		return "", err
	}
	if entry == nil {
		return "", nil
	}
	return string(entry.(pool.String)), nil
}

// readPoolRef decodes a pool reference: POOL_NULL yields (nil, nil);
// POOL_NEW decodes and installs a brand-new entry at the given index;
// otherwise the tag is the expected-kind tag for an existing entry, cross-
// checked against expected.
func (r *BinaryReader) readPoolRef(expected pool.Kind) (pool.Entry, error) {
	tag, err := r.src.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case poolNull:
		return nil, nil
	case poolNew:
		return r.readPoolNew()
	default:
		index, err := r.src.ReadUnsignedShort()
		if err != nil {
			return nil, err
		}
		if !tagMatchesKind(tag, expected) {
			return nil, &ErrPoolIndexOutOfRange{Index: index, Where: r.src.Offset(), Expected: expected}
		}
		entry, err := r.pool.Get(index, r.src.Offset())
		if err != nil {
			return nil, err
		}
		if !kindCompatible(entry.Kind(), expected) {
			return nil, &ErrPoolIndexOutOfRange{Index: index, Where: r.src.Offset(), Expected: expected}
		}
		return entry, nil
	}
}

func (r *BinaryReader) readPoolNew() (pool.Entry, error) {
	index, err := r.src.ReadUnsignedShort()
	if err != nil {
		return nil, err
	}
	typeTag, err := r.src.ReadByte()
	if err != nil {
		return nil, err
	}

	var entry pool.Entry
	switch typeTag {
	case poolString:
		s, err := r.src.ReadString()
		if err != nil {
			return nil, err
		}
		entry = pool.String(s)

	case poolClass:
		name, err := r.src.ReadString()
		if err != nil {
			return nil, err
		}
		klassType, err := r.src.ReadByte()
		if err != nil {
			return nil, err
		}
		switch klassType {
		case klassPlain:
			entry = pool.Klass{Name: name, SimpleName: simpleNameOf(name)}
		case klassEnum:
			n, err := r.src.ReadInt()
			if err != nil {
				return nil, err
			}
			values := make([]string, n)
			for i := range values {
				v, err := r.readPoolRef(pool.KindString)
				if err != nil {
					return nil, err
				}
				if v != nil {
					values[i] = string(v.(pool.String))
				}
			}
			entry = pool.EnumKlass{Name: name, Values: values}
		default:
			return nil, &ErrProtocolError{Detail: "unknown klass type", Where: r.src.Offset()}
		}

	case poolEnum:
		klassEntry, err := r.readPoolRef(pool.KindEnumKlass)
		if err != nil {
			return nil, err
		}
		ek, _ := klassEntry.(pool.EnumKlass)
		ordinal, err := r.src.ReadInt()
		if err != nil {
			return nil, err
		}
		entry = pool.EnumValue{Klass: ek, Ordinal: ordinal}

	case poolMethod:
		holderEntry, err := r.readPoolRef(pool.KindKlass)
		if err != nil {
			return nil, err
		}
		holder, _ := holderEntry.(pool.Klass)
		name, err := r.readPoolString()
		if err != nil {
			return nil, err
		}
		sigEntry, err := r.readPoolRef(pool.KindSignature)
		if err != nil {
			return nil, err
		}
		sig, _ := sigEntry.(pool.Signature)
		flags, err := r.src.ReadInt()
		if err != nil {
			return nil, err
		}
		code, isNull, err := r.src.ReadBytes()
		if err != nil {
			return nil, err
		}
		entry = pool.Method{Holder: holder, Name: name, Signature: sig, Code: code, CodeNull: isNull, Flags: flags}

	case poolField:
		holderEntry, err := r.readPoolRef(pool.KindKlass)
		if err != nil {
			return nil, err
		}
		holder, _ := holderEntry.(pool.Klass)
		name, err := r.readPoolString()
		if err != nil {
			return nil, err
		}
		typ, err := r.readPoolString()
		if err != nil {
			return nil, err
		}
		flags, err := r.src.ReadInt()
		if err != nil {
			return nil, err
		}
		entry = pool.Field{Holder: holder, Name: name, Type: typ, Flags: flags}

	case poolSignature:
		argc, err := r.src.ReadUnsignedShort()
		if err != nil {
			return nil, err
		}
		args := make([]string, argc)
		for i := range args {
			args[i], err = r.readPoolString()
			if err != nil {
				return nil, err
			}
		}
		ret, err := r.readPoolString()
		if err != nil {
			return nil, err
		}
		entry = pool.Signature{ReturnType: ret, ArgTypes: args}

	case poolNodeClass:
		className, err := r.src.ReadString()
		if err != nil {
			return nil, err
		}
		nameTemplate, err := r.src.ReadString()
		if err != nil {
			return nil, err
		}
		inputCount, err := r.src.ReadUnsignedShort()
		if err != nil {
			return nil, err
		}
		inputs := make([]pool.Port, inputCount)
		for i := range inputs {
			isList, err := r.src.ReadByte()
			if err != nil {
				return nil, err
			}
			name, err := r.readPoolString()
			if err != nil {
				return nil, err
			}
			typeEntry, err := r.readPoolRef(pool.KindEnumValue)
			if err != nil {
				return nil, err
			}
			ev, _ := typeEntry.(pool.EnumValue)
			inputs[i] = pool.Port{IsList: isList != 0, Name: name, InputType: ev}
		}

		suxCount, err := r.src.ReadUnsignedShort()
		if err != nil {
			return nil, err
		}
		sux := make([]pool.Port, suxCount)
		for i := range sux {
			isList, err := r.src.ReadByte()
			if err != nil {
				return nil, err
			}
			name, err := r.readPoolString()
			if err != nil {
				return nil, err
			}
			sux[i] = pool.Port{IsList: isList != 0, Name: name}
		}

		entry = pool.NodeClass{ClassName: className, NameTemplate: nameTemplate, Inputs: inputs, Sux: sux}

	default:
		return nil, &ErrProtocolError{Detail: "unknown pool entry type", Where: r.src.Offset()}
	}

	return r.pool.AddPoolEntry(index, entry, r.src.Offset())
}

func simpleNameOf(qualifiedName string) string {
	last := 0
	for i := 0; i < len(qualifiedName); i++ {
		if qualifiedName[i] == '.' || qualifiedName[i] == '/' {
			last = i + 1
		}
	}
	return qualifiedName[last:]
}
