// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pool implements the constant-pool machinery threaded through every
// record of a binary dump: a dense, index-addressable arena of decoded
// values that later records refer back to instead of repeating.
package pool

import "fmt"

// Kind discriminates the pool entry variants the wire format can carry.
type Kind uint8

const (
	KindString Kind = iota
	KindKlass
	KindEnumKlass
	KindEnumValue
	KindSignature
	KindMethod
	KindField
	KindNodeClass

	// KindAny is not a real pool entry kind; it is passed as the "expected"
	// kind at call sites (property values, PROPERTY_ARRAY pool elements)
	// where the wire format allows a reference to any pool kind, so the
	// reader should skip its usual expected-kind cross-check.
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindKlass:
		return "Klass"
	case KindEnumKlass:
		return "EnumKlass"
	case KindEnumValue:
		return "EnumValue"
	case KindSignature:
		return "Signature"
	case KindMethod:
		return "Method"
	case KindField:
		return "Field"
	case KindNodeClass:
		return "NodeClass"
	case KindAny:
		return "Any"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Entry is implemented by every value that can occupy a pool slot.
type Entry interface {
	Kind() Kind
	// Equal reports structural equality, the definition used for interning.
	Equal(other Entry) bool
}

// String is a pooled, possibly interned, string value.
type String string

func (String) Kind() Kind { return KindString }

func (s String) Equal(other Entry) bool {
	o, ok := other.(String)
	return ok && s == o
}

// Klass is a pooled class/type reference.
type Klass struct {
	Name       string
	SimpleName string
}

func (Klass) Kind() Kind { return KindKlass }

func (k Klass) Equal(other Entry) bool {
	o, ok := other.(Klass)
	return ok && k.Name == o.Name && k.SimpleName == o.SimpleName
}

// EnumKlass is a pooled enum type: a Klass plus its ordered value names.
type EnumKlass struct {
	Name   string
	Values []string
}

func (EnumKlass) Kind() Kind { return KindEnumKlass }

func (e EnumKlass) Equal(other Entry) bool {
	o, ok := other.(EnumKlass)
	if !ok || e.Name != o.Name || len(e.Values) != len(o.Values) {
		return false
	}
	for i := range e.Values {
		if e.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

// EnumValue is a pooled enum constant: an EnumKlass reference and its ordinal.
type EnumValue struct {
	Klass   EnumKlass
	Ordinal int32
}

func (EnumValue) Kind() Kind { return KindEnumValue }

func (e EnumValue) Equal(other Entry) bool {
	o, ok := other.(EnumValue)
	return ok && e.Ordinal == o.Ordinal && e.Klass.Equal(o.Klass)
}

// Signature is a pooled method signature.
type Signature struct {
	ReturnType string
	ArgTypes   []string
}

func (Signature) Kind() Kind { return KindSignature }

func (s Signature) Equal(other Entry) bool {
	o, ok := other.(Signature)
	if !ok || s.ReturnType != o.ReturnType || len(s.ArgTypes) != len(o.ArgTypes) {
		return false
	}
	for i := range s.ArgTypes {
		if s.ArgTypes[i] != o.ArgTypes[i] {
			return false
		}
	}
	return true
}

// Method is a pooled method reference.
type Method struct {
	Holder    Klass
	Name      string
	Signature Signature
	Code      []byte
	CodeNull  bool
	Flags     int32
}

func (Method) Kind() Kind { return KindMethod }

func (m Method) Equal(other Entry) bool {
	o, ok := other.(Method)
	if !ok || m.Name != o.Name || m.Flags != o.Flags || m.CodeNull != o.CodeNull {
		return false
	}
	if !m.Holder.Equal(o.Holder) || !m.Signature.Equal(o.Signature) {
		return false
	}
	if len(m.Code) != len(o.Code) {
		return false
	}
	for i := range m.Code {
		if m.Code[i] != o.Code[i] {
			return false
		}
	}
	return true
}

// Field is a pooled field reference.
type Field struct {
	Holder Klass
	Name   string
	Type   string
	Flags  int32
}

func (Field) Kind() Kind { return KindField }

func (f Field) Equal(other Entry) bool {
	o, ok := other.(Field)
	return ok && f.Name == o.Name && f.Type == o.Type && f.Flags == o.Flags && f.Holder.Equal(o.Holder)
}

// PortKind discriminates the two ways a NodeClass port can look up peer ids.
type PortKind uint8

const (
	PortInput PortKind = iota
	PortSuccessor
)

// Port is a single named, possibly list-valued, port of a NodeClass.
type Port struct {
	IsList    bool
	Name      string
	InputType EnumValue // zero value for successor ports
}

// NodeClass is a pooled schema entry describing a node kind's ports and
// name template.
type NodeClass struct {
	ClassName    string
	NameTemplate string
	Inputs       []Port
	Sux          []Port
}

func (NodeClass) Kind() Kind { return KindNodeClass }

func (n NodeClass) Equal(other Entry) bool {
	o, ok := other.(NodeClass)
	if !ok || n.ClassName != o.ClassName || n.NameTemplate != o.NameTemplate {
		return false
	}
	if len(n.Inputs) != len(o.Inputs) || len(n.Sux) != len(o.Sux) {
		return false
	}
	for i := range n.Inputs {
		a, b := n.Inputs[i], o.Inputs[i]
		if a.IsList != b.IsList || a.Name != b.Name || !a.InputType.Equal(b.InputType) {
			return false
		}
	}
	for i := range n.Sux {
		if n.Sux[i].IsList != o.Sux[i].IsList || n.Sux[i].Name != o.Sux[i].Name {
			return false
		}
	}
	return true
}
