// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package binsrc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32(n int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(n))
	return b
}

func lengthPrefixedString(s string) []byte {
	var buf bytes.Buffer
	buf.Write(u32(int32(len(s))))
	buf.WriteString(s)
	return buf.Bytes()
}

func TestReadPrimitivesBigEndian(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0x7F)
	binary.Write(&buf, binary.BigEndian, int16(-5))
	binary.Write(&buf, binary.BigEndian, int32(1000000))
	binary.Write(&buf, binary.BigEndian, int64(-42))
	binary.Write(&buf, binary.BigEndian, float32(3.5))
	binary.Write(&buf, binary.BigEndian, float64(2.25))

	s := New(&buf)
	b, err := s.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x7F), b)

	sh, err := s.ReadShort()
	require.NoError(t, err)
	assert.Equal(t, int16(-5), sh)

	i, err := s.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, int32(1000000), i)

	l, err := s.ReadLong()
	require.NoError(t, err)
	assert.Equal(t, int64(-42), l)

	f, err := s.ReadFloat()
	require.NoError(t, err)
	assert.Equal(t, float32(3.5), f)

	d, err := s.ReadDouble()
	require.NoError(t, err)
	assert.Equal(t, float64(2.25), d)
}

func TestUnexpectedEOFMidValue(t *testing.T) {
	s := New(bytes.NewReader([]byte{0x00, 0x01}))
	_, err := s.ReadInt()
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestAtTopLevelEOF(t *testing.T) {
	s := New(bytes.NewReader(nil))
	assert.True(t, s.AtTopLevelEOF())

	s2 := New(bytes.NewReader([]byte{0x02}))
	assert.False(t, s2.AtTopLevelEOF())
}

func TestReadBytesNullBlob(t *testing.T) {
	s := New(bytes.NewReader(u32(-1)))
	_, isNull, err := s.ReadBytes()
	require.NoError(t, err)
	assert.True(t, isNull)
}

func TestReadStringUTF8Default(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(lengthPrefixedString("hello"))
	s := New(&buf)
	got, err := s.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestReadStringUTF16Autodetect(t *testing.T) {
	// First non-empty string's leading byte is 0x00 -> locks UTF-16BE for
	// the whole stream, even though a later string's leading byte is non-zero.
	utf16 := func(s string) []byte {
		var b bytes.Buffer
		for _, r := range s {
			binary.Write(&b, binary.BigEndian, uint16(r))
		}
		return b.Bytes()
	}

	first := utf16("hi") // leading byte of 'h' (0x0068) is 0x00
	var buf bytes.Buffer
	buf.Write(u32(int32(len(first))))
	buf.Write(first)

	second := utf16("あ") // Japanese hiragana A, leading byte 0x30 (non-zero)
	buf.Write(u32(int32(len(second))))
	buf.Write(second)

	s := New(&buf)
	got1, err := s.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "hi", got1)

	got2, err := s.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "あ", got2)
}

func TestReadStringEmptyIsAlwaysEmpty(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(u32(0))
	s := New(&buf)
	got, err := s.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestReadHeaderPresentAndAbsent(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("BIGV")
	buf.WriteByte(1)
	buf.WriteByte(0)
	s := New(&buf)
	ok, err := s.ReadHeader()
	require.NoError(t, err)
	assert.True(t, ok)

	s2 := New(bytes.NewReader([]byte{0x00, 0x01, 0x02}))
	ok2, err := s2.ReadHeader()
	require.NoError(t, err)
	assert.False(t, ok2, "non-magic bytes must not be consumed")
	b, err := s2.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), b, "bytes must still be there for the caller to read normally")
}

func TestReadHeaderVersionMismatch(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("BIGV")
	buf.WriteByte(MaxSupportedMajor + 1)
	buf.WriteByte(0)
	s := New(&buf)
	_, err := s.ReadHeader()
	var mismatch *ErrVersionMismatch
	require.True(t, errors.As(err, &mismatch))
}

func TestDigestStableAcrossBufferRefills(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 1000)

	run := func(bufSize int) []byte {
		s := NewSize(bytes.NewReader(payload), bufSize)
		s.StartDigest()
		for i := 0; i < len(payload); i++ {
			_, err := s.ReadByte()
			require.NoError(t, err)
		}
		return s.FinishDigest()
	}

	// Force many refills with a tiny buffer vs. one with a buffer big
	// enough to hold everything; the digest must be identical either way.
	small := run(1)
	large := run(len(payload) * 2)
	assert.Equal(t, large, small)
}

func TestDigestDetectsOneByteChange(t *testing.T) {
	a := bytes.Repeat([]byte{0x01}, 8)
	b := append([]byte(nil), a...)
	b[3] = 0x02

	digestOf := func(data []byte) []byte {
		s := New(bytes.NewReader(data))
		s.StartDigest()
		_, _ = s.ReadBytesN(len(data))
		return s.FinishDigest()
	}

	assert.Equal(t, digestOf(a), digestOf(a))
	assert.NotEqual(t, digestOf(a), digestOf(b))
}

func TestCancelInterruptsRefill(t *testing.T) {
	s := New(bytes.NewReader([]byte{1, 2, 3, 4}))
	s.SetCancelFunc(func() bool { return true })
	_, err := s.ReadInt()
	assert.ErrorIs(t, err, ErrInterrupted)
}

func TestCancelObservedWithinOneRefill(t *testing.T) {
	// Cancellation fires after the first refill; the bytes already buffered
	// keep decoding, and the next refill observes the signal.
	var cancelled bool
	s := NewSize(bytes.NewReader(bytes.Repeat([]byte{0x01}, 256)), 64)
	s.SetCancelFunc(func() bool { return cancelled })

	_, err := s.ReadBytesN(64)
	require.NoError(t, err)

	cancelled = true
	_, err = s.ReadBytesN(64)
	assert.ErrorIs(t, err, ErrInterrupted)
}

func TestSetVersionWithoutHeader(t *testing.T) {
	s := New(bytes.NewReader(nil))
	s.SetVersion(1, 0)
	major, minor := s.Version()
	assert.Equal(t, byte(1), major)
	assert.Equal(t, byte(0), minor)
}
