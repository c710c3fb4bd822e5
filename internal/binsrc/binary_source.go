// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package binsrc implements the buffered, position-tracking, digest-capable
// byte decoder (BinarySource) that every record in a dump is read through.
package binsrc

import (
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DefaultBufferSize is the buffer capacity used when Source.New is given no
// explicit size, matching the dump reader's typical working set.
const DefaultBufferSize = 256 * 1024

const headerMagic = "BIGV"

// MaxSupportedMajor/MaxSupportedMinor bound the versions ReadHeader accepts.
const (
	MaxSupportedMajor byte = 1
	MaxSupportedMinor byte = 0
)

// stringEncoding is the per-stream locked string encoding, chosen on the
// first non-empty string by the leading-zero-byte heuristic.
type stringEncoding int

const (
	encodingUndetermined stringEncoding = iota
	encodingUTF8
	encodingUTF16BE
)

// CancelFunc reports whether the caller wants to abort the current read; it
// backs the design's "Feedback" cancellation signal. A nil CancelFunc means
// "never cancel".
type CancelFunc func() bool

// Source is a buffered, big-endian, position-tracking decoder over an
// io.Reader. It is not safe for concurrent use: a single parse reads through
// one Source from one goroutine, matching the single-writer discipline
// internal/reader builds its protocol state machine on top of.
type Source struct {
	r   io.Reader
	buf []byte
	pos int // next unread byte within buf
	end int // valid bytes within buf

	streamPos int64 // absolute offset of buf[0] in the overall stream

	major, minor byte

	enc stringEncoding

	digestActive   bool
	digestHash     hash.Hash
	digestHashedTo int64 // absolute offset up to which bytes are already hashed
	cancel         CancelFunc
}

// New returns a Source reading from r with the default buffer capacity.
func New(r io.Reader) *Source {
	return NewSize(r, DefaultBufferSize)
}

// NewSize returns a Source reading from r with a buffer of the given
// capacity (at least 64 bytes, to keep fixed-width reads simple).
func NewSize(r io.Reader, size int) *Source {
	if size < 64 {
		size = 64
	}
	return &Source{r: r, buf: make([]byte, size)}
}

// SetCancelFunc installs the cancellation check consulted at every buffer
// refill, the design's sole suspension/cancellation point.
func (s *Source) SetCancelFunc(fn CancelFunc) {
	s.cancel = fn
}

// Offset returns the number of bytes consumed so far (the design's "mark").
func (s *Source) Offset() int64 {
	return s.streamPos + int64(s.pos)
}

// fill ensures at least n unread bytes are available in the buffer,
// compacting and refilling from the underlying reader as needed. It returns
// ErrUnexpectedEOF if the reader is exhausted before n bytes are available,
// and ErrInterrupted if the cancellation signal fires during a refill.
func (s *Source) fill(n int) error {
	if n > len(s.buf) {
		s.advanceDigestTo(s.streamPos + int64(s.pos))
		grown := make([]byte, n)
		copy(grown, s.buf[s.pos:s.end])
		s.buf = grown
		s.end -= s.pos
		s.streamPos += int64(s.pos)
		s.pos = 0
	}

	for s.end-s.pos < n {
		if s.cancel != nil && s.cancel() {
			return ErrInterrupted
		}

		if s.pos > 0 {
			s.advanceDigestTo(s.streamPos + int64(s.pos))
			copy(s.buf, s.buf[s.pos:s.end])
			s.end -= s.pos
			s.streamPos += int64(s.pos)
			s.pos = 0
		}

		if s.end == len(s.buf) {
			grown := make([]byte, len(s.buf)*2)
			copy(grown, s.buf[:s.end])
			s.buf = grown
		}

		read, err := s.r.Read(s.buf[s.end:])
		s.end += read
		if err != nil {
			if err == io.EOF {
				if s.end-s.pos >= n {
					break
				}
				return ErrUnexpectedEOF
			}
			return fmt.Errorf("binsrc: read: %w", err)
		}
		if read == 0 {
			return ErrUnexpectedEOF
		}
	}
	return nil
}

// advanceDigestTo feeds any consumed-but-not-yet-hashed bytes up to the
// absolute offset `to` into the running digest. Called before the buffer is
// compacted, since compaction may discard bytes the digest still needs.
func (s *Source) advanceDigestTo(to int64) {
	if !s.digestActive || to <= s.digestHashedTo {
		return
	}
	from := s.digestHashedTo - s.streamPos
	upto := to - s.streamPos
	if from < 0 {
		from = 0
	}
	if upto > int64(s.end) {
		upto = int64(s.end)
	}
	if upto > from {
		s.digestHash.Write(s.buf[from:upto])
	}
	s.digestHashedTo = to
}

func (s *Source) consume(n int) []byte {
	b := s.buf[s.pos : s.pos+n]
	s.pos += n
	return b
}

// ReadByte decodes a single unsigned byte.
func (s *Source) ReadByte() (byte, error) {
	if err := s.fill(1); err != nil {
		return 0, err
	}
	return s.consume(1)[0], nil
}

// ReadShort decodes a big-endian int16.
func (s *Source) ReadShort() (int16, error) {
	if err := s.fill(2); err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(s.consume(2))), nil
}

// ReadUnsignedShort decodes a big-endian uint16 (used for pool indices and
// list-port size prefixes).
func (s *Source) ReadUnsignedShort() (uint16, error) {
	if err := s.fill(2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(s.consume(2)), nil
}

// ReadInt decodes a big-endian int32.
func (s *Source) ReadInt() (int32, error) {
	if err := s.fill(4); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(s.consume(4))), nil
}

// ReadLong decodes a big-endian int64.
func (s *Source) ReadLong() (int64, error) {
	if err := s.fill(8); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(s.consume(8))), nil
}

// ReadFloat decodes a big-endian IEEE 754 float32.
func (s *Source) ReadFloat() (float32, error) {
	if err := s.fill(4); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(s.consume(4))), nil
}

// ReadDouble decodes a big-endian IEEE 754 float64.
func (s *Source) ReadDouble() (float64, error) {
	if err := s.fill(8); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(s.consume(8))), nil
}

// ReadBytesN reads exactly n raw bytes.
func (s *Source) ReadBytesN(n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if err := s.fill(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, s.consume(n))
	return out, nil
}

// ReadBytes reads a 32-bit length-prefixed byte blob. A negative length
// means "null blob": it returns (nil, true, nil).
func (s *Source) ReadBytes() (data []byte, isNull bool, err error) {
	n, err := s.ReadInt()
	if err != nil {
		return nil, false, err
	}
	if n < 0 {
		return nil, true, nil
	}
	b, err := s.ReadBytesN(int(n))
	return b, false, err
}

// ReadString reads a 32-bit byte-length-prefixed string. Encoding (UTF-8 vs
// UTF-16BE) is chosen once per stream on the first non-empty string: if its
// first byte is zero the stream is UTF-16BE; otherwise UTF-8. Subsequent
// strings use the locked encoding regardless of their own leading byte. A
// zero-length string always decodes to "" regardless of detection state.
func (s *Source) ReadString() (string, error) {
	raw, isNull, err := s.ReadBytes()
	if err != nil {
		return "", err
	}
	if isNull || len(raw) == 0 {
		return "", nil
	}

	if s.enc == encodingUndetermined {
		if raw[0] == 0 {
			s.enc = encodingUTF16BE
		} else {
			s.enc = encodingUTF8
		}
	}

	if s.enc == encodingUTF16BE {
		return decodeUTF16BE(raw), nil
	}
	return string(raw), nil
}

func decodeUTF16BE(raw []byte) string {
	n := len(raw) / 2
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = binary.BigEndian.Uint16(raw[i*2 : i*2+2])
	}
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < len(units); i++ {
		r := rune(units[i])
		if r >= 0xD800 && r <= 0xDBFF && i+1 < len(units) {
			low := rune(units[i+1])
			if low >= 0xDC00 && low <= 0xDFFF {
				r = ((r - 0xD800) << 10) + (low - 0xDC00) + 0x10000
				i++
			}
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// ReadIntsToString decodes a count-prefixed array of int32 values into a
// bracketed, comma-separated textual property value, e.g. "[1, 2, 3]".
func (s *Source) ReadIntsToString() (string, error) {
	count, err := s.ReadInt()
	if err != nil {
		return "", err
	}
	parts := make([]string, count)
	for i := range parts {
		v, err := s.ReadInt()
		if err != nil {
			return "", err
		}
		parts[i] = strconv.FormatInt(int64(v), 10)
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}

// ReadDoublesToString decodes a count-prefixed array of float64 values into
// a bracketed, comma-separated textual property value.
func (s *Source) ReadDoublesToString() (string, error) {
	count, err := s.ReadInt()
	if err != nil {
		return "", err
	}
	parts := make([]string, count)
	for i := range parts {
		v, err := s.ReadDouble()
		if err != nil {
			return "", err
		}
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}

// ReadHeader peeks for the "BIGV" magic at the current position. If present,
// it consumes the magic and the following major/minor version bytes and
// returns (true, nil); if the declared version exceeds the supported
// maximum it returns ErrVersionMismatch. If the magic is not present at the
// current position, nothing is consumed and it returns (false, nil) -- the
// caller is expected to treat this as "continuation of the previous
// stream", which is how concatenated dumps are supported.
func (s *Source) ReadHeader() (bool, error) {
	if err := s.fill(len(headerMagic) + 2); err != nil {
		if err == ErrUnexpectedEOF {
			return false, nil
		}
		return false, err
	}
	if string(s.buf[s.pos:s.pos+len(headerMagic)]) != headerMagic {
		return false, nil
	}
	s.consume(len(headerMagic))
	major := s.consume(1)[0]
	minor := s.consume(1)[0]
	s.major, s.minor = major, minor
	if major > MaxSupportedMajor || (major == MaxSupportedMajor && minor > MaxSupportedMinor) {
		return true, &ErrVersionMismatch{
			DeclaredMajor: major, DeclaredMinor: minor,
			MaxMajor: MaxSupportedMajor, MaxMinor: MaxSupportedMinor,
		}
	}
	return true, nil
}

// SetVersion installs a declared major/minor version directly, without
// consuming a header. Used by lazy completers that open a sub-range of an
// already-scanned dump: the sub-range carries no magic prefix, because the
// scanner already validated the header once for the whole stream.
func (s *Source) SetVersion(major, minor byte) {
	s.major, s.minor = major, minor
}

// Version returns the major/minor version currently in effect (either
// consumed from a header or installed via SetVersion).
func (s *Source) Version() (major, minor byte) {
	return s.major, s.minor
}

// SetBaseOffset shifts Offset's origin so it reports absolute positions in
// the original dump rather than positions relative to r. Used by lazy
// completers that open a CachedContent sub-range starting at a
// scan.StreamEntry's Start: r reads from byte 0 of that range, but
// Offset() must still return Start-relative-to-nothing, i.e. the same
// absolute offsets the original scan recorded, so any entries re-scanned
// while resuming line up with the existing StreamIndex. Must be called
// before any bytes are read from s.
func (s *Source) SetBaseOffset(off int64) {
	s.streamPos = off
}

// AtTopLevelEOF reports whether the stream is exhausted right now, with no
// partially-consumed record pending -- i.e. whether stopping here would be a
// legitimate stream terminator rather than a mid-record failure.
func (s *Source) AtTopLevelEOF() bool {
	if s.end > s.pos {
		return false
	}
	err := s.fill(1)
	return err == ErrUnexpectedEOF
}

// StartDigest resets the running digest and marks the current offset as its
// start.
func (s *Source) StartDigest() {
	h, _ := blake2b.New256(nil)
	s.digestHash = h
	s.digestActive = true
	s.digestHashedTo = s.Offset()
}

// FinishDigest returns the digest over every byte consumed since the most
// recent StartDigest, and stops the running digest.
func (s *Source) FinishDigest() []byte {
	s.advanceDigestTo(s.Offset())
	sum := s.digestHash.Sum(nil)
	s.digestActive = false
	return sum
}
