// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import (
	stdbinary "encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yoloyyh/go-symbol/internal/binary"
	"github.com/yoloyyh/go-symbol/internal/elfimage"
)

// rtypeBuilder hand-assembles a synthetic "types" region: a flat byte
// buffer addressed starting at base, into which rtype records, struct
// suffixes, and names can be written at chosen offsets. This is the
// "in-memory synthetic binary" spec's DESIGN NOTES calls for, since there
// is no DWARF or live process this package can lean on for test fixtures.
type rtypeBuilder struct {
	base uint64
	buf  []byte
}

func newRtypeBuilder(base uint64, size int) *rtypeBuilder {
	return &rtypeBuilder{base: base, buf: make([]byte, size)}
}

func (b *rtypeBuilder) putWord(off uint64, v uint64) {
	stdbinary.LittleEndian.PutUint64(b.buf[off:], v)
}

func (b *rtypeBuilder) putByte(off uint64, v byte) {
	b.buf[off] = v
}

func (b *rtypeBuilder) putUint32(off uint64, v uint32) {
	stdbinary.LittleEndian.PutUint32(b.buf[off:], v)
}

// putVarintName writes a >=1.17 style name (flags byte + varint length +
// UTF-8 bytes) at off and returns the number of bytes written.
func (b *rtypeBuilder) putVarintName(off uint64, name string) uint64 {
	b.putByte(off, 0) // flags
	n := uint64(1)
	length := uint64(len(name))
	for {
		c := byte(length & 0x7f)
		length >>= 7
		if length != 0 {
			c |= 0x80
		}
		b.buf[off+n] = c
		n++
		if length == 0 {
			break
		}
	}
	copy(b.buf[off+n:], name)
	return n + uint64(len(name))
}

// putLegacyName writes a <=1.16 style name (flags byte + big-endian
// 2-byte length + UTF-8 bytes) at off.
func (b *rtypeBuilder) putLegacyName(off uint64, name string) {
	b.putByte(off, 0)
	b.putByte(off+1, byte(len(name)>>8))
	b.putByte(off+2, byte(len(name)))
	copy(b.buf[off+3:], name)
}

// putRType writes the kind byte and name-offset field (relative to base)
// of an rtype record at off.
func (b *rtypeBuilder) putRType(off uint64, kind Kind, nameAddr uint64) {
	b.putByte(off+23, byte(kind))
	b.putUint32(off+40, uint32(nameAddr-b.base))
}

func testReaderWithImage(img *elfimage.Image, version Version, typesBase uint64) *Reader {
	r := &Reader{
		image:       img,
		ptrSize:     8,
		conv:        binary.NewConverter(binary.LittleEndian),
		rtypeLayout: rtypeLayoutFor(8),
		logger:      zap.NewNop().Sugar(),
		version:     version,
		versionState: found,
	}
	r.typesBaseAddr = typesBase
	r.typesState = found
	return r
}

func TestStructFieldDecodeTwoFields(t *testing.T) {
	const base = 0x2000
	b := newRtypeBuilder(base, 0x400)

	// Layout: rtype header at base, pkgPath name ptr at +48 (unused, left
	// zero), fields slice header at +56 (ptr, len), two structField
	// entries starting at +0x100, and name bytes placed after those.
	fieldsBase := uint64(base + 0x100)
	b.putRType(0, KindStruct, uint64(base+0x200))
	b.putWord(56, fieldsBase) // fields ptr (absolute addr)
	b.putWord(64, 2)          // fields len

	xNameAddr := uint64(base + 0x240)
	yNameAddr := uint64(base + 0x250)
	b.putVarintName(xNameAddr-base, "X")
	b.putVarintName(yNameAddr-base, "Y")

	// structField 0: (name_ptr, type_ptr, offset_word)
	b.putWord(0x100, xNameAddr)
	b.putWord(0x108, 0)
	b.putWord(0x110, 0)
	// structField 1
	b.putWord(0x118, yNameAddr)
	b.putWord(0x120, 0)
	b.putWord(0x128, 8)

	b.putVarintName(0x200, "pkg.Point")

	sec := elfimage.NewSection(".data", elfimage.Address(base), b.buf)
	img := elfimage.NewSynthetic(8, binary.LittleEndian, false, []elfimage.Section{sec}, nil)
	r := testReaderWithImage(img, v1_20, base)

	s, err := newStruct(r, base)
	require.NoError(t, err)
	require.Equal(t, KindStruct, s.Kind())

	name, err := s.Name()
	require.NoError(t, err)
	require.Equal(t, "pkg.Point", name)

	n, err := s.FieldCount()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	f0, ok, err := s.Field(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "X", f0.Name)
	require.Equal(t, uint64(0), f0.Offset)

	f1, ok, err := s.Field(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Y", f1.Name)
	require.Equal(t, uint64(8), f1.Offset)

	_, ok, err = s.Field(2)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestEmbeddedOffsetShift mirrors S6 in spec §8: a 1.17 struct field whose
// stored offset word has its low bit set as the embedded flag; the
// reported byte offset must be the word right-shifted by one.
func TestEmbeddedOffsetShift(t *testing.T) {
	const base = 0x3000
	b := newRtypeBuilder(base, 0x200)
	fieldsBase := uint64(base + 0x80)
	b.putRType(0, KindStruct, uint64(base+0x100))
	b.putWord(56, fieldsBase)
	b.putWord(64, 1)

	nameAddr := uint64(base + 0x120)
	b.putVarintName(nameAddr-base, "Embedded")
	b.putWord(0x80, nameAddr)
	b.putWord(0x88, 0)
	b.putWord(0x90, 0x21) // embedded flag set, true offset = 0x10

	sec := elfimage.NewSection(".data", elfimage.Address(base), b.buf)
	img := elfimage.NewSynthetic(8, binary.LittleEndian, false, []elfimage.Section{sec}, nil)
	r := testReaderWithImage(img, Version{1, 17}, base)

	s, err := newStruct(r, base)
	require.NoError(t, err)
	f, ok, err := s.Field(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(0x10), f.Offset)
}

// TestMapOfStructFieldCount mirrors S5: a Map whose element is a 3-field
// struct; FieldCount must recurse through the Map wrapper to the struct.
func TestMapOfStructFieldCount(t *testing.T) {
	const base = 0x4000
	const elemOff = 0x300
	b := newRtypeBuilder(base, 0x600)

	// Map rtype at `base`: element pointer at size(48)+ptrSize(8) = 56.
	b.putByte(23, byte(KindMap))
	b.putWord(56, uint64(base+elemOff))

	// Struct element at base+elemOff with 3 fields.
	structOff := uint64(elemOff)
	b.putByte(structOff+23, byte(KindStruct))
	fieldsBase := uint64(base) + structOff + 0x100
	b.putWord(structOff+56, fieldsBase)
	b.putWord(structOff+64, 3)
	for i := 0; i < 3; i++ {
		entry := structOff + 0x100 + uint64(i)*24
		nameAddr := uint64(base) + structOff + 0x200 + uint64(i)*16
		b.putVarintName(nameAddr-base, "F")
		b.putWord(entry, nameAddr)
		b.putWord(entry+8, 0)
		b.putWord(entry+16, uint64(i)*8)
	}

	sec := elfimage.NewSection(".data", elfimage.Address(base), b.buf)
	img := elfimage.NewSynthetic(8, binary.LittleEndian, false, []elfimage.Section{sec}, nil)
	r := testReaderWithImage(img, v1_20, base)

	s, err := newStruct(r, base)
	require.NoError(t, err)
	require.Equal(t, KindMap, s.Kind())

	n, err := s.FieldCount()
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestDecodeNameLegacyCapRejectsOversizedLength(t *testing.T) {
	buf := make([]byte, 16)
	buf[0] = 0
	buf[1] = 0xFF
	buf[2] = 0xFF // length 0xFFFF > 4096 cap
	sec := elfimage.NewSection(".data", elfimage.Address(0x100), buf)
	img := elfimage.NewSynthetic(8, binary.LittleEndian, false, []elfimage.Section{sec}, nil)
	_, err := decodeName(img, binary.NewConverter(binary.LittleEndian), Version{1, 16}, 0x100)
	require.ErrorIs(t, err, ErrOverflow)
}
