// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pclntab

import (
	stdbinary "encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yoloyyh/go-symbol/internal/binary"
	"github.com/yoloyyh/go-symbol/internal/elfimage"
)

// buildGopclntab assembles a minimal >=1.20-shaped .gopclntab section: an
// 8-byte fixed prefix (magic + 2 pad bytes + quantum/ptrSize bytes), 7
// header fields, and a functab of (entryOff, funcOff) pairs followed by
// the func records and name table this package's simplified decoder reads.
func buildGopclntab() []byte {
	const ptrSize = 8
	const nfields = 7
	const headerSize = 8 + nfields*ptrSize

	// Two functions: "main.main" at entry 0x1000, "main.helper" at 0x1040.
	names := []byte{0}
	nameOffMain := len(names)
	names = append(names, []byte("main.main\x00")...)
	nameOffHelper := len(names)
	names = append(names, []byte("main.helper\x00")...)

	// func records: each just needs a 4-byte name-offset field at +4.
	funcRecSize := 16
	funcs := make([]byte, 2*funcRecSize)
	stdbinary.LittleEndian.PutUint32(funcs[4:], uint32(nameOffMain))
	stdbinary.LittleEndian.PutUint32(funcs[funcRecSize+4:], uint32(nameOffHelper))

	functabOffsetInHeader := headerSize
	funcnameOffsetInHeader := headerSize + 2*8 // 2 functab entries * 8 bytes
	funcDataOffsetInHeader := funcnameOffsetInHeader + len(names)

	// decodeFuncs reads each func record's name offset at funcOff+4, where
	// funcOff indexes directly into the section (this package's simplified
	// layout skips the real per-version _func struct).
	functab := make([]byte, 2*8)
	stdbinary.LittleEndian.PutUint32(functab[0:], 0x1000)
	stdbinary.LittleEndian.PutUint32(functab[4:], uint32(funcDataOffsetInHeader))
	stdbinary.LittleEndian.PutUint32(functab[8:], 0x1040)
	stdbinary.LittleEndian.PutUint32(functab[12:], uint32(funcDataOffsetInHeader+funcRecSize))

	data := make([]byte, funcDataOffsetInHeader+len(funcs))
	stdbinary.LittleEndian.PutUint32(data, 0xFFFFFFF1) // >=1.20 magic
	data[6] = ptrSize

	putHeaderField := func(idx int, v uint64) {
		off := 8 + idx*ptrSize
		stdbinary.LittleEndian.PutUint64(data[off:], v)
	}
	putHeaderField(0, 2)                                     // nfunc
	putHeaderField(3, uint64(funcnameOffsetInHeader))         // funcname table offset
	putHeaderField(nfields-1, uint64(functabOffsetInHeader))  // functab offset

	copy(data[functabOffsetInHeader:], functab)
	copy(data[funcnameOffsetInHeader:], names)
	copy(data[funcDataOffsetInHeader:], funcs)

	return data
}

func TestNewDecodesFunctionTable(t *testing.T) {
	data := buildGopclntab()
	sec := elfimage.NewSection(".gopclntab", elfimage.Address(0x1000), data)
	img := elfimage.NewSynthetic(8, binary.LittleEndian, false, []elfimage.Section{sec}, nil)

	table, err := New(img)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	f, ok := table.FindByName("main.main")
	require.True(t, ok)
	require.Equal(t, uint64(0x1000), f.Entry)

	f, ok = table.FindByName("main.helper")
	require.True(t, ok)
	require.Equal(t, uint64(0x1040), f.Entry)

	_, ok = table.FindByName("main.missing")
	require.False(t, ok)
}

func TestFindReturnsGreatestEntryAtOrBelowPC(t *testing.T) {
	data := buildGopclntab()
	sec := elfimage.NewSection(".gopclntab", elfimage.Address(0x1000), data)
	img := elfimage.NewSynthetic(8, binary.LittleEndian, false, []elfimage.Section{sec}, nil)
	table, err := New(img)
	require.NoError(t, err)

	f, ok := table.Find(0x1020)
	require.True(t, ok)
	require.Equal(t, "main.main", f.Name)

	f, ok = table.Find(0x1040)
	require.True(t, ok)
	require.Equal(t, "main.helper", f.Name)

	_, ok = table.Find(0x500)
	require.False(t, ok)
}

func TestNewPre116LayoutReturnsEmptyTable(t *testing.T) {
	data := make([]byte, 64)
	stdbinary.LittleEndian.PutUint32(data, 0xFFFFFFFB) // pre-1.16 magic
	sec := elfimage.NewSection(".gopclntab", elfimage.Address(0x2000), data)
	img := elfimage.NewSynthetic(8, binary.LittleEndian, false, []elfimage.Section{sec}, nil)

	table, err := New(img)
	require.NoError(t, err)
	require.Equal(t, 0, table.Len())
}

func TestNewRejectsUnrecognizedMagic(t *testing.T) {
	data := make([]byte, 64)
	stdbinary.LittleEndian.PutUint32(data, 0x12345678)
	sec := elfimage.NewSection(".gopclntab", elfimage.Address(0x3000), data)
	img := elfimage.NewSynthetic(8, binary.LittleEndian, false, []elfimage.Section{sec}, nil)

	_, err := New(img)
	require.Error(t, err)
}
