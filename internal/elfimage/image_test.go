// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elfimage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yoloyyh/go-symbol/internal/binary"
)

func TestSyntheticReadVirtualMemory(t *testing.T) {
	sec := NewSection(".data", Address(0x1000), []byte{1, 2, 3, 4, 5, 6, 7, 8})
	img := NewSynthetic(8, binary.LittleEndian, false, []Section{sec}, nil)

	b, err := img.ReadVirtualMemory(0x1002, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{3, 4, 5, 6}, b)

	_, err = img.ReadVirtualMemory(0x2000, 4)
	require.Error(t, err)

	_, err = img.ReadVirtualMemory(0x1006, 4) // runs past the section's end
	require.Error(t, err)
}

func TestSyntheticVirtualMemoryNilOutsideSections(t *testing.T) {
	sec := NewSection(".text", Address(0x4000), []byte{0xAA})
	img := NewSynthetic(8, binary.LittleEndian, false, []Section{sec}, nil)

	require.Nil(t, img.VirtualMemory(0x1000))
	require.NotNil(t, img.VirtualMemory(0x4000))
}

func TestSyntheticSymbolValue(t *testing.T) {
	img := NewSynthetic(8, binary.LittleEndian, false, nil, []Symbol{
		{Name: "runtime.firstmoduledata", Value: Address(0x9000)},
	})

	addr, ok := img.SymbolValue("runtime.firstmoduledata")
	require.True(t, ok)
	require.Equal(t, Address(0x9000), addr)

	_, ok = img.SymbolValue("runtime.types")
	require.False(t, ok)
}

func TestSyntheticMinLoadAddressFromLowestSectionAddress(t *testing.T) {
	sections := []Section{
		NewSection(".text", Address(0x2000), []byte{0}),
		NewSection(".data", Address(0x1000), []byte{0}),
	}
	img := NewSynthetic(8, binary.LittleEndian, true, sections, nil)
	require.Equal(t, Address(0x1000), img.MinLoadAddress())
	require.True(t, img.Dynamic())
}

func TestSyntheticSectionLookup(t *testing.T) {
	sections := []Section{
		NewSection(".text", Address(0x2000), []byte{0}),
		NewSection(".data", Address(0x1000), []byte{1, 2}),
	}
	img := NewSynthetic(8, binary.LittleEndian, false, sections, nil)

	require.NotNil(t, img.Section(".data"))
	require.Nil(t, img.Section(".bss"))

	s := img.SectionContaining(".rodata", ".data")
	require.NotNil(t, s)
	require.Equal(t, ".data", s.Name)
}

// TestSyntheticCloseIsNoop matches the documented behavior: synthetic
// images own no file descriptor, so Close must not panic.
func TestSyntheticCloseIsNoop(t *testing.T) {
	img := NewSynthetic(8, binary.LittleEndian, false, nil, nil)
	require.NoError(t, img.Close())
}
