// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elfimage

import (
	"debug/elf"

	"github.com/yoloyyh/go-symbol/internal/binary"
)

// NewSynthetic builds an in-memory Image without parsing a real ELF file,
// for tests that need a known section/symbol layout without hand-
// assembling ELF bytes. This is the "in-memory synthetic binary" spec's
// DESIGN NOTES asks the core to be testable against, parameterizing the
// ELF reader boundary the same way the production Open constructor does.
func NewSynthetic(ptrSize int, order binary.Order, dynamic bool, sections []Section, symbols []Symbol) *Image {
	img := &Image{
		ptrSize:  ptrSize,
		conv:     binary.NewConverter(order),
		dynamic:  dynamic,
		sections: sections,
		elf:      &elf.File{},
	}
	img.syntheticSymbols = symbols

	var minVA Address = ^Address(0)
	for _, s := range sections {
		if s.Address < minVA {
			minVA = s.Address
		}
	}
	if len(sections) > 0 {
		img.minVA = minVA
	}
	return img
}

// NewSection is a constructor for Section usable outside this package,
// since Section's `data` field is unexported.
func NewSection(name string, addr Address, data []byte) Section {
	return Section{Name: name, Address: addr, Size: uint64(len(data)), data: data}
}
