// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import (
	"fmt"
)

// ModuleRange is the virtual-address window every type descriptor lives
// in: types <= etypes, and every TypeTable offset o must land in
// [types, etypes) (spec §3 "ModuleRange", invariant 2 in §8).
type ModuleRange struct {
	Types, Etypes uint64
}

// sliceHeader is a (pointer, length) pair read out of moduledata, backing
// both typelinks and itablinks (spec §3 "Slice header").
type sliceHeader struct {
	Ptr uint64
	Len uint64
}

// ModuleData is a thin, on-demand accessor over one runtime moduledata
// record: it owns no bytes, caches nothing, and re-reads through the
// Reader's image on every call, per spec §3 "ModuleData handle."
type ModuleData struct {
	r       *Reader
	addr    uint64
	offsets ModuleDataOffsets
}

func newModuleData(r *Reader, addr uint64, offsets ModuleDataOffsets) ModuleData {
	return ModuleData{r: r, addr: addr, offsets: offsets}
}

// PCHeader returns the first word of moduledata, which for versions >=1.16
// must equal the pclntab's own virtual address (spec §4.4 validation,
// §4.5).
func (m ModuleData) PCHeader() (uint64, error) {
	return m.readWord(m.addr)
}

// Types returns the `types` base address: every TypeTable/itab name offset
// is relative to this.
func (m ModuleData) Types() (uint64, error) {
	return m.readWord(m.addr + m.offsets.Types)
}

// Etypes returns the end of the types region.
func (m ModuleData) Etypes() (uint64, error) {
	return m.readWord(m.addr + m.offsets.Etypes)
}

// Ranges pairs Types/Etypes into one ModuleRange, supplementing the
// original's ModuleData::ranges() (SPEC_FULL §7 item 3). Nothing in this
// package calls it: TypeTable and the name/field decoders do not check
// offsets against this range.
func (m ModuleData) Ranges() (ModuleRange, error) {
	types, err := m.Types()
	if err != nil {
		return ModuleRange{}, err
	}
	etypes, err := m.Etypes()
	if err != nil {
		return ModuleRange{}, err
	}
	return ModuleRange{Types: types, Etypes: etypes}, nil
}

// TypeLinks returns the typelinks slice header: base pointer into the
// 4-byte-offset array, and its length. Spec §4.5: for versions < 1.16 the
// length lives at a separately mapped offset; for >= 1.16 it immediately
// follows the pointer field.
func (m ModuleData) TypeLinks() (sliceHeader, error) {
	return m.readSlice(m.offsets.TypelinksPtr, m.offsets.TypelinksLen)
}

// ItabLinks returns the itablinks slice header, same rule as TypeLinks.
func (m ModuleData) ItabLinks() (sliceHeader, error) {
	return m.readSlice(m.offsets.ItablinksPtr, m.offsets.ItablinksLen)
}

func (m ModuleData) readSlice(ptrOff, lenOff uint64) (sliceHeader, error) {
	ptr, err := m.readWord(m.addr + ptrOff)
	if err != nil {
		return sliceHeader{}, err
	}
	var length uint64
	if m.r.version.Less(v1_16) {
		length, err = m.readWord(m.addr + lenOff)
	} else {
		length, err = m.readWord(m.addr + ptrOff + uint64(m.r.ptrSize))
	}
	if err != nil {
		return sliceHeader{}, err
	}
	return sliceHeader{Ptr: ptr, Len: length}, nil
}

func (m ModuleData) readWord(addr uint64) (uint64, error) {
	b, err := m.r.image.ReadVirtualMemory(addr, m.r.ptrSize)
	if err != nil {
		return 0, fmt.Errorf("symbol: read word at %#x: %w", addr, ErrMemoryUnreadable)
	}
	return m.r.conv.Read(b, m.r.ptrSize)
}
