// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import (
	"errors"
	"fmt"

	"github.com/yoloyyh/go-symbol/internal/binary"
)

// Kind is the low 5 bits of an rtype's kind byte (spec §3, GLOSSARY).
type Kind uint8

const (
	KindInvalid   Kind = 0
	KindArray     Kind = 17
	KindChan      Kind = 18
	KindInterface Kind = 20
	KindMap       Kind = 21
	KindPtr       Kind = 22
	KindSlice     Kind = 23
	KindString    Kind = 24
	KindStruct    Kind = 25

	kindMask = 0x1F
)

// rtypeLayout holds the fixed internal byte offsets inside an rtype record
// and its struct-kind suffix, for one pointer size. Grounded on
// original_source/src/symbol/struct.cpp and struct_field.cpp, and spec
// §3/§4.8's literal offsets (23/15 for kind, 40/24 for the name offset
// field, 56/36 for the fields-slice header, 64/40 for itab method count).
// These do not scale linearly with ptrSize — the rtype record mixes
// fixed-width and pointer-width fields — so both tiers are listed
// explicitly rather than derived from a formula.
type rtypeLayout struct {
	ptrSize            int
	size               int // sizeof(rtype) prefix: 48 (64-bit) / 32 (32-bit)
	kindOffset         int
	nameOffset         int // 4-byte offset into `types`, relative to rtype start
	fieldsSliceOffset  int // pkgPath name ptr precedes this by one pointer word
	itabMethodCountOff int // offset from an interfacetype pointer
	itabMethodVecBase  int // offset from an itab address to its method vector
}

func rtypeLayoutFor(ptrSize int) rtypeLayout {
	if ptrSize == 4 {
		return rtypeLayout{
			ptrSize:            4,
			size:               32,
			kindOffset:         15,
			nameOffset:         24,
			fieldsSliceOffset:  36,
			itabMethodCountOff: 40,
			itabMethodVecBase:  2 * 4,
		}
	}
	return rtypeLayout{
		ptrSize:            8,
		size:               48,
		kindOffset:         23,
		nameOffset:         40,
		fieldsSliceOffset:  56,
		itabMethodCountOff: 64,
		itabMethodVecBase:  3 * 8,
	}
}

// decodeName decodes the name at addr from the version-appropriate
// encoding (spec §3 "Name encoding"): flags byte, then either a
// big-endian 2-byte length (<=1.16) or a varint length (>=1.17), then UTF-8
// bytes. A length over 4096 (legacy encoding only) is rejected, per spec
// §4.8's closing bound and §7's sanity cap.
func decodeName(img imageReader, conv binary.Converter, version Version, addr uint64) (string, error) {
	flagsAndLen, err := img.ReadVirtualMemory(addr, 3)
	if err != nil {
		return "", fmt.Errorf("symbol: read name header at %#x: %w", addr, ErrMemoryUnreadable)
	}
	// flagsAndLen[0] is the flags byte; its high-bit semantics are left
	// undocumented upstream and preserved unmasked here (see DESIGN.md).

	if version.Less(v1_17) {
		length, err := binary.NewConverter(binary.BigEndian).Read(flagsAndLen[1:3], 2)
		if err != nil {
			return "", err
		}
		if length > 4096 {
			return "", fmt.Errorf("symbol: name length %d exceeds legacy cap: %w", length, ErrOverflow)
		}
		data, err := img.ReadVirtualMemory(addr+3, int(length))
		if err != nil {
			return "", fmt.Errorf("symbol: read name data at %#x: %w", addr+3, ErrMemoryUnreadable)
		}
		return string(data), nil
	}

	// >=1.17: varint length starts at addr+1, immediately after the flags byte.
	lenBytes, err := img.ReadVirtualMemory(addr+1, 10)
	if err != nil {
		// Might be near the end of mapped memory; try a shorter read before
		// giving up, since a varint can be as short as one byte.
		lenBytes, err = img.ReadVirtualMemory(addr+1, 1)
		if err != nil {
			return "", fmt.Errorf("symbol: read name length at %#x: %w", addr+1, ErrMemoryUnreadable)
		}
	}
	length, n, err := binary.Uvarint(lenBytes)
	if err != nil {
		if errors.Is(err, binary.ErrOverflow) {
			return "", fmt.Errorf("symbol: name length varint at %#x: %w", addr+1, ErrOverflow)
		}
		return "", fmt.Errorf("symbol: name length varint at %#x: %w", addr+1, ErrTruncated)
	}
	data, err := img.ReadVirtualMemory(addr+1+uint64(n), int(length))
	if err != nil {
		return "", fmt.Errorf("symbol: read name data at %#x: %w", addr+1+uint64(n), ErrMemoryUnreadable)
	}
	return string(data), nil
}

// imageReader is the minimal virtual-memory capability rtype/itab decoding
// needs from internal/elfimage.Image, kept as an interface so tests can
// substitute a synthetic in-memory image (spec DESIGN NOTES: "parameterize
// over this capability rather than over a concrete type").
type imageReader interface {
	ReadVirtualMemory(addr uint64, length int) ([]byte, error)
}

// Field is one decoded struct field: its name and byte offset within the
// struct.
type Field struct {
	Name   string
	Offset uint64
}

// Struct is a handle onto one type descriptor reached via a TypeTable
// offset. It owns no bytes; every method re-reads through the Reader's
// image, per spec §3 "ModuleData handle ... owns no data."
type Struct struct {
	r      *Reader
	addr   uint64 // address of the rtype's own start (not yet recursed through wrappers)
	kind   Kind
}

func newStruct(r *Reader, addr uint64) (Struct, error) {
	layout := r.rtypeLayout
	b, err := r.image.ReadVirtualMemory(addr+uint64(layout.kindOffset), 1)
	if err != nil {
		return Struct{}, fmt.Errorf("symbol: read kind byte at %#x: %w", addr, ErrMemoryUnreadable)
	}
	return Struct{r: r, addr: addr, kind: Kind(b[0] & kindMask)}, nil
}

// Kind returns the low-5-bit kind enumeration of this type.
func (s Struct) Kind() Kind {
	return s.kind
}

// Address returns this type's caller-visible virtual address: the raw
// rtype address relocated by the Reader's base, per the same "open
// question" distinction Interface.Address documents.
func (s Struct) Address() uint64 {
	return s.r.rebase(s.addr)
}

// Name resolves and decodes this type's name.
func (s Struct) Name() (string, error) {
	layout := s.r.rtypeLayout
	b, err := s.r.image.ReadVirtualMemory(s.addr+uint64(layout.nameOffset), 4)
	if err != nil {
		return "", fmt.Errorf("symbol: read name offset at %#x: %w", s.addr, ErrMemoryUnreadable)
	}
	off, err := s.r.conv.Read(b, 4)
	if err != nil {
		return "", err
	}
	types, ok := s.r.ensureTypesBase()
	if !ok {
		return "", fmt.Errorf("symbol: types base unavailable: %w", ErrModuleDataNotFound)
	}
	return decodeName(s.r.image, s.r.conv, s.r.version, types+off)
}

// elementType follows the single-element-pointer wrapper layout (Array,
// Chan, Ptr, Slice): the element descriptor pointer sits right after the
// fixed rtype prefix, per spec §3 "Wrapper-type suffix."
func (s Struct) elementType() (Struct, error) {
	layout := s.r.rtypeLayout
	return s.readTypePointer(s.addr + uint64(layout.size))
}

// mapElementType follows the Map wrapper layout: key comes first, so the
// element pointer is one pointer word further in.
func (s Struct) mapElementType() (Struct, error) {
	layout := s.r.rtypeLayout
	return s.readTypePointer(s.addr + uint64(layout.size) + uint64(layout.ptrSize))
}

func (s Struct) readTypePointer(addr uint64) (Struct, error) {
	b, err := s.r.image.ReadVirtualMemory(addr, s.r.rtypeLayout.ptrSize)
	if err != nil {
		return Struct{}, fmt.Errorf("symbol: read type pointer at %#x: %w", addr, ErrMemoryUnreadable)
	}
	ptr, err := s.r.conv.Read(b, s.r.rtypeLayout.ptrSize)
	if err != nil {
		return Struct{}, err
	}
	return newStruct(s.r, ptr)
}

// FieldCount recurses through wrapper kinds to reach a struct's field
// count, per spec §4.8. Non-aggregate kinds report 0 fields.
func (s Struct) FieldCount() (int, error) {
	switch s.kind {
	case KindArray, KindChan, KindPtr, KindSlice:
		elem, err := s.elementType()
		if err != nil {
			return 0, err
		}
		return elem.FieldCount()
	case KindMap:
		elem, err := s.mapElementType()
		if err != nil {
			return 0, err
		}
		return elem.FieldCount()
	case KindStruct:
		layout := s.r.rtypeLayout
		b, err := s.r.image.ReadVirtualMemory(s.addr+uint64(layout.fieldsSliceOffset)+uint64(layout.ptrSize), layout.ptrSize)
		if err != nil {
			return 0, fmt.Errorf("symbol: read fields length at %#x: %w", s.addr, ErrMemoryUnreadable)
		}
		n, err := s.r.conv.Read(b, layout.ptrSize)
		if err != nil {
			return 0, err
		}
		return int(n), nil
	default:
		return 0, nil
	}
}

// Field resolves struct field i, recursing through wrapper kinds exactly
// as FieldCount does. It returns ok=false once i is out of range or the
// field's name pointer is nil, matching spec §4.8's "If name_ptr is 0,
// return no field" and invariant 5 in spec §8.
func (s Struct) Field(i int) (Field, bool, error) {
	switch s.kind {
	case KindArray, KindChan, KindPtr, KindSlice:
		elem, err := s.elementType()
		if err != nil {
			return Field{}, false, err
		}
		return elem.Field(i)
	case KindMap:
		elem, err := s.mapElementType()
		if err != nil {
			return Field{}, false, err
		}
		return elem.Field(i)
	case KindStruct:
		return s.structField(i)
	default:
		return Field{}, false, nil
	}
}

func (s Struct) structField(i int) (Field, bool, error) {
	if i < 0 {
		return Field{}, false, nil
	}
	count, err := s.FieldCount()
	if err != nil {
		return Field{}, false, err
	}
	if i >= count {
		return Field{}, false, nil
	}

	layout := s.r.rtypeLayout
	baseB, err := s.r.image.ReadVirtualMemory(s.addr+uint64(layout.fieldsSliceOffset), layout.ptrSize)
	if err != nil {
		return Field{}, false, fmt.Errorf("symbol: read fields base at %#x: %w", s.addr, ErrMemoryUnreadable)
	}
	base, err := s.r.conv.Read(baseB, layout.ptrSize)
	if err != nil {
		return Field{}, false, err
	}

	stride := uint64(3 * layout.ptrSize)
	entryAddr := base + uint64(i)*stride

	nameB, err := s.r.image.ReadVirtualMemory(entryAddr, layout.ptrSize)
	if err != nil {
		return Field{}, false, fmt.Errorf("symbol: read field name ptr at %#x: %w", entryAddr, ErrMemoryUnreadable)
	}
	namePtr, err := s.r.conv.Read(nameB, layout.ptrSize)
	if err != nil {
		return Field{}, false, err
	}
	if namePtr == 0 {
		return Field{}, false, nil
	}

	offB, err := s.r.image.ReadVirtualMemory(entryAddr+uint64(2*layout.ptrSize), layout.ptrSize)
	if err != nil {
		return Field{}, false, fmt.Errorf("symbol: read field offset at %#x: %w", entryAddr, ErrMemoryUnreadable)
	}
	offWord, err := s.r.conv.Read(offB, layout.ptrSize)
	if err != nil {
		return Field{}, false, err
	}
	if s.r.version.Less(Version{1, 19}) {
		offWord >>= 1 // spec §3/§8 S6: low bit is the embedded flag, versions <=1.18.
	}

	name, err := decodeName(s.r.image, s.r.conv, s.r.version, namePtr)
	if err != nil {
		return Field{}, false, err
	}
	return Field{Name: name, Offset: offWord}, true, nil
}
