// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import "fmt"

// Interface is a handle onto one itab record: a pairing of one concrete
// type with one interface type, carrying the method dispatch vector
// (spec §3 "Itab record", GLOSSARY).
type Interface struct {
	r    *Reader
	addr uint64 // raw, unrelocated address as stored in the itab array
}

// Address returns this itab's caller-visible virtual address: the raw
// address relocated by the Reader's base, per the "open question" in
// spec §9 — base is a runtime relocation applied only when producing a
// caller-visible address, never to the reads used to resolve names or
// methods below.
func (i Interface) Address() uint64 {
	return i.r.rebase(i.addr)
}

// InterfaceName resolves the name of the interface type this itab
// satisfies (spec §4.7: name-of-type(*A)).
func (i Interface) InterfaceName() (string, error) {
	ifaceType, err := readWordAt(i.r, i.addr)
	if err != nil {
		return "", err
	}
	return i.nameOfType(ifaceType)
}

// ConcreteName resolves the name of the concrete type implementing the
// interface (spec §4.7: name-of-type(*(A + ptr_size))).
func (i Interface) ConcreteName() (string, error) {
	concreteType, err := readWordAt(i.r, i.addr+uint64(i.r.ptrSize))
	if err != nil {
		return "", err
	}
	return i.nameOfType(concreteType)
}

// nameOfType reads the 4-byte name offset at the rtype's nameOffset,
// relative to `types`, and decodes it (spec §4.7, reusing rtypeLayout's
// nameOffset which is the same field Struct.Name reads).
func (i Interface) nameOfType(rtypeAddr uint64) (string, error) {
	layout := i.r.rtypeLayout
	b, err := i.r.image.ReadVirtualMemory(rtypeAddr+uint64(layout.nameOffset), 4)
	if err != nil {
		return "", fmt.Errorf("symbol: read type name offset at %#x: %w", rtypeAddr, ErrMemoryUnreadable)
	}
	off, err := i.r.conv.Read(b, 4)
	if err != nil {
		return "", err
	}
	types, ok := i.r.ensureTypesBase()
	if !ok {
		return "", fmt.Errorf("symbol: types base unavailable: %w", ErrModuleDataNotFound)
	}
	return decodeName(i.r.image, i.r.conv, i.r.version, types+off)
}

// MethodCount reads the interface side's method-vector length: the
// length field of interfacetype.methods, at a fixed byte offset from the
// interfacetype pointer (spec §4.7). Any indirection failure yields 0
// rather than an error, matching the "If any indirection read fails
// return 0 / None rather than erroring" rule.
func (i Interface) MethodCount() int {
	ifaceType, err := readWordAt(i.r, i.addr)
	if err != nil {
		return 0
	}
	layout := i.r.rtypeLayout
	b, err := i.r.image.ReadVirtualMemory(ifaceType+uint64(layout.itabMethodCountOff), layout.ptrSize)
	if err != nil {
		return 0
	}
	n, err := i.r.conv.Read(b, layout.ptrSize)
	if err != nil {
		return 0
	}
	return int(n)
}

// Method returns the i'th method-dispatch pointer from the itab's method
// vector (spec §4.7).
func (i Interface) Method(idx int) (uint64, error) {
	layout := i.r.rtypeLayout
	addr := i.addr + uint64(layout.itabMethodVecBase) + uint64(idx)*uint64(layout.ptrSize)
	return readWordAt(i.r, addr)
}

// InterfaceTable is a view over a contiguous array of pointer-sized words,
// each the address of one itab record (spec §3 "InterfaceTable").
type InterfaceTable struct {
	r    *Reader
	base uint64 // array base address (raw, unrelocated)
	len  int
}

// Len returns the number of itab entries.
func (t InterfaceTable) Len() int {
	return t.len
}

// At returns the i'th Interface handle.
func (t InterfaceTable) At(i int) (Interface, error) {
	addr, err := readWordAt(t.r, t.base+uint64(i)*uint64(t.r.ptrSize))
	if err != nil {
		return Interface{}, err
	}
	return Interface{r: t.r, addr: addr}, nil
}

// All decodes every entry, skipping (per spec §7's iterator policy) any
// single entry whose decode fails rather than aborting the walk.
func (t InterfaceTable) All() []Interface {
	out := make([]Interface, 0, t.len)
	for i := 0; i < t.len; i++ {
		iface, err := t.At(i)
		if err != nil {
			continue
		}
		out = append(out, iface)
	}
	return out
}
