// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import "fmt"

// TypeTable is a view over a contiguous array of 4-byte offsets, each
// relative to the `types` base (spec §3 "TypeTable").
type TypeTable struct {
	r     *Reader
	base  uint64 // typelinks array base address
	len   int
	types uint64 // `types` base this table's offsets are relative to
}

// Len returns the number of type entries.
func (t TypeTable) Len() int {
	return t.len
}

// At resolves the i'th entry to a Struct handle at types + offset(i).
func (t TypeTable) At(i int) (Struct, error) {
	b, err := t.r.image.ReadVirtualMemory(t.base+uint64(i)*4, 4)
	if err != nil {
		return Struct{}, fmt.Errorf("symbol: read typelink offset at index %d: %w", i, ErrMemoryUnreadable)
	}
	off, err := t.r.conv.Read(b, 4)
	if err != nil {
		return Struct{}, err
	}
	return newStruct(t.r, t.types+off)
}

// All decodes every entry, skipping any whose decode fails (spec §7).
func (t TypeTable) All() []Struct {
	out := make([]Struct, 0, t.len)
	for i := 0; i < t.len; i++ {
		s, err := t.At(i)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out
}
