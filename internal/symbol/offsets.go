// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

// ModuleDataOffsets holds the byte offsets (already multiplied by
// ptrSize) of the six moduledata fields this package reads, per spec §3/§4.3.
type ModuleDataOffsets struct {
	Types        uint64
	Etypes       uint64
	TypelinksPtr uint64
	TypelinksLen uint64
	ItablinksPtr uint64
	ItablinksLen uint64
}

// moduleDataOffsetRow is one row of the index table in spec §4.3, in
// pointer-size-multiple units (not yet multiplied by ptrSize).
type moduleDataOffsetRow struct {
	types, etypes                 uint64
	typelinksPtr, typelinksLen     uint64
	itablinksPtr, itablinksLen     uint64
}

// offsetTable mirrors original_source/include/go/symbol/offset_map.h's
// version-tiered table and spec §4.3 exactly; rows are listed newest first
// because offsetMap walks them in that order and the first row whose
// minimum version the binary satisfies wins.
var offsetTable = []struct {
	min Version
	row moduleDataOffsetRow
}{
	{v1_20, moduleDataOffsetRow{39, 40, 44, 45, 47, 48}},
	{v1_18, moduleDataOffsetRow{35, 36, 42, 43, 45, 46}},
	{v1_16, moduleDataOffsetRow{35, 36, 40, 41, 43, 44}},
	{v1_10, moduleDataOffsetRow{25, 26, 30, 31, 33, 34}},
}

// offsetMap is the pure version-indexed function of spec §4.3: given a
// version and pointer size, returns the byte offsets of every moduledata
// field this package reads. It returns ok=false for any version below
// 1.10, the unsupported tier.
func offsetMap(v Version, ptrSize int) (ModuleDataOffsets, bool) {
	for _, entry := range offsetTable {
		if v.AtLeast(entry.min) {
			r := entry.row
			ps := uint64(ptrSize)
			return ModuleDataOffsets{
				Types:        r.types * ps,
				Etypes:       r.etypes * ps,
				TypelinksPtr: r.typelinksPtr * ps,
				TypelinksLen: r.typelinksLen * ps,
				ItablinksPtr: r.itablinksPtr * ps,
				ItablinksLen: r.itablinksLen * ps,
			}, true
		}
	}
	return ModuleDataOffsets{}, false
}
