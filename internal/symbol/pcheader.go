// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

// The four pclntab magic constants, verbatim from spec §4.1/§6, are the
// first four bytes of .gopclntab decoded through the image's own endian
// Converter, the same as every other multi-byte field this package reads
// (spec §4.2: no ad-hoc casts). See pcHeaderMagics for the authoritative
// mapping, grounded on original_source/src/symbol/pc_header.cpp.

// pcHeaderInfo is what probing the magic tells us: the minimum implied
// version and the size of the pcHeader record itself.
type pcHeaderInfo struct {
	Version  Version
	HeaderSize int
}

// pcHeaderMagics maps the four known magics, in the exact priority order
// original_source/src/symbol/pc_header.cpp checks them, to their implied
// version and header size. Header sizes are computed in pointer-size units
// the way the original does (8 fixed bytes + N pointer-sized fields).
func pcHeaderMagics(ptrSize int) map[uint32]pcHeaderInfo {
	return map[uint32]pcHeaderInfo{
		0xFFFFFFF1: {Version: v1_20, HeaderSize: 8 + 7*ptrSize},
		0xFFFFFFF0: {Version: v1_18, HeaderSize: 8 + 7*ptrSize},
		0xFFFFFFFA: {Version: v1_16, HeaderSize: 8 + 6*ptrSize},
		0xFFFFFFFB: {Version: v1_12, HeaderSize: 8},
	}
}

// probePCHeader matches the first four bytes of .gopclntab against the
// known magics and returns the implied minimum version and header size.
// An unrecognized magic implies version 1.10, the oldest era this package
// ever attempts (spec §4.1 step 3: "Unknown → treat as 1.10").
func probePCHeader(magic uint32, ptrSize int) pcHeaderInfo {
	if info, ok := pcHeaderMagics(ptrSize)[magic]; ok {
		return info
	}
	return pcHeaderInfo{Version: v1_10, HeaderSize: 8}
}
