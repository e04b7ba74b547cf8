// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package binary provides the low-level, endian- and width-aware integer
// and varint decoding shared by every layout decoder in internal/symbol.
package binary

import (
	"encoding/binary"
	"fmt"
)

// Order identifies the byte order of the inferior binary.
type Order uint8

const (
	LittleEndian Order = iota
	BigEndian
)

// ErrInvalidSize is returned by Converter.Read when asked to decode a
// width other than 1, 2, 4, or 8 bytes.
var ErrInvalidSize = fmt.Errorf("binary: invalid read size")

// Converter decodes fixed-width unsigned integers from raw bytes according
// to a binary's byte order. It is a small value type, constructed once per
// Reader and threaded by value into every decoder, the way the original
// go::endian::Converter is passed by value through the C++ source this
// package is grounded on.
type Converter struct {
	order Order
}

// NewConverter returns a Converter for the given byte order.
func NewConverter(order Order) Converter {
	return Converter{order: order}
}

// Order reports the byte order this converter was constructed with.
func (c Converter) Order() Order {
	return c.order
}

// Read decodes size bytes of b (size ∈ {1,2,4,8}) into a u64 honoring the
// converter's endianness. It is the only place in the system multi-byte
// integers are assembled from raw bytes — no ad-hoc casts elsewhere.
func (c Converter) Read(b []byte, size int) (uint64, error) {
	if len(b) < size {
		return 0, fmt.Errorf("binary: short read: need %d bytes, have %d", size, len(b))
	}
	switch size {
	case 1:
		return uint64(b[0]), nil
	case 2:
		if c.order == LittleEndian {
			return uint64(binary.LittleEndian.Uint16(b)), nil
		}
		return uint64(binary.BigEndian.Uint16(b)), nil
	case 4:
		if c.order == LittleEndian {
			return uint64(binary.LittleEndian.Uint32(b)), nil
		}
		return uint64(binary.BigEndian.Uint32(b)), nil
	case 8:
		if c.order == LittleEndian {
			return binary.LittleEndian.Uint64(b), nil
		}
		return binary.BigEndian.Uint64(b), nil
	default:
		return 0, ErrInvalidSize
	}
}
