// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProbePCHeader(t *testing.T) {
	cases := []struct {
		magic uint32
		want  Version
	}{
		{0xFFFFFFFB, v1_12},
		{0xFFFFFFFA, v1_16},
		{0xFFFFFFF0, v1_18},
		{0xFFFFFFF1, v1_20},
		{0x12345678, v1_10}, // S3: unknown magic treated as 1.10
	}
	for _, c := range cases {
		info := probePCHeader(c.magic, 8)
		require.Equal(t, c.want, info.Version, "magic %#x", c.magic)
	}
}

func TestPCHeaderSizeFormula(t *testing.T) {
	info := probePCHeader(0xFFFFFFF1, 8)
	require.Equal(t, 8+7*8, info.HeaderSize)

	info = probePCHeader(0xFFFFFFFA, 4)
	require.Equal(t, 8+6*4, info.HeaderSize)

	info = probePCHeader(0xFFFFFFFB, 8)
	require.Equal(t, 8, info.HeaderSize)
}
