// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/yoloyyh/go-symbol/internal/binary"
)

// buildInfoMagic is the 14-byte marker at the start of .go.buildinfo,
// verbatim from spec §6; must be recognized exactly, not merely prefix-matched
// loosely, since real .rodata garbage can share a leading byte or two.
var buildInfoMagic = []byte("\xff Go buildinf:")

const (
	buildInfoFlagsOffset     = 15
	buildInfoLegacyOffset    = 16
	buildInfoPointerFreeOff  = 32
	buildInfoPointerFreeFlag = 0x2
	moduleInfoFramePrefix    = 16
	moduleInfoFrameSuffix    = 16
)

// Module identifies one module by path and version.
type Module struct {
	Path, Version string
}

// Dep is one dependency line, optionally replaced by a later "=>" line
// that attaches to it (spec §4.6, SPEC_FULL §3.1: attachment is always to
// the most recently appended dep, never path-keyed).
type Dep struct {
	Module
	Replace *Module
}

// ModuleInfo is the parsed module-info record embedded in build-info.
type ModuleInfo struct {
	Path string
	Main Module
	Deps []Dep
}

// BuildInfo is the decoded .go.buildinfo block: toolchain version string
// plus the module-info record (spec §3 "Build-info block").
type BuildInfo struct {
	Version    string
	ModuleInfo ModuleInfo
}

// decodeBuildInfo parses a .go.buildinfo section's raw bytes, per spec
// §4.6. It supports both the legacy (pointer-based) and pointer-free
// encodings, dispatching on the flags byte at offset 15.
func decodeBuildInfo(r *Reader, sectionData []byte) (BuildInfo, error) {
	if len(sectionData) < buildInfoPointerFreeOff || !bytes.HasPrefix(sectionData, buildInfoMagic) {
		return BuildInfo{}, fmt.Errorf("symbol: buildinfo magic mismatch: %w", ErrBuildInfoInvalid)
	}
	flags := sectionData[buildInfoFlagsOffset]
	pointerFree := flags&buildInfoPointerFreeFlag != 0

	if !pointerFree {
		return decodeLegacyBuildInfo(r, sectionData)
	}
	return decodePointerFreeBuildInfo(r, sectionData)
}

func decodeLegacyBuildInfo(r *Reader, sectionData []byte) (BuildInfo, error) {
	ps := r.ptrSize
	if len(sectionData) < buildInfoLegacyOffset+2*ps {
		return BuildInfo{}, fmt.Errorf("symbol: legacy buildinfo truncated: %w", ErrBuildInfoInvalid)
	}
	versionPtr, err := r.conv.Read(sectionData[buildInfoLegacyOffset:], ps)
	if err != nil {
		return BuildInfo{}, err
	}
	modInfoPtr, err := r.conv.Read(sectionData[buildInfoLegacyOffset+ps:], ps)
	if err != nil {
		return BuildInfo{}, err
	}

	version, err := r.readStringHeader(versionPtr)
	if err != nil {
		return BuildInfo{}, err
	}
	modInfoRaw, err := r.readStringHeader(modInfoPtr)
	if err != nil {
		return BuildInfo{}, err
	}

	mi, err := parseModuleInfo(modInfoRaw)
	if err != nil {
		return BuildInfo{}, err
	}
	return BuildInfo{Version: version, ModuleInfo: mi}, nil
}

func decodePointerFreeBuildInfo(r *Reader, sectionData []byte) (BuildInfo, error) {
	if len(sectionData) <= buildInfoPointerFreeOff {
		return BuildInfo{}, fmt.Errorf("symbol: pointer-free buildinfo truncated: %w", ErrBuildInfoInvalid)
	}
	rest := sectionData[buildInfoPointerFreeOff:]

	version, n, err := readVarintString(rest)
	if err != nil {
		return BuildInfo{}, err
	}
	rest = rest[n:]

	modInfoRaw, _, err := readVarintString(rest)
	if err != nil {
		return BuildInfo{}, err
	}

	mi, err := parseModuleInfo(modInfoRaw)
	if err != nil {
		return BuildInfo{}, err
	}
	return BuildInfo{Version: version, ModuleInfo: mi}, nil
}

// readVarintString decodes a varint length prefix followed by that many
// bytes of string data, returning the string and the total bytes consumed
// (length-prefix bytes plus payload bytes).
func readVarintString(b []byte) (string, int, error) {
	length, n, err := binary.Uvarint(b)
	if err != nil {
		if errors.Is(err, binary.ErrOverflow) {
			return "", 0, fmt.Errorf("symbol: varint string length: %w", ErrOverflow)
		}
		return "", 0, fmt.Errorf("symbol: varint string length: %w", ErrTruncated)
	}
	if uint64(n)+length > uint64(len(b)) {
		return "", 0, fmt.Errorf("symbol: varint string length %d exceeds buffer: %w", length, ErrBuildInfoInvalid)
	}
	return string(b[n : uint64(n)+length]), n + int(length), nil
}

// parseModuleInfo strips the 16-byte prefix/suffix frame and parses the
// newline-delimited, tab-separated module-info record (spec §4.6).
func parseModuleInfo(raw string) (ModuleInfo, error) {
	if len(raw) < moduleInfoFramePrefix+moduleInfoFrameSuffix {
		return ModuleInfo{}, fmt.Errorf("symbol: module-info shorter than its frame: %w", ErrBuildInfoInvalid)
	}
	body := raw[moduleInfoFramePrefix : len(raw)-moduleInfoFrameSuffix]

	var mi ModuleInfo
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		switch fields[0] {
		case "path":
			if len(fields) != 2 {
				continue
			}
			mi.Path = fields[1]
		case "mod":
			if len(fields) != 3 {
				continue
			}
			mi.Main = Module{Path: fields[1], Version: fields[2]}
		case "dep":
			if len(fields) != 3 {
				continue
			}
			mi.Deps = append(mi.Deps, Dep{Module: Module{Path: fields[1], Version: fields[2]}})
		case "=>":
			if len(fields) != 3 || len(mi.Deps) == 0 {
				continue
			}
			mi.Deps[len(mi.Deps)-1].Replace = &Module{Path: fields[1], Version: fields[2]}
		}
	}
	return mi, nil
}
