// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import (
	"fmt"

	"go.uber.org/multierr"
)

// scanSectionNames lists, in order, the data sections the scanning path
// walks looking for a pointer back to pclntab (spec §4.4 step 2).
var scanSectionNames = []string{".rodata", ".noptrdata", ".data"}

// locateModuleData finds the address of the first moduledata record,
// preferring the symbolic path and falling back to the scan, per spec
// §4.4. It returns ErrModuleDataNotFound, aggregating every rejected
// scan candidate's reason via multierr, if neither path succeeds.
func locateModuleData(r *Reader, offsets ModuleDataOffsets) (uint64, error) {
	if addr, ok := r.image.SymbolValue("runtime.firstmoduledata"); ok {
		r.logger.Debugw("moduledata located via symbol", "address", fmt.Sprintf("%#x", addr))
		return uint64(addr), nil
	}

	pclntab := r.image.Section(".gopclntab")
	if pclntab == nil {
		return 0, fmt.Errorf("symbol: .gopclntab: %w", ErrSectionMissing)
	}
	p := uint64(pclntab.Address)

	var rejectErrs error
	for _, name := range scanSectionNames {
		sec := r.image.Section(name)
		if sec == nil || sec.Data() == nil {
			continue
		}
		data := sec.Data()
		stride := r.ptrSize
		for off := 0; off+stride <= len(data); off += stride {
			word, err := r.conv.Read(data[off:off+stride], stride)
			if err != nil {
				continue
			}
			if word != p {
				continue
			}
			candidate := uint64(sec.Address) + uint64(off)
			if err := validateCandidate(r, candidate, p, offsets); err != nil {
				rejectErrs = multierr.Append(rejectErrs, fmt.Errorf("candidate %#x: %w", candidate, err))
				r.logger.Debugw("rejected moduledata candidate", "address", fmt.Sprintf("%#x", candidate), "reason", err)
				continue
			}
			r.logger.Debugw("moduledata located via scan", "address", fmt.Sprintf("%#x", candidate), "section", name)
			return candidate, nil
		}
	}

	if rejectErrs != nil {
		return 0, fmt.Errorf("symbol: no scan candidate validated (%v): %w", rejectErrs, ErrModuleDataNotFound)
	}
	return 0, fmt.Errorf("symbol: no scan candidate found: %w", ErrModuleDataNotFound)
}

// validateCandidate implements spec §4.4's two validation rules.
func validateCandidate(r *Reader, candidate, pclntabAddr uint64, offsets ModuleDataOffsets) error {
	first, err := readWordAt(r, candidate)
	if err != nil {
		return err
	}
	if first != pclntabAddr {
		return fmt.Errorf("first word %#x != pclntab address %#x", first, pclntabAddr)
	}
	if !r.version.Less(v1_16) {
		return nil
	}

	ps := uint64(r.ptrSize)
	candidateTextStart, err := readWordAt(r, candidate+12*ps)
	if err != nil {
		return err
	}
	pclntabTextStart, err := readWordAt(r, pclntabAddr+8+ps)
	if err != nil {
		return err
	}
	if candidateTextStart != pclntabTextStart {
		return fmt.Errorf("text-start mismatch: candidate %#x vs pclntab %#x", candidateTextStart, pclntabTextStart)
	}

	text := r.image.Section(".text")
	if text == nil {
		return fmt.Errorf(".text: %w", ErrSectionMissing)
	}
	minpc, err := readWordAt(r, candidate+10*ps)
	if err != nil {
		return err
	}
	if minpc != uint64(text.Address) {
		return fmt.Errorf("minpc %#x != .text base %#x", minpc, text.Address)
	}
	maxpc, err := readWordAt(r, candidate+11*ps)
	if err != nil {
		return err
	}
	textEnd := uint64(text.Address) + text.Size
	if maxpc < uint64(text.Address) || maxpc > textEnd {
		return fmt.Errorf("maxpc %#x outside .text [%#x, %#x]", maxpc, text.Address, textEnd)
	}
	return nil
}

func readWordAt(r *Reader, addr uint64) (uint64, error) {
	b, err := r.image.ReadVirtualMemory(addr, r.ptrSize)
	if err != nil {
		return 0, fmt.Errorf("read word at %#x: %w", addr, ErrMemoryUnreadable)
	}
	return r.conv.Read(b, r.ptrSize)
}
