// Copyright ©2024 The tabix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tabix

import "github.com/biogo/tabix/bgzf"

// The binning scheme partitions a reference into a 6-level tree with
// fan-out 8: one bin of size 2^29, then bins of 2^26, 2^23, 2^20, 2^17,
// and 2^14, the last being the leaves. Bin ids are assigned in
// level-order; binOffset and binShift give the closed-form per level,
// grounded on the teacher's internal/index.go level0..level5 constants.
const (
	minShift = 14
	depth    = 5

	// pseudoBin is the reserved bin id carrying per-reference mapped and
	// unmapped record counts. It is never a query target.
	pseudoBin = 0x924a
)

const (
	binOffset0 = uint32(((1 << (iota * 3)) - 1) / 7)
	binOffset1
	binOffset2
	binOffset3
	binOffset4
	binOffset5
)

var binOffsets = [...]uint32{binOffset0, binOffset1, binOffset2, binOffset3, binOffset4, binOffset5}

const (
	binShift0 = minShift + 3*depth - iota*3
	binShift1
	binShift2
	binShift3
	binShift4
	binShift5
)

var binShifts = [...]uint{binShift0, binShift1, binShift2, binShift3, binShift4, binShift5}

// binForPos returns the leaf bin id containing the zero-based position
// pos.
func binForPos(pos int) uint32 {
	return binOffset5 + uint32(pos>>minShift)
}

// binsForInterval returns every bin id whose genomic range intersects
// the zero-based half-open interval [begin, end). begin is clamped to
// at least 0; end is clamped to at least begin+1.
func binsForInterval(begin, end int) []uint32 {
	if begin < 0 {
		begin = 0
	}
	if end < begin+1 {
		end = begin + 1
	}
	end--

	list := []uint32{0}
	for k := 1; k <= depth; k++ {
		t := binOffsets[k]
		shift := binShifts[k]
		lo := t + uint32(begin>>shift)
		hi := t + uint32(end>>shift)
		for b := lo; b <= hi; b++ {
			list = append(list, b)
		}
	}
	return list
}

// minVOffsetFor returns the smallest virtual offset recorded in linear
// for the 16kb window containing the zero-based position begin, or the
// zero Offset if begin falls beyond the linear index.
func minVOffsetFor(linear []bgzf.Offset, begin int) bgzf.Offset {
	i := begin >> minShift
	if i < 0 || i >= len(linear) {
		return bgzf.Offset{}
	}
	return linear[i]
}
