// Copyright ©2024 The tabix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tabix

import (
	"sort"

	"github.com/biogo/tabix/bgzf"
	"github.com/biogo/tabix/chunk"
)

// chunks returns the coalesced list of bgzf.Chunks that may hold records
// on reference rid overlapping the zero-based half-open interval
// [begin, end), per spec.md §4.4. A reference absent from the index (rid
// out of range) yields an empty, error-free plan.
func (idx *Index) chunks(rid, begin, end int) []bgzf.Chunk {
	if rid < 0 || rid >= len(idx.refs) {
		return nil
	}
	ref := idx.refs[rid]

	var candidates []bgzf.Chunk
	for _, b := range binsForInterval(begin, end) {
		i := sort.Search(len(ref.bins), func(i int) bool { return ref.bins[i].id >= b })
		if i < len(ref.bins) && ref.bins[i].id == b {
			candidates = append(candidates, ref.bins[i].chunks...)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	minOff := vOffset(minVOffsetFor(ref.intervals, begin))
	kept := candidates[:0]
	for _, c := range candidates {
		if vOffset(c.End) > minOff {
			kept = append(kept, c)
		}
	}

	sortChunksByBegin(kept)
	return chunk.Adjacent(kept)
}
