// Copyright ©2024 The tabix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chunk

import (
	"github.com/biogo/tabix/bgzf"
)

// MergeStrategy represents a chunk coalescing strategy, applied by the
// Chunk Planner (spec.md §4.4) to the candidate chunks a query gathers
// from the binning index before they are read.
type MergeStrategy func([]bgzf.Chunk) []bgzf.Chunk

var (
	// Identity leaves the []bgzf.Chunk unaltered.
	Identity MergeStrategy = identity

	// Adjacent merges overlapping or contiguous bgzf.Chunks. This is the
	// strategy spec.md §4.4 requires: input sorted by Begin offset,
	// output sorted, non-overlapping, and minimal.
	Adjacent MergeStrategy = adjacent

	// Squash merges all bgzf.Chunks into a single bgzf.Chunk spanning
	// their full range.
	Squash MergeStrategy = squash
)

// CompressorStrategy returns a MergeStrategy that merges bgzf.Chunks
// whose BGZF block starts are within near bytes of each other, trading
// some unwanted extra reading for fewer seeks against a slow, high
// per-seek-overhead backing store.
func CompressorStrategy(near int64) MergeStrategy {
	return func(chunks []bgzf.Chunk) []bgzf.Chunk {
		if len(chunks) == 0 {
			return nil
		}
		for c := 1; c < len(chunks); c++ {
			leftChunk := chunks[c-1]
			rightChunk := &chunks[c]
			if leftChunk.End.File+near >= rightChunk.Begin.File {
				rightChunk.Begin = leftChunk.Begin
				if vOffset(leftChunk.End) > vOffset(rightChunk.End) {
					rightChunk.End = leftChunk.End
				}
				chunks = append(chunks[:c-1], chunks[c:]...)
				c--
			}
		}
		return chunks
	}
}

func identity(chunks []bgzf.Chunk) []bgzf.Chunk { return chunks }

func adjacent(chunks []bgzf.Chunk) []bgzf.Chunk {
	if len(chunks) == 0 {
		return nil
	}
	for c := 1; c < len(chunks); c++ {
		leftChunk := chunks[c-1]
		rightChunk := &chunks[c]
		leftEndOffset := vOffset(leftChunk.End)
		if leftEndOffset >= vOffset(rightChunk.Begin) {
			rightChunk.Begin = leftChunk.Begin
			if leftEndOffset > vOffset(rightChunk.End) {
				rightChunk.End = leftChunk.End
			}
			chunks = append(chunks[:c-1], chunks[c:]...)
			c--
		}
	}
	return chunks
}

func squash(chunks []bgzf.Chunk) []bgzf.Chunk {
	if len(chunks) == 0 {
		return nil
	}
	left := chunks[0].Begin
	right := chunks[0].End
	for _, c := range chunks[1:] {
		if vOffset(c.End) > vOffset(right) {
			right = c.End
		}
	}
	return []bgzf.Chunk{{Begin: left, End: right}}
}
