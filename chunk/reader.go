// Copyright ©2024 The tabix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chunk provides a bgzf.Reader-driving io.Reader bounded to a
// planned list of bgzf.Chunks, and the chunk-coalescing strategies used
// to build that list. It corresponds to spec.md §4.4's Chunk Planner and
// the chunk-bounded reads of §4.5 step 4.
package chunk

import (
	"errors"
	"io"

	"github.com/biogo/tabix/bgzf"
)

// ErrNoReference reports a query naming a reference absent from an
// index. No function in this module returns it: tabix.Handle.Fetch
// treats an unknown reference as an empty result.
var ErrNoReference = errors.New("chunk: no reference")

// ErrInvalid reports a query interval an index cannot resolve. No
// function in this module returns it.
var ErrInvalid = errors.New("chunk: invalid interval")

// Reader drives a bgzf.Reader through a list of Chunks in order,
// presenting their concatenated decompressed bytes as a single stream.
// It puts the underlying bgzf.Reader into Blocked mode for the duration
// of its use, restoring the prior mode on Close.
//
// Read stops and returns io.EOF at the end of every planned Chunk, not
// only the last: the caller must then call either Advance, to resume
// the plan at the next Chunk, or Continue, to keep reading past the
// boundary in the virtual stream before calling Advance. Continue
// exists because a chunk's end offset need not land on a record
// boundary in the decompressed data stream the caller is framing: the
// index guarantees a matching record begins before the chunk ends, but
// its trailing bytes may extend past it (spec.md §4.5 step 4). A
// line-oriented caller that finds no terminator in the bytes delivered
// before a boundary must call Continue to finish that one record,
// rather than treating the boundary as the record's end.
type Reader struct {
	r *bgzf.Reader

	wasBlocked bool
	chunks     []bgzf.Chunk

	boundary bool // current chunk's bytes are exhausted; awaiting Advance/Continue.
	overflow bool // Continue was called; Read now passes through past the boundary.
}

// NewReader returns a Reader over r, bounded to chunks, which must be
// sorted and non-overlapping (see Adjacent). r is repositioned to the
// start of the first chunk.
func NewReader(r *bgzf.Reader, chunks []bgzf.Chunk) (*Reader, error) {
	wasBlocked := r.Blocked
	r.Blocked = true
	if len(chunks) != 0 {
		if err := r.Seek(chunks[0].Begin); err != nil {
			return nil, err
		}
	}
	return &Reader{r: r, wasBlocked: wasBlocked, chunks: chunks}, nil
}

func vOffset(o bgzf.Offset) int64 { return o.File<<16 | int64(o.Block) }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Read satisfies io.Reader. It returns io.EOF at the end of each planned
// Chunk (see AtBoundary) and, once Advance reports no Chunks remain,
// for every subsequent call.
func (r *Reader) Read(p []byte) (int, error) {
	if r.overflow {
		return r.r.Read(p)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if r.boundary || len(r.chunks) == 0 {
		return 0, io.EOF
	}

	target := vOffset(r.chunks[0].End)
	cur := vOffset(r.r.LastChunk().End)
	if cur >= target {
		r.boundary = true
		return 0, io.EOF
	}

	// Bound the read to what remains in the current BGZF block, so a
	// single call never reads past the end of the planned chunk even
	// when that end falls mid-block.
	want := r.r.BlockLen()
	if cur>>16 == target>>16 {
		if w := int(target&0xffff) - int(cur&0xffff); w < want {
			want = w
		}
	}
	if want == 0 {
		// The current block is exhausted but the chunk continues into
		// a later one; cross the boundary explicitly, since Blocked
		// otherwise stops Read at every member.
		if err := r.r.Advance(); err != nil {
			return 0, err
		}
		return r.Read(p)
	}

	n, err := r.r.Read(p[:min(len(p), want)])
	if err != nil && err != io.EOF {
		return n, err
	}
	if vOffset(r.r.LastChunk().End) >= target {
		r.boundary = true
	}
	return n, nil
}

// AtBoundary reports whether the Reader has delivered every byte of the
// Chunk currently being read and is waiting for Advance or Continue
// before yielding more.
func (r *Reader) AtBoundary() bool { return r.boundary && !r.overflow }

// Overflowing reports whether Continue has been called and not yet
// matched by Advance.
func (r *Reader) Overflowing() bool { return r.overflow }

// Done reports whether the Reader has no further Chunk to deliver and
// is not in the middle of an overflow read.
func (r *Reader) Done() bool { return len(r.chunks) == 0 && !r.overflow }

// Advance resumes the chunk plan after a boundary: it drops the Chunk
// that was just exhausted (ending an overflow read started by Continue,
// if any) and seeks to the next planned Chunk. It returns io.EOF, not
// an error, once no Chunk remains.
func (r *Reader) Advance() error {
	if r.overflow {
		r.overflow = false
		r.r.Blocked = true
	}
	r.boundary = false
	if len(r.chunks) == 0 {
		return io.EOF
	}
	r.chunks = r.chunks[1:]
	if len(r.chunks) == 0 {
		return io.EOF
	}
	return r.r.Seek(r.chunks[0].Begin)
}

// Continue switches the Reader into overflow mode at a chunk boundary:
// subsequent Reads follow the virtual stream past the chunk's end,
// crossing BGZF members freely, instead of returning io.EOF. Call it
// when bytes delivered up to a boundary (AtBoundary reporting true)
// left an in-progress record incomplete; call Advance once that record
// has been read in full to resume the chunk plan.
func (r *Reader) Continue() {
	r.overflow = true
	r.r.Blocked = false
}

// Close restores the bgzf.Reader's original Blocked mode. It does not
// close the underlying bgzf.Reader.
func (r *Reader) Close() error {
	r.r.Blocked = r.wasBlocked
	r.boundary = false
	r.overflow = false
	return nil
}
