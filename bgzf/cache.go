// Copyright ©2024 The tabix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	"bytes"
	"compress/gzip"
	"io"
)

// Cache is a Block caching type. Implementations are provided in the
// bgzf/cache subpackage. A Reader with no Cache decompresses every block
// it visits afresh; a Cache lets repeated or nearby queries reuse blocks
// already in memory.
//
// If a Cache is a Wrapper, its Wrap method is called on newly decompressed
// blocks before they are returned to the caller.
type Cache interface {
	// Get returns the Block in the Cache with the given base file
	// offset, or nil if no such Block is held. The returned Block is
	// removed from the Cache.
	Get(base int64) Block

	// Put inserts a Block into the Cache, returning the Block that was
	// evicted, if any, and whether the inserted Block was retained.
	Put(Block) (evicted Block, retained bool)
}

// Wrapper is satisfied by Cache implementations that need to transform a
// Block immediately after it is decompressed.
type Wrapper interface {
	Wrap(Block) Block
}

// Block holds the decompressed payload of a single BGZF member together
// with the bookkeeping a Reader needs to track its place in the virtual
// stream.
type Block interface {
	// Base is the offset of the first byte of the gzip member the
	// Block was decompressed from.
	Base() int64

	io.Reader

	// Used reports whether any bytes have been read from the Block.
	Used() bool

	header() gzip.Header
	setHeader(gzip.Header)

	ownedBy(*Reader) bool
	setOwner(*Reader)

	hasData() bool
	seek(offset int64) error
	readFrom(io.Reader) (int64, error)
	len() int
	setBase(int64)

	// nextBase returns the expected file offset of the following BGZF
	// member, or -1 if the Block's header does not carry a usable
	// block size.
	nextBase() int64

	beginTx()
	endTx() Chunk
}

type block struct {
	owner *Reader
	used  bool

	base int64
	h    gzip.Header

	chunk Chunk

	buf  *bytes.Reader
	data [MaxBlockSize]byte
}

func (b *block) Base() int64 { return b.base }

func (b *block) Used() bool { return b.used }

func (b *block) Read(p []byte) (int, error) {
	n, err := b.buf.Read(p)
	b.chunk.End.Block += uint16(n)
	if n > 0 {
		b.used = true
	}
	return n, err
}

func (b *block) readFrom(r io.Reader) (int64, error) {
	owner := b.owner
	b.owner = nil
	buf := bytes.NewBuffer(b.data[:0])
	n, err := io.Copy(buf, r)
	if err != nil {
		return n, err
	}
	b.buf = bytes.NewReader(buf.Bytes())
	b.owner = owner
	return n, nil
}

func (b *block) seek(offset int64) error {
	_, err := b.buf.Seek(offset, io.SeekStart)
	if err == nil {
		b.chunk.Begin.Block = uint16(offset)
		b.chunk.End.Block = uint16(offset)
	}
	return err
}

func (b *block) len() int {
	if b.buf == nil {
		return 0
	}
	return b.buf.Len()
}

func (b *block) setBase(n int64) {
	b.base = n
	b.chunk = Chunk{Begin: Offset{File: n}, End: Offset{File: n}}
}

func (b *block) nextBase() int64 {
	size := int64(blockSizeOf(b.h))
	if size < 0 {
		return -1
	}
	return b.base + size
}

func (b *block) setHeader(h gzip.Header) { b.h = h }
func (b *block) header() gzip.Header     { return b.h }

func (b *block) setOwner(r *Reader) {
	b.owner = r
	b.used = false
	b.base = -1
	b.h = gzip.Header{}
	b.chunk = Chunk{}
	b.buf = nil
}

func (b *block) ownedBy(r *Reader) bool { return b.owner == r }

func (b *block) hasData() bool { return b.buf != nil }

func (b *block) beginTx() { b.chunk.Begin = b.chunk.End }

func (b *block) endTx() Chunk { return b.chunk }

// blockSizeOf scans h's Extra subfields for the BC subfield (SI1='B',
// SI2='C', SLEN=2) and returns the total on-disk member size, BSIZE+1, it
// records. It returns -1 if no BC subfield is present, per spec.md §4.1:
// the reader must scan rather than assume the subfield's position.
func blockSizeOf(h gzip.Header) int {
	extra := h.Extra
	for len(extra) >= 4 {
		si1, si2 := extra[0], extra[1]
		slen := int(extra[2]) | int(extra[3])<<8
		if len(extra) < 4+slen {
			return -1
		}
		if si1 == 'B' && si2 == 'C' && slen == 2 {
			bsize := int(extra[4]) | int(extra[5])<<8
			return bsize + 1
		}
		extra = extra[4+slen:]
	}
	return -1
}
