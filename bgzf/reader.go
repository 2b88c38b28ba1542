// Copyright ©2024 The tabix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	"bufio"
	"compress/gzip"
	"io"
)

// Reader reads a BGZF stream, presenting the concatenation of its members'
// decompressed payloads as a single, virtual-offset addressable stream.
//
// A Reader is single-reader: it holds one decompressed Block at a time and
// performs synchronous, blocking reads, per spec.md §5.
type Reader struct {
	src io.Reader // original source, used for Seek
	cr  *countingReader

	cache Cache
	block Block

	// Blocked, when true, stops Read from silently crossing a BGZF
	// member boundary: it returns io.EOF at the end of the current
	// block instead of advancing to the next one. chunk.Reader
	// relies on this to bound reads precisely to planned chunks.
	Blocked bool

	err error
}

// countingReader tracks the number of bytes read through it so that BGZF
// member base offsets can be recovered as the stream is consumed forward.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// ReadByte lets compress/gzip consume the stream directly instead of
// wrapping it in a read-ahead buffer, which would pull bytes of the
// following member through the counter.
func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.r.(io.ByteReader).ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

// NewReader returns a Reader that reads BGZF data from r. r need not
// implement io.Seeker unless Seek will be called.
func NewReader(r io.Reader) (*Reader, error) {
	bg := &Reader{src: r, block: &block{base: -1}}
	bg.cr = &countingReader{r: bufio.NewReader(r)}
	if err := bg.readMember(); err != nil {
		return nil, err
	}
	return bg, nil
}

// SetCache sets the Cache used to store and retrieve decompressed Blocks.
func (bg *Reader) SetCache(c Cache) { bg.cache = c }

// readMember decompresses the BGZF member beginning at the current read
// position into a fresh Block, consulting the Cache first. The Block
// previously held by bg, if any, is offered back to the Cache: this is
// what lets a capacity-1 cache serve repeated visits to the same block as
// a query revisits nearby chunks.
func (bg *Reader) readMember() error {
	if bg.cache != nil && bg.block != nil && bg.block.hasData() {
		bg.cache.Put(bg.block)
	}

	base := bg.cr.n

	if bg.cache != nil {
		if b := bg.cache.Get(base); b != nil {
			size := int64(blockSizeOf(b.header()))
			if size > 0 {
				if _, err := io.CopyN(io.Discard, bg.cr, size); err != nil {
					return err
				}
			}
			b.seek(0)
			bg.block = b
			return nil
		}
	}

	gz, err := gzip.NewReader(bg.cr)
	if err != nil {
		return err
	}
	gz.Multistream(false)

	if blockSizeOf(gz.Header) < 0 {
		return ErrNoBlockSize
	}

	b := &block{}
	b.setOwner(bg)
	b.setBase(base)
	b.setHeader(gz.Header)

	if _, err := b.readFrom(gz); err != nil {
		return err
	}

	var blk Block = b
	if bg.cache != nil {
		if w, ok := bg.cache.(Wrapper); ok {
			blk = w.Wrap(blk)
		}
	}
	bg.block = blk
	return nil
}

// Seek moves the Reader to the BGZF member beginning at offset off.File,
// then discards off.Block bytes of that member's decompressed payload.
// The underlying reader must implement io.Seeker.
func (bg *Reader) Seek(off Offset) error {
	rs, ok := bg.src.(io.Seeker)
	if !ok {
		return ErrNotASeeker
	}
	if _, err := rs.Seek(off.File, io.SeekStart); err != nil {
		bg.err = err
		return err
	}
	bg.cr = &countingReader{r: bufio.NewReader(bg.src), n: off.File}
	bg.err = nil

	if err := bg.readMember(); err != nil {
		bg.err = err
		return err
	}
	bg.block.beginTx()
	if off.Block > 0 {
		if _, err := io.CopyN(io.Discard, bg.block, int64(off.Block)); err != nil {
			bg.err = err
			return err
		}
	}
	bg.block.beginTx()
	return nil
}

// Begin marks the start of a read transaction, returning a Tx whose End
// method reports the Chunk spanned by reads performed between the two
// calls.
func (bg *Reader) Begin() Tx {
	bg.block.beginTx()
	return Tx{r: bg, begin: bg.block.endTx().Begin}
}

// Tx tracks the Chunk spanned by a sequence of reads started by Reader.Begin.
type Tx struct {
	r     *Reader
	begin Offset
}

// End returns the Chunk read since the matching call to Begin.
func (t Tx) End() Chunk { return Chunk{Begin: t.begin, End: t.r.block.endTx().End} }

// LastChunk returns the Chunk read from the current BGZF block since the
// most recent Seek or Begin, or since the block was entered if that came
// later. Its End is the Reader's current virtual offset.
func (bg *Reader) LastChunk() Chunk { return bg.block.endTx() }

// BlockLen returns the number of decompressed bytes remaining to be read
// from the current BGZF block.
func (bg *Reader) BlockLen() int { return bg.block.len() }

// Read reads decompressed bytes from the BGZF stream, advancing across
// member boundaries unless Blocked is set.
func (bg *Reader) Read(p []byte) (int, error) {
	if bg.err != nil {
		return 0, bg.err
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, err := bg.block.Read(p)
	if err == io.EOF {
		if n > 0 {
			return n, nil
		}
		if bg.Blocked {
			return 0, io.EOF
		}
		if bg.block.nextBase() < 0 {
			bg.err = ErrBlockSizeMismatch
			return 0, bg.err
		}
		if err := bg.readMember(); err != nil {
			bg.err = err
			return 0, err
		}
		return bg.Read(p)
	}
	return n, err
}

// Advance discards any unread bytes of the current BGZF block and moves
// the Reader onto the next member. It is intended for callers, such as
// chunk.Reader, that manage Blocked reads themselves and need to cross a
// block boundary explicitly rather than via Read's automatic advance.
func (bg *Reader) Advance() error {
	if bg.err != nil {
		return bg.err
	}
	if bg.block.nextBase() < 0 {
		bg.err = ErrBlockSizeMismatch
		return bg.err
	}
	if err := bg.readMember(); err != nil {
		bg.err = err
		return err
	}
	return nil
}

// ReadByte reads and returns a single decompressed byte.
func (bg *Reader) ReadByte() (byte, error) {
	var p [1]byte
	for {
		n, err := bg.Read(p[:])
		if n == 1 {
			return p[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// Close releases resources associated with the Reader. The underlying
// reader, if it implements io.Closer, is not closed by Close.
func (bg *Reader) Close() error {
	bg.err = ErrClosed
	return nil
}
