// Copyright ©2024 The tabix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bgzf implements BGZF (Blocked GZip Format) reading and writing.
//
// BGZF is a concatenation of independent gzip members, each carrying a
// non-standard "BC" extra subfield that records the total on-disk size of
// the member. The concatenation is addressable as a single uncompressed
// stream using 64-bit virtual offsets: the high 48 bits select the member's
// start position in the compressed file and the low 16 bits select a byte
// within that member's decompressed payload.
package bgzf

import (
	"errors"
)

const (
	// BlockSize is the nominal size of the uncompressed data held by
	// a single BGZF block written by Writer.
	BlockSize = 0xff00

	// MaxBlockSize is the maximum size in bytes of a compressed or
	// uncompressed BGZF block.
	MaxBlockSize = 0x10000
)

var (
	// ErrNoBlockSize is returned when a gzip member lacks the BC extra
	// subfield that identifies it as a BGZF block.
	ErrNoBlockSize = errors.New("bgzf: no BC subfield in extra data")

	// ErrBlockSizeMismatch is returned by Reader.Read and Reader.Advance
	// when the current block's header carries no usable BGZF block size,
	// so the start of the following member cannot be located.
	ErrBlockSizeMismatch = errors.New("bgzf: block size mismatch")

	// ErrBlockOverflow is returned when a Writer's buffered block
	// would compress to more than MaxBlockSize bytes.
	ErrBlockOverflow = errors.New("bgzf: block overflow")

	// ErrClosed is returned by operations performed on a closed
	// Reader or Writer.
	ErrClosed = errors.New("bgzf: use of closed bgzf handle")

	// ErrNotASeeker is returned by Seek when the underlying reader
	// does not implement io.Seeker.
	ErrNotASeeker = errors.New("bgzf: not a seeker")
)

// bgzfExtraPrefix is the 'B','C',SLEN=2 prefix of the BGZF extra
// subfield; it is followed by the two-byte little-endian BSIZE.
var bgzfExtraPrefix = []byte{'B', 'C', 0x02, 0x00}

// eofBlock is the 28-byte empty BGZF member conventionally appended to
// mark the logical end of a BGZF stream.
var eofBlock = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
	0x42, 0x43, 0x02, 0x00, 0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// Offset is a virtual file offset: the byte offset of a BGZF block's
// first byte within the compressed file (File), and a byte offset within
// that block's decompressed payload (Block).
type Offset struct {
	File  int64
	Block uint16
}

func vOffset(o Offset) int64 {
	return o.File<<16 | int64(o.Block)
}

// Less reports whether o sorts before p in the virtual stream.
func (o Offset) Less(p Offset) bool { return vOffset(o) < vOffset(p) }

// Chunk is a half-open range [Begin, End) of a BGZF virtual stream.
type Chunk struct {
	Begin Offset
	End   Offset
}
