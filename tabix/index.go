// Copyright ©2024 The tabix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tabix decodes Tabix .tbi indices and uses them to drive
// random-access queries against the BGZF data file they index.
package tabix

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/biogo/tabix/bgzf"
	"github.com/biogo/tabix/chunk"
)

// Format identifies the coordinate convention a .tbi index's data lines
// follow, the low 16 bits of the on-disk format field.
type Format int32

// Preset formats, per spec.md §6.
const (
	FormatGeneric Format = 0
	FormatSAM     Format = 1
	FormatVCF     Format = 2
)

const formatZeroBasedBit = 1 << 16

// Index is a decoded Tabix index: a binning tree and linear index per
// reference, plus the header metadata describing how to locate and
// interpret coordinate columns in the data file's lines.
type Index struct {
	Format    Format
	ZeroBased bool

	NameColumn  int32
	BeginColumn int32
	EndColumn   int32

	MetaChar byte
	Skip     int32

	refNames []string
	nameMap  map[string]int

	refs []refIndex
}

type refIndex struct {
	bins      []bin
	stats     *ReferenceStats
	intervals []bgzf.Offset
}

type bin struct {
	id     uint32
	chunks []bgzf.Chunk
}

// ReferenceStats holds the mapped/unmapped counts and overall Chunk
// range the pseudo-bin carries for one reference.
type ReferenceStats struct {
	Chunk    bgzf.Chunk
	Mapped   uint64
	Unmapped uint64
}

// Names returns the reference names in the order they were indexed. The
// returned slice must not be modified.
func (idx *Index) Names() []string { return idx.refNames }

// RefID returns the 0-based index of name in the reference name table.
func (idx *Index) RefID(name string) (int, bool) {
	id, ok := idx.nameMap[name]
	return id, ok
}

// ReferenceStats returns the pseudo-bin statistics for reference id, and
// whether the index carried any.
func (idx *Index) ReferenceStats(id int) (ReferenceStats, bool) {
	if id < 0 || id >= len(idx.refs) {
		return ReferenceStats{}, false
	}
	s := idx.refs[id].stats
	if s == nil {
		return ReferenceStats{}, false
	}
	return *s, true
}

// MergeChunks applies s to the chunks recorded in every bin of every
// reference. A nil s is a no-op. The Chunk Planner applies chunk.Adjacent
// to a query's candidate chunks regardless of this setting; MergeChunks
// instead lets a caller pre-coalesce the stored bins themselves, trading
// bin-level precision for fewer, larger chunks on every future query
// (useful against a backing store with high per-seek latency).
func (idx *Index) MergeChunks(s chunk.MergeStrategy) {
	if s == nil {
		return
	}
	for i := range idx.refs {
		ref := &idx.refs[i]
		for b := range ref.bins {
			sortChunksByBegin(ref.bins[b].chunks)
			ref.bins[b].chunks = s(ref.bins[b].chunks)
		}
	}
}

var tbiMagic = [4]byte{'T', 'B', 'I', 1}

// ReadFrom decodes a Tabix index from r, which must yield the BGZF
// stream of a .tbi file from its first byte. The full decompressed
// payload is materialized into memory before parsing (spec.md §4.2).
func ReadFrom(r io.Reader) (*Index, error) {
	br, err := bgzf.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBlock, err)
	}
	payload, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBlock, err)
	}
	return decode(payload)
}

func decode(payload []byte) (*Index, error) {
	r := &byteReader{b: payload}

	var magic [4]byte
	if err := r.read(magic[:]); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrMalformedIndex, err)
	}
	if magic != tbiMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformedIndex)
	}

	nRef, err := r.int32()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read n_ref: %v", ErrMalformedIndex, err)
	}
	if nRef < 0 {
		return nil, fmt.Errorf("%w: negative n_ref", ErrMalformedIndex)
	}

	idx := &Index{nameMap: make(map[string]int)}
	if err := readHeader(r, idx); err != nil {
		return nil, err
	}
	if len(idx.refNames) != int(nRef) {
		return nil, fmt.Errorf("%w: name count mismatch: %d != %d", ErrMalformedIndex, len(idx.refNames), nRef)
	}
	for i, name := range idx.refNames {
		idx.nameMap[name] = i
	}

	idx.refs = make([]refIndex, nRef)
	for i := range idx.refs {
		if err := readRefIndex(r, &idx.refs[i]); err != nil {
			return nil, fmt.Errorf("%w: reference %d: %v", ErrMalformedIndex, i, err)
		}
	}

	return idx, nil
}

func readHeader(r *byteReader, idx *Index) error {
	format, err := r.int32()
	if err != nil {
		return fmt.Errorf("%w: failed to read format: %v", ErrMalformedIndex, err)
	}
	if format&^int32(0x1ffff) != 0 || format&0xffff > 2 {
		return fmt.Errorf("%w: unsupported format bits: %#x", ErrMalformedIndex, format)
	}
	idx.Format = Format(format & 0xffff)
	idx.ZeroBased = format&formatZeroBasedBit != 0

	nameCol, err := r.int32()
	if err != nil {
		return fmt.Errorf("%w: failed to read name column: %v", ErrMalformedIndex, err)
	}
	idx.NameColumn = nameCol

	begCol, err := r.int32()
	if err != nil {
		return fmt.Errorf("%w: failed to read begin column: %v", ErrMalformedIndex, err)
	}
	idx.BeginColumn = begCol

	endCol, err := r.int32()
	if err != nil {
		return fmt.Errorf("%w: failed to read end column: %v", ErrMalformedIndex, err)
	}
	idx.EndColumn = endCol

	meta, err := r.int32()
	if err != nil {
		return fmt.Errorf("%w: failed to read meta character: %v", ErrMalformedIndex, err)
	}
	idx.MetaChar = byte(meta)

	skip, err := r.int32()
	if err != nil {
		return fmt.Errorf("%w: failed to read skip count: %v", ErrMalformedIndex, err)
	}
	idx.Skip = skip

	lNm, err := r.int32()
	if err != nil {
		return fmt.Errorf("%w: failed to read name block length: %v", ErrMalformedIndex, err)
	}
	if lNm < 0 {
		return fmt.Errorf("%w: negative name block length", ErrMalformedIndex)
	}
	nameBytes, err := r.bytes(int(lNm))
	if err != nil {
		return fmt.Errorf("%w: failed to read names: %v", ErrMalformedIndex, err)
	}
	if len(nameBytes) == 0 || nameBytes[len(nameBytes)-1] != 0 {
		return fmt.Errorf("%w: name block not NUL-terminated", ErrMalformedIndex)
	}
	names := string(nameBytes[:len(nameBytes)-1])
	if names != "" {
		idx.refNames = strings.Split(names, "\x00")
	}

	return nil
}

func readRefIndex(r *byteReader, ref *refIndex) error {
	nBin, err := r.int32()
	if err != nil {
		return fmt.Errorf("failed to read bin count: %v", err)
	}
	if nBin < 0 {
		return fmt.Errorf("negative bin count")
	}

	ref.bins = make([]bin, 0, nBin)
	for i := int32(0); i < nBin; i++ {
		binID, err := r.uint32()
		if err != nil {
			return fmt.Errorf("failed to read bin id: %v", err)
		}
		nChunk, err := r.int32()
		if err != nil {
			return fmt.Errorf("failed to read chunk count: %v", err)
		}
		if nChunk < 0 {
			return fmt.Errorf("negative chunk count")
		}

		if binID == pseudoBin {
			if nChunk != 2 {
				return fmt.Errorf("malformed pseudo-bin header")
			}
			stats, err := readStats(r)
			if err != nil {
				return err
			}
			ref.stats = stats
			continue
		}

		chunks, err := readChunks(r, nChunk)
		if err != nil {
			return err
		}
		ref.bins = append(ref.bins, bin{id: binID, chunks: chunks})
	}
	sort.Sort(byBinID(ref.bins))
	for i := 1; i < len(ref.bins); i++ {
		if ref.bins[i].id == ref.bins[i-1].id {
			return fmt.Errorf("duplicate bin id %d", ref.bins[i].id)
		}
	}

	nIntv, err := r.int32()
	if err != nil {
		return fmt.Errorf("failed to read interval count: %v", err)
	}
	if nIntv < 0 {
		return fmt.Errorf("negative interval count")
	}
	intervals := make([]bgzf.Offset, nIntv)
	for i := range intervals {
		v, err := r.uint64()
		if err != nil {
			return fmt.Errorf("failed to read linear index entry: %v", err)
		}
		intervals[i] = makeOffset(v)
	}
	forwardFill(intervals)
	ref.intervals = intervals

	return nil
}

func readChunks(r *byteReader, n int32) ([]bgzf.Chunk, error) {
	if n == 0 {
		return nil, nil
	}
	chunks := make([]bgzf.Chunk, n)
	for i := range chunks {
		beg, err := r.uint64()
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk begin offset: %v", err)
		}
		end, err := r.uint64()
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk end offset: %v", err)
		}
		chunks[i] = bgzf.Chunk{Begin: makeOffset(beg), End: makeOffset(end)}
	}
	sortChunksByBegin(chunks)
	return chunks, nil
}

func readStats(r *byteReader) (*ReferenceStats, error) {
	begin, err := r.uint64()
	if err != nil {
		return nil, fmt.Errorf("failed to read pseudo-bin begin offset: %v", err)
	}
	end, err := r.uint64()
	if err != nil {
		return nil, fmt.Errorf("failed to read pseudo-bin end offset: %v", err)
	}
	mapped, err := r.uint64()
	if err != nil {
		return nil, fmt.Errorf("failed to read mapped count: %v", err)
	}
	unmapped, err := r.uint64()
	if err != nil {
		return nil, fmt.Errorf("failed to read unmapped count: %v", err)
	}
	return &ReferenceStats{
		Chunk:    bgzf.Chunk{Begin: makeOffset(begin), End: makeOffset(end)},
		Mapped:   mapped,
		Unmapped: unmapped,
	}, nil
}

// forwardFill replaces each zero Offset in linear, scanning from the end
// toward the start, with the nearest following non-zero entry. The
// writer leaves holes where an early window contains no records.
func forwardFill(linear []bgzf.Offset) {
	for i := len(linear) - 2; i >= 0; i-- {
		if isZero(linear[i]) {
			linear[i] = linear[i+1]
		}
	}
}

func makeOffset(v uint64) bgzf.Offset {
	return bgzf.Offset{File: int64(v >> 16), Block: uint16(v)}
}

func isZero(o bgzf.Offset) bool { return o == (bgzf.Offset{}) }

func vOffset(o bgzf.Offset) int64 { return o.File<<16 | int64(o.Block) }

func sortChunksByBegin(chunks []bgzf.Chunk) {
	if !sort.IsSorted(byBeginOffset(chunks)) {
		sort.Sort(byBeginOffset(chunks))
	}
}

type byBinID []bin

func (b byBinID) Len() int           { return len(b) }
func (b byBinID) Less(i, j int) bool { return b[i].id < b[j].id }
func (b byBinID) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }

type byBeginOffset []bgzf.Chunk

func (c byBeginOffset) Len() int           { return len(c) }
func (c byBeginOffset) Less(i, j int) bool { return vOffset(c[i].Begin) < vOffset(c[j].Begin) }
func (c byBeginOffset) Swap(i, j int)      { c[i], c[j] = c[j], c[i] }

// byteReader is a minimal little-endian cursor over an in-memory .tbi
// payload, grounded on the teacher's binary.Read-based internal/index_read.go
// but operating on an already fully-read buffer per spec.md §4.2.
type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) read(p []byte) error {
	if len(r.b)-r.pos < len(p) {
		return io.ErrUnexpectedEOF
	}
	copy(p, r.b[r.pos:])
	r.pos += len(p)
	return nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if n < 0 || len(r.b)-r.pos < n {
		return nil, io.ErrUnexpectedEOF
	}
	p := r.b[r.pos : r.pos+n]
	r.pos += n
	return p, nil
}

func (r *byteReader) int32() (int32, error) {
	var p [4]byte
	if err := r.read(p[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(p[:])), nil
}

func (r *byteReader) uint32() (uint32, error) {
	var p [4]byte
	if err := r.read(p[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p[:]), nil
}

func (r *byteReader) uint64() (uint64, error) {
	var p [8]byte
	if err := r.read(p[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p[:]), nil
}
