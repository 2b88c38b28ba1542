// Copyright ©2024 The tabix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tabix_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/biogo/tabix/bgzf"
)

// tbiBin, tbiStats and tbiRef mirror the on-disk shape of a .tbi
// reference's bins, pseudo-bin and linear index, for test-local
// encoding only: writing production indices is
// out of scope for the library (see DESIGN.md), so no such encoder
// belongs in the package itself.
type tbiBin struct {
	id     uint32
	chunks []bgzf.Chunk
}

type tbiStats struct {
	chunk    bgzf.Chunk
	mapped   uint64
	unmapped uint64
}

type tbiRef struct {
	bins      []tbiBin
	stats     *tbiStats
	intervals []bgzf.Offset
}

type tbiHeader struct {
	format      int32
	zeroBased   bool
	nameColumn  int32
	beginColumn int32
	endColumn   int32
	metaChar    byte
	skip        int32
}

const pseudoBinID = 0x924a

// encodeTabix lays out a .tbi payload (the decompressed body; callers
// compress it through a bgzf.Writer) byte-for-byte as described in
// spec.md §4.2, grounded on the teacher's internal.WriteIndex and
// tabix.WriteTo.
func encodeTabix(h tbiHeader, names []string, refs []tbiRef) []byte {
	var buf bytes.Buffer
	w := func(v interface{}) { binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString("TBI")
	buf.WriteByte(1)
	w(int32(len(refs)))

	format := h.format
	if h.zeroBased {
		format |= 1 << 16
	}
	w(format)
	w(h.nameColumn)
	w(h.beginColumn)
	w(h.endColumn)
	w(int32(h.metaChar))
	w(h.skip)

	joined := strings.Join(names, "\x00")
	if len(names) > 0 {
		joined += "\x00"
	}
	w(int32(len(joined)))
	buf.WriteString(joined)

	for _, ref := range refs {
		n := int32(len(ref.bins))
		if ref.stats != nil {
			n++
		}
		w(n)
		for _, b := range ref.bins {
			w(b.id)
			w(int32(len(b.chunks)))
			for _, c := range b.chunks {
				w(vOff(c.Begin))
				w(vOff(c.End))
			}
		}
		if ref.stats != nil {
			w(uint32(pseudoBinID))
			w(int32(2))
			w(vOff(ref.stats.chunk.Begin))
			w(vOff(ref.stats.chunk.End))
			w(ref.stats.mapped)
			w(ref.stats.unmapped)
		}

		w(int32(len(ref.intervals)))
		for _, o := range ref.intervals {
			w(vOff(o))
		}
	}

	return buf.Bytes()
}

func vOff(o bgzf.Offset) uint64 { return uint64(o.File)<<16 | uint64(o.Block) }

// bgzfCompress wraps payload as a single-member BGZF stream via the
// same bgzf.Writer used to build data-file fixtures, so index and data
// fixtures are built through identical machinery.
func bgzfCompress(payload []byte) []byte {
	var buf bytes.Buffer
	w := bgzf.NewWriter(&buf)
	w.Write(payload)
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// buildVCFFixture lays out tab-delimited, VCF-like records one per
// reference position, flushing a new BGZF member after each record whose
// spec has flush set, and returns the compressed bytes alongside the
// Offsets each record begins and ends at, computed from the bytes
// written (a flushed record ends at the start of the next member), so
// tests can hand-construct bins and chunks against real offsets instead
// of guessing them.
type fixtureRecord struct {
	chrom string
	pos   int
	chunk bgzf.Chunk
}

func buildVCFFixture(recs []fixtureRecordSpec) ([]byte, []fixtureRecord, error) {
	var buf bytes.Buffer
	w := bgzf.NewWriter(&buf)

	var built []fixtureRecord
	// Record text formatting has no ordering dependency on the BGZF
	// writes below, so it happens concurrently, one goroutine per
	// record; errgroup.Wait is the barrier before the sequential,
	// order-dependent write loop.
	var g errgroup.Group
	lines := make([]string, len(recs))
	for i, r := range recs {
		i, r := i, r
		g.Go(func() error {
			lines[i] = fmt.Sprintf("%s\t%d\t.\tA\tG\n", r.chrom, r.pos)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	base := int64(0)
	var blockOff int
	for i, r := range recs {
		line := lines[i]
		begin := bgzf.Offset{File: base, Block: uint16(blockOff)}

		n, err := w.Write([]byte(line))
		if err != nil {
			return nil, nil, err
		}
		if n != len(line) {
			return nil, nil, fmt.Errorf("short write")
		}
		blockOff += n
		end := bgzf.Offset{File: base, Block: uint16(blockOff)}

		built = append(built, fixtureRecord{chrom: r.chrom, pos: r.pos, chunk: bgzf.Chunk{Begin: begin, End: end}})
		if r.flush {
			if err := w.Flush(); err != nil {
				return nil, nil, err
			}
			base = int64(buf.Len())
			blockOff = 0
			built[i].chunk.End = bgzf.Offset{File: base, Block: 0}
		}
	}
	if err := w.Close(); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), built, nil
}

type fixtureRecordSpec struct {
	chrom string
	pos   int
	flush bool
}

// binsCoveringAll is a deliberately coarse binning helper for test
// fixtures: every record for a reference is placed in bin 0 (the
// whole-reference bin per spec.md §4.3), which is always scanned by
// binsForInterval regardless of the query range. Tests that need to
// exercise finer bin selection build tbiBin slices directly.
func binsCoveringAll(chunks []bgzf.Chunk) []tbiBin {
	cp := append([]bgzf.Chunk(nil), chunks...)
	sort.Slice(cp, func(i, j int) bool { return vOff(cp[i].Begin) < vOff(cp[j].Begin) })
	return []tbiBin{{id: 0, chunks: cp}}
}

// linearIndexFor builds a minimal linear index whose single entry
// covers the first 16kb window (every record.pos in these
// fixtures is well under 1<<14), pointing at the first record's chunk
// begin, consistent with spec.md §4.3's forward-fill rule.
func linearIndexFor(firstBegin bgzf.Offset) []bgzf.Offset {
	return []bgzf.Offset{firstBegin}
}
