// Copyright ©2024 The tabix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tabix

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/biogo/tabix/bgzf"
	"github.com/biogo/tabix/chunk"
)

// Handle is an open Tabix-indexed data file, ready for random-access
// queries. A Handle is single-reader: concurrent Fetch calls against one
// Handle are undefined (spec.md §5); open a fresh Handle per goroutine
// that needs concurrent access.
type Handle struct {
	idx  *Index
	data *bgzf.Reader
}

// Open returns a Handle reading the BGZF data stream data, indexed by
// the Tabix index read from index. data must support Seek for the
// random access queries require; see OpenFile and NewReadSeeker.
func Open(data io.ReadSeeker, index io.Reader) (*Handle, error) {
	idx, err := ReadFrom(index)
	if err != nil {
		return nil, err
	}
	br, err := bgzf.NewReader(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBlock, err)
	}
	return &Handle{idx: idx, data: br}, nil
}

// SetCache installs a block cache on the Handle's BGZF reader.
func (h *Handle) SetCache(c bgzf.Cache) { h.data.SetCache(c) }

// Index returns the Handle's decoded index.
func (h *Handle) Index() *Index { return h.idx }

// References returns the reference names known to the index, in the
// order Fetch resolves names against.
func (h *Handle) References() []string { return h.idx.Names() }

// Fetch returns the data-file lines on reference refName whose span
// intersects [begin, end): begin is 1-based inclusive, end is
// half-open, matching the common Tabix CLI convention (spec.md §6). An
// unknown refName or an empty region (begin >= end) is not an error: it
// yields a Lines that is immediately exhausted.
func (h *Handle) Fetch(refName string, begin, end uint64) (*Lines, error) {
	if begin >= end {
		return &Lines{done: true}, nil
	}
	rid, ok := h.idx.RefID(refName)
	if !ok {
		return &Lines{done: true}, nil
	}

	// The external API's coordinates are always 1-based inclusive on
	// begin and half-open on end, independent of the index's own
	// per-line coordinate convention (which governs only how data-file
	// columns are parsed, in parseLine).
	zBegin := int(begin) - 1
	zEnd := int(end) - 1

	chunks := h.idx.chunks(rid, zBegin, zEnd)
	if len(chunks) == 0 {
		return &Lines{done: true}, nil
	}

	cr, err := chunk.NewReader(h.data, chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBlock, err)
	}

	return &Lines{
		idx:     h.idx,
		cr:      cr,
		refName: refName,
		begin:   zBegin,
		end:     zEnd,
	}, nil
}

// Lines is a lazy, pull-based iterator over the lines a Fetch call
// selected. Call Next until it returns false, then Err to check for a
// terminal error; Bytes returns the line Next most recently matched,
// newline stripped and owned by the caller, independent of the
// decompression buffer's lifetime.
type Lines struct {
	idx     *Index
	cr      *chunk.Reader
	refName string
	begin   int
	end     int

	scratch []byte
	line    []byte

	done bool
	err  error
}

// Next advances to the next matching line, returning false once no more
// remain, whether because the source is exhausted or a terminal error
// occurred; see Err.
func (l *Lines) Next() bool {
	if l.done {
		return false
	}
	for {
		raw, err := l.readLine()
		if err != nil {
			l.err = fmt.Errorf("%w: %v", ErrMalformedBlock, err)
			l.stop()
			return false
		}
		if raw == nil {
			l.stop()
			return false
		}

		// idx.Skip counts initial lines of the whole file, which are
		// always header material preceding the first indexed record;
		// a planned chunk's virtual offset never falls inside that
		// region, so only the meta-character check applies here.
		if len(raw) > 0 && raw[0] == l.idx.MetaChar {
			if l.done {
				return false
			}
			continue
		}

		seq, lineBegin, lineEnd, perr := l.idx.parseLine(raw)
		if perr != nil {
			l.err = perr
			l.stop()
			return false
		}

		if lineBegin >= l.end {
			// Records are position-sorted: nothing further on this
			// reference can match.
			l.stop()
			return false
		}

		if seq == l.refName && lineBegin < l.end && lineEnd > l.begin {
			l.line = append([]byte(nil), raw...)
			return true
		}
		if l.done {
			return false
		}
	}
}

// readLine returns the next complete, newline-stripped line from the
// chunk plan, or (nil, nil) once the plan and any trailing overflow
// read are exhausted. It sets l.done once no further call can yield
// another line.
//
// Chunk boundaries are handled strictly between lines: bytes are read
// one at a time so that the moment a '\n' is seen, the underlying
// bgzf.Reader's position is exactly the line's end, with nothing
// buffered ahead of it. A record whose bytes extend past the chunk
// that was read to find it is completed by chunk.Reader.Continue
// (spec.md §4.5 step 4) before the plan resumes via Advance.
func (l *Lines) readLine() ([]byte, error) {
	l.scratch = l.scratch[:0]
	var b [1]byte
	for {
		n, err := l.cr.Read(b[:])
		if n == 1 {
			if b[0] == '\n' {
				if l.cr.Overflowing() {
					if aerr := l.cr.Advance(); aerr != nil && aerr != io.EOF {
						return nil, aerr
					}
				}
				if l.cr.Done() {
					l.done = true
				}
				return l.scratch, nil
			}
			l.scratch = append(l.scratch, b[0])
			continue
		}
		if err == nil {
			continue
		}
		if err != io.EOF {
			return nil, err
		}

		switch {
		case len(l.scratch) > 0 && l.cr.AtBoundary():
			// A record straddles this boundary; keep reading to
			// finish it, then resume the plan.
			l.cr.Continue()
		case len(l.scratch) == 0 && l.cr.AtBoundary():
			if aerr := l.cr.Advance(); aerr != nil && aerr != io.EOF {
				return nil, aerr
			}
			if l.cr.Done() {
				l.done = true
				return nil, nil
			}
		default:
			// True end of the virtual stream, whether the plan is
			// exhausted or an overflow read ran past the final chunk
			// without finding a terminator.
			l.done = true
			if len(l.scratch) == 0 {
				return nil, nil
			}
			return l.scratch, nil
		}
	}
}

func (l *Lines) stop() {
	l.done = true
	if l.cr != nil {
		l.cr.Close()
		l.cr = nil
	}
}

// Bytes returns the line Next most recently matched.
func (l *Lines) Bytes() []byte { return l.line }

// Err returns the first error encountered, if any.
func (l *Lines) Err() error { return l.err }

// parseLine extracts the reference name and zero-based half-open span
// from one data-file line, per spec.md §4.5 step 5 and the column
// conventions of §6.
func (idx *Index) parseLine(raw []byte) (seq string, begin, end int, err error) {
	fields := bytes.Split(raw, []byte{'\t'})

	need := idx.NameColumn
	if idx.BeginColumn > need {
		need = idx.BeginColumn
	}
	if int(need) > len(fields) {
		return "", 0, 0, fmt.Errorf("%w: line has %d columns, need column %d", ErrLineParseFailure, len(fields), need)
	}
	seq = string(fields[idx.NameColumn-1])

	b, err := strconv.Atoi(string(fields[idx.BeginColumn-1]))
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: non-numeric begin column: %v", ErrLineParseFailure, err)
	}
	if idx.ZeroBased {
		begin = b
	} else {
		begin = b - 1
	}

	if idx.EndColumn == 0 {
		return seq, begin, begin + 1, nil
	}
	if int(idx.EndColumn) > len(fields) {
		return "", 0, 0, fmt.Errorf("%w: line has %d columns, need column %d", ErrLineParseFailure, len(fields), idx.EndColumn)
	}
	e, err := strconv.Atoi(string(fields[idx.EndColumn-1]))
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: non-numeric end column: %v", ErrLineParseFailure, err)
	}
	// A 1-based inclusive end e and a zero-based half-open end given
	// directly both convert to the same zero-based half-open value: e.
	end = e
	return seq, begin, end, nil
}
