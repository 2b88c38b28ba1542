// Copyright ©2024 The tabix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tabix

import (
	"errors"
	"io"

	"golang.org/x/exp/mmap"
)

// OpenFile memory-maps the file at path for random access, the same
// capability fai.OpenFile provides for FASTA files: a single mmap avoids
// a read/seek syscall per BGZF block fetch. The returned File satisfies
// io.ReadSeeker, the capability Open needs for its data argument, and
// io.Closer.
func OpenFile(path string) (*File, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{r: r}, nil
}

// File adapts a mmap.ReaderAt, which offers only ReadAt, to the
// io.ReadSeeker a bgzf.Reader needs to Seek between blocks.
type File struct {
	r   *mmap.ReaderAt
	pos int64
}

func (f *File) Read(p []byte) (int, error) {
	n, err := f.r.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.pos = offset
	case io.SeekCurrent:
		f.pos += offset
	case io.SeekEnd:
		f.pos = int64(f.r.Len()) + offset
	default:
		return 0, errors.New("tabix: invalid whence")
	}
	return f.pos, nil
}

// Close unmaps the file. A Handle built on this File, and Lines values
// obtained from it, must not be used afterward.
func (f *File) Close() error { return f.r.Close() }

// NewReadSeeker adapts an io.ReaderAt of known size (for example, an
// in-memory bytes.Reader under test, or any other random-access source
// that is not a mapped file) to the io.ReadSeeker Open requires, by
// tracking a read cursor alongside it.
func NewReadSeeker(r io.ReaderAt, size int64) io.ReadSeeker {
	return &readerAtSeeker{r: r, size: size}
}

type readerAtSeeker struct {
	r    io.ReaderAt
	size int64
	pos  int64
}

func (s *readerAtSeeker) Read(p []byte) (int, error) {
	n, err := s.r.ReadAt(p, s.pos)
	s.pos += int64(n)
	return n, err
}

func (s *readerAtSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		s.pos = offset
	case io.SeekCurrent:
		s.pos += offset
	case io.SeekEnd:
		s.pos = s.size + offset
	default:
		return 0, errors.New("tabix: invalid whence")
	}
	return s.pos, nil
}
