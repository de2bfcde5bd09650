// Copyright © 2024 The linesort Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package linesort

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ChunkStream is a buffered forward cursor over one sorted run file.
// After construction it is positioned on the first parsable row;
// HasData reports false once the file is exhausted.
type ChunkStream struct {
	file string
	fh   *os.File
	r    *bufio.Reader

	cur     Row
	hasData bool
}

// NewChunkStream opens file with a read buffer of bufSize bytes and
// advances to the first row. A file without any parsable line yields a
// stream already in its end state; a missing file is an error.
func NewChunkStream(file string, bufSize int) (*ChunkStream, error) {
	br, fh, err := inStream(file, bufSize)
	if err != nil {
		return nil, err
	}
	s := &ChunkStream{file: file, fh: fh, r: br}
	if err = s.Next(); err != nil {
		fh.Close()
		return nil, err
	}
	return s, nil
}

// Next advances the cursor, skipping blank and unparsable lines.
// On EOF the stream enters its end state and Next returns nil.
func (s *ChunkStream) Next() error {
	for {
		line, err := readLine(s.r)
		if err != nil {
			s.cur = Row{}
			s.hasData = false
			if err == io.EOF {
				return nil
			}
			return errors.Wrapf(err, "read run %s", s.file)
		}
		if row, ok := ParseRow(line); ok {
			s.cur = row
			s.hasData = true
			return nil
		}
	}
}

// HasData reports whether the current row is valid.
func (s *ChunkStream) HasData() bool { return s.hasData }

// Row returns the current row. Only valid while HasData is true.
func (s *ChunkStream) Row() Row { return s.cur }

// File returns the path of the underlying run file.
func (s *ChunkStream) File() string { return s.file }

// Close closes the underlying file.
func (s *ChunkStream) Close() error {
	return s.fh.Close()
}
