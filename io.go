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
	"fmt"
	"io"
	"os"

	gzip "github.com/klauspost/pgzip"
)

func outStream(file string, bufSize int, gzipped bool) (*bufio.Writer, io.WriteCloser, *os.File, error) {
	w, err := os.Create(file)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fail to write %s: %s", file, err)
	}

	if gzipped {
		gw := gzip.NewWriter(w)
		return bufio.NewWriterSize(gw, bufSize), gw, w, nil
	}
	return bufio.NewWriterSize(w, bufSize), nil, w, nil
}

func inStream(file string, bufSize int) (*bufio.Reader, *os.File, error) {
	r, err := os.Open(file)
	if err != nil {
		return nil, nil, fmt.Errorf("fail to read %s: %s", file, err)
	}

	br := bufio.NewReaderSize(r, bufSize)

	if gzipped := isGzip(br); gzipped {
		gr, err := gzip.NewReader(br)
		if err != nil {
			r.Close()
			return nil, nil, fmt.Errorf("fail to create gzip reader for %s: %s", file, err)
		}
		br = bufio.NewReaderSize(gr, bufSize)
	}

	return br, r, nil
}

func isGzip(b *bufio.Reader) bool {
	m, err := b.Peek(2)
	if err != nil {
		return false
	}
	return m[0] == 0x1f && m[1] == 0x8b
}

// readLine reads one line without its terminator ('\n' or "\r\n").
// The returned slice is freshly allocated and safe to retain.
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		if err != io.EOF {
			return nil, err
		}
		if len(line) == 0 {
			return nil, io.EOF
		}
	}
	return trimEOL(line), nil
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}
