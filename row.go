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

import "bytes"

// Row is a parsed view into one input line of the form "N. T".
// It keeps the whole line plus the byte offset of the text part,
// so parsing and comparison never cut new strings.
type Row struct {
	Number     int64
	line       []byte
	textOffset int32
}

// ParseRow parses a raw line (without its line terminator).
// It fails on blank lines, lines without a '.', and non-integer or
// int64-overflowing prefixes. It never allocates.
func ParseRow(line []byte) (Row, bool) {
	if len(line) == 0 {
		return Row{}, false
	}
	dot := bytes.IndexByte(line, '.')
	if dot < 0 {
		return Row{}, false
	}
	number, ok := parseInt64(line[:dot])
	if !ok {
		return Row{}, false
	}
	offset := dot + 1
	if offset < len(line) && line[offset] == ' ' {
		offset++
	}
	return Row{Number: number, line: line, textOffset: int32(offset)}, true
}

// Line returns the original raw line for output.
func (r Row) Line() []byte { return r.line }

// Text returns the sort key: the part of the line after the numeric
// prefix, the dot and the optional single space.
func (r Row) Text() []byte { return r.line[r.textOffset:] }

// TextOffset returns the byte index where the text part begins.
func (r Row) TextOffset() int { return int(r.textOffset) }

// CompareRows orders rows by the text part under byte-wise
// lexicographic order, then by the numeric prefix.
// It returns -1, 0 or 1.
func CompareRows(a, b Row) int {
	if c := bytes.Compare(a.line[a.textOffset:], b.line[b.textOffset:]); c != 0 {
		return c
	}
	switch {
	case a.Number < b.Number:
		return -1
	case a.Number > b.Number:
		return 1
	}
	return 0
}

const cutoffInt64 = uint64(1)<<63/10 + 1

// parseInt64 parses a decimal signed integer without allocating.
// Overflowing int64 counts as a parse failure.
func parseInt64(b []byte) (int64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	neg := false
	if b[0] == '+' || b[0] == '-' {
		neg = b[0] == '-'
		b = b[1:]
		if len(b) == 0 {
			return 0, false
		}
	}
	var n uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		if n >= cutoffInt64 {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	if neg {
		if n > 1<<63 {
			return 0, false
		}
		return -int64(n), true
	}
	if n > 1<<63-1 {
		return 0, false
	}
	return int64(n), true
}
