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
	"container/heap"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// DefaultMaxFanIn bounds how many runs a single merge step opens.
const DefaultMaxFanIn = 15

// how many rows between cancellation checks in the merge loop.
const mergeCancelStride = 1 << 14

// MergeOptions control the merge phase. Zero values pick the defaults.
type MergeOptions struct {
	TempDir      string
	MaxFanIn     int  // >= 2; 0 picks DefaultMaxFanIn
	CompressTemp bool // gzip intermediate runs
}

// Merger collapses a set of sorted runs into one sorted file using a
// multi-pass K-way merge with bounded fan-in. Consumed inputs are
// deleted; intermediates are named pass<P>_part<Q>.tmp inside TempDir
// and deleted after they are consumed.
type Merger struct {
	opt MergeOptions
}

// NewMerger returns a Merger. Unset options take their defaults.
func NewMerger(opt MergeOptions) *Merger {
	if opt.MaxFanIn == 0 {
		opt.MaxFanIn = DefaultMaxFanIn
	}
	if opt.MaxFanIn < 2 {
		opt.MaxFanIn = 2
	}
	return &Merger{opt: opt}
}

// Merge writes every line of every run to finalPath in non-decreasing
// row order. An empty run set yields an empty output file.
func (m *Merger) Merge(ctx context.Context, runs []string, finalPath string) error {
	pass := 1
	for len(runs) > m.opt.MaxFanIn {
		next := make([]string, 0, (len(runs)+m.opt.MaxFanIn-1)/m.opt.MaxFanIn)
		for part := 0; len(runs) > 0; part++ {
			n := m.opt.MaxFanIn
			if n > len(runs) {
				n = len(runs)
			}
			batch := runs[:n]
			runs = runs[n:]

			out := passFileName(m.opt.TempDir, pass, part)
			if err := m.mergeBatch(ctx, batch, out, m.opt.CompressTemp); err != nil {
				return err
			}
			if err := removeFiles(batch); err != nil {
				return err
			}
			next = append(next, out)
		}
		runs = next
		pass++
	}

	if err := m.mergeBatch(ctx, runs, finalPath, false); err != nil {
		return err
	}
	if err := removeFiles(runs); err != nil {
		return err
	}
	return m.sweepIntermediates()
}

// mergeBatch merges one batch of sorted runs into out. Every opened
// stream is released on both success and error paths; a failed merge
// deletes the partial output.
func (m *Merger) mergeBatch(ctx context.Context, runs []string, out string, gzipped bool) (err error) {
	streams := make([]*ChunkStream, 0, len(runs))
	defer func() {
		merr := multierror.Append(nil, err)
		for _, cs := range streams {
			merr = multierror.Append(merr, cs.Close())
		}
		err = merr.ErrorOrNil()
	}()

	for _, run := range runs {
		var cs *ChunkStream
		if cs, err = NewChunkStream(run, mergeReadBufSize); err != nil {
			return err
		}
		streams = append(streams, cs)
	}

	w, gw, fh, err := outStream(out, mergeWriteBufSize, gzipped)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			fh.Close()
			os.Remove(out)
		}
	}()

	entries := make([]*streamEntry, 0, len(streams))
	rows := streamHeap{entries: &entries}
	for i, cs := range streams {
		if cs.HasData() {
			heap.Push(rows, &streamEntry{idx: i, stream: cs})
		}
	}

	var n int64
	for len(entries) > 0 {
		if n%mergeCancelStride == 0 {
			if err = ctx.Err(); err != nil {
				return err
			}
		}
		n++

		top := heap.Pop(rows).(*streamEntry)
		if _, err = w.Write(top.stream.Row().Line()); err != nil {
			return errors.Wrapf(err, "write %s", out)
		}
		if err = w.WriteByte('\n'); err != nil {
			return errors.Wrapf(err, "write %s", out)
		}
		if err = top.stream.Next(); err != nil {
			return err
		}
		if top.stream.HasData() {
			heap.Push(rows, top)
		}
	}

	if err = w.Flush(); err != nil {
		return errors.Wrapf(err, "flush %s", out)
	}
	if gw != nil {
		if err = gw.Close(); err != nil {
			return errors.Wrapf(err, "flush %s", out)
		}
	}
	if err = fh.Close(); err != nil {
		return errors.Wrapf(err, "close %s", out)
	}
	return nil
}

// sweepIntermediates deletes leftover pass files from TempDir.
func (m *Merger) sweepIntermediates() error {
	matches, err := filepath.Glob(filepath.Join(m.opt.TempDir, "pass*_*.tmp"))
	if err != nil {
		return err
	}
	return removeFiles(matches)
}

func removeFiles(files []string) error {
	var merr *multierror.Error
	for _, file := range files {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			merr = multierror.Append(merr, errors.Wrapf(err, "remove %s", file))
		}
	}
	return merr.ErrorOrNil()
}

func passFileName(dir string, pass, part int) string {
	return filepath.Join(dir, fmt.Sprintf("pass%d_part%d.tmp", pass, part))
}

type streamEntry struct {
	idx    int // run index within the batch, tie-break only
	stream *ChunkStream
}

type streamHeap struct {
	entries *[]*streamEntry
}

func (h streamHeap) Len() int { return len(*(h.entries)) }

func (h streamHeap) Less(i, j int) bool {
	a, b := (*(h.entries))[i], (*(h.entries))[j]
	if c := CompareRows(a.stream.Row(), b.stream.Row()); c != 0 {
		return c < 0
	}
	return a.idx < b.idx
}

func (h streamHeap) Swap(i, j int) {
	(*(h.entries))[i], (*(h.entries))[j] = (*(h.entries))[j], (*(h.entries))[i]
}

func (h streamHeap) Push(x interface{}) {
	*(h.entries) = append(*(h.entries), x.(*streamEntry))
}

func (h streamHeap) Pop() interface{} {
	n := len(*(h.entries))
	x := (*(h.entries))[n-1]
	*(h.entries) = (*(h.entries))[:n-1]
	return x
}
