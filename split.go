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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/twotwotwo/sorts"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	inputReadBufSize  = 1 << 20
	chunkWriteBufSize = 4 << 20
	mergeReadBufSize  = 4 << 20
	mergeWriteBufSize = 16 << 20

	// per-row heap cost on top of the line bytes: slice header,
	// number, offset, allocator slack.
	rowOverhead = 48

	// expected bytes per input line, used to pre-size row lists.
	approxBytesPerRow = 50

	// permit count in SSD mode, effectively unbounded.
	ssdPermits = 100
)

// Chunk is one reader-bounded batch of rows on its way through the
// split pipeline. The index is assigned in read order and names the
// run file on disk.
type Chunk struct {
	Index int
	Rows  RowSlice
}

// SplitOptions control the split phase. Zero values pick the defaults.
type SplitOptions struct {
	TempDir      string
	ChunkSizeMB  int
	SorterCount  int  // 0: 4 when ChunkSizeMB >= 200, else max(1, NumCPU-2)
	QueueCap     int  // 0: 2 when ChunkSizeMB >= 200, else 4
	HDDMode      bool // single I/O permit, reads and writes never overlap
	CompressTemp bool // gzip run files
}

func (o *SplitOptions) fill() {
	if o.ChunkSizeMB <= 0 {
		o.ChunkSizeMB = 200
	}
	if o.QueueCap <= 0 {
		o.QueueCap = DefaultQueueCap(o.ChunkSizeMB)
	}
	if o.SorterCount <= 0 {
		o.SorterCount = DefaultSorterCount(o.ChunkSizeMB)
	}
}

// DefaultQueueCap returns the default capacity of the two pipeline
// queues for a given chunk size.
func DefaultQueueCap(chunkSizeMB int) int {
	if chunkSizeMB >= 200 {
		return 2
	}
	return 4
}

// DefaultSorterCount returns the default number of sorter workers for
// a given chunk size.
func DefaultSorterCount(chunkSizeMB int) int {
	if chunkSizeMB >= 200 {
		return 4
	}
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	return n
}

// Splitter carves an input file into sorted run files.
//
// Three roles run concurrently: one reader feeding a bounded sort
// queue, SorterCount sorters feeding a bounded write queue, and one
// writer. Reader and writer share an I/O permit; with a single permit
// (HDD mode) reads and writes never overlap, which keeps head motion
// sequential on spinning disks.
//
// Peak heap held in row lists stays within about
// ChunkSizeMB * (QueueCap*2 + SorterCount + 1) MB.
type Splitter struct {
	opt     SplitOptions
	permits *semaphore.Weighted
}

// NewSplitter returns a Splitter. Unset options take their defaults.
func NewSplitter(opt SplitOptions) *Splitter {
	opt.fill()
	n := int64(ssdPermits)
	if opt.HDDMode {
		n = 1
	}
	return &Splitter{opt: opt, permits: semaphore.NewWeighted(n)}
}

// Split reads input and writes sorted run files into TempDir.
// The returned paths are sorted by file name. Blank and unparsable
// lines are dropped. Any stage failure cancels the others and is
// returned after best-effort cleanup.
func (s *Splitter) Split(ctx context.Context, input string) ([]string, error) {
	sortQueue := make(chan *Chunk, s.opt.QueueCap)
	writeQueue := make(chan *Chunk, s.opt.QueueCap)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(sortQueue)
		return s.read(ctx, input, sortQueue)
	})

	var sorters sync.WaitGroup
	sorters.Add(s.opt.SorterCount)
	for i := 0; i < s.opt.SorterCount; i++ {
		g.Go(func() error {
			defer sorters.Done()
			return s.sortChunks(ctx, sortQueue, writeQueue)
		})
	}
	g.Go(func() error {
		sorters.Wait()
		close(writeQueue)
		return nil
	})

	var runs []string
	g.Go(func() error {
		var err error
		runs, err = s.write(ctx, writeQueue)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(runs)
	return runs, nil
}

// read is the single producer of the sort queue. It holds the I/O
// permit while reading and hands it over around each queue push so the
// writer can interleave.
func (s *Splitter) read(ctx context.Context, input string, sortQueue chan<- *Chunk) error {
	fh, err := os.Open(input)
	if err != nil {
		return errors.Wrapf(err, "open input %s", input)
	}
	defer fh.Close()
	fadviseSequential(fh)
	r := bufio.NewReaderSize(fh, inputReadBufSize)

	if err = s.permits.Acquire(ctx, 1); err != nil {
		return err
	}
	holding := true
	defer func() {
		if holding {
			s.permits.Release(1)
		}
	}()

	limit := int64(s.opt.ChunkSizeMB) << 20
	capHint := int(limit / approxBytesPerRow)
	rows := make(RowSlice, 0, capHint)
	var estimate int64
	var index int

	flush := func() error {
		chunk := &Chunk{Index: index, Rows: rows}
		index++
		s.permits.Release(1)
		holding = false
		select {
		case sortQueue <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := s.permits.Acquire(ctx, 1); err != nil {
			return err
		}
		holding = true
		rows = make(RowSlice, 0, capHint)
		estimate = 0
		return nil
	}

	for {
		line, err := readLine(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "read input %s", input)
		}
		row, ok := ParseRow(line)
		if !ok {
			continue
		}
		rows = append(rows, row)
		estimate += int64(len(line)) + rowOverhead
		if estimate >= limit {
			if err = flush(); err != nil {
				return err
			}
		}
	}
	if len(rows) > 0 {
		return flush()
	}
	return nil
}

// sortChunks consumes chunks from the sort queue, sorts the row list
// in place and forwards it to the write queue.
func (s *Splitter) sortChunks(ctx context.Context, in <-chan *Chunk, out chan<- *Chunk) error {
	for {
		select {
		case chunk, ok := <-in:
			if !ok {
				return nil
			}
			sorts.Quicksort(chunk.Rows)
			select {
			case out <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// write is the single consumer of the write queue.
func (s *Splitter) write(ctx context.Context, in <-chan *Chunk) ([]string, error) {
	runs := make([]string, 0, 16)
	for {
		var chunk *Chunk
		var ok bool
		select {
		case chunk, ok = <-in:
			if !ok {
				return runs, nil
			}
		case <-ctx.Done():
			return runs, ctx.Err()
		}

		run := chunkFileName(s.opt.TempDir, chunk.Index)
		if err := s.writeChunk(ctx, chunk, run); err != nil {
			return runs, err
		}
		runs = append(runs, run)
	}
}

func (s *Splitter) writeChunk(ctx context.Context, chunk *Chunk, run string) error {
	if err := s.permits.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.permits.Release(1)

	w, gw, fh, err := outStream(run, chunkWriteBufSize, s.opt.CompressTemp)
	if err != nil {
		return err
	}
	for _, row := range chunk.Rows {
		if _, err = w.Write(row.Line()); err != nil {
			break
		}
		if err = w.WriteByte('\n'); err != nil {
			break
		}
	}
	if err == nil {
		err = w.Flush()
	}
	if err == nil && gw != nil {
		err = gw.Close()
	}
	if cerr := fh.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(run)
		return errors.Wrapf(err, "write run %s", run)
	}
	chunk.Rows = nil
	return nil
}

func chunkFileName(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("chunk_%03d.tmp", i))
}
