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
	"math/rand"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// batches stay well under the permitted 512 KiB overshoot.
const generateBatchSize = 256 << 10

var generateWords = []string{
	"Apple", "Banana", "Cherry", "Mango", "Peach", "Plum", "Pear",
	"Orange", "Lemon", "Grape", "Melon", "Kiwi", "Fig", "Date",
	"is", "the", "best", "yellow", "green", "red", "ripe", "sweet",
	"sour", "something", "juicy", "fresh", "golden", "wild",
}

// GenerateOptions configure the synthetic test-file generator.
type GenerateOptions struct {
	Output string
	SizeGB float64
	Cores  int   // 0: NumCPU
	Seed   int64 // 0: time-based
}

// Generate writes random "N. T" lines to Output until the file reaches
// SizeGB, overshooting by at most one batch (well under 512 KiB).
// It returns the number of bytes written.
func Generate(ctx context.Context, opt GenerateOptions) (int64, error) {
	if opt.Output == "" {
		return 0, errors.New("output file required")
	}
	if opt.SizeGB <= 0 {
		return 0, errors.Errorf("size must be > 0: %f", opt.SizeGB)
	}
	cores := opt.Cores
	if cores <= 0 {
		cores = runtime.NumCPU()
	}
	seed := opt.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	target := int64(opt.SizeGB * float64(1<<30))

	fh, err := os.Create(opt.Output)
	if err != nil {
		return 0, errors.Wrapf(err, "create %s", opt.Output)
	}

	gctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(gctx)

	batches := make(chan []byte, cores)
	for i := 0; i < cores; i++ {
		rng := rand.New(rand.NewSource(seed + int64(i)))
		g.Go(func() error {
			for {
				batch := makeBatch(rng)
				select {
				case batches <- batch:
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	var written int64
	w := bufio.NewWriterSize(fh, chunkWriteBufSize)
loop:
	for written < target {
		var batch []byte
		select {
		case batch = <-batches:
		case <-gctx.Done():
			break loop
		}
		n, werr := w.Write(batch)
		written += int64(n)
		if werr != nil {
			err = errors.Wrapf(werr, "write %s", opt.Output)
			break loop
		}
	}
	cancel()

	if gerr := g.Wait(); err == nil {
		err = gerr
	}
	if ferr := w.Flush(); err == nil && ferr != nil {
		err = errors.Wrapf(ferr, "flush %s", opt.Output)
	}
	if cerr := fh.Close(); err == nil && cerr != nil {
		err = errors.Wrapf(cerr, "close %s", opt.Output)
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		os.Remove(opt.Output)
		return 0, err
	}
	return written, nil
}

// makeBatch builds one batch of random lines "N. T": N in [0, 2^31),
// T one to five words from the pool.
func makeBatch(rng *rand.Rand) []byte {
	batch := make([]byte, 0, generateBatchSize+256)
	for len(batch) < generateBatchSize {
		batch = strconv.AppendInt(batch, int64(rng.Int31()), 10)
		batch = append(batch, '.', ' ')
		for i, n := 0, rng.Intn(5)+1; i < n; i++ {
			if i > 0 {
				batch = append(batch, ' ')
			}
			batch = append(batch, generateWords[rng.Intn(len(generateWords))]...)
		}
		batch = append(batch, '\n')
	}
	return batch
}
