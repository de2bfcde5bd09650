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
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runMultiset counts the parsable lines of a set of run files.
func runMultiset(t *testing.T, files []string) map[string]int {
	t.Helper()
	counts := make(map[string]int)
	for _, file := range files {
		s, err := NewChunkStream(file, 1<<16)
		if err != nil {
			t.Fatal(err)
		}
		for s.HasData() {
			counts[string(s.Row().Line())]++
			if err = s.Next(); err != nil {
				t.Fatal(err)
			}
		}
		s.Close()
	}
	return counts
}

// checkRunSorted asserts consecutive rows of a run file are non-decreasing.
func checkRunSorted(t *testing.T, file string) {
	t.Helper()
	s, err := NewChunkStream(file, 1<<16)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var prev Row
	var has bool
	for s.HasData() {
		cur := s.Row()
		if has && CompareRows(prev, cur) > 0 {
			t.Fatalf("%s not sorted: %q > %q", file, prev.Line(), cur.Line())
		}
		prev, has = cur, true
		if err = s.Next(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSplitSingleChunk(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	writeFile(t, input, "InvalidLine\n1. First\n\n123 NoDot\n2. Second\n")

	tempDir := filepath.Join(dir, "temp")
	if err := os.MkdirAll(tempDir, 0777); err != nil {
		t.Fatal(err)
	}

	splitter := NewSplitter(SplitOptions{TempDir: tempDir, ChunkSizeMB: 1})
	runs, err := splitter.Split(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if filepath.Base(runs[0]) != "chunk_000.tmp" {
		t.Errorf("run name = %s, want chunk_000.tmp", filepath.Base(runs[0]))
	}

	data, err := os.ReadFile(runs[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "1. First\n2. Second\n" {
		t.Errorf("run content = %q", data)
	}
}

func TestSplitManyChunks(t *testing.T) {
	for _, hdd := range []bool{true, false} {
		t.Run(fmt.Sprintf("hdd=%v", hdd), func(t *testing.T) {
			dir := t.TempDir()
			input := filepath.Join(dir, "input.txt")

			// ~2.5 MB of long lines to force several 1 MB chunks
			rng := rand.New(rand.NewSource(42))
			var sb strings.Builder
			padding := strings.Repeat("x", 300)
			n := 8000
			for i := 0; i < n; i++ {
				fmt.Fprintf(&sb, "%d. %s %d\n", rng.Int31(), padding, rng.Int31n(1000))
			}
			writeFile(t, input, sb.String())

			tempDir := filepath.Join(dir, "temp")
			if err := os.MkdirAll(tempDir, 0777); err != nil {
				t.Fatal(err)
			}

			splitter := NewSplitter(SplitOptions{
				TempDir:     tempDir,
				ChunkSizeMB: 1,
				SorterCount: 3,
				QueueCap:    2,
				HDDMode:     hdd,
			})
			runs, err := splitter.Split(context.Background(), input)
			if err != nil {
				t.Fatal(err)
			}
			if len(runs) < 2 {
				t.Fatalf("got %d runs, want several", len(runs))
			}

			for i, run := range runs {
				want := fmt.Sprintf("chunk_%03d.tmp", i)
				if filepath.Base(run) != want {
					t.Errorf("run %d = %s, want %s", i, filepath.Base(run), want)
				}
				checkRunSorted(t, run)
			}

			counts := runMultiset(t, runs)
			total := 0
			for _, c := range counts {
				total += c
			}
			if total != n {
				t.Errorf("conservation broken: %d rows out, %d in", total, n)
			}
		})
	}
}

func TestSplitEmptyInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	writeFile(t, input, "")

	splitter := NewSplitter(SplitOptions{TempDir: dir, ChunkSizeMB: 1})
	runs, err := splitter.Split(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("got %d runs for empty input, want 0", len(runs))
	}
}

func TestSplitMissingInput(t *testing.T) {
	dir := t.TempDir()
	splitter := NewSplitter(SplitOptions{TempDir: dir, ChunkSizeMB: 1})
	if _, err := splitter.Split(context.Background(), filepath.Join(dir, "nope.txt")); err == nil {
		t.Error("missing input should fail")
	}
}

func TestSplitCanceled(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	writeFile(t, input, "1. a\n2. b\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	splitter := NewSplitter(SplitOptions{TempDir: dir, ChunkSizeMB: 1})
	if _, err := splitter.Split(ctx, input); err == nil {
		t.Error("canceled context should fail the split")
	}
}

func TestDefaultParameters(t *testing.T) {
	if got := DefaultQueueCap(200); got != 2 {
		t.Errorf("DefaultQueueCap(200) = %d, want 2", got)
	}
	if got := DefaultQueueCap(100); got != 4 {
		t.Errorf("DefaultQueueCap(100) = %d, want 4", got)
	}
	if got := DefaultSorterCount(200); got != 4 {
		t.Errorf("DefaultSorterCount(200) = %d, want 4", got)
	}
	if got := DefaultSorterCount(100); got < 1 {
		t.Errorf("DefaultSorterCount(100) = %d, want >= 1", got)
	}
}
