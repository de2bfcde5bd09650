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
	"sort"
	"strings"
	"testing"
)

func TestMergeCascade(t *testing.T) {
	dir := t.TempDir()

	// four single-line runs, fan-in 2 forces one intermediate pass
	inputs := map[string]string{
		"chunk_000.tmp": "4. D\n",
		"chunk_001.tmp": "1. A\n",
		"chunk_002.tmp": "3. C\n",
		"chunk_003.tmp": "2. B\n",
	}
	runs := make([]string, 0, len(inputs))
	for name, content := range inputs {
		path := filepath.Join(dir, name)
		writeFile(t, path, content)
		runs = append(runs, path)
	}
	sort.Strings(runs)

	out := filepath.Join(dir, "result.txt")
	merger := NewMerger(MergeOptions{TempDir: dir, MaxFanIn: 2})
	if err := merger.Merge(context.Background(), runs, out); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "1. A\n2. B\n3. C\n4. D\n" {
		t.Errorf("merged output = %q", data)
	}

	// inputs and intermediates all deleted
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "result.txt" {
			t.Errorf("leftover file after merge: %s", e.Name())
		}
	}
}

func TestMergeEmptyRunSet(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "result.txt")

	merger := NewMerger(MergeOptions{TempDir: dir})
	if err := merger.Merge(context.Background(), nil, out); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("empty run set should produce an empty file, got %d bytes", len(data))
	}
}

func TestMergeManyRuns(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(7))

	var all []string
	runs := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		lines := make([]string, rng.Intn(50)+1)
		for j := range lines {
			lines[j] = fmt.Sprintf("%d. word%02d tail", rng.Int31n(100), rng.Int31n(30))
		}
		rows := make(RowSlice, 0, len(lines))
		for _, line := range lines {
			row, ok := ParseRow([]byte(line))
			if !ok {
				t.Fatalf("bad fixture %q", line)
			}
			rows = append(rows, row)
		}
		sort.Sort(rows)

		var sb strings.Builder
		for _, row := range rows {
			sb.Write(row.Line())
			sb.WriteByte('\n')
		}
		path := filepath.Join(dir, fmt.Sprintf("chunk_%03d.tmp", i))
		writeFile(t, path, sb.String())
		runs = append(runs, path)
		all = append(all, lines...)
	}

	out := filepath.Join(dir, "result.txt")
	merger := NewMerger(MergeOptions{TempDir: dir, MaxFanIn: 3})
	if err := merger.Merge(context.Background(), runs, out); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(got) != len(all) {
		t.Fatalf("conservation broken: %d lines out, %d in", len(got), len(all))
	}

	var prev Row
	var has bool
	counts := make(map[string]int)
	for _, line := range got {
		row, ok := ParseRow([]byte(line))
		if !ok {
			t.Fatalf("unparsable output line %q", line)
		}
		if has && CompareRows(prev, row) > 0 {
			t.Fatalf("output not sorted: %q > %q", prev.Line(), row.Line())
		}
		prev, has = row, true
		counts[line]++
	}
	for _, line := range all {
		counts[line]--
	}
	for line, c := range counts {
		if c != 0 {
			t.Errorf("multiset mismatch for %q: %d", line, c)
		}
	}

	if matches, _ := filepath.Glob(filepath.Join(dir, "pass*_*.tmp")); len(matches) != 0 {
		t.Errorf("intermediates left behind: %v", matches)
	}
}

func TestMergeMissingRun(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "result.txt")

	merger := NewMerger(MergeOptions{TempDir: dir})
	err := merger.Merge(context.Background(), []string{filepath.Join(dir, "nope.tmp")}, out)
	if err == nil {
		t.Error("missing run should fail the merge")
	}
}

func TestMergeCanceled(t *testing.T) {
	dir := t.TempDir()
	run := filepath.Join(dir, "chunk_000.tmp")
	writeFile(t, run, "1. a\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	merger := NewMerger(MergeOptions{TempDir: dir})
	if err := merger.Merge(ctx, []string{run}, filepath.Join(dir, "result.txt")); err == nil {
		t.Error("canceled context should fail the merge")
	}
}
