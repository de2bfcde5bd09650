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
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	sizeGB := 0.002 // ~2 MiB

	written, err := Generate(context.Background(), GenerateOptions{
		Output: path,
		SizeGB: sizeGB,
		Cores:  3,
		Seed:   99,
	})
	if err != nil {
		t.Fatal(err)
	}

	target := int64(sizeGB * float64(1<<30))
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != written {
		t.Errorf("reported %d bytes, file has %d", written, info.Size())
	}
	if written < target {
		t.Errorf("undershoot: %d < %d", written, target)
	}
	if written > target+512<<10 {
		t.Errorf("overshoot beyond 512 KiB: %d > %d", written, target+512<<10)
	}

	// every line must round-trip through the parser
	fh, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	r := bufio.NewReaderSize(fh, 1<<20)
	n := 0
	for {
		line, err := readLine(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		row, ok := ParseRow(line)
		if !ok {
			t.Fatalf("generated line does not parse: %q", line)
		}
		if row.Number < 0 {
			t.Fatalf("generated number out of range: %d", row.Number)
		}
		n++
	}
	if n == 0 {
		t.Fatal("no lines generated")
	}
}

func TestGenerateRejectsBadOptions(t *testing.T) {
	if _, err := Generate(context.Background(), GenerateOptions{SizeGB: 1}); err == nil {
		t.Error("missing output should fail")
	}
	if _, err := Generate(context.Background(), GenerateOptions{Output: "x", SizeGB: 0}); err == nil {
		t.Error("zero size should fail")
	}
}
