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
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
)

// Options configure one full sort run.
type Options struct {
	Input   string
	Output  string
	TempDir string

	ChunkSizeMB  int
	SorterCount  int
	QueueCap     int
	MaxFanIn     int
	HDDMode      bool
	CompressTemp bool

	// StatsFile receives "elapsed;peak_rss_mb;avg_mb_per_s" after a
	// successful run. Empty disables it.
	StatsFile string
}

// Stats describe a finished run.
type Stats struct {
	Elapsed    time.Duration
	InputBytes int64
	Runs       int
	PeakRSSMB  float64
	AvgMBPerS  float64
}

// Sort runs the full split-then-merge pipeline: it wipes and recreates
// TempDir, splits Input into sorted runs, merges them into Output and
// always deletes TempDir before returning.
func Sort(ctx context.Context, opt Options) (stats *Stats, err error) {
	if err = validate(&opt); err != nil {
		return nil, err
	}

	info, err := os.Stat(opt.Input)
	if err != nil {
		return nil, errors.Wrapf(err, "stat input %s", opt.Input)
	}

	if err = os.RemoveAll(opt.TempDir); err != nil {
		return nil, errors.Wrapf(err, "wipe temp dir %s", opt.TempDir)
	}
	if err = os.MkdirAll(opt.TempDir, 0777); err != nil {
		return nil, errors.Wrapf(err, "create temp dir %s", opt.TempDir)
	}
	defer func() {
		if rerr := os.RemoveAll(opt.TempDir); rerr != nil {
			err = multierror.Append(err, errors.Wrapf(rerr, "remove temp dir %s", opt.TempDir)).ErrorOrNil()
		}
	}()

	monitor := newRSSMonitor()
	monitor.Start()
	defer monitor.Stop()

	start := time.Now()

	splitter := NewSplitter(SplitOptions{
		TempDir:      opt.TempDir,
		ChunkSizeMB:  opt.ChunkSizeMB,
		SorterCount:  opt.SorterCount,
		QueueCap:     opt.QueueCap,
		HDDMode:      opt.HDDMode,
		CompressTemp: opt.CompressTemp,
	})
	runs, err := splitter.Split(ctx, opt.Input)
	if err != nil {
		return nil, err
	}

	merger := NewMerger(MergeOptions{
		TempDir:      opt.TempDir,
		MaxFanIn:     opt.MaxFanIn,
		CompressTemp: opt.CompressTemp,
	})
	if err = merger.Merge(ctx, runs, opt.Output); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	monitor.Stop()

	stats = &Stats{
		Elapsed:    elapsed,
		InputBytes: info.Size(),
		Runs:       len(runs),
		PeakRSSMB:  float64(monitor.Peak()) / (1 << 20),
	}
	if sec := elapsed.Seconds(); sec > 0 {
		stats.AvgMBPerS = float64(info.Size()) / (1 << 20) / sec
	}

	if opt.StatsFile != "" {
		line := fmt.Sprintf("%.3f;%.1f;%.2f\n", stats.Elapsed.Seconds(), stats.PeakRSSMB, stats.AvgMBPerS)
		if werr := os.WriteFile(opt.StatsFile, []byte(line), 0644); werr != nil {
			return stats, errors.Wrapf(werr, "write stats file %s", opt.StatsFile)
		}
	}

	return stats, nil
}

func validate(opt *Options) error {
	if opt.Input == "" {
		return errors.New("input file required")
	}
	if opt.Output == "" {
		return errors.New("output file required")
	}
	if opt.TempDir == "" {
		return errors.New("temp dir required")
	}
	if opt.ChunkSizeMB < 0 {
		return fmt.Errorf("invalid chunk size: %d", opt.ChunkSizeMB)
	}
	if opt.QueueCap < 0 {
		return fmt.Errorf("invalid queue capacity: %d", opt.QueueCap)
	}
	if opt.MaxFanIn != 0 && opt.MaxFanIn < 2 {
		return fmt.Errorf("max fan-in must be >= 2: %d", opt.MaxFanIn)
	}
	return nil
}

// rssMonitor samples the resident set of this process while a run is
// in flight and records the peak.
type rssMonitor struct {
	proc  *process.Process
	close chan struct{}
	wg    sync.WaitGroup

	mu   sync.Mutex
	peak uint64
}

func newRSSMonitor() *rssMonitor {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &rssMonitor{proc: proc, close: make(chan struct{})}
}

func (m *rssMonitor) Start() {
	if m.proc == nil {
		return
	}
	m.wg.Add(1)
	go m.run()
}

func (m *rssMonitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	m.sample()
	for {
		select {
		case <-m.close:
			m.sample()
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *rssMonitor) sample() {
	mem, err := m.proc.MemoryInfo()
	if err != nil {
		return
	}
	m.mu.Lock()
	if mem.RSS > m.peak {
		m.peak = mem.RSS
	}
	m.mu.Unlock()
}

// Stop ends sampling. Safe to call more than once.
func (m *rssMonitor) Stop() {
	if m.proc == nil {
		return
	}
	select {
	case <-m.close:
		return
	default:
		close(m.close)
	}
	m.wg.Wait()
}

// Peak returns the highest observed resident set in bytes.
func (m *rssMonitor) Peak() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}
