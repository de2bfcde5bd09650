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

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	humanize "github.com/dustin/go-humanize"
	"github.com/linesort/linesort"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"
)

// sortCmd represents
var sortCmd = &cobra.Command{
	Use:   "sort",
	Short: "sort a huge text file of numbered lines",
	Long: `sort a huge text file of numbered lines

Lines have the form "N. T". They are ordered by T under byte-wise
comparison, then by N ascending. Blank and malformed lines are dropped.

The scratch directory is wiped and recreated on start and deleted on
end. With --hdd-mode (default) reads and writes never overlap, which
avoids disk thrash on spinning disks; turn it off for SSDs.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		runtime.GOMAXPROCS(opt.NumCPUs)
		sorts.MaxProcs = opt.NumCPUs

		cfg := getSortConfig(cmd)

		checkFiles(cfg.Input)

		if opt.Verbose {
			log.Infof("input: %s, output: %s, temp dir: %s", cfg.Input, cfg.Output, cfg.TempDir)
			log.Infof("chunk size: %d MB, sorters: %d, channels: %d, max fan-in: %d, hdd mode: %v",
				cfg.ChunkSizeMB, cfg.SorterCount, cfg.QueueCap, cfg.MaxFanIn, cfg.HDDMode)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		stats, err := linesort.Sort(ctx, cfg)
		checkError(err)

		if opt.Verbose {
			log.Infof("%s of %s sorted in %s across %d runs",
				humanize.IBytes(uint64(stats.InputBytes)), cfg.Input, stats.Elapsed, stats.Runs)
			log.Infof("peak RSS: %.1f MB, throughput: %.2f MB/s", stats.PeakRSSMB, stats.AvgMBPerS)
		}
	},
}

// getSortConfig merges flag values with an optional YAML config file;
// flags set explicitly on the command line win.
func getSortConfig(cmd *cobra.Command) linesort.Options {
	opt := linesort.Options{
		Input:        expandPath(getFlagString(cmd, "input")),
		Output:       expandPath(getFlagString(cmd, "output")),
		TempDir:      expandPath(getFlagString(cmd, "temp")),
		ChunkSizeMB:  getFlagPositiveInt(cmd, "chunk-size"),
		SorterCount:  getFlagPositiveInt(cmd, "cores"),
		QueueCap:     getFlagPositiveInt(cmd, "channels"),
		MaxFanIn:     getFlagPositiveInt(cmd, "max-fan-in"),
		HDDMode:      getFlagBool(cmd, "hdd-mode"),
		CompressTemp: getFlagBool(cmd, "compress-temp"),
		StatsFile:    getFlagString(cmd, "stats-file"),
	}

	if file := getFlagString(cmd, "config"); file != "" {
		cfg, err := loadFileConfig(file)
		checkError(err)
		flags := cmd.Flags()
		if !flags.Changed("input") && cfg.Input != "" {
			opt.Input = expandPath(cfg.Input)
		}
		if !flags.Changed("output") && cfg.Output != "" {
			opt.Output = expandPath(cfg.Output)
		}
		if !flags.Changed("temp") && cfg.TempDir != "" {
			opt.TempDir = expandPath(cfg.TempDir)
		}
		if !flags.Changed("chunk-size") && cfg.ChunkSizeMB != 0 {
			opt.ChunkSizeMB = cfg.ChunkSizeMB
		}
		if !flags.Changed("cores") && cfg.Cores != 0 {
			opt.SorterCount = cfg.Cores
		}
		if !flags.Changed("channels") && cfg.Channels != 0 {
			opt.QueueCap = cfg.Channels
		}
		if !flags.Changed("max-fan-in") && cfg.MaxFanIn != 0 {
			opt.MaxFanIn = cfg.MaxFanIn
		}
		if !flags.Changed("hdd-mode") && cfg.HDDMode != nil {
			opt.HDDMode = *cfg.HDDMode
		}
		if !flags.Changed("compress-temp") && cfg.CompressTemp != nil {
			opt.CompressTemp = *cfg.CompressTemp
		}
		if !flags.Changed("stats-file") && cfg.StatsFile != "" {
			opt.StatsFile = cfg.StatsFile
		}
	}

	if opt.ChunkSizeMB <= 0 {
		checkError(fmt.Errorf("chunk size should be greater than 0: %d", opt.ChunkSizeMB))
	}
	if opt.QueueCap <= 0 {
		checkError(fmt.Errorf("channel capacity should be greater than 0: %d", opt.QueueCap))
	}
	if opt.MaxFanIn < 2 {
		checkError(fmt.Errorf("max fan-in should be >= 2: %d", opt.MaxFanIn))
	}

	// clamp sorter count to [1, NumCPU-1]
	if max := runtime.NumCPU() - 1; opt.SorterCount > max && max >= 1 {
		opt.SorterCount = max
	}
	if opt.SorterCount < 1 {
		opt.SorterCount = 1
	}

	return opt
}

func init() {
	RootCmd.AddCommand(sortCmd)

	sortCmd.Flags().StringP("input", "i", "data.txt", "source file")
	sortCmd.Flags().StringP("output", "o", "result.txt", "destination file")
	sortCmd.Flags().StringP("temp", "t", "temp_chunks", "scratch directory, wiped and recreated on start, deleted on end")
	sortCmd.Flags().IntP("chunk-size", "m", 200, "per-chunk memory cap in MB")
	sortCmd.Flags().BoolP("hdd-mode", "H", true, "serialize reads and writes for spinning disks")
	sortCmd.Flags().IntP("cores", "c", 2, "sorter thread count, clamped to [1, cpu_count-1]")
	sortCmd.Flags().IntP("channels", "n", 2, "pipeline queue capacity")
	sortCmd.Flags().IntP("max-fan-in", "M", linesort.DefaultMaxFanIn, "max sorted runs merged in one step")
	sortCmd.Flags().BoolP("compress-temp", "z", false, "gzip sorted runs to trade CPU for temp disk space")
	sortCmd.Flags().StringP("config", "", "", "YAML config file; keys: input, output, temp_dir, chunk_size_mb, cores, channels, max_fan_in, hdd_mode, compress_temp, stats_file")
	sortCmd.Flags().StringP("stats-file", "", "last_run_stats.txt", `where to write "elapsed;peak_rss_mb;avg_mb_per_s"`)
}
