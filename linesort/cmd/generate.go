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
	"os"
	"os/signal"
	"runtime"

	humanize "github.com/dustin/go-humanize"
	"github.com/linesort/linesort"
	"github.com/spf13/cobra"
)

// generateCmd represents
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "generate a test file of random numbered lines",
	Long: `generate a test file of random numbered lines

Lines have the form "N. T" with N in [0, 2^31) and T built from a small
word pool. The file overshoots the target size by at most 512 KiB.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		runtime.GOMAXPROCS(opt.NumCPUs)

		output := expandPath(getFlagString(cmd, "output"))
		sizeGB := getFlagPositiveFloat64(cmd, "size")
		cores := getFlagPositiveInt(cmd, "cores")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		written, err := linesort.Generate(ctx, linesort.GenerateOptions{
			Output: output,
			SizeGB: sizeGB,
			Cores:  cores,
		})
		checkError(err)

		if opt.Verbose {
			log.Infof("%s written to %s", humanize.IBytes(uint64(written)), output)
		}
	},
}

func init() {
	RootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringP("output", "o", "data.txt", "destination file")
	generateCmd.Flags().Float64P("size", "s", 1.0, "target size in GB")
	generateCmd.Flags().IntP("cores", "c", runtime.NumCPU(), "generator worker count")
}
