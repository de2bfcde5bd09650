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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the sort flags; values from a --config file are
// used for every flag the user did not set explicitly.
type fileConfig struct {
	Input        string `yaml:"input"`
	Output       string `yaml:"output"`
	TempDir      string `yaml:"temp_dir"`
	ChunkSizeMB  int    `yaml:"chunk_size_mb"`
	Cores        int    `yaml:"cores"`
	Channels     int    `yaml:"channels"`
	MaxFanIn     int    `yaml:"max_fan_in"`
	HDDMode      *bool  `yaml:"hdd_mode"`
	CompressTemp *bool  `yaml:"compress_temp"`
	StatsFile    string `yaml:"stats_file"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(expandPath(path))
	if err != nil {
		return nil, fmt.Errorf("fail to read config %s: %s", path, err)
	}
	cfg := &fileConfig{}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("fail to parse config %s: %s", path, err)
	}
	return cfg, nil
}
