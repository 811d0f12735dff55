// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package trace records how the match tally of a variant input evolves chunk
// by chunk and exports it as a NumPy array.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/kshedden/gonpy"

	"github.com/googlegenomics/refgen/internal/tally"
)

// Recorder collects one row of cumulative match counts per chunk.  Columns
// follow the build order given to NewRecorder.  A Recorder is not safe for
// concurrent use.
type Recorder struct {
	builds []string
	rows   [][]int64
}

// NewRecorder returns an empty recorder with one column per build.
func NewRecorder(builds []string) *Recorder {
	return &Recorder{builds: append([]string(nil), builds...)}
}

// Record appends the cumulative tally after chunk.  Its signature matches
// variant.Options.Trace.
func (r *Recorder) Record(chunk int, cumulative tally.Tally) {
	row := make([]int64, len(r.builds))
	for i, build := range r.builds {
		row[i] = cumulative[build]
	}
	r.rows = append(r.rows, row)
}

// Builds returns the column names.
func (r *Recorder) Builds() []string {
	return r.builds
}

// Len returns the number of recorded chunks.
func (r *Recorder) Len() int {
	return len(r.rows)
}

// WriteTo writes the recorded rows to w as an int64 .npy matrix of shape
// (chunks, builds).
func (r *Recorder) WriteTo(w io.Writer) error {
	data := make([]int64, 0, len(r.rows)*len(r.builds))
	for _, row := range r.rows {
		data = append(data, row...)
	}
	bufw := bufio.NewWriter(w)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return fmt.Errorf("initializing npy writer: %v", err)
	}
	npw.Shape = []int{len(r.rows), len(r.builds)}
	if err := npw.WriteInt64(data); err != nil {
		return fmt.Errorf("writing npy data: %v", err)
	}
	return bufw.Flush()
}

// WriteFile writes the recorded rows to the named file.
func (r *Recorder) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
