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

// Package variant infers the reference genome build of a variant file from
// the reference alleles it reports at positions where catalog builds
// disagree.
//
// Input is consumed in chunks from a Source.  Each chunk is reduced to
// single-nucleotide records, grouped by chromosome and joined against the
// lookup table of every build; the per-build match counts are summed into a
// running tally until the input is exhausted or a stop policy is satisfied.
package variant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/googlegenomics/refgen/internal/tally"
)

// Sentinels used by reference-confidence (gVCF) records for "any other
// allele".
var sentinels = map[string]bool{
	"<NON_REF>": true,
	"<*>":       true,
}

// Record is one row of a variant file.  Ref is the allele compared against
// the catalog: the REF column of a VCF, allele 2 of a BIM file.
type Record struct {
	Chromosome string
	Position   int64
	Ref        string
	Alt        string
}

// Source produces the rows of one input in bounded chunks.  Next returns
// io.EOF once the input is exhausted; a Source cannot be restarted.
type Source interface {
	Next(ctx context.Context) ([]Record, error)
}

type sliceSource struct {
	records []Record
	size    int
}

// Records returns a Source yielding records in chunks of at most size rows.
func Records(records []Record, size int) Source {
	if size < 1 {
		size = 1
	}
	return &sliceSource{records, size}
}

func (s *sliceSource) Next(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.records) == 0 {
		return nil, io.EOF
	}
	n := s.size
	if n > len(s.records) {
		n = len(s.records)
	}
	chunk := s.records[:n]
	s.records = s.records[n:]
	return chunk, nil
}

// Kind classifies a variant match.
type Kind int

const (
	// Insufficient means no position matched any build.
	Insufficient Kind = iota
	// Inferred means one build holds a majority of all matches.
	Inferred
	// Ambiguous means matches were found but no build reached a majority.
	Ambiguous
	// Invalid means the input could not be matched at all, for example
	// because its allele columns are empty.
	Invalid
)

var kindNames = map[Kind]string{
	Insufficient: "Insufficient",
	Inferred:     "Inferred",
	Ambiguous:    "Ambiguous",
	Invalid:      "Invalid",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalJSON encodes k by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Result is the outcome of matching one input.
type Result struct {
	Kind Kind `json:"kind"`
	// Build is set for Inferred results.
	Build string `json:"build,omitempty"`
	// Support is the share of all matches held by the best build.
	Support float64 `json:"support"`
	// Tally holds the match count of every build with a table for at least
	// one chromosome seen in the input.
	Tally tally.Tally `json:"tally"`

	Variants int64 `json:"variants"`
	SNPs     int64 `json:"snps"`
	Chunks   int   `json:"chunks"`
	Stopped  bool  `json:"stopped,omitempty"`

	// GVCF is set if a reference-confidence sentinel allele was seen.
	GVCF bool `json:"gvcf,omitempty"`
	// Skipped counts rows dropped because their chromosome is unknown, by
	// chromosome name.
	Skipped map[string]int64 `json:"skipped,omitempty"`
	// Missing lists the build-chromosome tables that do not exist.
	Missing []string `json:"missing,omitempty"`
	// Reason explains an Invalid result.
	Reason string `json:"reason,omitempty"`
}

func (r Result) String() string {
	switch r.Kind {
	case Inferred:
		return fmt.Sprintf("%s (%.1f%% of %d matches)", r.Build, 100*r.Support, r.Tally.Total())
	case Ambiguous:
		return fmt.Sprintf("unknown: no build has a majority of %d matches", r.Tally.Total())
	case Invalid:
		return "invalid input: " + r.Reason
	}
	return "unknown: no informative SNPs found"
}

// DefaultThreshold is the share of all matches the best build must exceed.
const DefaultThreshold = 0.5

// Decide applies the decision rule to a tally: the best build is inferred if
// its count exceeds threshold times the total, the result is Ambiguous
// otherwise and Insufficient when nothing matched.
func Decide(t tally.Tally, threshold float64) (kind Kind, build string, support float64) {
	total := t.Total()
	best, n, ok := t.Best()
	if !ok || total == 0 {
		return Insufficient, "", 0
	}
	support = float64(n) / float64(total)
	if float64(n) > threshold*float64(total) {
		return Inferred, best, support
	}
	return Ambiguous, "", support
}

type observation struct {
	position uint32
	allele   byte
}

// filter reduces rows to single-nucleotide observations.  A row is kept when
// its Ref is one base and its Alt is one base.  An ALT list carrying a gVCF
// sentinel is kept when its other alleles are all single bases; other
// multi-allelic rows are dropped.  gvcf reports whether a sentinel was seen;
// empty reports whether every row lacked a Ref or Alt value.
func filter(rows []Record) (kept []Record, gvcf, empty bool) {
	empty = len(rows) > 0
	for _, row := range rows {
		if row.Ref == "" || row.Alt == "" {
			continue
		}
		empty = false
		if sentinels[row.Ref] {
			gvcf = true
			continue
		}
		snp := len(row.Ref) == 1 && len(row.Alt) == 1
		if alts := strings.Split(row.Alt, ","); hasSentinel(alts) {
			gvcf = true
			snp = len(row.Ref) == 1
			for _, alt := range alts {
				if !sentinels[alt] && len(alt) != 1 {
					snp = false
				}
			}
		}
		if snp && row.Position > 0 && row.Position <= 1<<32-1 {
			kept = append(kept, row)
		}
	}
	return kept, gvcf, empty
}

func hasSentinel(alleles []string) bool {
	for _, a := range alleles {
		if sentinels[a] {
			return true
		}
	}
	return false
}
