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

package variant

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/refgen/internal/table"
	"github.com/googlegenomics/refgen/internal/tally"
	"github.com/googlegenomics/refgen/lookup"
	"github.com/googlegenomics/refgen/store"
)

func TestDecide(t *testing.T) {
	testCases := []struct {
		name      string
		tally     tally.Tally
		threshold float64
		kind      Kind
		build     string
	}{
		{"empty", tally.Tally{}, 0.5, Insufficient, ""},
		{"all zero", tally.Tally{"A": 0, "B": 0}, 0.5, Insufficient, ""},
		{"exactly half is not a majority", tally.Tally{"A": 50, "B": 50}, 0.5, Ambiguous, ""},
		{"51 of 100 is a majority", tally.Tally{"A": 51, "B": 49}, 0.5, Inferred, "A"},
		{"just over half", tally.Tally{"A": 51, "B": 48}, 0.5, Inferred, "A"},
		{"single build", tally.Tally{"A": 1}, 0.5, Inferred, "A"},
		{"stricter threshold", tally.Tally{"A": 51, "B": 48}, 0.6, Ambiguous, ""},
		{"zero counts do not dilute", tally.Tally{"A": 3, "B": 0, "C": 0}, 0.5, Inferred, "A"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			kind, build, _ := Decide(tc.tally, tc.threshold)
			assert.Equal(t, tc.kind, kind)
			assert.Equal(t, tc.build, build)
		})
	}
}

func TestFilter(t *testing.T) {
	testCases := []struct {
		name     string
		ref, alt string
		kept     bool
		gvcf     bool
	}{
		{"snp", "A", "G", true, false},
		{"lower case snp", "a", "g", true, false},
		{"deletion", "AT", "A", false, false},
		{"insertion", "A", "AT", false, false},
		{"multi-allelic without sentinel", "C", "G,T", false, false},
		{"multi-allelic with indel", "C", "G,TT", false, false},
		{"reference block", "A", "<NON_REF>", true, true},
		{"reference block with star", "A", "<*>", true, true},
		{"gvcf snp", "C", "G,<NON_REF>", true, true},
		{"gvcf multi-allelic snp", "C", "G,T,<*>", true, true},
		{"gvcf indel", "AT", "<NON_REF>", false, true},
		{"gvcf indel alt", "A", "AT,<NON_REF>", false, true},
		{"sentinel reference", "<NON_REF>", "A", false, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			kept, gvcf, empty := filter([]Record{{"1", 100, tc.ref, tc.alt}})
			assert.Equal(t, tc.kept, len(kept) == 1)
			assert.Equal(t, tc.gvcf, gvcf)
			assert.False(t, empty)
		})
	}
}

func TestFilterEmptyColumns(t *testing.T) {
	_, _, empty := filter([]Record{{"1", 100, "", ""}, {"1", 200, "A", ""}})
	assert.True(t, empty)

	_, _, empty = filter([]Record{{"1", 100, "", ""}, {"1", 200, "A", "C"}})
	assert.False(t, empty)

	_, _, empty = filter(nil)
	assert.False(t, empty)
}

func TestFilterPosition(t *testing.T) {
	kept, _, _ := filter([]Record{{"1", 0, "A", "C"}, {"1", -5, "A", "C"}, {"1", 1 << 33, "A", "C"}})
	assert.Empty(t, kept)
}

// newCache writes the B1 and B2 test tables.  B1 and B2 agree at position
// 100 on chromosome 1 and disagree at 200 and 300; B2 has no chromosome 2.
func newCache(t *testing.T) *lookup.Cache {
	dir := t.TempDir()
	for _, tbl := range []*table.Table{
		table.New("B1", "1", map[uint32]byte{100: 'A', 200: 'C', 300: 'G'}),
		table.New("B2", "1", map[uint32]byte{100: 'A', 200: 'T', 300: 'T'}),
		table.New("B1", "2", map[uint32]byte{100: 'G'}),
	} {
		require.NoError(t, table.WriteFile(filepath.Join(dir, store.Key(tbl.Build, tbl.Chromosome)), tbl, false))
	}
	return lookup.New(store.NewDir(dir))
}

func quietLogger() log.FieldLogger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func newMatcher(t *testing.T, opts Options) *Matcher {
	return NewMatcher(newCache(t), []string{"B1", "B2"}, opts, quietLogger())
}

func TestMatch(t *testing.T) {
	records := []Record{
		{"chr1", 100, "A", "G"},
		{"1", 200, "c", "G"},
		{"1", 300, "G", "A,<NON_REF>"},
		{"1", 400, "G", "A"},
		{"1", 300, "GT", "G"},
		{"chrUn_gl000220", 100, "A", "G"},
		{"2", 100, "G", "C"},
	}
	res, err := newMatcher(t, Options{}).Match(context.Background(), Records(records, 3))
	require.NoError(t, err)

	assert.Equal(t, Inferred, res.Kind)
	assert.Equal(t, "B1", res.Build)
	assert.Equal(t, tally.Tally{"B1": 4, "B2": 1}, res.Tally)
	assert.InDelta(t, 0.8, res.Support, 1e-9)
	assert.Equal(t, int64(7), res.Variants)
	assert.Equal(t, int64(6), res.SNPs)
	assert.Equal(t, 3, res.Chunks)
	assert.True(t, res.GVCF)
	assert.False(t, res.Stopped)
	assert.Equal(t, map[string]int64{"chrUn_gl000220": 1}, res.Skipped)
	assert.Equal(t, []string{"B2-2.rgt"}, res.Missing)
}

func TestMatchInsufficient(t *testing.T) {
	records := []Record{{"1", 500, "A", "G"}, {"X", 100, "A", "G"}}
	res, err := newMatcher(t, Options{}).Match(context.Background(), Records(records, 10))
	require.NoError(t, err)
	assert.Equal(t, Insufficient, res.Kind)
	assert.Equal(t, int64(0), res.Tally.Total())
	assert.Equal(t, []string{"B1-X.rgt", "B2-X.rgt"}, res.Missing)
}

func TestMatchAmbiguous(t *testing.T) {
	records := []Record{{"1", 200, "C", "G"}, {"1", 300, "T", "A"}}
	res, err := newMatcher(t, Options{}).Match(context.Background(), Records(records, 10))
	require.NoError(t, err)
	assert.Equal(t, Ambiguous, res.Kind)
	assert.Empty(t, res.Build)
	assert.Equal(t, tally.Tally{"B1": 1, "B2": 1}, res.Tally)
}

func TestMatchInvalid(t *testing.T) {
	records := []Record{{"1", 300, "", ""}, {"1", 400, "", ""}, {"1", 200, "C", "G"}}
	res, err := newMatcher(t, Options{}).Match(context.Background(), Records(records, 1))
	require.NoError(t, err)
	assert.Equal(t, Invalid, res.Kind)
	assert.NotEmpty(t, res.Reason)
	assert.Equal(t, 1, res.Chunks)
}

func TestMatchSkipsLaterEmptyChunks(t *testing.T) {
	records := []Record{{"1", 200, "C", "G"}, {"1", 300, "", ""}, {"1", 300, "G", "T"}}
	res, err := newMatcher(t, Options{}).Match(context.Background(), Records(records, 1))
	require.NoError(t, err)
	assert.Equal(t, Inferred, res.Kind)
	assert.Equal(t, "B1", res.Build)
	assert.Empty(t, res.Reason)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, int64(2), res.Tally["B1"])
}

func TestStopAfterMatches(t *testing.T) {
	var records []Record
	for i := 0; i < 10; i++ {
		records = append(records, Record{"1", 200, "C", "A"})
	}
	res, err := newMatcher(t, Options{StopAfterMatches: 2}).Match(context.Background(), Records(records, 1))
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, int64(3), res.Tally.Total())
	assert.Equal(t, Inferred, res.Kind)
}

func TestStopAfterVariants(t *testing.T) {
	var records []Record
	for i := 0; i < 10; i++ {
		records = append(records, Record{"1", 200, "C", "A"})
	}
	res, err := newMatcher(t, Options{StopAfterVariants: 3}).Match(context.Background(), Records(records, 2))
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, int64(4), res.Variants)
}

func TestMatchIndependentOfChunking(t *testing.T) {
	records := []Record{
		{"1", 100, "A", "G"},
		{"1", 200, "T", "G"},
		{"1", 300, "G", "A"},
		{"2", 100, "G", "A"},
		{"1", 200, "C", "G"},
		{"1", 300, "T", "C"},
		{"1", 100, "A", "<*>"},
	}
	reversed := make([]Record, len(records))
	for i, r := range records {
		reversed[len(records)-1-i] = r
	}

	m := newMatcher(t, Options{Parallelism: 2})
	want, err := m.Match(context.Background(), Records(records, len(records)))
	require.NoError(t, err)
	for _, size := range []int{1, 2, 3, 5} {
		for _, input := range [][]Record{records, reversed} {
			got, err := m.Match(context.Background(), Records(input, size))
			require.NoError(t, err)
			assert.Equal(t, want.Tally, got.Tally, "chunk size %d", size)
			assert.Equal(t, want.Kind, got.Kind)
		}
	}
}

func TestTrace(t *testing.T) {
	records := []Record{{"1", 200, "C", "G"}, {"1", 300, "T", "A"}, {"1", 100, "A", "G"}}
	var traced []tally.Tally
	opts := Options{Trace: func(chunk int, cumulative tally.Tally) {
		assert.Equal(t, len(traced), chunk)
		traced = append(traced, cumulative)
	}}
	_, err := newMatcher(t, opts).Match(context.Background(), Records(records, 1))
	require.NoError(t, err)
	assert.Equal(t, []tally.Tally{
		{"B1": 1, "B2": 0},
		{"B1": 1, "B2": 1},
		{"B1": 2, "B2": 2},
	}, traced)
}

func TestCatalogUnavailable(t *testing.T) {
	cache := lookup.New(store.NewDir(filepath.Join(t.TempDir(), "missing")))
	m := NewMatcher(cache, []string{"B1"}, Options{}, quietLogger())
	_, err := m.Match(context.Background(), Records([]Record{{"1", 100, "A", "G"}}, 1))
	assert.True(t, errors.Is(err, lookup.ErrCatalogUnavailable), "got %v", err)
}

// deniedStore fails every storage root check with an error other than
// store.ErrUnavailable.
type deniedStore struct {
	store.Store
}

func (deniedStore) Check(context.Context) error {
	return errors.New("permission denied")
}

func TestStorageCheckErrorIsNotFatal(t *testing.T) {
	cache := lookup.New(deniedStore{store.NewDir(t.TempDir())})
	m := NewMatcher(cache, []string{"B1"}, Options{}, quietLogger())
	res, err := m.Match(context.Background(), Records([]Record{{"1", 100, "A", "G"}}, 1))
	require.NoError(t, err)
	assert.Equal(t, Insufficient, res.Kind)
	assert.Equal(t, 1, res.Chunks)
}

func TestMatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newMatcher(t, Options{}).Match(ctx, Records([]Record{{"1", 100, "A", "G"}}, 1))
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "B1 (75.0% of 4 matches)", Result{Kind: Inferred, Build: "B1", Support: 0.75, Tally: tally.Tally{"B1": 3, "B2": 1}}.String())
	assert.Contains(t, Result{Kind: Insufficient}.String(), "no informative")
	assert.Equal(t, "Kind(9)", Kind(9).String())
}
