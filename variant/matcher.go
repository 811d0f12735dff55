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
	"runtime"
	"sort"
	"sync"

	"github.com/googlegenomics/refgen/internal/chrom"
	"github.com/googlegenomics/refgen/internal/tally"
	"github.com/googlegenomics/refgen/lookup"
	"github.com/googlegenomics/refgen/store"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Options control when a match stops and how its tally is decided.
type Options struct {
	// StopAfterMatches ends the match once the summed tally exceeds it.
	// Zero disables the policy.
	StopAfterMatches int64
	// StopAfterVariants ends the match once at least this many rows have
	// been consumed.  The check is made after each chunk.  Zero disables
	// the policy.
	StopAfterVariants int64
	// Threshold is the share of all matches the best build must exceed.
	// Zero means DefaultThreshold.
	Threshold float64
	// Parallelism bounds the number of concurrent table joins.  Zero means
	// runtime.NumCPU().
	Parallelism int
	// Trace, if set, is called after every chunk with the chunk index and
	// a copy of the cumulative tally.
	Trace func(chunk int, cumulative tally.Tally)
}

// Matcher streams variant records against the lookup tables of a set of
// builds.  A Matcher may be used for many inputs, concurrently.
type Matcher struct {
	cache  *lookup.Cache
	builds []string
	opts   Options
	log    log.FieldLogger
}

// NewMatcher returns a matcher comparing records against the tables of
// builds.  A nil logger means the standard logrus logger.
func NewMatcher(cache *lookup.Cache, builds []string, opts Options, logger log.FieldLogger) *Matcher {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Matcher{cache, append([]string(nil), builds...), opts, logger}
}

// Match consumes src until it is exhausted or a stop policy is satisfied and
// returns the decided result.  Input whose allele columns are empty is
// Invalid; once a chunk with allele values has been seen, later chunks with
// empty columns are skipped instead.  The only errors returned are those
// wrapping lookup.ErrCatalogUnavailable, cancellation of ctx (observed
// between chunks) and read errors from src; every other condition is a
// Result.
func (m *Matcher) Match(ctx context.Context, src Source) (Result, error) {
	if err := m.cache.Check(ctx); errors.Is(err, lookup.ErrCatalogUnavailable) {
		return Result{}, err
	} else if err != nil {
		m.log.WithError(err).Warn("table storage check failed; tables are checked again on load")
	}

	run := &run{
		Matcher: m,
		result: Result{
			Tally:   make(tally.Tally),
			Skipped: make(map[string]int64),
		},
		missing: make(map[string]bool),
	}
	res := &run.result
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		rows, err := src.Next(ctx)
		if err == io.EOF {
			break
		} else if err != nil {
			return Result{}, err
		}

		res.Chunks++
		res.Variants += int64(len(rows))
		invalid, err := run.chunk(ctx, rows)
		if err != nil {
			return Result{}, err
		}
		if invalid {
			if !run.usable {
				res.Kind = Invalid
				res.Reason = "reference and alternate allele columns are empty"
				m.log.WithField("chunk", res.Chunks-1).Warn(res.Reason)
				return *res, nil
			}
			m.log.WithField("chunk", res.Chunks-1).Warn("skipping chunk with empty allele columns")
		}
		if m.opts.Trace != nil {
			m.opts.Trace(res.Chunks-1, res.Tally.Clone())
		}
		m.log.WithFields(log.Fields{
			"chunk":    res.Chunks - 1,
			"variants": res.Variants,
			"matches":  res.Tally.Total(),
		}).Debug("chunk matched")

		if m.opts.StopAfterMatches > 0 && res.Tally.Total() > m.opts.StopAfterMatches {
			res.Stopped = true
			break
		}
		if m.opts.StopAfterVariants > 0 && res.Variants >= m.opts.StopAfterVariants {
			res.Stopped = true
			break
		}
	}

	if len(res.Skipped) == 0 {
		res.Skipped = nil
	}
	sort.Strings(res.Missing)
	res.Kind, res.Build, res.Support = Decide(res.Tally, m.opts.Threshold)
	return *res, nil
}

// run holds the state of one Match call.  usable is set once a chunk with
// allele values has been seen.
type run struct {
	*Matcher
	result  Result
	missing map[string]bool
	usable  bool
}

// chunk filters, groups and joins one chunk and merges its counts into the
// running tally.  It reports whether the chunk carries no usable alleles.
func (r *run) chunk(ctx context.Context, rows []Record) (bool, error) {
	kept, gvcf, empty := filter(rows)
	if empty {
		return true, nil
	}
	if len(rows) > 0 {
		r.usable = true
	}
	if gvcf && !r.result.GVCF {
		r.result.GVCF = true
		r.log.Info("reference-confidence alleles found; treating input as gVCF")
	}
	r.result.SNPs += int64(len(kept))

	groups := make(map[string][]observation)
	for _, rec := range kept {
		name, ok := chrom.Normalize(rec.Chromosome)
		if !ok {
			if r.result.Skipped[rec.Chromosome] == 0 {
				r.log.WithField("chromosome", rec.Chromosome).Warn("skipping records on unknown chromosome")
			}
			r.result.Skipped[rec.Chromosome]++
			continue
		}
		groups[name] = append(groups[name], observation{uint32(rec.Position), rec.Ref[0]})
	}

	type job struct {
		build, chromosome string
		obs               []observation
	}
	var jobs []job
	for name, obs := range groups {
		for _, build := range r.builds {
			jobs = append(jobs, job{build, name, obs})
		}
	}

	counts := make([]tally.Count, len(jobs))
	var (
		mu      sync.Mutex
		missing []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallelism)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			t, err := r.cache.Table(gctx, j.build, j.chromosome)
			switch {
			case errors.Is(err, store.ErrNotFound):
				mu.Lock()
				missing = append(missing, store.Key(j.build, j.chromosome))
				mu.Unlock()
				return nil
			case errors.Is(err, lookup.ErrCatalogUnavailable):
				return err
			case err != nil:
				r.log.WithFields(log.Fields{
					"build":      j.build,
					"chromosome": j.chromosome,
				}).Warnf("skipping table: %v", err)
				return nil
			}
			var n int64
			for _, o := range j.obs {
				if a, ok := t.Lookup(o.position); ok && a == upper(o.allele) {
					n++
				}
			}
			counts[i] = tally.Count{Build: j.build, Matches: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	for _, key := range missing {
		if !r.missing[key] {
			r.missing[key] = true
			r.result.Missing = append(r.result.Missing, key)
			r.log.WithField("table", key).Warn("lookup table not found; skipping")
		}
	}
	for _, c := range counts {
		if c.Build != "" {
			r.result.Tally.Add(c)
		}
	}
	return false, nil
}

func upper(b byte) byte {
	if 'a' <= b && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
