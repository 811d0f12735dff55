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

// Package tally accumulates per-build match counts.
package tally

import "sort"

// Count is the number of matching positions observed for one build in one
// unit of work (typically one chromosome group of one chunk).
type Count struct {
	Build   string `json:"build"`
	Matches int64  `json:"matches"`
}

// Tally maps build names to their accumulated match counts.  It is only ever
// grown by Add and Merge; counts are never decremented.
type Tally map[string]int64

// Gather sums a sequence of per-build count lists into a new Tally.  Repeated
// builds, within one list or across lists, are summed, so the result does not
// depend on the order of the lists or of the counts inside them.
func Gather(lists ...[]Count) Tally {
	t := make(Tally)
	for _, list := range lists {
		t.Add(list...)
	}
	return t
}

// Add folds counts into t.
func (t Tally) Add(counts ...Count) {
	for _, c := range counts {
		t[c.Build] += c.Matches
	}
}

// Merge folds every entry of other into t.
func (t Tally) Merge(other Tally) {
	for build, n := range other {
		t[build] += n
	}
}

// Total returns the sum of all counts.
func (t Tally) Total() int64 {
	var total int64
	for _, n := range t {
		total += n
	}
	return total
}

// Best returns the build with the highest count.  Ties are resolved by name
// so the answer is stable across runs.  ok is false for an empty tally.
func (t Tally) Best() (build string, matches int64, ok bool) {
	for _, name := range t.Builds() {
		if n := t[name]; !ok || n > matches {
			build, matches, ok = name, n, true
		}
	}
	return build, matches, ok
}

// Builds returns the names in t in lexical order.
func (t Tally) Builds() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of t.
func (t Tally) Clone() Tally {
	c := make(Tally, len(t))
	c.Merge(t)
	return c
}
