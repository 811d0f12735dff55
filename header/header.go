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

// Package header infers the reference genome build of a file from the contig
// dictionary declared in its header.
//
// Matching is by contig length rather than name: lengths are a stable
// fingerprint of an assembly whatever naming convention a file uses.
package header

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/googlegenomics/refgen/catalog"
)

// Kind classifies a header match.
type Kind int

const (
	// NoMatch means no catalog build shares a contig length with the header.
	NoMatch Kind = iota
	// Matched means exactly one build family matched.
	Matched
	// Inconsistent means the header mixes contigs of unrelated builds.
	Inconsistent
)

var kindNames = map[Kind]string{
	NoMatch:      "NoMatch",
	Matched:      "Matched",
	Inconsistent: "Inconsistent",
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

// Candidate is a major release sharing at least one contig length with the
// header.
type Candidate struct {
	Build   string `json:"build"`
	Matches int    `json:"matches"`
}

// Result is the outcome of matching one header.
type Result struct {
	Kind Kind `json:"kind"`

	// Build is the inferred major release, Species its species.
	Build   string `json:"build,omitempty"`
	Species string `json:"species,omitempty"`

	// Flavor and Override are set when a flavor or an override of Build
	// matched.  Label is the most specific name of the result: the override,
	// else the flavor, else the build.
	Flavor   string `json:"flavor,omitempty"`
	Override string `json:"override,omitempty"`
	Label    string `json:"label,omitempty"`

	// Candidates lists every major release with a non-zero intersection, in
	// catalog order.
	Candidates []Candidate `json:"candidates,omitempty"`
}

func (r Result) String() string {
	switch r.Kind {
	case Matched:
		return fmt.Sprintf("%s (%s)", r.Label, r.Species)
	case Inconsistent:
		names := make([]string, len(r.Candidates))
		for i, c := range r.Candidates {
			names[i] = c.Build
		}
		return fmt.Sprintf("inconsistent: contigs from %v", names)
	}
	return "no match"
}

// Match infers the build of a header with the given contig name to length
// mapping.  An empty mapping yields NoMatch.
func Match(c *catalog.Catalog, contigs map[string]int64) Result {
	observed := make(map[int64]bool, len(contigs))
	names := make([]string, 0, len(contigs))
	for name, length := range contigs {
		observed[length] = true
		names = append(names, name)
	}
	sort.Strings(names)

	var result Result
	var releases []*catalog.Build
	for _, b := range c.Builds {
		if n := b.Intersection(observed); n > 0 {
			result.Candidates = append(result.Candidates, Candidate{b.Name, n})
			releases = append(releases, b)
		}
	}

	switch {
	case len(releases) == 0:
		result.Kind = NoMatch
		return result
	case len(releases) > 1 && !allConfusable(c, releases):
		result.Kind = Inconsistent
		return result
	}

	// Only confusable builds remain: the one with the most evidence wins,
	// the first in catalog order on a tie.
	best := 0
	for i, cand := range result.Candidates {
		if cand.Matches > result.Candidates[best].Matches {
			best = i
		}
	}
	release := releases[best]

	result.Kind = Matched
	result.Build = release.Name
	result.Species = release.Species
	result.Label = release.Name

	if flavor := bestFlavor(release, observed); flavor != nil {
		result.Flavor = flavor.Name
		result.Label = flavor.Name
	}
	for _, o := range release.Overrides {
		if o.Matches(names, observed) {
			result.Override = o.Label
			result.Label = o.Label
			break
		}
	}
	return result
}

// bestFlavor returns the flavor of release with the largest non-zero
// intersection, or nil.  Ties go to the first declared flavor.
func bestFlavor(release *catalog.Build, observed map[int64]bool) *catalog.Build {
	var best *catalog.Build
	most := 0
	for _, f := range release.Flavors {
		if n := f.Intersection(observed); n > most {
			best, most = f, n
		}
	}
	return best
}

func allConfusable(c *catalog.Catalog, builds []*catalog.Build) bool {
	for i := range builds {
		for j := i + 1; j < len(builds); j++ {
			if !c.Confusable(builds[i].Name, builds[j].Name) {
				return false
			}
		}
	}
	return true
}
