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

// Package catalog describes the reference genome builds that refgen can
// recognise.
//
// A catalog is immutable data, normally loaded from a versioned YAML
// document.  Default returns the catalog compiled into the binary.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Version is the catalog document version understood by Load.
const Version = 1

//go:embed catalog.yaml
var defaultCatalog []byte

// Build is a reference genome build: either a major release or one of its
// flavors.
type Build struct {
	Name    string `yaml:"name" json:"name"`
	Species string `yaml:"species,omitempty" json:"species,omitempty"`

	// Contigs is the signature of the build: discriminating contig names and
	// their lengths.
	Contigs map[string]int64 `yaml:"contigs" json:"contigs,omitempty"`

	// Tables reports whether variant lookup tables exist for this build.
	Tables bool `yaml:"tables,omitempty" json:"tables,omitempty"`

	// Flavors are minor variants of a major release, in tie-break order.
	Flavors []*Build `yaml:"flavors,omitempty" json:"flavors,omitempty"`

	// ConfusableWith names builds known to share contig lengths with this
	// one.  The relation is symmetric.
	ConfusableWith []string `yaml:"confusable_with,omitempty" json:"confusable_with,omitempty"`

	// Overrides relabel a match on this build based on contig names or
	// unique decoy lengths.
	Overrides []*Override `yaml:"overrides,omitempty" json:"overrides,omitempty"`

	lengths map[int64]bool
}

// Override relabels a header match when any observed contig name matches
// NamePattern or any observed length is one of the Contigs lengths.
type Override struct {
	Label       string           `yaml:"label" json:"label"`
	NamePattern string           `yaml:"name_pattern,omitempty" json:"name_pattern,omitempty"`
	Contigs     map[string]int64 `yaml:"contigs,omitempty" json:"contigs,omitempty"`

	pattern *regexp.Regexp
	lengths map[int64]bool
}

// Catalog is a validated, read-only set of builds.
type Catalog struct {
	Version int      `yaml:"version" json:"version"`
	Builds  []*Build `yaml:"builds" json:"builds"`

	byName     map[string]*Build
	confusable map[[2]string]bool
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultCatalog))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in catalog: %v", err))
	}
	return c
}

// LoadFile reads a catalog from the YAML file at path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %v", err)
	}
	defer f.Close()
	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return c, nil
}

// Load reads and validates a catalog YAML document from r.
func Load(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if err == io.EOF {
			return nil, errors.New("empty catalog")
		}
		return nil, fmt.Errorf("decoding catalog: %v", err)
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) init() error {
	if c.Version != Version {
		return fmt.Errorf("unsupported catalog version %d", c.Version)
	}
	if len(c.Builds) == 0 {
		return errors.New("catalog has no builds")
	}
	c.byName = make(map[string]*Build)
	c.confusable = make(map[[2]string]bool)

	register := func(b *Build) error {
		if b.Name == "" {
			return errors.New("build without a name")
		}
		if _, ok := c.byName[b.Name]; ok {
			return fmt.Errorf("duplicate build %q", b.Name)
		}
		if len(b.Contigs) == 0 {
			return fmt.Errorf("build %q has no contigs", b.Name)
		}
		lengths, err := lengthSet(b.Contigs)
		if err != nil {
			return fmt.Errorf("build %q: %v", b.Name, err)
		}
		b.lengths = lengths
		c.byName[b.Name] = b
		return nil
	}

	for _, b := range c.Builds {
		if err := register(b); err != nil {
			return err
		}
		for _, f := range b.Flavors {
			if len(f.Flavors) > 0 || len(f.ConfusableWith) > 0 || len(f.Overrides) > 0 {
				return fmt.Errorf("flavor %q of %q may only declare contigs", f.Name, b.Name)
			}
			if f.Species == "" {
				f.Species = b.Species
			}
			if err := register(f); err != nil {
				return err
			}
		}
		for _, o := range b.Overrides {
			if err := o.init(); err != nil {
				return fmt.Errorf("build %q: %v", b.Name, err)
			}
		}
	}

	for _, b := range c.Builds {
		for _, other := range b.ConfusableWith {
			if other == b.Name {
				return fmt.Errorf("build %q declared confusable with itself", b.Name)
			}
			if _, ok := c.byName[other]; !ok {
				return fmt.Errorf("build %q declared confusable with unknown build %q", b.Name, other)
			}
			c.confusable[[2]string{b.Name, other}] = true
			c.confusable[[2]string{other, b.Name}] = true
		}
	}
	return nil
}

func (o *Override) init() error {
	if o.Label == "" {
		return errors.New("override without a label")
	}
	if o.NamePattern == "" && len(o.Contigs) == 0 {
		return fmt.Errorf("override %q has neither name_pattern nor contigs", o.Label)
	}
	if o.NamePattern != "" {
		re, err := regexp.Compile(o.NamePattern)
		if err != nil {
			return fmt.Errorf("override %q: %v", o.Label, err)
		}
		o.pattern = re
	}
	if len(o.Contigs) > 0 {
		lengths, err := lengthSet(o.Contigs)
		if err != nil {
			return fmt.Errorf("override %q: %v", o.Label, err)
		}
		o.lengths = lengths
	}
	return nil
}

func lengthSet(contigs map[string]int64) (map[int64]bool, error) {
	lengths := make(map[int64]bool, len(contigs))
	for name, n := range contigs {
		if n <= 0 {
			return nil, fmt.Errorf("contig %q has invalid length %d", name, n)
		}
		lengths[n] = true
	}
	return lengths, nil
}

// Build returns the build or flavor with the given name.
func (c *Catalog) Build(name string) (*Build, bool) {
	b, ok := c.byName[name]
	return b, ok
}

// Confusable reports whether builds a and b are declared to legitimately
// share contig lengths.
func (c *Catalog) Confusable(a, b string) bool {
	return c.confusable[[2]string{a, b}]
}

// TableBuilds returns, in catalog order, the names of builds with variant
// lookup tables.
func (c *Catalog) TableBuilds() []string {
	var names []string
	for _, b := range c.Builds {
		if b.Tables {
			names = append(names, b.Name)
		}
	}
	return names
}

// Intersection returns how many distinct lengths in observed are also
// lengths of contigs in the signature of b.
func (b *Build) Intersection(observed map[int64]bool) int {
	n := 0
	for length := range observed {
		if b.lengths[length] {
			n++
		}
	}
	return n
}

// Matches reports whether the override applies to a header with the given
// contig names and distinct lengths.
func (o *Override) Matches(names []string, observed map[int64]bool) bool {
	if o.pattern != nil {
		for _, name := range names {
			if o.pattern.MatchString(name) {
				return true
			}
		}
	}
	for length := range observed {
		if o.lengths[length] {
			return true
		}
	}
	return false
}
