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

// This binary converts position/allele text files into lookup table files.
//
// Each input holds "position<TAB>allele" lines for one build and chromosome
// and is named <build>-<chromosome>.tsv, optionally gzip compressed.  The
// table is written to <out>/<build>-<chromosome>.rgt.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/googlegenomics/refgen/internal/chrom"
	"github.com/googlegenomics/refgen/internal/table"
	"github.com/googlegenomics/refgen/internal/vcf"
	"github.com/googlegenomics/refgen/store"
)

var (
	out      = flag.String("out", "tables", "output directory")
	compress = flag.Bool("compress", true, "zstd-compress table payloads")
)

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		log.Fatalf("Usage: %s [-out dir] <build>-<chromosome>.tsv...", os.Args[0])
	}
	if err := os.MkdirAll(*out, 0755); err != nil {
		log.Fatalf("Failed to create %s: %v", *out, err)
	}
	for _, path := range flag.Args() {
		tbl, err := convert(path, *out, *compress)
		if err != nil {
			log.Fatalf("%s: %v", path, err)
		}
		log.WithFields(log.Fields{
			"build":      tbl.Build,
			"chromosome": tbl.Chromosome,
			"positions":  tbl.Len(),
		}).Info("table written")
	}
}

// parseName extracts the build and normalized chromosome from an input file
// name.
func parseName(path string) (build, chromosome string, err error) {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".tsv")
	i := strings.LastIndex(name, "-")
	if i <= 0 || i == len(name)-1 {
		return "", "", fmt.Errorf("file name %q is not <build>-<chromosome>.tsv", filepath.Base(path))
	}
	chromosome, ok := chrom.Normalize(name[i+1:])
	if !ok {
		return "", "", fmt.Errorf("unknown chromosome %q", name[i+1:])
	}
	return name[:i], chromosome, nil
}

func convert(path, dir string, compress bool) (*table.Table, error) {
	build, chromosome, err := parseName(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := vcf.Decompress(f)
	if err != nil {
		return nil, err
	}
	tbl, err := table.ParseTSV(r, build, chromosome)
	if err != nil {
		return nil, err
	}
	if err := table.WriteFile(filepath.Join(dir, store.Key(build, chromosome)), tbl, compress); err != nil {
		return nil, fmt.Errorf("writing table: %v", err)
	}
	return tbl, nil
}
