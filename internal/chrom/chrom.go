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

// Package chrom normalizes the many spellings of human chromosome names found
// in variant files to the short names used to key lookup tables.
package chrom

import (
	"regexp"
	"strconv"
	"strings"
)

// refseqRe matches RefSeq chromosome accessions such as NC_000001.11.
var refseqRe = regexp.MustCompile(`^NC_0000(\d{2})\.\d+$`)

// names maps every recognised spelling (upper-cased, without a "CHR" prefix)
// to its normalized form.
var names = func() map[string]string {
	m := map[string]string{
		"X":  "X",
		"Y":  "Y",
		"M":  "MT",
		"MT": "MT",
		// PLINK numeric codes.
		"23": "X",
		"24": "Y",
		"26": "MT",
		// Mitochondrial RefSeq accession, shared across builds.
		"NC_012920.1": "MT",
	}
	for i := 1; i <= 22; i++ {
		n := strconv.Itoa(i)
		m[n] = n
		if i < 10 {
			m["0"+n] = n
		}
	}
	return m
}()

// Normalize returns the normalized name of chromosome and true, or "" and
// false when the name is not one of the known chromosomes.  Unplaced contigs,
// alternate haplotypes and decoys are deliberately unknown.
func Normalize(chromosome string) (string, bool) {
	name := strings.ToUpper(strings.TrimSpace(chromosome))
	name = strings.TrimPrefix(name, "CHR")
	if n, ok := names[name]; ok {
		return n, true
	}
	if m := refseqRe.FindStringSubmatch(name); m != nil {
		switch m[1] {
		case "23":
			return "X", true
		case "24":
			return "Y", true
		}
		if n, ok := names[strings.TrimPrefix(m[1], "0")]; ok {
			return n, true
		}
	}
	return "", false
}

// All returns the normalized names of every known chromosome in karyotype
// order.
func All() []string {
	all := make([]string, 0, 25)
	for i := 1; i <= 22; i++ {
		all = append(all, strconv.Itoa(i))
	}
	return append(all, "X", "Y", "MT")
}
