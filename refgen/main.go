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

// This binary infers the reference genome used to produce alignment headers,
// alignment files and variant files.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/pkg/profile"
	log "github.com/sirupsen/logrus"

	"github.com/googlegenomics/refgen/detect"
	"github.com/googlegenomics/refgen/header"
	"github.com/googlegenomics/refgen/internal/config"
	"github.com/googlegenomics/refgen/variant"
)

const version = "2.0.0"

var (
	path     = flag.String("path", "", "file listing the inputs to examine, one path per line")
	fileType = flag.String("type", "", "type of every input: Headers, BAM/CRAM, VCF, BIM or BCF")
	md5      = flag.Bool("md5", false, "print the M5 values of the header, if present")
	assembly = flag.Bool("assembly", false, "print the first AS value of the header, if present")

	catalogFile = flag.String("catalog", "", "catalog YAML file (default $"+config.CatalogEnv+", else built-in)")
	tables      = flag.String("tables", "", "lookup table storage: directory, gs:// or s3:// location (default $"+config.TablesEnv+")")

	matches     = flag.Int64("matches", 0, "stop reading a variant file once the matches exceed this count (0: read everything)")
	variants    = flag.Int64("variants", 0, "stop reading a variant file after this many rows (0: read everything)")
	chunkSize   = flag.Int("chunk_size", 100000, "variant rows per chunk")
	threshold   = flag.Float64("threshold", variant.DefaultThreshold, "share of all matches the inferred build must exceed")
	parallelism = flag.Int("parallelism", 0, "concurrent table joins per chunk (0: number of CPUs)")
	traceDir    = flag.String("trace", "", "directory receiving a .npy trace of cumulative matches per variant file")

	jsonOutput  = flag.Bool("json", false, "print one JSON report per line")
	profileKind = flag.String("profile", "", "write a cpu or mem profile to the current directory")
	verbose     = flag.Bool("v", false, "log debugging information")
	quiet       = flag.Bool("quiet", false, "log warnings and errors only")
)

func main() {
	flag.Parse()

	switch {
	case *verbose:
		log.SetLevel(log.DebugLevel)
	case *quiet:
		log.SetLevel(log.WarnLevel)
	}

	switch *profileKind {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	default:
		log.Fatalf("Unknown profile kind %q (want cpu or mem)", *profileKind)
	}

	typ, err := detect.ParseType(*fileType)
	if err != nil {
		log.Fatalf("Invalid -type: %v", err)
	}
	if *threshold <= 0 || *threshold >= 1 {
		log.Fatalf("Invalid -threshold %v: must be between 0 and 1", *threshold)
	}

	paths := flag.Args()
	if *path != "" {
		f, err := os.Open(*path)
		if err != nil {
			log.Fatalf("The file %s provided in -path can't be opened: %v", *path, err)
		}
		list, err := detect.ReadList(f)
		f.Close()
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *path, err)
		}
		paths = append(paths, list...)
	}
	if len(paths) == 0 {
		log.Fatalf("No inputs: give -path or list files as arguments")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, cache, err := config.Open(ctx, config.Sources{Catalog: *catalogFile, Tables: *tables})
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	d := detect.New(c, cache, detect.Options{
		Variant: variant.Options{
			StopAfterMatches:  *matches,
			StopAfterVariants: *variants,
			Threshold:         *threshold,
			Parallelism:       *parallelism,
		},
		ChunkSize: *chunkSize,
		TraceDir:  *traceDir,
	}, nil)

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	report := printText
	if *jsonOutput {
		enc := json.NewEncoder(w)
		report = func(w io.Writer, r detect.Report) {
			if err := enc.Encode(r); err != nil {
				log.Errorf("Failed to encode report: %v", err)
			}
		}
	} else {
		fmt.Fprintf(w, "* Running refgen %s *\n", version)
	}

	if err := d.Batch(ctx, paths, typ, func(r detect.Report) {
		report(w, r)
		w.Flush()
	}); err != nil {
		w.Flush()
		log.Fatalf("Aborting: %v", err)
	}
	if !*jsonOutput {
		fmt.Fprintln(w, "---")
	}
}

func printText(w io.Writer, r detect.Report) {
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "File: %s\n", r.Path)
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
		return
	}
	if h := r.Header; h != nil {
		switch h.Kind {
		case header.Matched:
			fmt.Fprintf(w, "Species detected: %s\n", h.Species)
			fmt.Fprintf(w, "Reference genome version: %s\n", h.Label)
		case header.Inconsistent:
			fmt.Fprintln(w, "Error: Inconsistency found - file contains contigs from different genome versions")
		default:
			fmt.Fprintln(w, "Reference genome version: unknown (no contig length matches the catalog)")
		}
	}
	if *assembly && r.Assembly != "" {
		fmt.Fprintf(w, "AS field: %s\n", r.Assembly)
	}
	if *md5 && len(r.MD5) > 0 {
		names := make([]string, 0, len(r.MD5))
		for name := range r.MD5 {
			names = append(names, name)
		}
		sort.Strings(names)
		fields := make([]string, len(names))
		for i, name := range names {
			fields[i] = name + ":" + r.MD5[name]
		}
		fmt.Fprintf(w, "MD5 fields: %s\n", strings.Join(fields, " "))
	}
	if v := r.Variants; v != nil {
		fmt.Fprintf(w, "Variants read: %d (%d SNPs in %d chunks)\n", v.Variants, v.SNPs, v.Chunks)
		if v.GVCF {
			fmt.Fprintln(w, "Input is a gVCF")
		}
		for _, build := range v.Tally.Builds() {
			fmt.Fprintf(w, "  %s: %d matches\n", build, v.Tally[build])
		}
		fmt.Fprintf(w, "Reference genome version (variants): %s\n", v)
	}
}
