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

// Package detect runs reference genome inference over files: it extracts the
// evidence each file type carries (a contig dictionary, variant rows or
// both) and hands it to the header and variant matchers.
package detect

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/googlegenomics/refgen/catalog"
	"github.com/googlegenomics/refgen/header"
	"github.com/googlegenomics/refgen/internal/bam"
	"github.com/googlegenomics/refgen/internal/cram"
	"github.com/googlegenomics/refgen/internal/tally"
	"github.com/googlegenomics/refgen/internal/trace"
	"github.com/googlegenomics/refgen/internal/vcf"
	"github.com/googlegenomics/refgen/lookup"
	"github.com/googlegenomics/refgen/sam"
	"github.com/googlegenomics/refgen/variant"
)

// Type is the kind of file being examined.
type Type int

const (
	// Headers are SAM header text files, optionally gzip compressed.
	Headers Type = iota
	// Alignments are BAM or CRAM files, told apart by their magic bytes.
	Alignments
	// VCF files contribute their ##contig lines and their variant rows.
	VCF
	// BIM files contribute their variant rows.
	BIM
	// BCF files contribute the contig lines of their header.
	BCF
)

var typeNames = map[Type]string{
	Headers:    "Headers",
	Alignments: "BAM/CRAM",
	VCF:        "VCF",
	BIM:        "BIM",
	BCF:        "BCF",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType parses a type name as accepted on the command line.
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if strings.EqualFold(n, name) {
			return t, nil
		}
	}
	switch strings.ToUpper(name) {
	case "BAM", "CRAM":
		return Alignments, nil
	case "SAM", "HEADER", "TXT":
		return Headers, nil
	}
	return 0, fmt.Errorf("unknown file type %q", name)
}

// Options configure a Detector.
type Options struct {
	Variant variant.Options
	// ChunkSize is the number of variant rows per chunk.
	ChunkSize int
	// TraceDir, if set, receives a <file>.trace.npy matrix of cumulative
	// match counts for every variant input.
	TraceDir string
}

// Detector examines files against one catalog and one table cache.  It is
// safe for concurrent use.
type Detector struct {
	catalog *catalog.Catalog
	cache   *lookup.Cache
	opts    Options
	log     log.FieldLogger
}

// New returns a Detector.  A nil logger means the standard logrus logger.
func New(c *catalog.Catalog, cache *lookup.Cache, opts Options, logger log.FieldLogger) *Detector {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = vcf.DefaultChunkSize
	}
	return &Detector{c, cache, opts, logger}
}

// Catalog returns the catalog the detector matches against.
func (d *Detector) Catalog() *catalog.Catalog {
	return d.catalog
}

// Options returns the detector's options.
func (d *Detector) Options() Options {
	return d.opts
}

// Report is the outcome of examining one input.
type Report struct {
	Path string `json:"path,omitempty"`
	Type string `json:"type"`

	Header   *header.Result    `json:"header,omitempty"`
	Assembly string            `json:"assembly,omitempty"`
	MD5      map[string]string `json:"md5,omitempty"`
	Variants *variant.Result   `json:"variants,omitempty"`

	// Error describes why the input could not be examined.
	Error string `json:"error,omitempty"`
}

// Fatal reports whether err must abort a batch rather than fail one input.
func Fatal(err error) bool {
	return errors.Is(err, lookup.ErrCatalogUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// File examines the file at path as typ.  Problems with the file itself are
// reported in Report.Error; the returned error is non-nil only for
// conditions that Fatal reports as fatal.
func (d *Detector) File(ctx context.Context, path string, typ Type) (Report, error) {
	report := Report{Path: path, Type: typ.String()}
	logger := d.log.WithField("file", path)
	err := d.file(ctx, path, typ, &report, logger)
	if err != nil {
		if Fatal(err) {
			return report, err
		}
		report.Error = err.Error()
		logger.WithError(err).Warn("file skipped")
	}
	return report, nil
}

func (d *Detector) file(ctx context.Context, path string, typ Type, report *Report, logger log.FieldLogger) error {
	if format, ok := vcf.FormatOf(path); ok && (typ == VCF || typ == BIM) {
		want := VCF
		if format == vcf.BIM {
			want = BIM
		}
		if typ != want {
			return fmt.Errorf("file type should be %v for %s files", want, filepath.Ext(strings.TrimSuffix(path, ".gz")))
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %v", err)
	}
	defer f.Close()

	switch typ {
	case Headers:
		r, err := vcf.Decompress(f)
		if err != nil {
			return err
		}
		return d.samHeader(r, report)
	case Alignments:
		return d.alignments(f, report)
	case BCF:
		contigs, err := vcf.ReadBCFHeader(f)
		if err != nil {
			return fmt.Errorf("reading BCF header: %v", err)
		}
		d.contigs(contigs, report, logger)
		return nil
	case VCF, BIM:
		r, err := vcf.Decompress(f)
		if err != nil {
			return err
		}
		format := vcf.VCF
		if typ == BIM {
			format = vcf.BIM
		}
		return d.variants(ctx, r, format, d.opts.Variant, report, logger)
	}
	return fmt.Errorf("unsupported file type %v", typ)
}

// Contigs matches a contig dictionary.
func (d *Detector) Contigs(contigs map[string]int64) header.Result {
	return header.Match(d.catalog, contigs)
}

// SAMHeader matches the @SQ dictionary of SAM header text read from r.
func (d *Detector) SAMHeader(r io.Reader) (Report, error) {
	report := Report{Type: Headers.String()}
	err := d.samHeader(r, &report)
	return report, err
}

// Variants matches variant rows read from r using opts in place of the
// detector's variant options.  For VCF input the ##contig lines of the
// header are matched first.
func (d *Detector) Variants(ctx context.Context, r io.Reader, format vcf.Format, opts variant.Options) (Report, error) {
	report := Report{Type: format.String()}
	err := d.variants(ctx, r, format, opts, &report, d.log)
	return report, err
}

func (d *Detector) samHeader(r io.Reader, report *Report) error {
	h, err := sam.Parse(r)
	if err != nil {
		return err
	}
	d.reportSAM(h, report)
	res := d.Contigs(h.Contigs)
	report.Header = &res
	return nil
}

func (d *Detector) reportSAM(h *sam.Header, report *Report) {
	report.Assembly = h.Assembly
	if len(h.MD5) > 0 {
		report.MD5 = h.MD5
	}
}

var cramMagic = []byte("CRAM")

func (d *Detector) alignments(r io.Reader, report *Report) error {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return fmt.Errorf("not a BAM or CRAM file: %v", err)
	}

	var contigs map[string]int64
	switch {
	case bytes.Equal(magic, cramMagic):
		report.Type = "CRAM"
		text, err := cram.ReadHeader(br)
		if err != nil {
			return fmt.Errorf("reading CRAM header: %v", err)
		}
		h, err := sam.Parse(strings.NewReader(text))
		if err != nil {
			return fmt.Errorf("parsing CRAM header: %v", err)
		}
		contigs = h.Contigs
		d.reportSAM(h, report)
	case magic[0] == 0x1f && magic[1] == 0x8b:
		report.Type = "BAM"
		h, err := bam.ReadHeader(br)
		if err != nil {
			return fmt.Errorf("reading BAM header: %v", err)
		}
		contigs = h.Contigs()
		// The binary dictionary is authoritative; the text only adds AS
		// and M5 values when present.
		if sh, err := sam.Parse(strings.NewReader(h.Text)); err == nil {
			d.reportSAM(sh, report)
		}
	default:
		return errors.New("not a BAM or CRAM file")
	}
	if len(contigs) == 0 {
		return sam.ErrNoReferences
	}
	res := d.Contigs(contigs)
	report.Header = &res
	return nil
}

func (d *Detector) contigs(contigs map[string]int64, report *Report, logger log.FieldLogger) {
	if len(contigs) == 0 {
		logger.Warn("contig information not in the header; the reference genome can't be inferred from the header")
		return
	}
	res := d.Contigs(contigs)
	report.Header = &res
}

func (d *Detector) variants(ctx context.Context, r io.Reader, format vcf.Format, opts variant.Options, report *Report, logger log.FieldLogger) error {
	rd, err := vcf.NewReader(r, format, d.opts.ChunkSize)
	if err != nil {
		return err
	}
	if format == vcf.VCF {
		d.contigs(rd.Contigs(), report, logger)
	}

	builds := d.catalog.TableBuilds()
	var rec *trace.Recorder
	if d.opts.TraceDir != "" && report.Path != "" {
		rec = trace.NewRecorder(builds)
		next := opts.Trace
		opts.Trace = func(chunk int, cumulative tally.Tally) {
			rec.Record(chunk, cumulative)
			if next != nil {
				next(chunk, cumulative)
			}
		}
	}

	m := variant.NewMatcher(d.cache, builds, opts, logger)
	res, err := m.Match(ctx, rd)
	if err != nil {
		return err
	}
	report.Variants = &res

	if rec != nil {
		path := filepath.Join(d.opts.TraceDir, filepath.Base(report.Path)+".trace.npy")
		if err := rec.WriteFile(path); err != nil {
			logger.WithError(err).Warn("writing trace")
		}
	}
	return nil
}

// ReadList reads a list of input paths, one per line.  Blank lines and lines
// starting with '#' are ignored.
func ReadList(r io.Reader) ([]string, error) {
	var paths []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading path list: %v", err)
	}
	return paths, nil
}

// Batch examines every path as typ, in order, passing each report to fn.
// It stops at the first fatal error.
func (d *Detector) Batch(ctx context.Context, paths []string, typ Type, fn func(Report)) error {
	for _, path := range paths {
		report, err := d.File(ctx, path, typ)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fn(report)
	}
	return nil
}
