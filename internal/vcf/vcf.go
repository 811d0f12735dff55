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

// Package vcf streams variant rows from VCF and PLINK BIM text files and
// extracts contig dictionaries from VCF and BCF headers.
package vcf

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/googlegenomics/refgen/variant"
)

// Format identifies the column layout of a variant text file.
type Format int

const (
	// VCF rows are CHROM, POS, ID, REF, ALT, ...; REF is compared.
	VCF Format = iota
	// BIM rows are chromosome, id, morgans, coordinate, allele1, allele2;
	// allele2 is compared.
	BIM
)

// BIM column positions.
const (
	bimChromosome = iota
	bimVariantID
	bimMorgans
	bimCoordinate
	bimAllele1
	bimAllele2
)

// DefaultChunkSize is the number of rows returned by each call to Next.
const DefaultChunkSize = 100000

func (f Format) String() string {
	switch f {
	case VCF:
		return "VCF"
	case BIM:
		return "BIM"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat parses a format name, ignoring case.
func ParseFormat(name string) (Format, error) {
	switch strings.ToUpper(name) {
	case "VCF":
		return VCF, nil
	case "BIM":
		return BIM, nil
	}
	return 0, fmt.Errorf("unknown variant file format %q", name)
}

// FormatOf returns the format implied by the extension of path, ignoring a
// trailing .gz.
func FormatOf(path string) (Format, bool) {
	p := strings.TrimSuffix(strings.ToLower(path), ".gz")
	switch {
	case strings.HasSuffix(p, ".vcf"):
		return VCF, true
	case strings.HasSuffix(p, ".bim"):
		return BIM, true
	}
	return 0, false
}

// Decompress returns r, transparently decompressed if it starts with the
// gzip magic number.  Concatenated members (BGZF) are read as one stream.
func Decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("peeking input: %v", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("initializing gzip reader: %v", err)
		}
		return gzr, nil
	}
	return br, nil
}

// Reader reads variant rows in chunks.  It implements variant.Source.
type Reader struct {
	scanner *bufio.Scanner
	format  Format
	size    int

	contigs map[string]int64
	// pending holds the first data line, read while scanning the header.
	pending *string
	line    int
}

// NewReader returns a Reader for r.  For VCF input the meta-information and
// column header lines are consumed immediately and their ##contig entries
// are available from Contigs.
func NewReader(r io.Reader, format Format, chunkSize int) (*Reader, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	rd := &Reader{
		scanner: bufio.NewScanner(r),
		format:  format,
		size:    chunkSize,
		contigs: make(map[string]int64),
	}
	rd.scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	if format == VCF {
		if err := rd.readHeader(); err != nil {
			return nil, err
		}
	}
	return rd, nil
}

func (r *Reader) readHeader() error {
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Text()
		if !strings.HasPrefix(line, "#") {
			r.pending = &line
			return nil
		}
		if name, length, ok := ParseContig(line); ok {
			r.contigs[name] = length
		}
	}
	if err := r.scanner.Err(); err != nil {
		return fmt.Errorf("scanning header: %v", err)
	}
	return nil
}

// Contigs returns the name to length map of the ##contig header lines.  It
// is empty for BIM input and for VCF files without contig lines.
func (r *Reader) Contigs() map[string]int64 {
	return r.contigs
}

// Next returns up to the chunk size of rows, or io.EOF when the input is
// exhausted.  Comment lines are skipped.  Rows with too few columns are
// returned with their missing fields empty.
func (r *Reader) Next(ctx context.Context) ([]variant.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []variant.Record
	if r.pending != nil {
		rows = append(rows, r.parse(*r.pending))
		r.pending = nil
	}
	for len(rows) < r.size && r.scanner.Scan() {
		r.line++
		line := r.scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rows = append(rows, r.parse(line))
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %v", r.line, err)
	}
	if len(rows) == 0 {
		return nil, io.EOF
	}
	return rows, nil
}

func (r *Reader) parse(line string) variant.Record {
	var fields []string
	var rec variant.Record
	switch r.format {
	case VCF:
		fields = strings.Split(line, "\t")
		rec.Chromosome = field(fields, 0)
		rec.Position = position(field(fields, 1))
		rec.Ref = field(fields, 3)
		rec.Alt = field(fields, 4)
	case BIM:
		fields = strings.Fields(line)
		rec.Chromosome = field(fields, bimChromosome)
		rec.Position = position(field(fields, bimCoordinate))
		rec.Ref = field(fields, bimAllele2)
		rec.Alt = field(fields, bimAllele1)
	}
	return rec
}

func field(fields []string, i int) string {
	if i < len(fields) {
		return strings.TrimSpace(fields[i])
	}
	return ""
}

// position parses a coordinate, returning 0 for values that cannot be
// positions so the row is dropped by the matcher.
func position(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
