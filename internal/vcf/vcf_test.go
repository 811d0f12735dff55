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

package vcf

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/refgen/internal/binary"
	"github.com/googlegenomics/refgen/variant"
)

const testVCF = `##fileformat=VCFv4.2
##contig=<ID=chr1,length=249250621,assembly=b37>
##contig=<ID=chrM,length=16571>
##contig=<ID=broken>
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
chr1	100	.	A	G	50	PASS	.
chr1	200	rs1	AT	A	50	PASS	.
# a stray comment
chr1	300	.	C	T,<NON_REF>	50	PASS	.
chrM	73	.	A	G	50	PASS	.
chr2	1
`

func readAll(t *testing.T, r *Reader) [][]variant.Record {
	var chunks [][]variant.Record
	for {
		rows, err := r.Next(context.Background())
		if err == io.EOF {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, rows)
	}
}

func TestReaderVCF(t *testing.T) {
	r, err := NewReader(strings.NewReader(testVCF), VCF, 2)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"chr1": 249250621, "chrM": 16571}, r.Contigs())

	chunks := readAll(t, r)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2)
	assert.Equal(t, variant.Record{Chromosome: "chr1", Position: 100, Ref: "A", Alt: "G"}, chunks[0][0])
	assert.Equal(t, variant.Record{Chromosome: "chr1", Position: 300, Ref: "C", Alt: "T,<NON_REF>"}, chunks[1][0])
	assert.Equal(t, variant.Record{Chromosome: "chr2", Position: 1}, chunks[2][0])
}

func TestReaderBIM(t *testing.T) {
	const bim = "1\trs3094315\t0\t752566\tG\tA\n" +
		"1 rs12562034  0 768448 A G\n" +
		"\n" +
		"X\trs2\t0\t5000\t0\tC\n"
	r, err := NewReader(strings.NewReader(bim), BIM, 0)
	require.NoError(t, err)
	assert.Empty(t, r.Contigs())

	chunks := readAll(t, r)
	require.Len(t, chunks, 1)
	assert.Equal(t, []variant.Record{
		{Chromosome: "1", Position: 752566, Ref: "A", Alt: "G"},
		{Chromosome: "1", Position: 768448, Ref: "G", Alt: "A"},
		{Chromosome: "X", Position: 5000, Ref: "C", Alt: "0"},
	}, chunks[0])
}

func TestReaderHeaderOnly(t *testing.T) {
	r, err := NewReader(strings.NewReader("##fileformat=VCFv4.2\n#CHROM\tPOS\n"), VCF, 10)
	require.NoError(t, err)
	_, err = r.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestReaderCancelled(t *testing.T) {
	r, err := NewReader(strings.NewReader(testVCF), VCF, 10)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Next(ctx)
	assert.Equal(t, context.Canceled, err)
}

func TestDecompress(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := io.WriteString(w, testVCF)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	for name, input := range map[string]io.Reader{
		"plain":   strings.NewReader(testVCF),
		"gzipped": &buf,
	} {
		t.Run(name, func(t *testing.T) {
			r, err := Decompress(input)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, testVCF, string(got))
		})
	}

	r, err := Decompress(strings.NewReader(""))
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFormat(t *testing.T) {
	testCases := []struct {
		path   string
		format Format
		ok     bool
	}{
		{"sample.vcf", VCF, true},
		{"sample.VCF.gz", VCF, true},
		{"plink.bim", BIM, true},
		{"plink.bim.gz", BIM, true},
		{"reads.bam", 0, false},
		{"notes.txt", 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			format, ok := FormatOf(tc.path)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.format, format)
		})
	}

	f, err := ParseFormat("bim")
	require.NoError(t, err)
	assert.Equal(t, BIM, f)
	assert.Equal(t, "BIM", f.String())
	_, err = ParseFormat("bed")
	assert.Error(t, err)
}

func TestContigField(t *testing.T) {
	testCases := []struct {
		contig string
		field  string
		want   string
	}{
		{"##contig=<ID=chr1,length=248956422,IDX=0>", "ID", "chr1"},
		{"##contig=<ID=chr10,length=248956422,IDX=0>", "length", "248956422"},
		{"##contig=<ID=Y,length=248956422,IDX=0>", "IDX", "0"},
		{"##contig=<length=248956422,IDX=0>", "OTHER", ""},
		{"##contig=<ID=IDX,length=248956422,IDX=7>", "IDX", "7"},
		{"##contig=<BADIDX=NO,length=248956422,IDX=7>", "IDX", "7"},
		{"##contig=<ID=chrM,length=16571>", "length", "16571"},
	}

	for _, tc := range testCases {
		t.Run(tc.contig+"/"+tc.field, func(t *testing.T) {
			if got := contigField(tc.contig, tc.field); got != tc.want {
				t.Fatalf("Wrong contigField response, want %v, got %v ", tc.want, got)
			}
		})
	}
}

func TestParseContig(t *testing.T) {
	testCases := []struct {
		line   string
		name   string
		length int64
		ok     bool
	}{
		{"##contig=<ID=chr1,length=248956422>", "chr1", 248956422, true},
		{"##contig=<length=16569,ID=MT,assembly=b37>", "MT", 16569, true},
		{"##contig=<ID=chr1>", "", 0, false},
		{"##contig=<ID=chr1,length=-1>", "", 0, false},
		{"##INFO=<ID=DP,Number=1,Type=Integer>", "", 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.line, func(t *testing.T) {
			name, length, ok := ParseContig(tc.line)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.name, name)
			assert.Equal(t, tc.length, length)
		})
	}
}

func bcfFile(t *testing.T, text string) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := io.WriteString(w, bcfMagic+"\x02")
	require.NoError(t, err)
	require.NoError(t, binary.Write(w, uint32(len(text))))
	_, err = io.WriteString(w, text)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestReadBCFHeader(t *testing.T) {
	text := "##fileformat=VCFv4.2\n" +
		"##contig=<ID=chr2,length=243199373,IDX=1>\n" +
		"##contig=<ID=chr1,length=249250621,IDX=0>\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n\x00"
	contigs, err := ReadBCFHeader(bytes.NewReader(bcfFile(t, text)))
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"chr1": 249250621, "chr2": 243199373}, contigs)

	_, err = ReadBCFHeader(bytes.NewReader([]byte("not gzip")))
	assert.Error(t, err)
}
