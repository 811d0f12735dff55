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

// Package table implements the on-disk format of per-chromosome allele lookup
// tables.
//
// A table file holds, for one (build, chromosome) pair, the sorted genomic
// positions that discriminate between builds and the reference base of the
// build at each of them:
//
//	magic    "RGTB"
//	version  uint8
//	flags    uint8     (bit 0: payload is zstd compressed)
//	digest   [32]byte  blake2b-256 of the uncompressed payload
//	length   uint32    length of the stored payload
//	payload  build, chromosome, count, positions[count], alleles[count]
//
// All integers are little endian.
package table

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/googlegenomics/refgen/internal/binary"
)

const (
	magic   = "RGTB"
	version = 1

	flagCompressed = 1 << 0

	// Larger payloads are rejected to bound allocations on corrupt input.
	maximumPayload = 1 << 30
)

var errDigestMismatch = errors.New("payload digest mismatch")

// Table maps positions on one chromosome to the reference base of one build.
type Table struct {
	Build      string
	Chromosome string
	// Positions is strictly increasing; Alleles[i] is the base at
	// Positions[i].
	Positions []uint32
	Alleles   []byte
}

// New builds a Table from an unordered position to allele mapping.  Alleles
// are upper-cased.
func New(build, chromosome string, alleles map[uint32]byte) *Table {
	t := &Table{
		Build:      build,
		Chromosome: chromosome,
		Positions:  make([]uint32, 0, len(alleles)),
		Alleles:    make([]byte, 0, len(alleles)),
	}
	for pos := range alleles {
		t.Positions = append(t.Positions, pos)
	}
	sort.Slice(t.Positions, func(i, j int) bool { return t.Positions[i] < t.Positions[j] })
	for _, pos := range t.Positions {
		t.Alleles = append(t.Alleles, upper(alleles[pos]))
	}
	return t
}

// Len returns the number of positions in t.
func (t *Table) Len() int {
	return len(t.Positions)
}

// Lookup returns the allele stored at pos.
func (t *Table) Lookup(pos uint32) (byte, bool) {
	i := sort.Search(len(t.Positions), func(i int) bool { return t.Positions[i] >= pos })
	if i < len(t.Positions) && t.Positions[i] == pos {
		return t.Alleles[i], true
	}
	return 0, false
}

func (t *Table) validate() error {
	if len(t.Positions) != len(t.Alleles) {
		return fmt.Errorf("%d positions but %d alleles", len(t.Positions), len(t.Alleles))
	}
	for i := 1; i < len(t.Positions); i++ {
		if t.Positions[i] <= t.Positions[i-1] {
			return fmt.Errorf("positions not strictly increasing at index %d", i)
		}
	}
	return nil
}

// Write encodes t to w, compressing the payload when compress is set.
func Write(w io.Writer, t *Table, compress bool) error {
	if err := t.validate(); err != nil {
		return fmt.Errorf("invalid table %s-%s: %v", t.Build, t.Chromosome, err)
	}

	var payload bytes.Buffer
	if err := binary.WriteString(&payload, t.Build); err != nil {
		return fmt.Errorf("writing build: %v", err)
	}
	if err := binary.WriteString(&payload, t.Chromosome); err != nil {
		return fmt.Errorf("writing chromosome: %v", err)
	}
	if err := binary.Write(&payload, uint32(len(t.Positions))); err != nil {
		return fmt.Errorf("writing count: %v", err)
	}
	if err := binary.Write(&payload, t.Positions); err != nil {
		return fmt.Errorf("writing positions: %v", err)
	}
	payload.Write(t.Alleles)

	digest := blake2b.Sum256(payload.Bytes())
	stored := payload.Bytes()
	var flags uint8
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("creating encoder: %v", err)
		}
		stored = enc.EncodeAll(stored, nil)
		enc.Close()
		flags |= flagCompressed
	}

	header := struct {
		Version uint8
		Flags   uint8
		Digest  [blake2b.Size256]byte
		Length  uint32
	}{version, flags, digest, uint32(len(stored))}
	if _, err := io.WriteString(w, magic); err != nil {
		return fmt.Errorf("writing magic: %v", err)
	}
	if err := binary.Write(w, header); err != nil {
		return fmt.Errorf("writing header: %v", err)
	}
	if _, err := w.Write(stored); err != nil {
		return fmt.Errorf("writing payload: %v", err)
	}
	return nil
}

// Read decodes a table written by Write and verifies its digest.
func Read(r io.Reader) (*Table, error) {
	if err := binary.ExpectBytes(r, []byte(magic)); err != nil {
		return nil, err
	}
	var header struct {
		Version uint8
		Flags   uint8
		Digest  [blake2b.Size256]byte
		Length  uint32
	}
	if err := binary.Read(r, &header); err != nil {
		return nil, fmt.Errorf("reading header: %v", err)
	}
	if header.Version != version {
		return nil, fmt.Errorf("unsupported table version %d", header.Version)
	}
	if header.Length > maximumPayload {
		return nil, fmt.Errorf("invalid payload length (%d bytes)", header.Length)
	}

	payload := make([]byte, header.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading payload: %v", err)
	}
	if header.Flags&flagCompressed != 0 {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("creating decoder: %v", err)
		}
		defer dec.Close()
		if payload, err = dec.DecodeAll(payload, nil); err != nil {
			return nil, fmt.Errorf("decompressing payload: %v", err)
		}
	}
	if blake2b.Sum256(payload) != header.Digest {
		return nil, errDigestMismatch
	}

	pr := bytes.NewReader(payload)
	t := &Table{}
	var err error
	if t.Build, err = binary.ReadString(pr); err != nil {
		return nil, fmt.Errorf("reading build: %v", err)
	}
	if t.Chromosome, err = binary.ReadString(pr); err != nil {
		return nil, fmt.Errorf("reading chromosome: %v", err)
	}
	var count uint32
	if err := binary.Read(pr, &count); err != nil {
		return nil, fmt.Errorf("reading count: %v", err)
	}
	if int64(count)*5 != int64(pr.Len()) {
		return nil, fmt.Errorf("count %d does not match payload size", count)
	}
	t.Positions = make([]uint32, count)
	if err := binary.Read(pr, t.Positions); err != nil {
		return nil, fmt.Errorf("reading positions: %v", err)
	}
	t.Alleles = make([]byte, count)
	if _, err := io.ReadFull(pr, t.Alleles); err != nil {
		return nil, fmt.Errorf("reading alleles: %v", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func upper(b byte) byte {
	if 'a' <= b && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// WriteFile writes t to the file at path, replacing any existing file.
func WriteFile(path string, t *Table, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := Write(w, t, compress); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
