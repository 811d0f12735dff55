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

// Package bam provides support for reading BAM file headers.
package bam

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/googlegenomics/refgen/internal/binary"
)

const (
	bamMagic = "BAM\x01"

	// This is just to prevent arbitrarily long allocations due to malformed
	// data.  No reference name should be longer than this in practice.
	maximumNameLength = 1024

	// Header text larger than this is treated as corrupt.
	maximumHeaderLength = 1 << 28
)

// Reference is one entry of the binary reference dictionary.
type Reference struct {
	Name   string
	Length int64
}

// Header is the header of a BAM file.
type Header struct {
	// Text is the plain SAM header text, which may be empty.
	Text       string
	References []Reference
}

// Contigs returns the reference dictionary as a name to length map.
func (h *Header) Contigs() map[string]int64 {
	contigs := make(map[string]int64, len(h.References))
	for _, ref := range h.References {
		contigs[ref.Name] = ref.Length
	}
	return contigs
}

// ReadHeader reads the header text and the reference dictionary from the
// start of a BAM file.
func ReadHeader(bam io.Reader) (*Header, error) {
	gzr, err := gzip.NewReader(bam)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %v", err)
	}
	defer gzr.Close()

	if err := binary.ExpectBytes(gzr, []byte(bamMagic)); err != nil {
		return nil, fmt.Errorf("reading magic: %v", err)
	}
	var length int32
	if err := binary.Read(gzr, &length); err != nil {
		return nil, fmt.Errorf("reading SAM header length: %v", err)
	}
	if length < 0 || length > maximumHeaderLength {
		return nil, fmt.Errorf("invalid SAM header length (%d bytes)", length)
	}
	text := make([]byte, length)
	if _, err := io.ReadFull(gzr, text); err != nil {
		return nil, fmt.Errorf("reading SAM header: %v", err)
	}
	// The text may be padded with NULs.
	for len(text) > 0 && text[len(text)-1] == 0 {
		text = text[:len(text)-1]
	}

	var count int32
	if err := binary.Read(gzr, &count); err != nil {
		return nil, fmt.Errorf("reading references count: %v", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("invalid references count (%d)", count)
	}
	h := &Header{Text: string(text)}
	for i := int32(0); i < count; i++ {
		if err := binary.Read(gzr, &length); err != nil {
			return nil, fmt.Errorf("reading name length: %v", err)
		}
		// The name length includes a null terminating character.
		if length < 1 || length > maximumNameLength {
			return nil, fmt.Errorf("invalid name length (%d bytes)", length)
		}
		name, err := binary.ReadCString(gzr, int(length))
		if err != nil {
			return nil, fmt.Errorf("reading name: %v", err)
		}
		var size int32
		if err := binary.Read(gzr, &size); err != nil {
			return nil, fmt.Errorf("reading reference length: %v", err)
		}
		h.References = append(h.References, Reference{name, int64(size)})
	}
	return h, nil
}
