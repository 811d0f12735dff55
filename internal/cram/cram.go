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

// Package cram provides support for reading the SAM header embedded in CRAM
// files.
package cram

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

type fileDefinition struct {
	Magic        uint32
	MajorVersion uint8
	MinorVersion uint8
	ID           [20]byte
}

type blockHeader struct {
	Method      byte
	ContentType byte
	ContentID   int32
	Length      int32
	RawLength   int32
}

const (
	// Magic number for identifying CRAM files.
	magic = 0x4d415243

	// Block compression methods.
	methodRaw  = 0
	methodGzip = 1

	// Header text larger than this is treated as corrupt.
	maximumHeaderLength = 1 << 28
)

// ReadHeader returns the SAM header text stored in the first container of a
// CRAM file.  Only raw and gzip compressed header blocks are supported.
func ReadHeader(r io.Reader) (string, error) {
	var cram fileDefinition
	if err := read(r, &cram); err != nil {
		return "", fmt.Errorf("reading file definition: %v", err)
	}
	if cram.Magic != magic {
		return "", fmt.Errorf("invalid magic value, got: %08x, want: %08x", cram.Magic, magic)
	}

	if err := cram.skipContainerHeader(r); err != nil {
		return "", fmt.Errorf("reading container header: %v", err)
	}

	bh, err := cram.readBlockHeader(r)
	if err != nil {
		return "", fmt.Errorf("reading block header: %v", err)
	}

	switch bh.Method {
	case methodRaw:
		r = io.LimitReader(r, int64(bh.Length))
	case methodGzip:
		gz, err := gzip.NewReader(io.LimitReader(r, int64(bh.Length)))
		if err != nil {
			return "", fmt.Errorf("reading gzipped header: %v", err)
		}
		defer gz.Close()

		// Without this, the gzip reader may read past the end of the header archive.
		gz.Multistream(false)
		r = gz
	default:
		return "", fmt.Errorf("unsupported header block compression method %d", bh.Method)
	}

	var length int32
	if err := read(r, &length); err != nil {
		return "", fmt.Errorf("reading header length: %v", err)
	}
	if length < 0 || length > maximumHeaderLength {
		return "", fmt.Errorf("invalid header length (%d bytes)", length)
	}
	text := make([]byte, length)
	if _, err := io.ReadFull(r, text); err != nil {
		return "", fmt.Errorf("reading header text: %v", err)
	}
	return string(text), nil
}

func (cram *fileDefinition) skipContainerHeader(r io.Reader) error {
	var skip int32
	if err := read(r, &skip); err != nil {
		return fmt.Errorf("skipping length: %v", err)
	}

	for i := 0; i < 7; i++ {
		if err := readITF8(r, &skip); err != nil {
			return fmt.Errorf("skipping header field: %v", err)
		}
	}

	var landmarkCount int32
	if err := readITF8(r, &landmarkCount); err != nil {
		return fmt.Errorf("skipping landmark count: %v", err)
	}
	for i := 0; i < int(landmarkCount); i++ {
		if err := readITF8(r, &skip); err != nil {
			return fmt.Errorf("skipping landmark %d: %v", i, err)
		}
	}

	if cram.MajorVersion >= 3 {
		if err := read(r, &skip); err != nil {
			return fmt.Errorf("skipping CRC: %v", err)
		}
	}

	return nil
}

func (cram *fileDefinition) readBlockHeader(r io.Reader) (*blockHeader, error) {
	var block blockHeader
	if err := read(r, &block.Method); err != nil {
		return nil, fmt.Errorf("reading method: %v", err)
	}
	if err := read(r, &block.ContentType); err != nil {
		return nil, fmt.Errorf("reading content type: %v", err)
	}

	if err := readITF8(r, &block.ContentID); err != nil {
		return nil, fmt.Errorf("reading content ID: %v", err)
	}
	if err := readITF8(r, &block.Length); err != nil {
		return nil, fmt.Errorf("reading length: %v", err)
	}
	if err := readITF8(r, &block.RawLength); err != nil {
		return nil, fmt.Errorf("reading raw length: %v", err)
	}
	if block.Length < 0 {
		return nil, fmt.Errorf("invalid block length (%d bytes)", block.Length)
	}

	return &block, nil
}

func readITF8(r io.Reader, i *int32) error {
	bytes := make([]byte, 1, 5)
	if _, err := io.ReadFull(r, bytes); err != nil {
		return fmt.Errorf("reading first byte: %v", err)
	}

	bytes = bytes[:countLeadingOnes(bytes[0])+1]
	if _, err := io.ReadFull(r, bytes[1:]); err != nil {
		return fmt.Errorf("reading remaining bytes: %v", err)
	}

	switch n := len(bytes); n {
	case 1:
		*i = int32(bytes[0])
	case 2:
		*i = int32(uint32(bytes[0]&0x7f)<<8 | uint32(bytes[1]))
	case 3:
		*i = int32(uint32(bytes[0]&0x3f)<<16 | uint32(bytes[1])<<8 | uint32(bytes[2]))
	case 4:
		*i = int32(uint32(bytes[0]&0x1f)<<24 | uint32(bytes[1])<<16 | uint32(bytes[2])<<8 | uint32(bytes[3]))
	case 5:
		*i = int32(uint32(bytes[0]&0x0f)<<28 | uint32(bytes[1])<<20 | uint32(bytes[2])<<12 | uint32(bytes[3])<<4 | uint32(bytes[4]&0x0f))
	default:
		panic(fmt.Sprintf("invalid ITF8 length: %d", n))
	}

	return nil
}

func countLeadingOnes(b byte) int {
	for i := 0; i < 4; i++ {
		if b&0x80 == 0 {
			return i
		}
		b <<= 1
	}
	return 4
}

func read(r io.Reader, v interface{}) error {
	return binary.Read(r, binary.LittleEndian, v)
}
