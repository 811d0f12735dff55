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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/googlegenomics/refgen/internal/binary"
)

const (
	bcfMagic = "BCF\x02"
)

// ParseContig parses a ##contig=<ID=..,length=..> header line.  ok is false
// for other lines and for contig lines without a usable length.
func ParseContig(line string) (name string, length int64, ok bool) {
	if !strings.HasPrefix(line, "##contig=<") {
		return "", 0, false
	}
	name = contigField(line, "ID")
	length, err := strconv.ParseInt(contigField(line, "length"), 10, 64)
	if name == "" || err != nil || length <= 0 {
		return "", 0, false
	}
	return name, length, true
}

// ReadBCFHeader returns the contig dictionary declared in the header of a
// BGZF-compressed BCF file.
func ReadBCFHeader(bcf io.Reader) (map[string]int64, error) {
	gzr, err := gzip.NewReader(bcf)
	if err != nil {
		return nil, fmt.Errorf("initializing gzip reader: %v", err)
	}
	defer gzr.Close()

	if err := binary.ExpectBytes(gzr, []byte(bcfMagic)); err != nil {
		return nil, fmt.Errorf("checking magic: %v", err)
	}
	var minor uint8
	if err := binary.Read(gzr, &minor); err != nil {
		return nil, fmt.Errorf("reading minor version: %v", err)
	}

	var length uint32
	if err := binary.Read(gzr, &length); err != nil {
		return nil, fmt.Errorf("reading header length: %v", err)
	}

	contigs := make(map[string]int64)
	scanner := bufio.NewScanner(io.LimitReader(gzr, int64(length)))
	scanner.Buffer(make([]byte, 64*1024), int(length)+1)
	for scanner.Scan() {
		line := scanner.Text()
		if name, n, ok := ParseContig(line); ok {
			contigs[name] = n
		} else if strings.HasPrefix(line, "#CHROM") {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning header: %v", err)
	}
	return contigs, nil
}

func contigField(input, name string) string {
	field := fmt.Sprintf("%s=", name)
	for {
		start := strings.Index(input, field)
		if start == -1 {
			return ""
		}
		if start > 0 && !isDelimiter(input[start-1]) {
			input = input[start+len(field):]
			continue
		}
		input = input[start+len(field):]
		if end := strings.IndexAny(input, ",>"); end >= 0 {
			return input[:end]
		}
		return input
	}
}

func isDelimiter(chr byte) bool {
	return chr == ',' || chr == '<'
}
