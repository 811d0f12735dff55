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

// Package sam extracts the reference dictionary from SAM header text.
package sam

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"regexp"
	"strconv"
	"strings"

	"github.com/biogo/hts/sam"
)

var tagRe = regexp.MustCompile(`(?:^|\s)(SN|LN|AS|M5):(\S+)`)

// Header is the reference evidence found in a SAM header.
type Header struct {
	// Contigs maps each @SQ name to its length.
	Contigs map[string]int64
	// Names lists the @SQ names in header order.
	Names []string
	// Assembly is the first AS value of any @SQ line.
	Assembly string
	// MD5 maps @SQ names to their M5 checksums, in lower-case hex.
	MD5 map[string]string
}

// ErrNoReferences is returned when a header has no usable @SQ lines.
var ErrNoReferences = errors.New("no @SQ lines with a name and length")

// Parse reads SAM header text from r.  Headers are parsed strictly first; a
// header that is not well-formed is scanned leniently for @SQ lines instead
// so that minor defects elsewhere in the header do not hide the dictionary.
func Parse(r io.Reader) (*Header, error) {
	text, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading header: %v", err)
	}
	h, strictErr := parseStrict(text)
	if strictErr != nil {
		h, err = parseLenient(text)
		if err != nil {
			return nil, fmt.Errorf("reading header: %v", err)
		}
	}
	if len(h.Contigs) == 0 {
		if strictErr != nil {
			return nil, fmt.Errorf("%w (%v)", ErrNoReferences, strictErr)
		}
		return nil, ErrNoReferences
	}
	return h, nil
}

func newHeader() *Header {
	return &Header{Contigs: make(map[string]int64), MD5: make(map[string]string)}
}

func (h *Header) add(name string, length int64, assembly, md5 string) {
	if _, ok := h.Contigs[name]; !ok {
		h.Names = append(h.Names, name)
	}
	h.Contigs[name] = length
	if h.Assembly == "" {
		h.Assembly = assembly
	}
	if md5 != "" {
		h.MD5[name] = strings.ToLower(md5)
	}
}

func parseStrict(text []byte) (*Header, error) {
	sh, err := sam.NewHeader(text, nil)
	if err != nil {
		return nil, err
	}
	h := newHeader()
	for _, ref := range sh.Refs() {
		var md5 string
		if sum := ref.MD5(); len(sum) > 0 {
			md5 = hex.EncodeToString(sum)
		}
		h.add(ref.Name(), int64(ref.Len()), ref.AssemblyID(), md5)
	}
	return h, nil
}

// @SQ SN:foo LN:5 AS:bar M5:...
func parseLenient(text []byte) (*Header, error) {
	h := newHeader()
	scanner := bufio.NewScanner(strings.NewReader(string(text)))
	scanner.Buffer(make([]byte, 64*1024), len(text)+1)
	for scanner.Scan() {
		if !strings.HasPrefix(scanner.Text(), "@SQ") {
			continue
		}
		var (
			name, assembly, md5 string
			length              int64
		)
		for _, tag := range tagRe.FindAllStringSubmatch(scanner.Text(), -1) {
			switch tag[1] {
			case "SN":
				name = tag[2]
			case "LN":
				length, _ = strconv.ParseInt(tag[2], 10, 64)
			case "AS":
				assembly = tag[2]
			case "M5":
				md5 = tag[2]
			}
		}
		if name != "" && length > 0 {
			h.add(name, length, assembly, md5)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return h, nil
}
