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

package table

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseTSV reads "position<TAB>allele" lines into a table for build on
// chromosome.  Blank lines and lines starting with '#' are skipped.  A
// position listed twice must carry the same allele both times.
func ParseTSV(r io.Reader, build, chromosome string) (*Table, error) {
	alleles := make(map[uint32]byte)
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want 2 fields, got %d", line, len(fields))
		}
		pos, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil || pos == 0 {
			return nil, fmt.Errorf("line %d: invalid position %q", line, fields[0])
		}
		if len(fields[1]) != 1 {
			return nil, fmt.Errorf("line %d: allele %q is not a single base", line, fields[1])
		}
		a := upper(fields[1][0])
		if prev, ok := alleles[uint32(pos)]; ok && prev != a {
			return nil, fmt.Errorf("line %d: position %d listed with alleles %c and %c", line, pos, prev, a)
		}
		alleles[uint32(pos)] = a
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading positions: %v", err)
	}
	return New(build, chromosome, alleles), nil
}
