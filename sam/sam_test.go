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

package sam

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	text := "@HD\tVN:1.6\tSO:coordinate\n" +
		"@SQ\tSN:1\tLN:249250621\tAS:GRCh37\tM5:1B22B98CDEB4A9304CB5D48026A85128\n" +
		"@SQ\tSN:MT\tLN:16569\n" +
		"@PG\tID:bwa\tPN:bwa\n"
	h, err := Parse(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"1": 249250621, "MT": 16569}, h.Contigs)
	assert.Equal(t, []string{"1", "MT"}, h.Names)
	assert.Equal(t, "GRCh37", h.Assembly)
	assert.Equal(t, map[string]string{"1": "1b22b98cdeb4a9304cb5d48026a85128"}, h.MD5)
}

func TestParseLenient(t *testing.T) {
	text := "@SQ\tSN:chr1\tLN:248956422\n" +
		"@SQ\tSN:chr2\tLN:notanumber\n" +
		"@SQ\tSN:chrM\tLN:16569\tAS:hg38\n"
	h, err := Parse(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"chr1": 248956422, "chrM": 16569}, h.Contigs)
	assert.Equal(t, []string{"chr1", "chrM"}, h.Names)
	assert.Equal(t, "hg38", h.Assembly)
}

func TestParseLenientKeepsTrailingCharacters(t *testing.T) {
	text := "@SQ\tSN:chrUn_gl000220.\tLN:161802\tAS:GRCh37.p13*\n" +
		"@SQ\tSN:HLA-A*01:01:01:01\tLN:3503\tM5:abc*\n" +
		"@SQ SN:chr1 LN:249250621\n"
	h, err := parseLenient([]byte(text))
	require.NoError(t, err)
	assert.Equal(t, []string{"chrUn_gl000220.", "HLA-A*01:01:01:01", "chr1"}, h.Names)
	assert.Equal(t, int64(3503), h.Contigs["HLA-A*01:01:01:01"])
	assert.Equal(t, "GRCh37.p13*", h.Assembly)
	assert.Equal(t, "abc*", h.MD5["HLA-A*01:01:01:01"])
}

func TestParseNoReferences(t *testing.T) {
	for _, text := range []string{
		"",
		"@HD\tVN:1.6\n@CO\tno dictionary\n",
		"@SQ\tSN:chr1\tLN:x\n",
	} {
		_, err := Parse(strings.NewReader(text))
		assert.True(t, errors.Is(err, ErrNoReferences), "%q: got %v", text, err)
	}
}
