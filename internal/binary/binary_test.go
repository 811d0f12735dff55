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

package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectBytes(t *testing.T) {
	testCases := []struct {
		want  []byte
		input []byte
		match bool
	}{
		{[]byte("RGTB"), []byte("RGTB"), true},
		{[]byte("RGTB"), []byte("RGTB\x01EXTRA"), true},
		{[]byte("BAM\x01"), []byte("BAM\x02"), false},
		{[]byte("BAM\x01"), []byte("BAM"), false},
		{[]byte("BAM\x01"), []byte(""), false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.input), func(t *testing.T) {
			err := ExpectBytes(bytes.NewReader(tc.input), tc.want)
			if tc.match {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteString(&buf, "GRCh38"))
	require.NoError(t, WriteString(&buf, ""))

	got, err := ReadString(&buf)
	require.NoError(t, err)
	assert.Equal(t, "GRCh38", got)
	got, err = ReadString(&buf)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = ReadString(&buf)
	assert.Error(t, err)
}

func TestReadCString(t *testing.T) {
	got, err := ReadCString(bytes.NewReader([]byte("chr1\x00rest")), 5)
	require.NoError(t, err)
	assert.Equal(t, "chr1", got)

	_, err = ReadCString(bytes.NewReader([]byte("chr1x")), 5)
	assert.Error(t, err)

	_, err = ReadCString(bytes.NewReader([]byte("chr")), 5)
	assert.Error(t, err)

	_, err = ReadCString(bytes.NewReader(nil), 0)
	assert.Error(t, err)
}
