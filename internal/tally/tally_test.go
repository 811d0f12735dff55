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

package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGather(t *testing.T) {
	testCases := []struct {
		name  string
		lists [][]Count
		want  Tally
	}{
		{"empty", nil, Tally{}},
		{"single", [][]Count{{{"GRCh37", 3}}}, Tally{"GRCh37": 3}},
		{
			"repeated keys across lists",
			[][]Count{
				{{"GRCh37", 3}, {"GRCh38", 1}},
				{{"GRCh37", 2}, {"T2T", 4}},
			},
			Tally{"GRCh37": 5, "GRCh38": 1, "T2T": 4},
		},
		{
			"repeated keys within a list",
			[][]Count{{{"hg18", 1}, {"hg18", 1}, {"hg18", 0}}},
			Tally{"hg18": 2},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Gather(tc.lists...))
		})
	}
}

func TestGatherOrderIndependent(t *testing.T) {
	a := []Count{{"GRCh37", 10}, {"GRCh38", 2}}
	b := []Count{{"GRCh38", 7}, {"T2T", 1}}
	c := []Count{{"GRCh37", 1}}

	want := Gather(a, b, c)
	assert.Equal(t, want, Gather(c, b, a))
	assert.Equal(t, want, Gather(b, a, c))

	// Merging partial tallies is the same as gathering everything at once.
	left := Gather(a)
	left.Merge(Gather(b, c))
	assert.Equal(t, want, left)
}

func TestBest(t *testing.T) {
	_, _, ok := Tally{}.Best()
	assert.False(t, ok)

	build, n, ok := Tally{"GRCh37": 4, "GRCh38": 9, "T2T": 9}.Best()
	assert.True(t, ok)
	assert.Equal(t, "GRCh38", build)
	assert.Equal(t, int64(9), n)
}

func TestTotalAndClone(t *testing.T) {
	orig := Tally{"GRCh37": 51, "GRCh38": 49}
	assert.Equal(t, int64(100), orig.Total())

	c := orig.Clone()
	c.Add(Count{"GRCh37", 1})
	assert.Equal(t, int64(51), orig["GRCh37"])
	assert.Equal(t, int64(52), c["GRCh37"])
}
