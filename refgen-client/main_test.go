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

package main

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoint(t *testing.T) {
	testCases := []struct {
		name     string
		base     string
		fileType string
		matches  int64
		want     string
	}{
		{"headers", "http://localhost/", "Headers", 0, "http://localhost/v1/header/sam"},
		{"vcf", "https://refgen.example.org", "vcf", 0, "https://refgen.example.org/v1/variants?format=VCF"},
		{"bim with limit", "http://localhost:8080/api", "BIM", 500, "http://localhost:8080/api/v1/variants?format=BIM&matches=500"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := endpoint(tc.base, tc.fileType, tc.matches, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := endpoint("http://localhost", "BAM", 0, 0, 0)
	assert.Error(t, err)
}

func TestSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := ioutil.ReadAll(req.Body)
		if len(body) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "InvalidInput", "message": "empty body"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"type": "VCF", "size": len(body)})
	}))
	defer srv.Close()

	dir := t.TempDir()
	full := filepath.Join(dir, "a.vcf")
	require.NoError(t, os.WriteFile(full, []byte("1\t100\t.\tA\tG\n"), 0644))
	empty := filepath.Join(dir, "b.vcf")
	require.NoError(t, os.WriteFile(empty, nil, 0644))

	var buf bytes.Buffer
	require.NoError(t, submit(srv.Client(), srv.URL, full, &buf))
	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, full, report["path"])
	assert.Equal(t, float64(12), report["size"])

	err := submit(srv.Client(), srv.URL, empty, &buf)
	assert.EqualError(t, err, "InvalidInput: empty body")
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 bytes", humanSize(512))
	assert.Equal(t, "3 KB", humanSize(3*1024))
	assert.Equal(t, "5 MB", humanSize(5*1024*1024))
	assert.Equal(t, "2 GB", humanSize(2*1024*1024*1024))
}
