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

// This binary submits headers and variant files to a refgen server and
// prints the JSON reports it returns.  It supports Google authentication for
// servers deployed behind an identity-aware proxy.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	scope = "https://www.googleapis.com/auth/userinfo.email"
)

var (
	serverURL = flag.String("server", "http://localhost", "refgen server base URL")
	fileType  = flag.String("type", "VCF", "type of every input: Headers, VCF or BIM")
	matches   = flag.Int64("matches", 0, "stop once the matches exceed this count (0: server default)")
	variants  = flag.Int64("variants", 0, "stop after this many rows (0: server default)")
	threshold = flag.Float64("threshold", 0, "share of all matches the inferred build must exceed (0: server default)")
	auth      = flag.Bool("auth", false, "authenticate with Google application default credentials")
	output    = flag.String("o", "", "output filename")
)

func main() {
	flag.Parse()

	w := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to open output file: %v", err)
		}
		defer f.Close()

		w = f
	}

	target, err := endpoint(*serverURL, *fileType, *matches, *variants, *threshold)
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}

	ctx := context.Background()

	// For compatibility with other tools, read the standard cURL certificate
	// authority override from the environment.
	if bundle := os.Getenv("CURL_CA_BUNDLE"); bundle != "" {
		pem, err := ioutil.ReadFile(bundle)
		if err != nil {
			log.Fatalf("Failed to read CA override file %q: %v", bundle, err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			log.Fatalf("Failed to initialize system certificate pool: %v", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			log.Fatalf("Failed to add certificates from bundle %q", bundle)
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs: pool,
				}},
		})
		log.Printf("Using CA override bundle from %q", bundle)
	}

	client := http.DefaultClient
	if c, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok {
		client = c
	}
	if *auth {
		if client, err = google.DefaultClient(ctx, scope); err != nil {
			log.Fatalf("Failed to create client: %v", err)
		}
	}

	for _, path := range flag.Args() {
		if err := submit(client, target, path, w); err != nil {
			log.Fatalf("%s: %v", path, err)
		}
	}
}

// endpoint returns the URL inputs of the given type are posted to.
func endpoint(base, fileType string, matches, variants int64, threshold float64) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parsing server URL: %v", err)
	}
	values := url.Values{}
	switch strings.ToUpper(fileType) {
	case "HEADERS":
		u.Path += "/v1/header/sam"
	case "VCF", "BIM":
		u.Path += "/v1/variants"
		values.Set("format", strings.ToUpper(fileType))
		if matches > 0 {
			values.Set("matches", strconv.FormatInt(matches, 10))
		}
		if variants > 0 {
			values.Set("variants", strconv.FormatInt(variants, 10))
		}
		if threshold > 0 {
			values.Set("threshold", strconv.FormatFloat(threshold, 'g', -1, 64))
		}
	default:
		return "", fmt.Errorf("unsupported type %q", fileType)
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// submit posts the file at path to target and copies the report to w.
func submit(client *http.Client, target, path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		log.Printf("Sending %q (%s)", path, humanSize(info.Size()))
	}
	resp, err := client.Post(target, "application/octet-stream", f)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorFromResponse(resp)
	}
	var report map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return fmt.Errorf("decoding response: %v", err)
	}
	report["path"] = path
	return json.NewEncoder(w).Encode(report)
}

func humanSize(n int64) string {
	kb := n / 1024
	mb := kb / 1024
	gb := mb / 1024
	if gb > 1 {
		return fmt.Sprintf("%d GB", gb)
	}
	if mb > 1 {
		return fmt.Sprintf("%d MB", mb)
	}
	if kb > 1 {
		return fmt.Sprintf("%d KB", kb)
	}
	return fmt.Sprintf("%d bytes", n)
}

func errorFromResponse(resp *http.Response) error {
	v := make(map[string]string)
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return fmt.Errorf("unexpected response status %q: parsing response body: %v", resp.Status, err)
	}
	if message, ok := v["message"]; ok {
		return fmt.Errorf("%s: %v", v["error"], message)
	}
	return fmt.Errorf("unexpected response status: %q", resp.Status)
}
