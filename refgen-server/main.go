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

// This binary provides an HTTP service inferring reference genome builds
// from contig dictionaries and variant files.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/googlegenomics/refgen/detect"
	"github.com/googlegenomics/refgen/internal/config"
	"github.com/googlegenomics/refgen/server"
	"github.com/googlegenomics/refgen/variant"
)

var (
	port         = flag.Int("port", 80, "HTTP service port")
	maxBodyBytes = flag.Int64("max_body_bytes", server.DefaultMaxBodyBytes, "request body size limit")

	secure    = flag.Bool("secure", false, "serve in HTTPS-only mode")
	httpsCert = flag.String("https_cert", "", "HTTPS certificate file")
	httpsKey  = flag.String("https_key", "", "HTTPS key file")

	catalogFile = flag.String("catalog", "", "catalog YAML file (default $"+config.CatalogEnv+", else built-in)")
	tables      = flag.String("tables", "", "lookup table storage: directory, gs:// or s3:// location (default $"+config.TablesEnv+")")

	matches   = flag.Int64("matches", 0, "default match limit for variant requests (0: none)")
	chunkSize = flag.Int("chunk_size", 100000, "variant rows per chunk")
	threshold = flag.Float64("threshold", variant.DefaultThreshold, "default share of all matches the inferred build must exceed")

	verbose = flag.Bool("v", false, "log debugging information")
)

func main() {
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if *secure && (*httpsCert == "" || *httpsKey == "") {
		log.Fatalf("You must specify both -https_cert and -https_key in secure mode.")
	}
	if *threshold <= 0 || *threshold >= 1 {
		log.Fatalf("Invalid -threshold %v: must be between 0 and 1", *threshold)
	}

	ctx := context.Background()
	c, cache, err := config.Open(ctx, config.Sources{Catalog: *catalogFile, Tables: *tables})
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cache.Check(ctx); err != nil {
		log.Fatalf("Refusing to start: %v", err)
	}

	d := detect.New(c, cache, detect.Options{
		Variant: variant.Options{
			StopAfterMatches: *matches,
			Threshold:        *threshold,
		},
		ChunkSize: *chunkSize,
	}, nil)
	handler := server.New(d, cache, *maxBodyBytes, nil).Handler()

	address := fmt.Sprintf(":%d", *port)
	log.WithField("address", address).Info("serving")
	if *secure {
		if err := http.ListenAndServeTLS(address, *httpsCert, *httpsKey, handler); err != nil {
			log.Fatalf("HTTPS server returned an error: %v", err)
		}
	} else {
		if err := http.ListenAndServe(address, handler); err != nil {
			log.Fatalf("HTTP server returned an error: %v", err)
		}
	}
}
