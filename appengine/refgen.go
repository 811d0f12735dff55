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

// Package refgen deploys the inference service on App Engine.
//
// The table storage root is read from REFGEN_TABLES (typically a gs://
// location) and an optional catalog file from REFGEN_CATALOG.
package refgen

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"
	"google.golang.org/appengine"

	"github.com/googlegenomics/refgen/detect"
	"github.com/googlegenomics/refgen/internal/config"
	"github.com/googlegenomics/refgen/server"
)

const maxBodyBytes = 8 * 1024 * 1024

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	c, cache, err := config.Open(context.Background(), config.Sources{})
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	d := detect.New(c, cache, detect.Options{}, nil)
	http.Handle("/", withAppEngineContext(server.New(d, cache, maxBodyBytes, nil).Handler()))
}

// withAppEngineContext serves requests with an App Engine request context so
// that cancellation follows the App Engine request deadline.
func withAppEngineContext(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		h.ServeHTTP(w, req.WithContext(appengine.NewContext(req)))
	})
}
