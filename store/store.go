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

// Package store provides access to persisted lookup tables.
//
// Tables are addressed by name (see Key) relative to a storage root.  A
// storage root can be a local directory, a Google Cloud Storage location
// (gs://bucket/prefix) or an S3 location (s3://bucket/prefix).
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

var (
	// ErrNotFound is returned by Open when the named table does not exist.
	// It is recoverable: the table is simply not part of the catalog.
	ErrNotFound = errors.New("table not found")

	// ErrUnavailable is returned when the storage root itself does not exist.
	// No inference based on tables can be trusted without it.
	ErrUnavailable = errors.New("table storage unavailable")
)

// Store is a read-only collection of named table files.
type Store interface {
	// Check returns an error wrapping ErrUnavailable if the storage root does
	// not exist.
	Check(ctx context.Context) error

	// Open returns a reader for the named table, or an error wrapping
	// ErrNotFound if no such table exists.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// String describes the storage root for diagnostics.
	String() string
}

// Key returns the name of the table holding alleles of build on chromosome.
func Key(build, chromosome string) string {
	return fmt.Sprintf("%s-%s.rgt", build, chromosome)
}

// Open returns the Store described by location.  Locations with a gs:// or
// s3:// scheme are opened with NewGCS and NewS3; anything else is treated as
// a local directory.
//
// GCS and S3 options are taken from the environment:
//
//	REFGEN_GCS_TOKEN      OAuth2 bearer token (default: application credentials)
//	REFGEN_S3_REGION      region (default us-east-1)
//	REFGEN_S3_ENDPOINT    custom endpoint, e.g. for MinIO
//	REFGEN_S3_PATH_STYLE  "true" to use path style addressing
func Open(ctx context.Context, location string) (Store, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		if err == nil && u.Scheme == "file" {
			location = u.Path
		}
		return NewDir(location), nil
	}

	prefix := strings.TrimPrefix(u.Path, "/")
	switch u.Scheme {
	case "gs":
		return NewGCS(ctx, u.Host, prefix, os.Getenv("REFGEN_GCS_TOKEN"))
	case "s3":
		return NewS3(ctx, S3Config{
			Bucket:    u.Host,
			Prefix:    prefix,
			Region:    os.Getenv("REFGEN_S3_REGION"),
			Endpoint:  os.Getenv("REFGEN_S3_ENDPOINT"),
			PathStyle: strings.EqualFold(os.Getenv("REFGEN_S3_PATH_STYLE"), "true"),
		})
	}
	return nil, fmt.Errorf("unsupported storage scheme %q", u.Scheme)
}

func joinPrefix(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}
