// Copyright 2017 Google Inc.
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

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS is a Store backed by a Google Cloud Storage bucket.
type GCS struct {
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// NewGCS returns a Store reading tables stored under prefix in bucket.  If
// token is non-empty it is used as an OAuth2 bearer token, otherwise the
// application default credentials are used.
func NewGCS(ctx context.Context, bucket, prefix, token string) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket required")
	}
	var opts []option.ClientOption
	if token != "" {
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{
			TokenType:   "Bearer",
			AccessToken: token,
		})))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %v", err)
	}
	return &GCS{client.Bucket(bucket), bucket, prefix}, nil
}

// Check implements Store.  A bucket that exists but holds nothing under the
// prefix is treated as unavailable.
func (g *GCS) Check(ctx context.Context) error {
	if _, err := g.bucket.Attrs(ctx); err != nil {
		return g.storageError(err)
	}
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: g.prefix})
	if _, err := it.Next(); err == iterator.Done {
		return fmt.Errorf("%s: no objects: %w", g, ErrUnavailable)
	} else if err != nil {
		return g.storageError(err)
	}
	return nil
}

// Open implements Store.
func (g *GCS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := g.bucket.Object(joinPrefix(g.prefix, name)).NewReader(ctx)
	if err != nil {
		return nil, g.storageError(err)
	}
	return r, nil
}

func (g *GCS) String() string {
	return "gs://" + joinPrefix(g.name, g.prefix)
}

func (g *GCS) storageError(err error) error {
	switch err {
	case storage.ErrBucketNotExist:
		return fmt.Errorf("%s: %w", g, ErrUnavailable)
	case storage.ErrObjectNotExist:
		return fmt.Errorf("%s: %w", g, ErrNotFound)
	}
	if err, ok := err.(*googleapi.Error); ok {
		switch err.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: access denied: %v", g, err)
		}
	}
	return fmt.Errorf("%s: %v", g, err)
}
