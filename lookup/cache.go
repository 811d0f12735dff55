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

// Package lookup provides the process-lifetime cache of allele lookup tables.
//
// Tables are loaded from a store.Store on first request for a given (build,
// chromosome) key and shared, read-only, for the rest of the run.  The cache
// is safe for concurrent use; concurrent requests for the same key share one
// load.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/googlegenomics/refgen/internal/table"
	"github.com/googlegenomics/refgen/store"
)

// ErrCatalogUnavailable is returned when the table storage root does not
// exist.  It is the only condition that should abort a whole run.
var ErrCatalogUnavailable = errors.New("reference catalog unavailable")

type key struct {
	build, chromosome string
}

type entry struct {
	mu    sync.Mutex
	done  bool
	table *table.Table
	err   error
}

// Cache loads and retains lookup tables.  Create one with New.
type Cache struct {
	store store.Store

	checkMu  sync.Mutex
	checked  bool
	checkErr error

	mu      sync.Mutex
	entries map[key]*entry

	loads int64
}

// New returns an empty cache reading tables from s.
func New(s store.Store) *Cache {
	return &Cache{store: s, entries: make(map[key]*entry)}
}

// Check verifies that the storage root exists.  The error wraps
// ErrCatalogUnavailable when it does not.  Success and a missing root are
// remembered for the life of the cache; other errors are returned and the
// next call checks again.
func (c *Cache) Check(ctx context.Context) error {
	c.checkMu.Lock()
	defer c.checkMu.Unlock()
	if c.checked {
		return c.checkErr
	}
	err := c.store.Check(ctx)
	switch {
	case err == nil:
		c.checked = true
	case errors.Is(err, store.ErrUnavailable):
		c.checked = true
		c.checkErr = fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	default:
		return fmt.Errorf("checking table storage: %v", err)
	}
	return c.checkErr
}

// Table returns the table for build on chromosome.  A table that does not
// exist yields an error wrapping store.ErrNotFound; that outcome is
// remembered just like a successful load.  Other load errors are returned
// but not remembered, so a later request retries.
func (c *Cache) Table(ctx context.Context, build, chromosome string) (*table.Table, error) {
	if err := c.Check(ctx); err != nil {
		return nil, err
	}

	k := key{build, chromosome}
	c.mu.Lock()
	e, ok := c.entries[k]
	if !ok {
		e = &entry{}
		c.entries[k] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return e.table, e.err
	}
	t, err := c.load(ctx, build, chromosome)
	if err == nil || errors.Is(err, store.ErrNotFound) {
		e.done, e.table, e.err = true, t, err
	}
	return t, err
}

func (c *Cache) load(ctx context.Context, build, chromosome string) (*table.Table, error) {
	r, err := c.store.Open(ctx, store.Key(build, chromosome))
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
		return nil, err
	}
	defer r.Close()

	atomic.AddInt64(&c.loads, 1)
	t, err := table.Read(r)
	if err != nil {
		return nil, fmt.Errorf("reading table %s: %v", store.Key(build, chromosome), err)
	}
	if t.Build != build || t.Chromosome != chromosome {
		return nil, fmt.Errorf("table %s holds %s-%s", store.Key(build, chromosome), t.Build, t.Chromosome)
	}
	return t, nil
}

// Loads returns the number of tables read from storage so far.
func (c *Cache) Loads() int64 {
	return atomic.LoadInt64(&c.loads)
}

// Len returns the number of tables currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		e.mu.Lock()
		if e.done && e.table != nil {
			n++
		}
		e.mu.Unlock()
	}
	return n
}
