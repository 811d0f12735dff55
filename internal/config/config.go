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

// Package config resolves the catalog and table storage shared by the
// refgen binaries from flags and environment variables.
package config

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/googlegenomics/refgen/catalog"
	"github.com/googlegenomics/refgen/lookup"
	"github.com/googlegenomics/refgen/store"
)

const (
	// TablesEnv names the table storage root when no flag is given.
	TablesEnv = "REFGEN_TABLES"
	// CatalogEnv names a catalog YAML file when no flag is given.
	CatalogEnv = "REFGEN_CATALOG"

	// DefaultTables is the table storage root used when neither the flag
	// nor the environment names one.
	DefaultTables = "tables"
)

// Sources names where the catalog and the tables come from.  Empty fields
// fall back to the environment, then to the defaults.
type Sources struct {
	Catalog string
	Tables  string
}

func (s Sources) resolve() Sources {
	if s.Catalog == "" {
		s.Catalog = os.Getenv(CatalogEnv)
	}
	if s.Tables == "" {
		s.Tables = os.Getenv(TablesEnv)
	}
	if s.Tables == "" {
		s.Tables = DefaultTables
	}
	return s
}

// Open loads the catalog and opens a table cache over the storage root.  An
// empty catalog path selects the built-in catalog.  The storage root is not
// checked here; the first table lookup reports it if it is unavailable.
func Open(ctx context.Context, s Sources) (*catalog.Catalog, *lookup.Cache, error) {
	s = s.resolve()
	c := catalog.Default()
	if s.Catalog != "" {
		var err error
		if c, err = catalog.LoadFile(s.Catalog); err != nil {
			return nil, nil, err
		}
	}
	st, err := store.Open(ctx, s.Tables)
	if err != nil {
		return nil, nil, fmt.Errorf("opening table storage %q: %v", s.Tables, err)
	}
	log.WithFields(log.Fields{
		"catalog": catalogName(s.Catalog),
		"tables":  st.String(),
		"builds":  c.TableBuilds(),
	}).Debug("configuration loaded")
	return c, lookup.New(st), nil
}

func catalogName(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}
