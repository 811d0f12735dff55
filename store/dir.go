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

package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Dir is a Store backed by a local directory.
type Dir struct {
	root string
}

// NewDir returns a Store reading tables from the directory root.
func NewDir(root string) *Dir {
	return &Dir{root}
}

// Check implements Store.
func (d *Dir) Check(_ context.Context) error {
	fi, err := os.Stat(d.root)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", d.root, ErrUnavailable)
	} else if err != nil {
		return fmt.Errorf("stat %s: %v", d.root, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory: %w", d.root, ErrUnavailable)
	}
	return nil
}

// Open implements Store.
func (d *Dir) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(d.root, filepath.Base(name)))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return f, err
}

func (d *Dir) String() string {
	return d.root
}
