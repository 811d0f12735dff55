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

// Package binary provides support for operating on little endian binary data.
package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ExpectBytes reads len(want) bytes from r and reports an error unless they
// are equal to want.
func ExpectBytes(r io.Reader, want []byte) error {
	got := make([]byte, len(want))
	if _, err := io.ReadFull(r, got); err != nil {
		return fmt.Errorf("reading magic: %v", err)
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("wrong magic %v (wanted %v)", got, want)
	}
	return nil
}

// Read reads a little endian value from r into v using binary.Read.
func Read(r io.Reader, v interface{}) error {
	return binary.Read(r, binary.LittleEndian, v)
}

// Write writes v to w in little endian byte order.
func Write(w io.Writer, v interface{}) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// ReadString reads a uint16 length followed by that many bytes.
func ReadString(r io.Reader) (string, error) {
	var n uint16
	if err := Read(r, &n); err != nil {
		return "", fmt.Errorf("reading string length: %v", err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("reading string: %v", err)
	}
	return string(buf), nil
}

// WriteString writes s in the format read by ReadString.
func WriteString(w io.Writer, s string) error {
	if len(s) > 0xffff {
		return fmt.Errorf("string too long (%d bytes)", len(s))
	}
	if err := Write(w, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadCString reads exactly n bytes and returns them without the trailing
// NUL terminator, which must be present.
func ReadCString(r io.Reader, n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("invalid string length (%d bytes)", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("reading string: %v", err)
	}
	if buf[n-1] != 0 {
		return "", fmt.Errorf("string is not NUL terminated")
	}
	return string(buf[:n-1]), nil
}
