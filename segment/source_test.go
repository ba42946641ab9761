// Copyright 2019 Michael J. Fromberger. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build unix

package segment_test

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/creachadair/fletchseg/segment"
)

// TestOpenFileDuplicatesHandle exercises the handle-ownership contract
// described in OpenFile's doc comment: the Segmenter reads from a
// duplicate file descriptor, so closing the caller's *os.File does not
// affect the Segmenter, and closing the Segmenter does not affect a still
// -open caller handle.
func TestOpenFileDuplicatesHandle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data")

	rng := rand.New(rand.NewSource(141421356))
	data := make([]byte, 9000)
	rng.Read(data)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Run("closing the caller's handle does not affect the Segmenter", func(t *testing.T) {
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		s, err := testConfig.OpenFile(f)
		if err != nil {
			f.Close()
			t.Fatalf("OpenFile: %v", err)
		}

		// Closing the original handle immediately must not disturb reads
		// through the duplicate the Segmenter owns.
		if err := f.Close(); err != nil {
			t.Fatalf("Close (original handle): %v", err)
		}

		var got []byte
		if err := s.Split(func(seg []byte) error {
			got = append(got, seg...)
			return nil
		}); err != nil {
			t.Fatalf("Split: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("Split after closing original handle: reconstructed %d bytes, want %d", len(got), len(data))
		}
		if err := s.Close(); err != nil {
			t.Errorf("Close (segmenter): %v", err)
		}
	})

	t.Run("closing the Segmenter does not affect the caller's handle", func(t *testing.T) {
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer f.Close()

		s, err := testConfig.OpenFile(f)
		if err != nil {
			t.Fatalf("OpenFile: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close (segmenter): %v", err)
		}

		// The caller's own handle must still be usable, seeked back to the
		// start, after the Segmenter (and its duplicate) are closed.
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			t.Fatalf("Seek: %v", err)
		}
		got, err := io.ReadAll(f)
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("read %d bytes through caller handle after Segmenter closed, want %d", len(got), len(data))
		}
	})
}
