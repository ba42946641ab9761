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

package segstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/creachadair/atomicfile"
	"github.com/golang/snappy"
)

// DiskStore implements [Store] on a directory: segment bytes are
// snappy-compressed and appended to a single flat data file, and a
// manifest mapping each key to its offset and length within that file is
// rewritten atomically after every Put. This is a much smaller surface
// than a real database, appropriate for the sizes segstore actually deals
// with (content-defined segments, not an arbitrary KV workload).
type DiskStore struct {
	dataPath     string
	manifestPath string

	μ       sync.Mutex
	index   map[Key]manifestRecord
	dataLen int64
}

// NewDiskStore opens or creates a segment store rooted at dir.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	s := &DiskStore{
		dataPath:     filepath.Join(dir, "segments.dat"),
		manifestPath: filepath.Join(dir, "segments.manifest"),
		index:        make(map[Key]manifestRecord),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DiskStore) load() error {
	fi, err := os.Stat(s.dataPath)
	if err == nil {
		s.dataLen = fi.Size()
	} else if !os.IsNotExist(err) {
		return err
	}

	raw, err := os.ReadFile(s.manifestPath)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	records, err := decodeManifest(raw)
	if err != nil {
		return fmt.Errorf("segstore: loading manifest: %w", err)
	}
	for _, rec := range records {
		s.index[rec.key] = rec
	}
	return nil
}

// saveManifest rewrites the manifest file from the current index. The
// caller must hold s.μ.
func (s *DiskStore) saveManifest() error {
	records := make([]manifestRecord, 0, len(s.index))
	for _, rec := range s.index {
		records = append(records, rec)
	}
	return atomicfile.WriteData(s.manifestPath, encodeManifest(records), 0600)
}

// Put implements a method of [Store].
func (s *DiskStore) Put(_ context.Context, data []byte) (Key, error) {
	key := ComputeKey(data)

	s.μ.Lock()
	defer s.μ.Unlock()
	if _, ok := s.index[key]; ok {
		return key, nil // already stored; Put is idempotent
	}

	enc := snappy.Encode(nil, data)
	f, err := os.OpenFile(s.dataPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return Key{}, err
	}
	n, werr := f.Write(enc)
	cerr := f.Close()
	if werr != nil {
		return Key{}, werr
	} else if cerr != nil {
		return Key{}, cerr
	}

	rec := manifestRecord{key: key, offset: uint64(s.dataLen), length: uint64(n)}
	s.dataLen += int64(n)
	s.index[key] = rec
	if err := s.saveManifest(); err != nil {
		return Key{}, fmt.Errorf("segstore: updating manifest: %w", err)
	}
	return key, nil
}

// Get implements a method of [Store].
func (s *DiskStore) Get(_ context.Context, key Key) ([]byte, error) {
	s.μ.Lock()
	rec, ok := s.index[key]
	s.μ.Unlock()
	if !ok {
		return nil, ErrKeyNotFound
	}

	f, err := os.Open(s.dataPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	enc := make([]byte, rec.length)
	if _, err := f.ReadAt(enc, int64(rec.offset)); err != nil {
		return nil, fmt.Errorf("segstore: reading key %s: %w", key, err)
	}
	data, err := snappy.Decode(nil, enc)
	if err != nil {
		return nil, fmt.Errorf("segstore: decompressing key %s: %w", key, err)
	}
	return data, nil
}

// Has implements a method of [Store].
func (s *DiskStore) Has(_ context.Context, keys ...Key) (map[Key]bool, error) {
	s.μ.Lock()
	defer s.μ.Unlock()
	out := make(map[Key]bool, len(keys))
	for _, key := range keys {
		_, ok := s.index[key]
		out[key] = ok
	}
	return out, nil
}

// List implements a method of [Store].
func (s *DiskStore) List(_ context.Context, f func(Key) error) error {
	s.μ.Lock()
	keys := make([]Key, 0, len(s.index))
	for key := range s.index {
		keys = append(keys, key)
	}
	s.μ.Unlock()

	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
	for _, key := range keys {
		if err := f(key); errors.Is(err, ErrStopListing) {
			return nil
		} else if err != nil {
			return err
		}
	}
	return nil
}

// Len implements a method of [Store].
func (s *DiskStore) Len(context.Context) (int64, error) {
	s.μ.Lock()
	defer s.μ.Unlock()
	return int64(len(s.index)), nil
}

// Close implements a method of [Store]. This implementation is a no-op;
// every Put already syncs the manifest before returning.
func (*DiskStore) Close(context.Context) error { return nil }
