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
	"sync"

	"github.com/creachadair/mds/stree"
)

// compareKeys orders entries lexicographically by their raw digest bytes.
func compareKeys(a, b entry) int { return bytes.Compare(a.key[:], b.key[:]) }

type entry struct {
	key  Key
	data []byte
}

// MemStore implements [Store] in memory. The zero value is not ready for
// use; construct one with NewMemStore. Contents are not persisted.
type MemStore struct {
	μ sync.Mutex
	m *stree.Tree[entry]
}

// NewMemStore constructs an empty in-memory segment store.
func NewMemStore() *MemStore {
	return &MemStore{m: stree.New(300, compareKeys)}
}

// Put implements a method of [Store].
func (s *MemStore) Put(_ context.Context, data []byte) (Key, error) {
	key := ComputeKey(data)
	s.μ.Lock()
	defer s.μ.Unlock()
	s.m.Replace(entry{key: key, data: bytes.Clone(data)})
	return key, nil
}

// Get implements a method of [Store].
func (s *MemStore) Get(_ context.Context, key Key) ([]byte, error) {
	s.μ.Lock()
	defer s.μ.Unlock()
	if e, ok := s.m.Get(entry{key: key}); ok {
		return bytes.Clone(e.data), nil
	}
	return nil, ErrKeyNotFound
}

// Has implements a method of [Store].
func (s *MemStore) Has(_ context.Context, keys ...Key) (map[Key]bool, error) {
	s.μ.Lock()
	defer s.μ.Unlock()
	out := make(map[Key]bool, len(keys))
	for _, key := range keys {
		_, ok := s.m.Get(entry{key: key})
		out[key] = ok
	}
	return out, nil
}

// List implements a method of [Store].
func (s *MemStore) List(_ context.Context, f func(Key) error) error {
	s.μ.Lock()
	defer s.μ.Unlock()
	for e := range s.m.Inorder {
		if err := f(e.key); errors.Is(err, ErrStopListing) {
			return nil
		} else if err != nil {
			return err
		}
	}
	return nil
}

// Len implements a method of [Store].
func (s *MemStore) Len(context.Context) (int64, error) {
	s.μ.Lock()
	defer s.μ.Unlock()
	return int64(s.m.Len()), nil
}

// Close implements a method of [Store]. This implementation is a no-op.
func (*MemStore) Close(context.Context) error { return nil }
