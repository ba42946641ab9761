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
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/creachadair/mds/cache"
	"github.com/creachadair/msync/throttle"
)

// CachedStore wraps a base [Store] with an in-process LRU of recently-seen
// segment bytes and a fast, non-cryptographic pre-check so that a burst of
// identical segments (the common case for a deduplicating backup run, where
// the same block recurs across many files or snapshots) touches the base
// store only once. Every Put still computes the segment's blake2b-256 key.
//
// Concurrent Put calls for the same content key are single-flighted: only
// one of them actually performs the base store's Has/Put round trip, and
// the rest wait for its result.
type CachedStore struct {
	base Store

	cache *cache.Cache[Key, []byte] // recently put/got segment bytes
	put   throttle.Set[Key, Key]    // single-flight concurrent Put of the same key

	μ        sync.Mutex
	fastSeen map[uint64]Key // xxhash(data) -> content key, a pre-check only
}

// NewCachedStore wraps base with an LRU of the given capacity in bytes.
func NewCachedStore(base Store, cacheBytes int) *CachedStore {
	return &CachedStore{
		base:     base,
		cache:    cache.New(cache.LRU[Key, []byte](int64(cacheBytes)).WithSize(cache.Length)),
		fastSeen: make(map[uint64]Key),
	}
}

// Put implements a method of [Store].
func (s *CachedStore) Put(ctx context.Context, data []byte) (Key, error) {
	key := ComputeKey(data)
	return s.put.Call(ctx, key, func(ctx context.Context) (Key, error) {
		if _, ok := s.cache.Get(key); ok {
			return key, nil // already known locally under its real key
		}

		fast := xxhash.Sum64(data)
		s.μ.Lock()
		seenKey, seen := s.fastSeen[fast]
		s.μ.Unlock()

		// The fast hash is only a pre-check: it is never trusted on its own,
		// only used to decide whether the content key it names is worth
		// trusting without a round trip to the base store.
		if !seen || seenKey != key {
			has, err := s.base.Has(ctx, key)
			if err != nil {
				return Key{}, err
			}
			if !has[key] {
				if _, err := s.base.Put(ctx, data); err != nil {
					return Key{}, err
				}
			}
			s.μ.Lock()
			s.fastSeen[fast] = key
			s.μ.Unlock()
		}

		s.cache.Put(key, data)
		return key, nil
	})
}

// Get implements a method of [Store].
func (s *CachedStore) Get(ctx context.Context, key Key) ([]byte, error) {
	if data, ok := s.cache.Get(key); ok {
		return data, nil
	}
	data, err := s.base.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, data)
	return data, nil
}

// Has implements a method of [Store].
func (s *CachedStore) Has(ctx context.Context, keys ...Key) (map[Key]bool, error) {
	out := make(map[Key]bool, len(keys))
	var miss []Key
	for _, key := range keys {
		if _, ok := s.cache.Get(key); ok {
			out[key] = true
		} else {
			miss = append(miss, key)
		}
	}
	if len(miss) == 0 {
		return out, nil
	}
	baseOut, err := s.base.Has(ctx, miss...)
	if err != nil {
		return nil, err
	}
	for k, v := range baseOut {
		out[k] = v
	}
	return out, nil
}

// List implements a method of [Store].
func (s *CachedStore) List(ctx context.Context, f func(Key) error) error { return s.base.List(ctx, f) }

// Len implements a method of [Store].
func (s *CachedStore) Len(ctx context.Context) (int64, error) { return s.base.Len(ctx) }

// Close implements a method of [Store].
func (s *CachedStore) Close(ctx context.Context) error { return s.base.Close(ctx) }
