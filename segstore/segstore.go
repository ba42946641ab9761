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

// Package segstore implements a content-addressed store for the segments
// produced by package segment. It is the "upstream dedup/storage
// integration" that the segment package itself deliberately does not
// provide: segstore hashes, compresses, and persists segment data, none of
// which the splitter cares about.
package segstore

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// A Key is the content address of a stored segment: the blake2b-256 digest
// of its bytes.
type Key [32]byte

// String renders k in hexadecimal, for logging and CLI output.
func (k Key) String() string { return fmt.Sprintf("%x", [32]byte(k)) }

// ComputeKey returns the content address for data.
func ComputeKey(data []byte) Key { return Key(blake2b.Sum256(data)) }

// ErrKeyNotFound is returned by Get when no segment is stored under the
// requested key.
var ErrKeyNotFound = errors.New("segstore: key not found")

// ErrStopListing terminates a List call early without error.
var ErrStopListing = errors.New("segstore: stop listing")

// A Store persists segments keyed by their content address. Implementations
// must be safe for concurrent use by multiple goroutines.
type Store interface {
	// Put stores data if it is not already present, and returns its key.
	// Put is idempotent: storing the same content twice is not an error and
	// returns the same key both times.
	Put(ctx context.Context, data []byte) (Key, error)

	// Get returns the bytes previously stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Has reports which of the given keys are present in the store.
	Has(ctx context.Context, keys ...Key) (map[Key]bool, error)

	// List calls f once for each stored key in ascending order, stopping
	// early if f returns a non-nil error. If f returns ErrStopListing,
	// List returns nil.
	List(ctx context.Context, f func(Key) error) error

	// Len reports the number of distinct segments currently stored.
	Len(ctx context.Context) (int64, error)

	// Close releases any resources held by the store.
	Close(ctx context.Context) error
}

// PutAll stores every segment in data concurrently, using a taskgroup to
// fan the work out and gather the resulting keys back in the original
// order. It is equivalent to calling s.Put once per segment, but does not
// wait for one segment's hashing, compression, and write to finish before
// starting the next.
func PutAll(ctx context.Context, s Store, data [][]byte) ([]Key, error) {
	keys := make([]Key, len(data))
	g := newFanOut(ctx)
	for i, seg := range data {
		i, seg := i, seg
		g.run(func() error {
			key, err := s.Put(g.ctx, seg)
			if err != nil {
				return err
			}
			keys[i] = key
			return nil
		})
	}
	if err := g.wait(); err != nil {
		return nil, err
	}
	return keys, nil
}
