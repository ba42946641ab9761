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

package segstore_test

import (
	"context"
	"testing"

	"github.com/creachadair/fletchseg/segstore"
)

// checkStoreBasics runs a small script of operations common to every [Store]
// implementation, so each backend's test can call it instead of repeating
// the same assertions.
func checkStoreBasics(t *testing.T, s segstore.Store) {
	t.Helper()
	ctx := context.Background()

	if n, err := s.Len(ctx); err != nil {
		t.Fatalf("Len (empty): %v", err)
	} else if n != 0 {
		t.Errorf("Len (empty): got %d, want 0", n)
	}

	apple := []byte("apple")
	key, err := s.Put(ctx, apple)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if want := segstore.ComputeKey(apple); key != want {
		t.Errorf("Put: got key %s, want %s", key, want)
	}

	// Storing the same content again must be idempotent and return the same
	// key without error.
	if again, err := s.Put(ctx, apple); err != nil {
		t.Errorf("Put (again): %v", err)
	} else if again != key {
		t.Errorf("Put (again): got key %s, want %s", again, key)
	}

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "apple" {
		t.Errorf("Get: got %q, want %q", got, "apple")
	}

	if _, err := s.Get(ctx, segstore.ComputeKey([]byte("nonesuch"))); err != segstore.ErrKeyNotFound {
		t.Errorf("Get (missing): got %v, want ErrKeyNotFound", err)
	}

	pear, err := s.Put(ctx, []byte("pear"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	has, err := s.Has(ctx, key, pear, segstore.ComputeKey([]byte("nonesuch")))
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !has[key] || !has[pear] {
		t.Errorf("Has: got %v, want both stored keys true", has)
	}
	if has[segstore.ComputeKey([]byte("nonesuch"))] {
		t.Errorf("Has: reported an unstored key as present")
	}

	if n, err := s.Len(ctx); err != nil {
		t.Fatalf("Len: %v", err)
	} else if n != 2 {
		t.Errorf("Len: got %d, want 2", n)
	}

	var listed []segstore.Key
	if err := s.List(ctx, func(k segstore.Key) error {
		listed = append(listed, k)
		return nil
	}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 2 {
		t.Errorf("List: got %d keys, want 2", len(listed))
	}

	var stopped []segstore.Key
	if err := s.List(ctx, func(k segstore.Key) error {
		stopped = append(stopped, k)
		return segstore.ErrStopListing
	}); err != nil {
		t.Errorf("List (stop early): %v", err)
	}
	if len(stopped) != 1 {
		t.Errorf("List (stop early): got %d keys, want 1", len(stopped))
	}

	if err := s.Close(ctx); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestMemStore(t *testing.T) {
	checkStoreBasics(t, segstore.NewMemStore())
}

func TestDiskStore(t *testing.T) {
	s, err := segstore.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	checkStoreBasics(t, s)
}

func TestDiskStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := segstore.NewDiskStore(dir)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	key, err := s1.Put(ctx, []byte("persisted segment"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	s2, err := segstore.NewDiskStore(dir)
	if err != nil {
		t.Fatalf("NewDiskStore (reopen): %v", err)
	}
	got, err := s2.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != "persisted segment" {
		t.Errorf("Get after reopen: got %q, want %q", got, "persisted segment")
	}
	if n, err := s2.Len(ctx); err != nil {
		t.Fatalf("Len after reopen: %v", err)
	} else if n != 1 {
		t.Errorf("Len after reopen: got %d, want 1", n)
	}
}

func TestCachedStore(t *testing.T) {
	checkStoreBasics(t, segstore.NewCachedStore(segstore.NewMemStore(), 1<<20))
}

func TestPutAll(t *testing.T) {
	ctx := context.Background()
	s := segstore.NewMemStore()

	segs := [][]byte{[]byte("one"), []byte("two"), []byte("three"), []byte("two")}
	keys, err := segstore.PutAll(ctx, s, segs)
	if err != nil {
		t.Fatalf("PutAll: %v", err)
	}
	if len(keys) != len(segs) {
		t.Fatalf("PutAll: got %d keys, want %d", len(keys), len(segs))
	}
	for i, seg := range segs {
		if want := segstore.ComputeKey(seg); keys[i] != want {
			t.Errorf("keys[%d]: got %s, want %s", i, keys[i], want)
		}
	}
	// Index 1 and 3 are both "two" and so must produce the same key.
	if keys[1] != keys[3] {
		t.Errorf("duplicate content got different keys: %s vs %s", keys[1], keys[3])
	}
	if n, err := s.Len(ctx); err != nil {
		t.Fatalf("Len: %v", err)
	} else if n != 3 {
		t.Errorf("Len: got %d, want 3 distinct segments", n)
	}
}
