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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestManifestRoundTrip(t *testing.T) {
	want := []manifestRecord{
		{key: ComputeKey([]byte("a")), offset: 0, length: 17},
		{key: ComputeKey([]byte("b")), offset: 17, length: 4096},
		{key: ComputeKey([]byte("c")), offset: 4113, length: 0},
	}
	enc := encodeManifest(want)
	got, err := decodeManifest(enc)
	if err != nil {
		t.Fatalf("decodeManifest: %v", err)
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(manifestRecord{})); diff != "" {
		t.Errorf("decodeManifest round trip (-want +got):\n%s", diff)
	}
}

func TestManifestEmpty(t *testing.T) {
	got, err := decodeManifest(encodeManifest(nil))
	if err != nil {
		t.Fatalf("decodeManifest: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("decodeManifest(empty): got %d records, want 0", len(got))
	}
}
