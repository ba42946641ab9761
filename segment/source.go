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

package segment

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OpenFile constructs a Segmenter reading from a duplicate of f's
// underlying file descriptor, using c for its settings. A zero *Config
// selects default sizing.
//
// The duplicate is acquired immediately, so the returned Segmenter's
// lifetime is independent of f: the caller may close f as soon as OpenFile
// returns without affecting the Segmenter, and closing the Segmenter (via
// Close) does not affect f.
func (c *Config) OpenFile(f *os.File) (*Segmenter, error) {
	dupFd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("segment: duplicate file handle: %w", err)
	}
	dup := os.NewFile(uintptr(dupFd), f.Name())

	s, err := c.Open(dup)
	if err != nil {
		dup.Close()
		return nil, err
	}
	s.closer = dup
	return s, nil
}

// OpenFile is a convenience for (&Config{}).OpenFile, using default sizing.
func OpenFile(f *os.File) (*Segmenter, error) { return (&Config{}).OpenFile(f) }
