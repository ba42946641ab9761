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

// Package segment implements content-defined partitioning of a byte stream
// into segments, using a two-level rolling checksum (a byte sum folded into
// a Fletcher sum reduced modulo a prime).
//
// The algorithm places a segment boundary after a run of at least
// MINSEGSIZE bytes since the previous "hit" (a position whose windowed
// Fletcher fingerprint is zero), so a localized edit to the input perturbs
// at most one or two emitted segments: everything before the edit is
// unaffected, and the segmentation re-synchronizes a bounded distance after
// it. This is the same content-defined-chunking idea as LBFS's Rabin-Karp
// splitter, applied with a Fletcher checksum instead of a multiplicative
// rolling hash.
package segment

import (
	"errors"
	"fmt"
	"io"
)

// InvariantError reports that the segmenter detected an internal
// contract violation — specifically, more than one segment boundary in a
// single block, which the geometry of the algorithm (the rolling window is
// at most MinSegSize long) guarantees cannot happen when the scan is
// implemented correctly. It is not a recoverable condition: the Segmenter
// must not be reused after one is returned.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("segment: internal invariant violated: %s", e.Detail)
}

// ErrClosed is returned by Next when called on a Segmenter that has already
// been closed.
var ErrClosed = errors.New("segment: segmenter is closed")

// A Config holds the settings used to construct a Segmenter. The zero
// Config is ready to use and selects DefaultMinSizeBits.
type Config struct {
	// MinSizeBits selects MINSEGSIZE = 1 << MinSizeBits, the minimum
	// interior segment length in bytes, and implicitly the rolling window
	// length W = MINSEGSIZE/2 and the prime modulus used to reduce the
	// Fletcher sum (see sizing.go). Must be in [MinMinSizeBits,
	// MaxMinSizeBits], or zero to select DefaultMinSizeBits. The expected
	// mean segment length is about 4x MinSegSize.
	MinSizeBits int
}

// Open constructs a Segmenter that reads from r and partitions its content
// into segments using c. A zero *Config is ready for use with default
// sizing. Open performs the cold-start window fill, which reads from r; a
// short or empty r is not an error (the Segmenter then reports the bytes
// read as its final segment), but any other read error is returned. A
// non-nil error here means no Segmenter was constructed.
func (c *Config) Open(r io.Reader) (*Segmenter, error) {
	var bits int
	if c != nil {
		bits = c.MinSizeBits
	}
	sz, err := newSizing(bits)
	if err != nil {
		return nil, err
	}
	s := &Segmenter{
		src:       r,
		sz:        sz,
		curBlock:  make([]byte, sz.window),
		prevBlock: make([]byte, sz.window),
	}
	if err := s.coldStart(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open is a convenience for (&Config{}).Open, using default sizing.
func Open(r io.Reader) (*Segmenter, error) { return (&Config{}).Open(r) }

// A Segmenter partitions the bytes read from an underlying source into
// content-defined segments. Segmenters are not safe for concurrent use: a
// single goroutine must own the Next/Close calls for the lifetime of a
// Segmenter.
type Segmenter struct {
	src    io.Reader
	closer io.Closer // set by OpenFile; closed by Close (src itself is never closed)
	sz     *sizing

	sums sums

	curBlock, prevBlock []byte // each sz.window bytes; swapped every full block
	eof                 bool
	closed              bool

	bytesIntoSeg uint64 // bytes committed to the segment under assembly
	lastHitAt    uint64 // position of the most recent hit, same coordinate basis

	curOut []byte // the segment currently being assembled
}

// coldStart fills prevBlock with the first window's worth of input, seeds
// curOut with whatever was read, and computes the rolling sums from scratch
// if a full window came back.
func (s *Segmenter) coldStart() error {
	n, err := io.ReadFull(s.src, s.prevBlock)
	if err != nil && !isShortRead(err) {
		return err
	}
	s.curOut = append(s.curOut, s.prevBlock[:n]...)
	s.bytesIntoSeg = uint64(n)

	if n == s.sz.window {
		s.sums.reset(s.sz, s.prevBlock)
		if s.sums.fletchSum == 0 {
			// This seed hit is never itself a boundary: the minimum-distance
			// rule can't yet be satisfied from a zero starting point, so it
			// only sets the starting point for later hits to be measured
			// against.
			s.lastHitAt = uint64(s.sz.window)
		}
	} else {
		s.eof = true
	}
	return nil
}

// isShortRead reports whether err is the flavor of error io.ReadFull uses
// to signal that fewer bytes were available than requested — the
// segmenter's byte-source contract's notion of end-of-stream.
func isShortRead(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

// Next returns the next available segment, or an error. The slice
// returned is owned by the caller and will not be reused or mutated by the
// Segmenter. Next returns nil, io.EOF when no further segments are
// available; subsequent calls continue to return io.EOF.
func (s *Segmenter) Next() ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.eof {
		if len(s.curOut) == 0 {
			return nil, io.EOF
		}
		out := s.curOut
		s.curOut = nil
		return out, nil
	}

	for {
		n, err := io.ReadFull(s.src, s.curBlock)
		if err != nil && !isShortRead(err) {
			return nil, err
		}
		if isShortRead(err) {
			// Short read: the final, possibly undersized segment. Emitted
			// regardless of the minimum-distance rule.
			s.eof = true
			s.curOut = append(s.curOut, s.curBlock[:n]...)
			out := s.curOut
			s.curOut = nil
			if len(out) == 0 {
				return nil, io.EOF
			}
			return out, nil
		}

		boundary, seed, err := s.scanBlock()
		if err != nil {
			return nil, err
		}

		// The buffer swap happens regardless of whether a boundary was
		// found, so the next full-block read lands in the buffer whose
		// bytes have already been consumed.
		s.curBlock, s.prevBlock = s.prevBlock, s.curBlock

		if boundary >= 0 {
			out := s.curOut
			s.curOut = seed
			s.bytesIntoSeg = uint64(s.sz.window - (boundary + 1))
			return out, nil
		}

		// No boundary: the whole (now-swapped) block belongs to the
		// segment under assembly.
		s.curOut = append(s.curOut, s.prevBlock...)
		s.bytesIntoSeg += uint64(s.sz.window)
	}
}

// scanBlock advances the rolling sums over one full block (curBlock against
// prevBlock), looking for a boundary. It returns the in-block index of the
// boundary hit (or -1 if none was found), and — when a boundary is found —
// the byte slice seeding the next segment. In that case the remaining bytes
// of the completed segment have already been appended to s.curOut.
//
// This is the only place the single-boundary-per-block invariant is
// checked; a second qualifying hit in the same block is a contract
// violation, not a recoverable condition.
func (s *Segmenter) scanBlock() (boundary int, seed []byte, err error) {
	boundary = -1
	w := s.sz.window
	for i := 0; i < w; i++ {
		oldByte, newByte := s.prevBlock[i], s.curBlock[i]
		fp := s.sums.roll(s.sz, oldByte, newByte)
		if fp != 0 {
			continue
		}
		pos := s.bytesIntoSeg + uint64(i)
		if pos > s.lastHitAt+s.sz.minSegSize {
			if boundary >= 0 {
				return -1, nil, &InvariantError{Detail: "second segment boundary found within one block"}
			}
			boundary = i
			s.curOut = append(s.curOut, s.curBlock[:i+1]...)
			seed = append([]byte(nil), s.curBlock[i+1:]...)
		}
		s.lastHitAt = pos
	}
	return boundary, seed, nil
}

// Split calls f once for each segment from s in order until there are no
// further segments or f returns an error. If f returns an error, Split
// stops and returns that error to its caller.
//
// The slice passed to f is owned by the caller for as long as f runs; f
// may retain it without copying, since each call to Next allocates a fresh
// buffer for the segment it returns.
func (s *Segmenter) Split(f func(seg []byte) error) error {
	for {
		seg, err := s.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		} else if err := f(seg); err != nil {
			return err
		}
	}
}

// Close releases the resources held by s, including the duplicated file
// handle acquired by OpenFile, if any. Close is idempotent.
func (s *Segmenter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
