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

package segment

import "fmt"

// MinMinSizeBits and MaxMinSizeBits bound the supported values of
// Config.MinSizeBits, matching
// the range tabulated in primeNear.
const (
	MinMinSizeBits = 8
	MaxMinSizeBits = 25

	// DefaultMinSizeBits gives a 1 MiB minimum segment size and a ~4 MiB
	// expected segment size.
	DefaultMinSizeBits = 20
)

// primeNear maps MinSizeBits to a prime close to 1<<bits (sometimes a
// little under, sometimes a little over), the modulus P used to reduce the
// Fletcher sum. Choosing P close to MINSEGSIZE gives a hit probability of
// roughly 1/MINSEGSIZE per position; see fletcher.go.
var primeNear = map[int]uint64{
	8:  257,
	9:  509,
	10: 1031,
	11: 2053,
	12: 4093,
	13: 8191,
	14: 16381,
	15: 32771,
	16: 65537,
	17: 131071,
	18: 262147,
	19: 524287,
	20: 1048573,
	21: 2097143,
	22: 4194301,
	23: 8388593,
	24: 16777213,
	25: 33554467,
}

// sizing holds the values derived from a single MinSizeBits choice: the
// minimum segment size, the rolling window length, and the prime modulus.
// Config.Open computes a fresh one for each Segmenter it constructs.
type sizing struct {
	minSegSize uint64 // MINSEGSIZE = 1 << bits
	window     int    // W = 1 << (bits-1)
	prime      uint64 // a prime close to MINSEGSIZE

	// removeOldByte[x] is the residue added to the Fletcher sum to remove
	// the contribution of a byte x leaving the rolling window.
	removeOldByte [256]uint64
}

func newSizing(bits int) (*sizing, error) {
	if bits == 0 {
		bits = DefaultMinSizeBits
	}
	if bits < MinMinSizeBits || bits > MaxMinSizeBits {
		return nil, fmt.Errorf("segment: MinSizeBits %d out of range [%d, %d]", bits, MinMinSizeBits, MaxMinSizeBits)
	}
	p, ok := primeNear[bits]
	if !ok {
		return nil, fmt.Errorf("segment: no prime tabulated for MinSizeBits %d", bits)
	}
	w := 1 << (bits - 1)

	// The byte sum needs bits-1+8 bits, and the pre-modulo Fletcher
	// accumulator needs roughly 2*(bits-1)+7; both fit comfortably in 64
	// bits for every bits in [MinMinSizeBits, MaxMinSizeBits] (worst case
	// bits=25 needs about 55 bits).
	const maxAccumulatorBits = 2*(MaxMinSizeBits-1) + 7
	var _ [64 - maxAccumulatorBits]struct{} // fails to compile if this goes negative

	s := &sizing{
		minSegSize: uint64(1) << uint(bits),
		window:     w,
		prime:      p,
	}
	ww := uint64(w)
	for x := 0; x < 256; x++ {
		s.removeOldByte[x] = (p - (ww*uint64(x))%p) % p
	}
	return s, nil
}
