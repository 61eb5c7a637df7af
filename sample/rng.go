// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package sample

import (
	"encoding/binary"

	cugraph "github.com/JasonAtNvidia/cugraph-l4t"
	"github.com/spaolacci/murmur3"
)

// An rng is a keyed, counter-based pseudorandom generator. The key is
// derived from (global seed, vertex id, hop index), so every draw for
// a given vertex at a given hop is reproducible no matter which
// worker executes it or in what order; there is no shared mutable
// stream to advance. Successive draws hash the key with an
// incrementing counter.
type rng struct {
	key uint64
	ctr uint64
}

func newRNG(seed uint64, u cugraph.Vertex, hop int) *rng {
	var b [20]byte
	binary.LittleEndian.PutUint64(b[0:], seed)
	binary.LittleEndian.PutUint32(b[8:], uint32(u))
	binary.LittleEndian.PutUint64(b[12:], uint64(hop))
	return &rng{key: murmur3.Sum64(b[:])}
}

func (r *rng) next() uint64 {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:], r.key)
	binary.LittleEndian.PutUint64(b[8:], r.ctr)
	r.ctr++
	return murmur3.Sum64(b[:])
}

// Intn returns a uniform draw from [0, n). Values that would bias the
// modulus are rejected and redrawn.
func (r *rng) intn(n int) int {
	max := ^uint64(0) - ^uint64(0)%uint64(n)
	for {
		v := r.next()
		if v < max {
			return int(v % uint64(n))
		}
	}
}
