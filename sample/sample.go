// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package sample implements uniform neighbor sampling over graph
// views: randomized, fanout-bounded multi-hop expansion from a set of
// seed vertices, honoring any masks attached to the view. Randomness
// is keyed per (seed, vertex, hop) so that results are reproducible
// across runs and across worker placements; see UniformAll for the
// multi-worker driver.
package sample

import (
	"context"
	"fmt"

	cugraph "github.com/JasonAtNvidia/cugraph-l4t"
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/grailbio/base/errors"
)

// Options configures a sampling call.
type Options struct {
	// WithReplacement draws exactly fanout neighbors per source,
	// independently and uniformly; without it, min(fanout, degree)
	// distinct neighbors are drawn.
	WithReplacement bool
	// Seed keys every random draw. Two calls with equal seed, seed
	// vertices, fanouts, and mask state produce identical output.
	Seed uint64
}

// A Result is a sampled edge list. Rows are grouped by hop, then by
// source vertex; draw order within a source is unspecified.
// HopCounts[h] is the number of rows hop h produced, so the three
// parallel arrays have length sum(HopCounts).
type Result struct {
	Src, Dst  []cugraph.Vertex
	EdgeIndex []cugraph.Edge
	HopCounts []int
}

// NumRows returns the total row count.
func (r *Result) NumRows() int { return len(r.Src) }

// Uniform samples neighbors uniformly at random for a frontier that
// starts at seeds and advances one hop per fanout entry. At each hop,
// every frontier vertex's effective neighbor list (the stored
// adjacency filtered through the view's attached masks) is sampled:
// min(fanout, effective degree) draws without replacement, or exactly
// fanout draws with replacement. A vertex with no effective neighbors
// contributes no rows and silently leaves the frontier. Sampled
// destinations, deduplicated, seed the next hop; repetition does not
// carry forward, so each frontier vertex expands once per hop no
// matter how many parents reached it.
//
// Seeds may repeat to request multiple independent draws per seed.
// Invalid seeds or fanouts fail with an error of kind errors.Invalid
// and no partial output. On platforms built without the sampling
// primitive the call fails with kind errors.NotSupported.
func Uniform(ctx context.Context, view *cugraph.View, seeds []cugraph.Vertex, fanouts []int, opts Options) (*Result, error) {
	if !enabled {
		return nil, errors.E(errors.NotSupported, "sample: uniform neighbor sampling not compiled into this build")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(fanouts) == 0 {
		return nil, errors.E(errors.Invalid, "sample: empty fanout schedule")
	}
	for h, f := range fanouts {
		if f < 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("sample: negative fanout %d at hop %d", f, h))
		}
	}
	for _, u := range seeds {
		if u < 0 || u >= view.NumVertices() {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("sample: seed vertex %d outside [0,%d)", u, view.NumVertices()))
		}
	}

	res := &Result{HopCounts: make([]int, len(fanouts))}
	s := sampler{view: view, seed: opts.Seed, withReplacement: opts.WithReplacement}
	frontier := seeds
	for h, f := range fanouts {
		next := roaring.New()
		rows := 0
		// Hop 1 expands seed occurrences in caller order; later hops
		// expand the deduplicated destination set in ascending order.
		// Repeated occurrences of one vertex share its keyed stream,
		// so each occurrence yields an independent draw.
		rngs := make(map[cugraph.Vertex]*rng)
		for _, u := range frontier {
			r := rngs[u]
			if r == nil {
				r = newRNG(s.seed, u, h)
				rngs[u] = r
			}
			rows += s.expand(u, f, r, res, next)
		}
		res.HopCounts[h] = rows
		if next.IsEmpty() {
			break
		}
		frontier = make([]cugraph.Vertex, 0, int(next.GetCardinality()))
		for _, v := range next.ToArray() {
			frontier = append(frontier, cugraph.Vertex(v))
		}
	}
	return res, nil
}

type sampler struct {
	view            *cugraph.View
	seed            uint64
	withReplacement bool

	// Scratch for one vertex's effective neighbor list.
	dsts []cugraph.Vertex
	eids []cugraph.Edge
}

// Expand samples up to f neighbors of u, appending rows to res and
// destinations to next. It returns the number of rows produced.
func (s *sampler) expand(u cugraph.Vertex, f int, r *rng, res *Result, next *roaring.Bitmap) int {
	s.dsts = s.dsts[:0]
	s.eids = s.eids[:0]
	s.view.Neighbors(u, func(dst cugraph.Vertex, e cugraph.Edge, _ float64) bool {
		s.dsts = append(s.dsts, dst)
		s.eids = append(s.eids, e)
		return true
	})
	deg := len(s.dsts)
	if deg == 0 || f == 0 {
		// Silent truncation: a frontier vertex with no effective
		// neighbors is dropped, producing neither rows nor an error.
		return 0
	}
	emit := func(i int) {
		res.Src = append(res.Src, u)
		res.Dst = append(res.Dst, s.dsts[i])
		res.EdgeIndex = append(res.EdgeIndex, s.eids[i])
		next.Add(uint32(s.dsts[i]))
	}
	if s.withReplacement {
		for n := 0; n < f; n++ {
			emit(r.intn(deg))
		}
		return f
	}
	if f >= deg {
		for i := 0; i < deg; i++ {
			emit(i)
		}
		return deg
	}
	// Partial Fisher-Yates: the first f entries of a keyed shuffle
	// are a uniform sample without replacement.
	perm := make([]int, deg)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < f; i++ {
		j := i + r.intn(deg-i)
		perm[i], perm[j] = perm[j], perm[i]
		emit(perm[i])
	}
	return f
}
