// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package subgraph extracts induced subgraphs from graph views and
// certifies sampling results against them. Extraction is mask-aware:
// it sees exactly the edges the view's attached masks admit. The
// validator replays a sampling result's frontier schedule and counts
// violations of the subset, depth, and fanout-bound properties,
// reporting them as tallied mismatches rather than errors.
package subgraph

import (
	"fmt"

	cugraph "github.com/JasonAtNvidia/cugraph-l4t"
	"github.com/JasonAtNvidia/cugraph-l4t/sample"
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/grailbio/base/errors"
)

// Subgraphs holds the edges induced by one or more vertex sets, as
// (src, dst, edge index) rows. Rows for set i occupy
// [Offsets[i], Offsets[i+1]).
type Subgraphs struct {
	Src, Dst  []cugraph.Vertex
	EdgeIndex []cugraph.Edge
	Offsets   []int
}

// NumSets returns the number of extracted subgraphs.
func (s *Subgraphs) NumSets() int { return len(s.Offsets) - 1 }

// ExtractInduced returns, for each vertex set delimited by offsets,
// every edge of the view whose endpoints both lie in the set. A nil
// offsets treats vertices as a single set. Rows follow the vertex
// set's order, then the view's neighbor order. Out-of-range vertices
// and malformed offsets fail with an error of kind errors.Invalid.
func ExtractInduced(view *cugraph.View, offsets []int, vertices []cugraph.Vertex) (*Subgraphs, error) {
	if offsets == nil {
		offsets = []int{0, len(vertices)}
	}
	if len(offsets) < 2 || offsets[0] != 0 || offsets[len(offsets)-1] != len(vertices) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("subgraph: offsets %v do not delimit %d vertices", offsets, len(vertices)))
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("subgraph: offsets %v not monotone", offsets))
		}
	}
	for _, u := range vertices {
		if u < 0 || u >= view.NumVertices() {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("subgraph: vertex %d outside [0,%d)", u, view.NumVertices()))
		}
	}
	out := &Subgraphs{Offsets: make([]int, 1, len(offsets))}
	for i := 1; i < len(offsets); i++ {
		set := vertices[offsets[i-1]:offsets[i]]
		members := roaring.New()
		for _, u := range set {
			members.Add(uint32(u))
		}
		for _, u := range set {
			view.Neighbors(u, func(dst cugraph.Vertex, e cugraph.Edge, _ float64) bool {
				if members.Contains(uint32(dst)) {
					out.Src = append(out.Src, u)
					out.Dst = append(out.Dst, dst)
					out.EdgeIndex = append(out.EdgeIndex, e)
				}
				return true
			})
		}
		out.Offsets = append(out.Offsets, len(out.Src))
	}
	return out, nil
}

// MaxExamples bounds the number of verbatim mismatch examples a
// Report retains; further mismatches are only counted.
const maxExamples = 10

// A Report tallies validation mismatches. A zero-mismatch report
// certifies the sampling result.
type Report struct {
	Mismatches int
	Examples   []string
}

// OK reports whether validation found no mismatches.
func (r *Report) OK() bool { return r.Mismatches == 0 }

func (r *Report) fail(format string, args ...interface{}) {
	if r.Mismatches < maxExamples {
		r.Examples = append(r.Examples, fmt.Sprintf(format, args...))
	}
	r.Mismatches++
}

// Validate certifies a sampling result against the view it was drawn
// from. It checks that
//
//   - the result's arrays are length-consistent with its hop counts;
//   - every sampled edge appears in the induced subgraph over all
//     touched vertices (seeds and sampled endpoints), which also
//     implies no masked edge was drawn;
//   - every row's source belongs to the frontier its hop expanded,
//     and no row exceeds the fanout schedule's depth;
//   - per source and hop, the row count never exceeds the hop's
//     fanout, with equality exactly when the sampling mode and the
//     source's effective degree require it.
//
// withReplacement must match the sampled call's option. Validation
// failures are counted in the report, not raised as errors.
func Validate(view *cugraph.View, res *sample.Result, seeds []cugraph.Vertex, fanouts []int, withReplacement bool) *Report {
	r := &Report{}

	var total int
	for _, n := range res.HopCounts {
		total += n
	}
	if len(res.HopCounts) > len(fanouts) {
		r.fail("result has %d hops, schedule has %d", len(res.HopCounts), len(fanouts))
	}
	if len(res.Src) != total || len(res.Dst) != total || len(res.EdgeIndex) != total {
		r.fail("arrays have %d/%d/%d rows, hop counts sum to %d",
			len(res.Src), len(res.Dst), len(res.EdgeIndex), total)
		return r
	}

	// Subset property: sampled edges must lie in the subgraph induced
	// by every vertex the sample touched.
	touched := roaring.New()
	for _, u := range seeds {
		touched.Add(uint32(u))
	}
	for i := range res.Src {
		touched.Add(uint32(res.Src[i]))
		touched.Add(uint32(res.Dst[i]))
	}
	vertices := make([]cugraph.Vertex, 0, int(touched.GetCardinality()))
	for _, v := range touched.ToArray() {
		vertices = append(vertices, cugraph.Vertex(v))
	}
	induced, err := ExtractInduced(view, nil, vertices)
	if err != nil {
		r.fail("induced extraction: %v", err)
		return r
	}
	edges := make(map[cugraph.Edge][2]cugraph.Vertex, len(induced.EdgeIndex))
	for i, e := range induced.EdgeIndex {
		edges[e] = [2]cugraph.Vertex{induced.Src[i], induced.Dst[i]}
	}

	// Replay the frontier schedule. Hop 1's frontier is the seed
	// multiset; later frontiers are the deduplicated destinations of
	// the previous hop, each expanded exactly once.
	occ := make(map[cugraph.Vertex]int)
	for _, u := range seeds {
		occ[u]++
	}
	row := 0
	for h := 0; h < len(res.HopCounts) && h < len(fanouts); h++ {
		end := row + res.HopCounts[h]
		next := roaring.New()
		perSource := make(map[cugraph.Vertex]int)
		for ; row < end; row++ {
			src, dst, e := res.Src[row], res.Dst[row], res.EdgeIndex[row]
			if ends, ok := edges[e]; !ok {
				r.fail("hop %d: edge %d (%d->%d) not in induced subgraph", h+1, e, src, dst)
			} else if ends != [2]cugraph.Vertex{src, dst} {
				r.fail("hop %d: edge %d claims (%d->%d), store has (%d->%d)", h+1, e, src, dst, ends[0], ends[1])
			}
			if occ[src] == 0 {
				r.fail("hop %d: source %d not in hop frontier", h+1, src)
			}
			perSource[src]++
			next.Add(uint32(dst))
		}
		// Per source and hop: rows = occurrences * expected draws.
		// Effective degree decides the expectation, so a masked edge
		// that was drawn anyway also surfaces here.
		for src, n := range occ {
			deg := view.Degree(src)
			var perOcc int
			if withReplacement {
				if deg >= 1 {
					perOcc = fanouts[h]
				}
			} else if deg < fanouts[h] {
				perOcc = deg
			} else {
				perOcc = fanouts[h]
			}
			if got, want := perSource[src], n*perOcc; got != want {
				r.fail("hop %d: source %d has %d rows, want %d (%d occurrences, degree %d, fanout %d)",
					h+1, src, got, want, n, deg, fanouts[h])
			}
		}
		occ = make(map[cugraph.Vertex]int, int(next.GetCardinality()))
		for _, v := range next.ToArray() {
			occ[cugraph.Vertex(v)] = 1
		}
	}
	if row != len(res.Src) {
		r.fail("%d rows beyond the fanout schedule", len(res.Src)-row)
	}
	return r
}
