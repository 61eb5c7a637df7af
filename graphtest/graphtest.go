// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package graphtest provides small graph builders and helpers for
// unit testing graph code. They are not optimized for scale; they are
// strictly intended for tests.
package graphtest

import (
	"context"
	"math/rand"
	"testing"

	cugraph "github.com/JasonAtNvidia/cugraph-l4t"
	"github.com/JasonAtNvidia/cugraph-l4t/gmask"
)

// Path returns the edge list of a directed path 0 -> 1 -> ... -> n-1,
// in which edge i connects i to i+1.
func Path(n int) cugraph.EdgeList {
	e := cugraph.EdgeList{
		Src: make([]int64, n-1),
		Dst: make([]int64, n-1),
	}
	for i := 0; i < n-1; i++ {
		e.Src[i] = int64(i)
		e.Dst[i] = int64(i + 1)
	}
	return e
}

// Complete returns the edge list of a complete directed graph on n
// vertices (no self loops).
func Complete(n int) cugraph.EdgeList {
	var e cugraph.EdgeList
	for u := 0; u < n; u++ {
		for v := 0; v < n; v++ {
			if u != v {
				e.Src = append(e.Src, int64(u))
				e.Dst = append(e.Dst, int64(v))
			}
		}
	}
	return e
}

// Random returns a deterministic pseudorandom edge list with m edges
// over n vertices.
func Random(n, m int, seed int64) cugraph.EdgeList {
	r := rand.New(rand.NewSource(seed))
	e := cugraph.EdgeList{
		Src: make([]int64, m),
		Dst: make([]int64, m),
	}
	for i := 0; i < m; i++ {
		e.Src[i] = int64(r.Intn(n))
		e.Dst[i] = int64(r.Intn(n))
	}
	return e
}

// Build constructs a graph, reporting errors as fatal to t.
func Build(t *testing.T, edges cugraph.EdgeList, opts cugraph.Options) *cugraph.Graph {
	t.Helper()
	g, err := cugraph.FromEdgeList(context.Background(), edges, opts)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// ExpandSeeds repeats each seed by its repetition count, requesting
// that many independent draws for it.
func ExpandSeeds(seeds []cugraph.Vertex, reps []int) []cugraph.Vertex {
	var out []cugraph.Vertex
	for i, u := range seeds {
		for n := 0; n < reps[i]; n++ {
			out = append(out, u)
		}
	}
	return out
}

// AllOnesVertexMask returns a vertex mask with every bit set.
func AllOnesVertexMask(g *cugraph.Graph) *gmask.Mask {
	m := g.NewVertexMask()
	m.SetAll()
	return m
}

// AllOnesEdgeMask returns an edge mask with every bit set.
func AllOnesEdgeMask(g *cugraph.Graph) *gmask.Mask {
	m := g.NewEdgeMask()
	m.SetAll()
	return m
}
