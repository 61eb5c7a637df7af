// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cugraph

import (
	"context"
	"fmt"
	"math"

	"github.com/JasonAtNvidia/cugraph-l4t/gmask"
	"github.com/JasonAtNvidia/cugraph-l4t/partition"
	"github.com/JasonAtNvidia/cugraph-l4t/renumber"
	"github.com/grailbio/base/data"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/base/traverse"
)

// A Vertex is a dense internal vertex id in [0, V).
type Vertex int32

// An Edge is an edge id: the index of the edge in the construction
// edge list. Edge ids are stable for the life of the graph and are
// returned from sampling as provenance.
type Edge int64

// An EdgeList is the construction input: parallel columns of source
// and destination ids, optionally weighted. Ids are external when
// Options.Renumber is set and dense internal ids otherwise.
type EdgeList struct {
	Src, Dst []int64
	// Weight is either empty or parallel to Src.
	Weight []float64
}

// Options configures graph construction.
type Options struct {
	// NumWorkers is the number of workers the graph is partitioned
	// across. Zero means one.
	NumWorkers int
	// NumVertices, when nonzero, declares the vertex count; ids in the
	// edge list must be consistent with it. Zero infers the count.
	NumVertices int64
	// IsSymmetric declares that the edge list contains both directions
	// of every edge.
	IsSymmetric bool
	// Renumber maps external ids onto the dense internal space before
	// partitioning. Without it the input must already be dense.
	Renumber bool
}

// A shard is one cell of the 2-D decomposition: the compressed
// adjacency rows for sources in one row communicator's vertex span,
// restricted to destinations owned by one column. Edge ids index the
// construction edge list.
type shard struct {
	rowFirst, rowLast Vertex
	offsets           []int64 // len rowLast-rowFirst+1
	nbrs              []Vertex
	eids              []Edge
	weights           []float64 // nil when unweighted
}

func (s *shard) row(v Vertex) (lo, hi int64) {
	i := int64(v - s.rowFirst)
	return s.offsets[i], s.offsets[i+1]
}

// A Graph is an immutable partitioned graph store. All mutation
// happens during construction; afterwards the store is freely shared
// across concurrent views and samplers.
type Graph struct {
	nv       Vertex
	ne       int64
	layout   *partition.Layout
	shards   []*shard // indexed by worker rank
	renum    *renumber.Map
	sym      bool
	weighted bool
}

// FromEdgeList constructs a partitioned graph from an edge list. The
// 2-D decomposition is chosen from Options.NumWorkers: the row
// communicator size is the largest divisor of the worker count not
// exceeding its square root, each worker owns a contiguous vertex
// range, and each edge is stored on the worker in its source's row
// whose column owns the destination. Construction is the only place
// the layout can change; the returned graph is immutable.
//
// Malformed input (ragged columns, ids inconsistent with a declared
// vertex count, non-dense ids without Renumber) fails with an error
// of kind errors.Invalid, and no partial store is left reachable.
func FromEdgeList(ctx context.Context, edges EdgeList, opts Options) (*Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(edges.Src) != len(edges.Dst) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("cugraph: %d sources, %d destinations", len(edges.Src), len(edges.Dst)))
	}
	if len(edges.Weight) != 0 && len(edges.Weight) != len(edges.Src) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("cugraph: %d weights for %d edges", len(edges.Weight), len(edges.Src)))
	}
	if opts.NumWorkers == 0 {
		opts.NumWorkers = 1
	}
	if opts.NumWorkers < 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("cugraph: worker count %d", opts.NumWorkers))
	}

	g := &Graph{
		ne:       int64(len(edges.Src)),
		sym:      opts.IsSymmetric,
		weighted: len(edges.Weight) != 0,
	}

	var src, dst []int32
	if opts.Renumber {
		m, err := renumber.FromEdgeList(edges.Src, edges.Dst, renumber.Options{NumVertices: opts.NumVertices})
		if err != nil {
			return nil, err
		}
		src, dst, err = m.Apply(edges.Src, edges.Dst)
		if err != nil {
			return nil, err
		}
		g.renum = m
		g.nv = Vertex(m.Len())
	} else {
		nv := opts.NumVertices
		var err error
		src, dst, err = checkDense(edges.Src, edges.Dst, &nv)
		if err != nil {
			return nil, err
		}
		g.nv = Vertex(nv)
	}

	layout, err := partition.New(int32(g.nv), opts.NumWorkers)
	if err != nil {
		return nil, err
	}
	g.layout = layout

	// Bucket edge indices by owning worker, then build each shard's
	// CSR in parallel. Bucketing is stable, so neighbor order within
	// a compressed row follows edge-list order.
	buckets := make([][]int64, opts.NumWorkers)
	for i := range src {
		w := layout.EdgeWorker(src[i], dst[i])
		buckets[w] = append(buckets[w], int64(i))
	}
	g.shards = make([]*shard, opts.NumWorkers)
	err = traverse.Each(opts.NumWorkers, func(w int) error {
		rowFirst, rowLast := layout.RowRange(layout.RowOf(w))
		s := &shard{
			rowFirst: Vertex(rowFirst),
			rowLast:  Vertex(rowLast),
			offsets:  make([]int64, rowLast-rowFirst+1),
			nbrs:     make([]Vertex, len(buckets[w])),
			eids:     make([]Edge, len(buckets[w])),
		}
		if g.weighted {
			s.weights = make([]float64, len(buckets[w]))
		}
		for _, e := range buckets[w] {
			s.offsets[src[e]-rowFirst+1]++
		}
		for i := 1; i < len(s.offsets); i++ {
			s.offsets[i] += s.offsets[i-1]
		}
		fill := make([]int64, rowLast-rowFirst)
		for _, e := range buckets[w] {
			i := int64(src[e] - rowFirst)
			at := s.offsets[i] + fill[i]
			fill[i]++
			s.nbrs[at] = Vertex(dst[e])
			s.eids[at] = Edge(e)
			if g.weighted {
				s.weights[at] = edges.Weight[e]
			}
		}
		must.True(s.offsets[len(s.offsets)-1] == int64(len(s.nbrs)), "shard offsets inconsistent")
		g.shards[w] = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("cugraph: constructed graph: %d vertices, %d edges, %d workers (%dx%d grid), ~%s",
		g.nv, g.ne, opts.NumWorkers, layout.NumRows(), layout.RowSize(), data.Size(g.sizeof()))
	return g, nil
}

// CheckDense validates a dense internal-id edge list, inferring the
// vertex count when *nv is zero.
func checkDense(src, dst []int64, nv *int64) ([]int32, []int32, error) {
	if *nv == 0 {
		for i := range src {
			if src[i] >= *nv {
				*nv = src[i] + 1
			}
			if dst[i] >= *nv {
				*nv = dst[i] + 1
			}
		}
	}
	if *nv > math.MaxInt32 {
		return nil, nil, errors.E(errors.Invalid, fmt.Sprintf("cugraph: vertex count %d exceeds id width", *nv))
	}
	isrc := make([]int32, len(src))
	idst := make([]int32, len(dst))
	for i := range src {
		if src[i] < 0 || src[i] >= *nv || dst[i] < 0 || dst[i] >= *nv {
			return nil, nil, errors.E(errors.Invalid, fmt.Sprintf("cugraph: edge (%d,%d) outside vertex space [0,%d)", src[i], dst[i], *nv))
		}
		isrc[i], idst[i] = int32(src[i]), int32(dst[i])
	}
	return isrc, idst, nil
}

func (g *Graph) sizeof() data.Size {
	var n int64
	for _, s := range g.shards {
		n += int64(len(s.offsets))*8 + int64(len(s.nbrs))*4 + int64(len(s.eids))*8 + int64(len(s.weights))*8
	}
	return data.Size(n)
}

// NumVertices returns the global vertex count.
func (g *Graph) NumVertices() Vertex { return g.nv }

// NumEdges returns the global edge count.
func (g *Graph) NumEdges() int64 { return g.ne }

// NumWorkers returns the worker count the graph is partitioned across.
func (g *Graph) NumWorkers() int { return g.layout.Workers() }

// Layout returns the graph's 2-D partition layout.
func (g *Graph) Layout() *partition.Layout { return g.layout }

// IsSymmetric reports whether the edge list was declared symmetric.
func (g *Graph) IsSymmetric() bool { return g.sym }

// IsWeighted reports whether the graph carries edge weights.
func (g *Graph) IsWeighted() bool { return g.weighted }

// LocalVertexPartitionRange returns worker w's vertex range
// [first, last).
func (g *Graph) LocalVertexPartitionRange(w int) (first, last Vertex) {
	f, l := g.layout.Range(w)
	return Vertex(f), Vertex(l)
}

// LocalNumEdges returns the number of edges stored on worker w.
func (g *Graph) LocalNumEdges(w int) int64 {
	return int64(len(g.shards[w].nbrs))
}

// Descriptors returns the per-worker partition descriptors.
func (g *Graph) Descriptors() []partition.Descriptor {
	descs := make([]partition.Descriptor, g.NumWorkers())
	for w := range descs {
		descs[w] = g.layout.Descriptor(w, g.LocalNumEdges(w))
	}
	return descs
}

// RenumberMap returns the renumbering map, or nil if the graph was
// constructed from internal ids.
func (g *Graph) RenumberMap() *renumber.Map { return g.renum }

// NewVertexMask allocates an all-clear vertex mask sized to the
// graph's vertex count.
func (g *Graph) NewVertexMask() *gmask.Mask { return gmask.New(int(g.nv)) }

// NewEdgeMask allocates an all-clear edge mask sized to the graph's
// edge count.
func (g *Graph) NewEdgeMask() *gmask.Mask { return gmask.New(int(g.ne)) }
