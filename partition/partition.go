// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package partition implements the 2-D decomposition used to shard a
// graph across workers. Vertices are split into per-worker contiguous
// ranges; the workers themselves are arranged into a grid of row
// communicators, and each vertex's incident edges are sharded by
// destination across the columns of its row. The decomposition is a
// pure function of (vertex count, worker count), so every worker
// derives the same layout independently.
package partition

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
)

// ChooseRowSize returns the row-communicator size for the given
// worker count: the largest integer that is at most floor(sqrt(n))
// and divides n evenly. The downward search is the same tie-break the
// iterative centrality consumers rely on, so partition shapes are
// reproducible across runs and implementations.
func ChooseRowSize(workers int) int {
	if workers < 1 {
		return 0
	}
	r := isqrt(workers)
	for workers%r != 0 {
		r--
	}
	return r
}

// Isqrt returns floor(sqrt(n)) using integer Newton iteration.
func isqrt(n int) int {
	if n < 2 {
		return n
	}
	x, y := n, (n+1)/2
	for y < x {
		x, y = y, (y+n/y)/2
	}
	return x
}

// A Descriptor summarizes one worker's share of the graph.
type Descriptor struct {
	// RangeFirst and RangeLast delimit the worker's vertex range
	// [RangeFirst, RangeLast). Ranges are disjoint across workers and
	// cover [0, V) exactly once.
	RangeFirst, RangeLast int32
	// EdgeCount is the number of edges stored on the worker.
	EdgeCount int64
}

// A Layout is the full 2-D decomposition for one graph: the grid
// shape and the per-worker vertex range boundaries. Layouts are
// immutable once built.
type Layout struct {
	workers  int
	rowSize  int // workers per row communicator
	numRows  int
	bounds   []int32 // len workers+1; worker w owns [bounds[w], bounds[w+1])
	vertices int32
}

// New builds the layout for the given global vertex count and worker
// count. Worker count 1 degrades to a single trivial partition. An
// error of kind errors.Invalid is returned for a non-positive worker
// count or negative vertex count.
func New(vertices int32, workers int) (*Layout, error) {
	if workers < 1 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("partition: worker count %d", workers))
	}
	if vertices < 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("partition: vertex count %d", vertices))
	}
	rowSize := ChooseRowSize(workers)
	l := &Layout{
		workers:  workers,
		rowSize:  rowSize,
		numRows:  workers / rowSize,
		bounds:   make([]int32, workers+1),
		vertices: vertices,
	}
	// Balanced contiguous ranges: the first vertices%workers workers
	// get one extra vertex.
	q, rem := vertices/int32(workers), vertices%int32(workers)
	for w := 0; w < workers; w++ {
		size := q
		if int32(w) < rem {
			size++
		}
		l.bounds[w+1] = l.bounds[w] + size
	}
	return l, nil
}

// Workers returns the worker count.
func (l *Layout) Workers() int { return l.workers }

// RowSize returns the size of each row communicator.
func (l *Layout) RowSize() int { return l.rowSize }

// NumRows returns the number of row communicators.
func (l *Layout) NumRows() int { return l.numRows }

// NumVertices returns the global vertex count.
func (l *Layout) NumVertices() int32 { return l.vertices }

// Range returns worker w's vertex range [first, last).
func (l *Layout) Range(w int) (first, last int32) {
	return l.bounds[w], l.bounds[w+1]
}

// OwnerOf returns the worker whose vertex range contains v.
func (l *Layout) OwnerOf(v int32) int {
	return sort.Search(l.workers, func(w int) bool {
		return l.bounds[w+1] > v
	})
}

// RowOf returns the row-communicator index of worker w.
func (l *Layout) RowOf(w int) int { return w / l.rowSize }

// ColOf returns worker w's position within its row communicator.
func (l *Layout) ColOf(w int) int { return w % l.rowSize }

// RowRange returns the contiguous vertex span owned by the workers of
// row r. Worker ranges are assigned in rank order, so the span of a
// row is itself contiguous.
func (l *Layout) RowRange(r int) (first, last int32) {
	return l.bounds[r*l.rowSize], l.bounds[(r+1)*l.rowSize]
}

// EdgeWorker returns the worker that stores edge (src, dst): the
// worker in src's row whose column index is dst's owner's column.
// Sharding by destination bounds each worker's communication fan-in
// to the columns of one row.
func (l *Layout) EdgeWorker(src, dst int32) int {
	row := l.RowOf(l.OwnerOf(src))
	col := l.ColOf(l.OwnerOf(dst))
	return row*l.rowSize + col
}

// Descriptor returns worker w's partition descriptor given its stored
// edge count.
func (l *Layout) Descriptor(w int, edges int64) Descriptor {
	first, last := l.Range(w)
	return Descriptor{RangeFirst: first, RangeLast: last, EdgeCount: edges}
}
