// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cugraph

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/JasonAtNvidia/cugraph-l4t/partition"
	"github.com/JasonAtNvidia/cugraph-l4t/renumber"
	"github.com/grailbio/base/compress/zstd"
	"github.com/grailbio/base/errors"
)

// A snapshot is the serialized form of a graph store: enough to
// reconstruct the layout, the per-worker shards, and the renumbering
// labels. The adjacency arrays dominate, so the stream is
// zstd-compressed.
type snapshot struct {
	NumVertices int32
	NumEdges    int64
	NumWorkers  int
	Symmetric   bool
	Weighted    bool
	Labels      []int64
	Shards      []snapshotShard
}

type snapshotShard struct {
	RowFirst, RowLast int32
	Offsets           []int64
	Nbrs              []int32
	Eids              []int64
	Weights           []float64
}

// WriteSnapshot serializes the graph to w. The layout itself is not
// stored: it is a pure function of (vertex count, worker count) and
// is rebuilt on read.
func (g *Graph) WriteSnapshot(w io.Writer) (err error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	}()
	snap := snapshot{
		NumVertices: int32(g.nv),
		NumEdges:    g.ne,
		NumWorkers:  g.NumWorkers(),
		Symmetric:   g.sym,
		Weighted:    g.weighted,
		Shards:      make([]snapshotShard, len(g.shards)),
	}
	if g.renum != nil {
		snap.Labels = g.renum.Labels()
	}
	for i, s := range g.shards {
		ss := snapshotShard{
			RowFirst: int32(s.rowFirst),
			RowLast:  int32(s.rowLast),
			Offsets:  s.offsets,
			Nbrs:     make([]int32, len(s.nbrs)),
			Eids:     make([]int64, len(s.eids)),
			Weights:  s.weights,
		}
		for j, v := range s.nbrs {
			ss.Nbrs[j] = int32(v)
		}
		for j, e := range s.eids {
			ss.Eids[j] = int64(e)
		}
		snap.Shards[i] = ss
	}
	return gob.NewEncoder(zw).Encode(snap)
}

// ReadSnapshot reconstructs a graph serialized by WriteSnapshot. A
// stream whose shards disagree with the layout derived from its own
// vertex and worker counts fails with an error of kind
// errors.Integrity.
func ReadSnapshot(r io.Reader) (*Graph, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	var snap snapshot
	if err := gob.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, errors.E(err, "cugraph: could not decode snapshot")
	}
	layout, err := partition.New(snap.NumVertices, snap.NumWorkers)
	if err != nil {
		return nil, err
	}
	if len(snap.Shards) != snap.NumWorkers {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("cugraph: snapshot has %d shards for %d workers", len(snap.Shards), snap.NumWorkers))
	}
	g := &Graph{
		nv:       Vertex(snap.NumVertices),
		ne:       snap.NumEdges,
		layout:   layout,
		shards:   make([]*shard, snap.NumWorkers),
		sym:      snap.Symmetric,
		weighted: snap.Weighted,
	}
	if snap.Labels != nil {
		if g.renum, err = renumber.FromLabels(snap.Labels); err != nil {
			return nil, err
		}
	}
	for w, ss := range snap.Shards {
		rowFirst, rowLast := layout.RowRange(layout.RowOf(w))
		if ss.RowFirst != rowFirst || ss.RowLast != rowLast {
			return nil, errors.E(errors.Integrity, fmt.Sprintf("cugraph: shard %d spans [%d,%d), layout says [%d,%d)", w, ss.RowFirst, ss.RowLast, rowFirst, rowLast))
		}
		if len(ss.Offsets) != int(rowLast-rowFirst)+1 || len(ss.Nbrs) != len(ss.Eids) ||
			int64(len(ss.Nbrs)) != ss.Offsets[len(ss.Offsets)-1] {
			return nil, errors.E(errors.Integrity, fmt.Sprintf("cugraph: shard %d adjacency arrays inconsistent", w))
		}
		s := &shard{
			rowFirst: Vertex(ss.RowFirst),
			rowLast:  Vertex(ss.RowLast),
			offsets:  ss.Offsets,
			nbrs:     make([]Vertex, len(ss.Nbrs)),
			eids:     make([]Edge, len(ss.Eids)),
			weights:  ss.Weights,
		}
		for j, v := range ss.Nbrs {
			s.nbrs[j] = Vertex(v)
		}
		for j, e := range ss.Eids {
			s.eids[j] = Edge(e)
		}
		g.shards[w] = s
	}
	return g, nil
}
