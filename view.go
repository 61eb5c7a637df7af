// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cugraph

import (
	"fmt"

	"github.com/JasonAtNvidia/cugraph-l4t/gmask"
	"github.com/grailbio/base/errors"
)

// A View is a read-only accessor over a partitioned graph store,
// optionally filtered by attached vertex and edge masks. Attaching or
// detaching a mask is a pure view-level operation: it never touches
// the store, and concurrent views over one store filter
// independently. Views are cheap; create one per concern.
//
// A view must not be queried concurrently with attach/detach calls on
// the same view; attached masks must not be mutated while the view is
// in use.
type View struct {
	g     *Graph
	vmask *gmask.Mask
	emask *gmask.Mask
}

// View returns a fresh unfiltered view over the graph.
func (g *Graph) View() *View {
	return &View{g: g}
}

// Graph returns the underlying store.
func (v *View) Graph() *Graph { return v.g }

// NumVertices returns the global vertex count of the underlying
// store. The count is not affected by masks.
func (v *View) NumVertices() Vertex { return v.g.nv }

// NumEdges returns the global edge count of the underlying store,
// unaffected by masks.
func (v *View) NumEdges() int64 { return v.g.ne }

// AttachVertexMask installs a vertex mask on the view. Subsequent
// queries skip vertices whose bit is clear. The mask must cover
// exactly the store's vertex count.
func (v *View) AttachVertexMask(m *gmask.Mask) error {
	if m.Len() != int(v.g.nv) {
		return errors.E(errors.Invalid, fmt.Sprintf("cugraph: vertex mask covers %d of %d vertices", m.Len(), v.g.nv))
	}
	v.vmask = m
	return nil
}

// AttachEdgeMask installs an edge mask on the view. Subsequent
// queries skip edges whose bit is clear. The mask must cover exactly
// the store's edge count.
func (v *View) AttachEdgeMask(m *gmask.Mask) error {
	if m.Len() != int(v.g.ne) {
		return errors.E(errors.Invalid, fmt.Sprintf("cugraph: edge mask covers %d of %d edges", m.Len(), v.g.ne))
	}
	v.emask = m
	return nil
}

// DetachVertexMask reverts the view to unfiltered vertex behavior.
func (v *View) DetachVertexMask() { v.vmask = nil }

// DetachEdgeMask reverts the view to unfiltered edge behavior.
func (v *View) DetachEdgeMask() { v.emask = nil }

// VertexMask returns the attached vertex mask, or nil.
func (v *View) VertexMask() *gmask.Mask { return v.vmask }

// EdgeMask returns the attached edge mask, or nil.
func (v *View) EdgeMask() *gmask.Mask { return v.emask }

// HasVertex reports whether u is in range and passes the vertex mask.
func (v *View) HasVertex(u Vertex) bool {
	if u < 0 || u >= v.g.nv {
		return false
	}
	return v.vmask == nil || v.vmask.Bit(int(u))
}

// Neighbors calls fn for each effective out-neighbor of u: each
// stored edge (u, dst) whose endpoints pass the vertex mask and whose
// edge bit is set. Iteration stops early if fn returns false. For a
// masked-out or out-of-range u, fn is never called.
//
// The shards of u's row are visited in column order, and neighbors
// within a shard in stored order, so iteration order is deterministic
// for a given store and mask state. Weight is 1 for unweighted
// graphs.
func (v *View) Neighbors(u Vertex, fn func(dst Vertex, e Edge, weight float64) bool) {
	if !v.HasVertex(u) {
		return
	}
	l := v.g.layout
	row := l.RowOf(l.OwnerOf(int32(u)))
	for col := 0; col < l.RowSize(); col++ {
		s := v.g.shards[row*l.RowSize()+col]
		lo, hi := s.row(u)
		for i := lo; i < hi; i++ {
			dst, e := s.nbrs[i], s.eids[i]
			if v.emask != nil && !v.emask.Bit(int(e)) {
				continue
			}
			if v.vmask != nil && !v.vmask.Bit(int(dst)) {
				continue
			}
			w := 1.0
			if s.weights != nil {
				w = s.weights[i]
			}
			if !fn(dst, e, w) {
				return
			}
		}
	}
}

// Degree returns the effective out-degree of u: the number of
// neighbors that pass the attached masks. With no masks attached this
// equals the stored degree.
func (v *View) Degree(u Vertex) int {
	var n int
	v.Neighbors(u, func(Vertex, Edge, float64) bool {
		n++
		return true
	})
	return n
}

// LocalVertexPartitionRange returns worker w's vertex range.
func (v *View) LocalVertexPartitionRange(w int) (first, last Vertex) {
	return v.g.LocalVertexPartitionRange(w)
}

// CheckWorkers verifies that the view's partition shape agrees with a
// caller's assumed worker count, failing with an error of kind
// errors.Precondition otherwise. Multi-worker drivers call this
// before fanning work out over a communicator.
func (v *View) CheckWorkers(n int) error {
	if n != v.g.NumWorkers() {
		return errors.E(errors.Precondition, fmt.Sprintf("cugraph: view partitioned for %d workers, caller assumes %d", v.g.NumWorkers(), n))
	}
	return nil
}
