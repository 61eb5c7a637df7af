// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package renumber maps external vertex identifiers onto the dense
// internal id space [0, V) required by partitioning and compact
// adjacency storage. Internal ids are assigned to the sorted distinct
// external ids, so the mapping is deterministic and internal ids fall
// into contiguous per-worker ranges under the partition layout.
package renumber

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
)

// Options configures map construction.
type Options struct {
	// NumVertices, when nonzero, declares the external id space
	// [0, NumVertices). Construction fails with an error of kind
	// errors.Invalid if the edge list references ids outside it.
	NumVertices int64
	// Isolated lists external ids with no incident edges that must
	// still receive internal ids.
	Isolated []int64
}

// A Map is a bidirectional mapping between external vertex ids and
// dense internal ids. Maps are immutable once constructed.
type Map struct {
	labels []int64 // internal -> external
	index  map[int64]int32
}

// FromEdgeList builds a renumbering map from an external-id edge
// list. src and dst must have equal length. Negative ids, mismatched
// column lengths, and ids inconsistent with a declared vertex count
// fail with errors of kind errors.Invalid.
func FromEdgeList(src, dst []int64, opts Options) (*Map, error) {
	if len(src) != len(dst) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("renumber: %d sources, %d destinations", len(src), len(dst)))
	}
	seen := make(map[int64]bool, len(src)*2)
	add := func(id int64) error {
		if id < 0 {
			return errors.E(errors.Invalid, fmt.Sprintf("renumber: negative vertex id %d", id))
		}
		if opts.NumVertices != 0 && id >= opts.NumVertices {
			return errors.E(errors.Invalid, fmt.Sprintf("renumber: vertex id %d outside declared space [0,%d)", id, opts.NumVertices))
		}
		seen[id] = true
		return nil
	}
	for i := range src {
		if err := add(src[i]); err != nil {
			return nil, err
		}
		if err := add(dst[i]); err != nil {
			return nil, err
		}
	}
	for _, id := range opts.Isolated {
		if err := add(id); err != nil {
			return nil, err
		}
	}
	m := &Map{
		labels: make([]int64, 0, len(seen)),
		index:  make(map[int64]int32, len(seen)),
	}
	for id := range seen {
		m.labels = append(m.labels, id)
	}
	sort.Slice(m.labels, func(i, j int) bool { return m.labels[i] < m.labels[j] })
	for i, id := range m.labels {
		m.index[id] = int32(i)
	}
	return m, nil
}

// FromLabels reconstructs a map from a label array (internal id i
// maps to external id labels[i]), as produced by Labels. Duplicate
// labels fail with an error of kind errors.Invalid.
func FromLabels(labels []int64) (*Map, error) {
	m := &Map{
		labels: append([]int64(nil), labels...),
		index:  make(map[int64]int32, len(labels)),
	}
	for i, id := range m.labels {
		if _, dup := m.index[id]; dup {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("renumber: duplicate label %d", id))
		}
		m.index[id] = int32(i)
	}
	return m, nil
}

// Len returns the number of distinct vertices.
func (m *Map) Len() int { return len(m.labels) }

// InternalOf returns the internal id for an external id.
func (m *Map) InternalOf(ext int64) (int32, bool) {
	id, ok := m.index[ext]
	return id, ok
}

// ExternalOf returns the external id for an internal id.
func (m *Map) ExternalOf(internal int32) int64 {
	return m.labels[internal]
}

// Labels returns the internal-to-external label array
// ("renumber_map_labels"). The returned slice aliases the map and
// must not be mutated.
func (m *Map) Labels() []int64 { return m.labels }

// Apply renumbers an edge list in bulk. Every id must be present in
// the map; unknown ids fail with an error of kind errors.Invalid.
func (m *Map) Apply(src, dst []int64) (isrc, idst []int32, err error) {
	if len(src) != len(dst) {
		return nil, nil, errors.E(errors.Invalid, fmt.Sprintf("renumber: %d sources, %d destinations", len(src), len(dst)))
	}
	isrc = make([]int32, len(src))
	idst = make([]int32, len(dst))
	for i := range src {
		s, ok := m.index[src[i]]
		if !ok {
			return nil, nil, errors.E(errors.Invalid, fmt.Sprintf("renumber: unknown vertex id %d", src[i]))
		}
		d, ok := m.index[dst[i]]
		if !ok {
			return nil, nil, errors.E(errors.Invalid, fmt.Sprintf("renumber: unknown vertex id %d", dst[i]))
		}
		isrc[i], idst[i] = s, d
	}
	return isrc, idst, nil
}
