// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
	Package cugraph implements the core of a distributed graph analytics
	engine: a compressed-adjacency graph store partitioned across a set
	of parallel workers using a 2-D (vertex range by destination shard)
	decomposition, read-only views over the store with attachable vertex
	and edge bitmasks, and the partition contract consumed by iterative
	algorithms and by the uniform neighbor sampler.

	A graph is constructed once from an edge list and is immutable
	afterwards. Algorithms never touch the store directly; they operate
	on views:

		g, err := cugraph.FromEdgeList(ctx, edges, cugraph.Options{
			NumWorkers: 4,
			Renumber:   true,
		})
		...
		view := g.View()
		mask := g.NewEdgeMask()
		mask.SetAll()
		mask.Unset(badEdge)
		view.AttachEdgeMask(mask)

	Every neighbor and degree query through a view consults the attached
	masks element by element; masked-out vertices and edges are skipped
	without materializing a filtered copy of the adjacency. Views are
	cheap, and concurrent views over one store filter independently.

	Subpackages provide the remaining pieces: gmask (packed bitsets),
	partition (2-D decomposition), renumber (external to internal vertex
	ids), sample (uniform neighbor sampling), subgraph (induced subgraph
	extraction and sample validation), and comm (the collective
	communication surface consumed by multi-worker drivers).
*/
package cugraph
