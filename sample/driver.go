// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package sample

import (
	"context"
	"encoding/binary"
	"fmt"

	cugraph "github.com/JasonAtNvidia/cugraph-l4t"
	"github.com/JasonAtNvidia/cugraph-l4t/comm"
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/grailbio/base/errors"
	"golang.org/x/sync/errgroup"
)

// UniformAll runs uniform neighbor sampling across all of the graph's
// workers: each worker expands only the frontier vertices in its
// local vertex partition range, sampled rows are gathered to rank 0,
// and the deduplicated destination frontier is broadcast back for the
// next hop. Because draws are keyed per (seed, vertex, hop), the
// merged result contains exactly the rows Uniform would produce on a
// single worker; only row order within a hop may differ for the seed
// hop. The per-hop row counts are agreed by all-reduce.
//
// Workers run as goroutines over an in-process communicator. The call
// fails with an error of kind errors.Precondition if the view's
// partition shape disagrees with the communicator size.
func UniformAll(ctx context.Context, view *cugraph.View, seeds []cugraph.Vertex, fanouts []int, opts Options) (*Result, error) {
	if err := validate(ctx, view, seeds, fanouts); err != nil {
		return nil, err
	}
	comms := comm.NewLocal(view.Graph().NumWorkers())
	g, ctx := errgroup.WithContext(ctx)
	var root *Result
	for _, c := range comms {
		c := c
		g.Go(func() error {
			res, err := uniformWorker(ctx, c, view, seeds, fanouts, opts)
			if err != nil {
				return err
			}
			if c.Rank() == 0 {
				root = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return root, nil
}

func validate(ctx context.Context, view *cugraph.View, seeds []cugraph.Vertex, fanouts []int) error {
	if !enabled {
		return errors.E(errors.NotSupported, "sample: uniform neighbor sampling not compiled into this build")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(fanouts) == 0 {
		return errors.E(errors.Invalid, "sample: empty fanout schedule")
	}
	for h, f := range fanouts {
		if f < 0 {
			return errors.E(errors.Invalid, fmt.Sprintf("sample: negative fanout %d at hop %d", f, h))
		}
	}
	for _, u := range seeds {
		if u < 0 || u >= view.NumVertices() {
			return errors.E(errors.Invalid, fmt.Sprintf("sample: seed vertex %d outside [0,%d)", u, view.NumVertices()))
		}
	}
	return nil
}

// UniformWorker is the per-rank body of UniformAll. Every rank
// executes the same collective sequence per hop: gather rows to root,
// gather and rebroadcast the merged frontier, all-reduce the row
// count.
func uniformWorker(ctx context.Context, c comm.Comm, view *cugraph.View, seeds []cugraph.Vertex, fanouts []int, opts Options) (*Result, error) {
	if err := view.CheckWorkers(c.Size()); err != nil {
		return nil, err
	}
	var (
		res         = &Result{HopCounts: make([]int, len(fanouts))}
		s           = sampler{view: view, seed: opts.Seed, withReplacement: opts.WithReplacement}
		frontier    = seeds
		first, last = view.LocalVertexPartitionRange(c.Rank())
	)
	for h, f := range fanouts {
		var (
			hop  Result
			next = roaring.New()
			rngs = make(map[cugraph.Vertex]*rng)
		)
		for _, u := range frontier {
			if u < first || u >= last {
				continue // a remote worker owns this vertex
			}
			r := rngs[u]
			if r == nil {
				r = newRNG(s.seed, u, h)
				rngs[u] = r
			}
			s.expand(u, f, r, &hop, next)
		}

		gathered, err := c.Gather(ctx, encodeRows(&hop), 0)
		if err != nil {
			return nil, err
		}
		if c.Rank() == 0 {
			for _, buf := range gathered {
				if err := appendRows(res, buf); err != nil {
					return nil, err
				}
			}
		}

		rows, err := c.AllReduce(ctx, int64(hop.NumRows()), comm.Sum)
		if err != nil {
			return nil, err
		}
		res.HopCounts[h] = int(rows)

		merged, err := mergeFrontier(ctx, c, next)
		if err != nil {
			return nil, err
		}
		if merged.IsEmpty() {
			break
		}
		frontier = make([]cugraph.Vertex, 0, int(merged.GetCardinality()))
		for _, v := range merged.ToArray() {
			frontier = append(frontier, cugraph.Vertex(v))
		}
	}
	return res, nil
}

// MergeFrontier gathers every rank's local destination set to root,
// unions them, and broadcasts the union.
func mergeFrontier(ctx context.Context, c comm.Comm, local *roaring.Bitmap) (*roaring.Bitmap, error) {
	buf, err := local.MarshalBinary()
	if err != nil {
		return nil, err
	}
	gathered, err := c.Gather(ctx, buf, 0)
	if err != nil {
		return nil, err
	}
	var out []byte
	if c.Rank() == 0 {
		union := roaring.New()
		for _, b := range gathered {
			part := roaring.New()
			if err := part.UnmarshalBinary(b); err != nil {
				return nil, err
			}
			union.Or(part)
		}
		if out, err = union.MarshalBinary(); err != nil {
			return nil, err
		}
	}
	if out, err = c.Broadcast(ctx, out, 0); err != nil {
		return nil, err
	}
	merged := roaring.New()
	if err := merged.UnmarshalBinary(out); err != nil {
		return nil, err
	}
	return merged, nil
}

// Rows cross the communicator as little-endian (src, dst, edge)
// triples prefixed by a row count.
func encodeRows(r *Result) []byte {
	buf := make([]byte, 8+len(r.Src)*16)
	binary.LittleEndian.PutUint64(buf, uint64(len(r.Src)))
	at := 8
	for i := range r.Src {
		binary.LittleEndian.PutUint32(buf[at:], uint32(r.Src[i]))
		binary.LittleEndian.PutUint32(buf[at+4:], uint32(r.Dst[i]))
		binary.LittleEndian.PutUint64(buf[at+8:], uint64(r.EdgeIndex[i]))
		at += 16
	}
	return buf
}

func appendRows(res *Result, buf []byte) error {
	if len(buf) < 8 {
		return errors.E(errors.Invalid, "sample: short row buffer")
	}
	n := int(binary.LittleEndian.Uint64(buf))
	if len(buf) != 8+n*16 {
		return errors.E(errors.Invalid, fmt.Sprintf("sample: row buffer holds %d bytes for %d rows", len(buf), n))
	}
	at := 8
	for i := 0; i < n; i++ {
		res.Src = append(res.Src, cugraph.Vertex(binary.LittleEndian.Uint32(buf[at:])))
		res.Dst = append(res.Dst, cugraph.Vertex(binary.LittleEndian.Uint32(buf[at+4:])))
		res.EdgeIndex = append(res.EdgeIndex, cugraph.Edge(binary.LittleEndian.Uint64(buf[at+8:])))
		at += 16
	}
	return nil
}
