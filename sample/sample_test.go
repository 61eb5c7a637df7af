// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

//go:build !cugraph_nosampling

package sample_test

import (
	"context"
	"reflect"
	"sort"
	"testing"

	cugraph "github.com/JasonAtNvidia/cugraph-l4t"
	"github.com/JasonAtNvidia/cugraph-l4t/graphtest"
	"github.com/JasonAtNvidia/cugraph-l4t/sample"
	"github.com/JasonAtNvidia/cugraph-l4t/subgraph"
	"github.com/grailbio/base/errors"
)

func TestFanoutBound(t *testing.T) {
	ctx := context.Background()
	g := graphtest.Build(t, graphtest.Random(200, 2000, 23), cugraph.Options{NumWorkers: 4})
	view := g.View()
	seeds := []cugraph.Vertex{0, 17, 42, 99}
	fanouts := []int{3, 2, 2}
	res, err := sample.Uniform(ctx, view, seeds, fanouts, sample.Options{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := res.NumRows(), sum(res.HopCounts); got != want {
		t.Fatalf("got %v rows, hop counts sum to %v", got, want)
	}
	report := subgraph.Validate(view, res, seeds, fanouts, false)
	if !report.OK() {
		t.Fatalf("validation failed with %d mismatches: %v", report.Mismatches, report.Examples)
	}
}

func TestWithReplacement(t *testing.T) {
	ctx := context.Background()
	g := graphtest.Build(t, graphtest.Complete(8), cugraph.Options{})
	view := g.View()
	seeds := []cugraph.Vertex{0, 5}
	fanouts := []int{16, 4}
	res, err := sample.Uniform(ctx, view, seeds, fanouts, sample.Options{Seed: 2, WithReplacement: true})
	if err != nil {
		t.Fatal(err)
	}
	// Every source has degree 7 >= 1, so it draws exactly the fanout.
	if got, want := res.HopCounts[0], 2*16; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	report := subgraph.Validate(view, res, seeds, fanouts, true)
	if !report.OK() {
		t.Fatalf("validation failed with %d mismatches: %v", report.Mismatches, report.Examples)
	}
}

func TestRepeatedSeeds(t *testing.T) {
	ctx := context.Background()
	g := graphtest.Build(t, graphtest.Complete(10), cugraph.Options{})
	view := g.View()
	seeds := graphtest.ExpandSeeds([]cugraph.Vertex{3, 7}, []int{4, 2})
	fanouts := []int{2}
	res, err := sample.Uniform(ctx, view, seeds, fanouts, sample.Options{Seed: 3})
	if err != nil {
		t.Fatal(err)
	}
	// Each occurrence draws independently: 4*2 + 2*2 rows.
	if got, want := res.NumRows(), 12; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	report := subgraph.Validate(view, res, seeds, fanouts, false)
	if !report.OK() {
		t.Fatalf("validation failed with %d mismatches: %v", report.Mismatches, report.Examples)
	}
}

func TestReproducible(t *testing.T) {
	ctx := context.Background()
	g := graphtest.Build(t, graphtest.Random(300, 3000, 31), cugraph.Options{NumWorkers: 9})
	view := g.View()
	m := graphtest.AllOnesEdgeMask(g)
	for e := 0; e < int(g.NumEdges()); e += 3 {
		if err := m.Unset(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := view.AttachEdgeMask(m); err != nil {
		t.Fatal(err)
	}
	seeds := []cugraph.Vertex{1, 2, 3, 5, 8, 13}
	fanouts := []int{4, 3, 2}
	a, err := sample.Uniform(ctx, view, seeds, fanouts, sample.Options{Seed: 99})
	if err != nil {
		t.Fatal(err)
	}
	b, err := sample.Uniform(ctx, view, seeds, fanouts, sample.Options{Seed: 99})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("identical calls produced different output")
	}
	c, err := sample.Uniform(ctx, view, seeds, fanouts, sample.Options{Seed: 100})
	if err != nil {
		t.Fatal(err)
	}
	if reflect.DeepEqual(a, c) {
		t.Error("different seeds produced identical output")
	}
}

func TestMaskedEdgesNeverSampled(t *testing.T) {
	// Path graph: vertex v's only outgoing edge is edge v. Clearing
	// an edge bit must therefore remove its source from all output.
	ctx := context.Background()
	g := graphtest.Build(t, graphtest.Path(200), cugraph.Options{NumWorkers: 4})
	view := g.View()
	if err := view.AttachVertexMask(graphtest.AllOnesVertexMask(g)); err != nil {
		t.Fatal(err)
	}
	cleared := []int{2, 3, 21, 52, 53, 100, 125, 150}
	em := graphtest.AllOnesEdgeMask(g)
	for _, e := range cleared {
		if err := em.Unset(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := view.AttachEdgeMask(em); err != nil {
		t.Fatal(err)
	}
	seeds := make([]cugraph.Vertex, 0, 199)
	for u := 0; u < 199; u++ {
		seeds = append(seeds, cugraph.Vertex(u))
	}
	fanouts := []int{1, 1}
	res, err := sample.Uniform(ctx, view, seeds, fanouts, sample.Options{Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	blocked := make(map[cugraph.Vertex]bool)
	for _, e := range cleared {
		blocked[cugraph.Vertex(e)] = true
	}
	for i, src := range res.Src {
		if blocked[src] {
			t.Errorf("row %d: source %d has only a masked outgoing edge", i, src)
		}
		if blocked[cugraph.Vertex(res.EdgeIndex[i])] {
			t.Errorf("row %d: masked edge %d was sampled", i, res.EdgeIndex[i])
		}
	}
	report := subgraph.Validate(view, res, seeds, fanouts, false)
	if !report.OK() {
		t.Fatalf("validation failed with %d mismatches: %v", report.Mismatches, report.Examples)
	}
}

func TestSilentTruncation(t *testing.T) {
	// The path's tail has no outgoing edges: sampling from it yields
	// no rows and no error, and the walk ends when the frontier dies.
	ctx := context.Background()
	g := graphtest.Build(t, graphtest.Path(3), cugraph.Options{})
	res, err := sample.Uniform(ctx, g.View(), []cugraph.Vertex{2}, []int{2, 2}, sample.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := res.NumRows(), 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := res.HopCounts, []int{0, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestHopOrdering(t *testing.T) {
	ctx := context.Background()
	g := graphtest.Build(t, graphtest.Random(100, 1200, 41), cugraph.Options{})
	seeds := []cugraph.Vertex{10, 20, 30}
	res, err := sample.Uniform(ctx, g.View(), seeds, []int{3, 3}, sample.Options{Seed: 5})
	if err != nil {
		t.Fatal(err)
	}
	// Rows group by hop, and within a hop by source.
	row := 0
	for h, n := range res.HopCounts {
		seen := make(map[cugraph.Vertex]bool)
		var last cugraph.Vertex = -1
		for i := 0; i < n; i++ {
			src := res.Src[row]
			row++
			if src != last {
				if seen[src] {
					t.Fatalf("hop %d: source %d rows are not contiguous", h+1, src)
				}
				seen[src] = true
				last = src
			}
		}
	}
}

func TestInvalidArguments(t *testing.T) {
	ctx := context.Background()
	view := graphtest.Build(t, graphtest.Path(10), cugraph.Options{}).View()
	if _, err := sample.Uniform(ctx, view, []cugraph.Vertex{0}, nil, sample.Options{}); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want Invalid", err)
	}
	if _, err := sample.Uniform(ctx, view, []cugraph.Vertex{0}, []int{-1}, sample.Options{}); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want Invalid", err)
	}
	if _, err := sample.Uniform(ctx, view, []cugraph.Vertex{100}, []int{1}, sample.Options{}); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want Invalid", err)
	}
}

func TestUniformAllMatchesUniform(t *testing.T) {
	ctx := context.Background()
	g := graphtest.Build(t, graphtest.Random(400, 4000, 61), cugraph.Options{NumWorkers: 16})
	view := g.View()
	m := graphtest.AllOnesEdgeMask(g)
	for e := 0; e < int(g.NumEdges()); e += 5 {
		if err := m.Unset(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := view.AttachEdgeMask(m); err != nil {
		t.Fatal(err)
	}
	seeds := []cugraph.Vertex{7, 19, 63, 255, 399}
	fanouts := []int{3, 2, 2}
	opts := sample.Options{Seed: 77}
	sg, err := sample.Uniform(ctx, view, seeds, fanouts, opts)
	if err != nil {
		t.Fatal(err)
	}
	mg, err := sample.UniformAll(ctx, view, seeds, fanouts, opts)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := mg.HopCounts, sg.HopCounts; !reflect.DeepEqual(got, want) {
		t.Fatalf("hop counts differ: got %v, want %v", got, want)
	}
	// Same rows, modulo row order within a hop.
	row := 0
	for h, n := range sg.HopCounts {
		a := rows(sg, row, n)
		b := rows(mg, row, n)
		row += n
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("hop %d rows differ", h+1)
		}
	}
	report := subgraph.Validate(view, mg, seeds, fanouts, false)
	if !report.OK() {
		t.Fatalf("validation failed with %d mismatches: %v", report.Mismatches, report.Examples)
	}
}

type rowkey struct {
	src, dst cugraph.Vertex
	e        cugraph.Edge
}

func rows(r *sample.Result, at, n int) []rowkey {
	out := make([]rowkey, 0, n)
	for i := at; i < at+n; i++ {
		out = append(out, rowkey{r.Src[i], r.Dst[i], r.EdgeIndex[i]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].src != out[j].src {
			return out[i].src < out[j].src
		}
		if out[i].dst != out[j].dst {
			return out[i].dst < out[j].dst
		}
		return out[i].e < out[j].e
	})
	return out
}

func sum(xs []int) int {
	var n int
	for _, x := range xs {
		n += x
	}
	return n
}
