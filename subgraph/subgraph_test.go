// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package subgraph_test

import (
	"context"
	"reflect"
	"testing"

	cugraph "github.com/JasonAtNvidia/cugraph-l4t"
	"github.com/JasonAtNvidia/cugraph-l4t/graphtest"
	"github.com/JasonAtNvidia/cugraph-l4t/sample"
	"github.com/JasonAtNvidia/cugraph-l4t/subgraph"
	"github.com/grailbio/base/errors"
)

func TestExtractInduced(t *testing.T) {
	// Path 0->1->2->3->4; the set {1,2,3} induces edges 1 and 2.
	view := graphtest.Build(t, graphtest.Path(5), cugraph.Options{}).View()
	sub, err := subgraph.ExtractInduced(view, nil, []cugraph.Vertex{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := sub.NumSets(), 1; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got, want := sub.Src, []cugraph.Vertex{1, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := sub.Dst, []cugraph.Vertex{2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := sub.EdgeIndex, []cugraph.Edge{1, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractMultipleSets(t *testing.T) {
	view := graphtest.Build(t, graphtest.Complete(6), cugraph.Options{NumWorkers: 2}).View()
	vertices := []cugraph.Vertex{0, 1, 2, 3, 4, 5}
	offsets := []int{0, 3, 6}
	sub, err := subgraph.ExtractInduced(view, offsets, vertices)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := sub.NumSets(), 2; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	// Each half induces a complete directed triangle: 6 edges.
	if got, want := sub.Offsets, []int{0, 6, 12}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := sub.Offsets[0]; i < sub.Offsets[1]; i++ {
		if sub.Src[i] > 2 || sub.Dst[i] > 2 {
			t.Errorf("row %d: edge (%d,%d) escapes the first set", i, sub.Src[i], sub.Dst[i])
		}
	}
	for i := sub.Offsets[1]; i < sub.Offsets[2]; i++ {
		if sub.Src[i] < 3 || sub.Dst[i] < 3 {
			t.Errorf("row %d: edge (%d,%d) escapes the second set", i, sub.Src[i], sub.Dst[i])
		}
	}
}

func TestExtractMaskAware(t *testing.T) {
	g := graphtest.Build(t, graphtest.Path(5), cugraph.Options{})
	view := g.View()
	m := graphtest.AllOnesEdgeMask(g)
	if err := m.Unset(1); err != nil {
		t.Fatal(err)
	}
	if err := view.AttachEdgeMask(m); err != nil {
		t.Fatal(err)
	}
	sub, err := subgraph.ExtractInduced(view, nil, []cugraph.Vertex{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := sub.EdgeIndex, []cugraph.Edge{2}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractErrors(t *testing.T) {
	view := graphtest.Build(t, graphtest.Path(5), cugraph.Options{}).View()
	if _, err := subgraph.ExtractInduced(view, []int{0, 1}, []cugraph.Vertex{1, 2}); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want Invalid", err)
	}
	if _, err := subgraph.ExtractInduced(view, []int{0, 2, 1}, []cugraph.Vertex{1}); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want Invalid", err)
	}
	if _, err := subgraph.ExtractInduced(view, nil, []cugraph.Vertex{99}); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want Invalid", err)
	}
}

func TestValidateCatchesTampering(t *testing.T) {
	view := graphtest.Build(t, graphtest.Random(100, 1000, 13), cugraph.Options{NumWorkers: 4}).View()
	seeds := []cugraph.Vertex{5, 25, 75}
	fanouts := []int{2, 2}
	res, err := sample.Uniform(context.Background(), view, seeds, fanouts, sample.Options{Seed: 9})
	if err != nil {
		t.Fatal(err)
	}
	if report := subgraph.Validate(view, res, seeds, fanouts, false); !report.OK() {
		t.Fatalf("clean result failed validation: %v", report.Examples)
	}
	if res.NumRows() == 0 {
		t.Skip("sample produced no rows")
	}
	// A forged destination must be caught.
	forged := *res
	forged.Dst = append([]cugraph.Vertex(nil), res.Dst...)
	forged.Dst[0] = (forged.Dst[0] + 1) % 100
	if report := subgraph.Validate(view, &forged, seeds, fanouts, false); report.OK() {
		t.Error("forged destination passed validation")
	}
	// Inconsistent hop counts must be caught.
	short := *res
	short.HopCounts = append([]int(nil), res.HopCounts...)
	short.HopCounts[0]++
	if report := subgraph.Validate(view, &short, seeds, fanouts, false); report.OK() {
		t.Error("inconsistent hop counts passed validation")
	}
}
