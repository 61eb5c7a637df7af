// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package partition

import (
	"testing"

	"github.com/grailbio/base/errors"
)

func TestChooseRowSize(t *testing.T) {
	for _, c := range []struct{ workers, want int }{
		{1, 1},
		{2, 1},
		{4, 2},
		{6, 2},
		{8, 2},
		{9, 3},
		{12, 3},
		{16, 4},
		{24, 4},
		{30, 5},
		{36, 6},
		{7, 1}, // prime: falls through to 1
	} {
		if got := ChooseRowSize(c.workers); got != c.want {
			t.Errorf("ChooseRowSize(%d): got %v, want %v", c.workers, got, c.want)
		}
	}
}

func TestCoverage(t *testing.T) {
	const V = 1000
	for _, workers := range []int{1, 4, 9, 16} {
		l, err := New(V, workers)
		if err != nil {
			t.Fatal(err)
		}
		if got := l.Workers() % l.RowSize(); got != 0 {
			t.Errorf("workers=%d: row size %d does not divide worker count", workers, l.RowSize())
		}
		// Ranges must tile [0, V) exactly.
		var next int32
		for w := 0; w < workers; w++ {
			first, last := l.Range(w)
			if first != next {
				t.Errorf("workers=%d: worker %d starts at %d, want %d", workers, w, first, next)
			}
			if last < first {
				t.Errorf("workers=%d: worker %d has inverted range [%d,%d)", workers, w, first, last)
			}
			next = last
		}
		if next != V {
			t.Errorf("workers=%d: ranges cover [0,%d), want [0,%d)", workers, next, V)
		}
	}
}

func TestOwnerOf(t *testing.T) {
	l, err := New(103, 9)
	if err != nil {
		t.Fatal(err)
	}
	for v := int32(0); v < 103; v++ {
		w := l.OwnerOf(v)
		first, last := l.Range(w)
		if v < first || v >= last {
			t.Errorf("vertex %d: owner %d range [%d,%d) does not contain it", v, w, first, last)
		}
	}
}

func TestRowRange(t *testing.T) {
	l, err := New(64, 16)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := l.RowSize(), 4; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	var next int32
	for r := 0; r < l.NumRows(); r++ {
		first, last := l.RowRange(r)
		if first != next {
			t.Errorf("row %d starts at %d, want %d", r, first, next)
		}
		next = last
	}
	if got, want := next, int32(64); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEdgeWorker(t *testing.T) {
	l, err := New(100, 4)
	if err != nil {
		t.Fatal(err)
	}
	for src := int32(0); src < 100; src += 7 {
		for dst := int32(0); dst < 100; dst += 11 {
			w := l.EdgeWorker(src, dst)
			if w < 0 || w >= 4 {
				t.Fatalf("edge (%d,%d): worker %d out of range", src, dst, w)
			}
			if got, want := l.RowOf(w), l.RowOf(l.OwnerOf(src)); got != want {
				t.Errorf("edge (%d,%d): stored in row %d, want %d", src, dst, got, want)
			}
			if got, want := l.ColOf(w), l.ColOf(l.OwnerOf(dst)); got != want {
				t.Errorf("edge (%d,%d): stored in column %d, want %d", src, dst, got, want)
			}
		}
	}
}

func TestInvalid(t *testing.T) {
	if _, err := New(10, 0); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want Invalid", err)
	}
	if _, err := New(-1, 4); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want Invalid", err)
	}
}
