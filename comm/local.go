// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package comm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/grailbio/base/errors"
)

// A world is the shared state behind one in-process communicator:
// a reusable generation barrier plus per-collective exchange slots.
// Collectives rendezvous at the barrier twice: once after every rank
// has deposited its contribution, and once after every rank has read
// the others', so slots can be reused by the next collective.
type world struct {
	n int

	mu      sync.Mutex
	arrived int
	release chan struct{}

	slots  [][]byte   // gather / split exchange
	bcast  []byte     // broadcast exchange
	vals   []int64    // all-reduce exchange
	colors []int      // split exchange
	keys   []int
	subs   map[int]*world // split results, keyed by color
}

func newWorld(n int) *world {
	return &world{
		n:       n,
		release: make(chan struct{}),
		slots:   make([][]byte, n),
		vals:    make([]int64, n),
		colors:  make([]int, n),
		keys:    make([]int, n),
	}
}

// Await blocks until all n ranks have arrived, then releases them
// together. The last rank to arrive opens the next generation.
func (w *world) await(ctx context.Context) error {
	w.mu.Lock()
	w.arrived++
	if w.arrived == w.n {
		w.arrived = 0
		close(w.release)
		w.release = make(chan struct{})
		w.mu.Unlock()
		return nil
	}
	release := w.release
	w.mu.Unlock()
	select {
	case <-release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type local struct {
	w    *world
	rank int
}

// NewLocal returns an in-process communicator of n workers, one Comm
// per rank. The returned endpoints share state through memory; each
// must be used by exactly one goroutine.
func NewLocal(n int) []Comm {
	w := newWorld(n)
	comms := make([]Comm, n)
	for i := range comms {
		comms[i] = &local{w: w, rank: i}
	}
	return comms
}

func (c *local) Rank() int { return c.rank }
func (c *local) Size() int { return c.w.n }

func (c *local) Barrier(ctx context.Context) error {
	return c.w.await(ctx)
}

func (c *local) checkRoot(root int) error {
	if root < 0 || root >= c.w.n {
		return errors.E(errors.Invalid, fmt.Sprintf("comm: root %d out of range [0,%d)", root, c.w.n))
	}
	return nil
}

func (c *local) Gather(ctx context.Context, buf []byte, root int) ([][]byte, error) {
	if err := c.checkRoot(root); err != nil {
		return nil, err
	}
	c.w.slots[c.rank] = buf
	if err := c.w.await(ctx); err != nil {
		return nil, err
	}
	var out [][]byte
	if c.rank == root {
		out = make([][]byte, c.w.n)
		for i, b := range c.w.slots {
			out[i] = append([]byte(nil), b...)
		}
	}
	if err := c.w.await(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *local) Broadcast(ctx context.Context, buf []byte, root int) ([]byte, error) {
	if err := c.checkRoot(root); err != nil {
		return nil, err
	}
	if c.rank == root {
		c.w.bcast = buf
	}
	if err := c.w.await(ctx); err != nil {
		return nil, err
	}
	out := append([]byte(nil), c.w.bcast...)
	if err := c.w.await(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *local) AllReduce(ctx context.Context, value int64, op Op) (int64, error) {
	c.w.vals[c.rank] = value
	if err := c.w.await(ctx); err != nil {
		return 0, err
	}
	// Every rank reduces in rank order, so all see the same result.
	acc := c.w.vals[0]
	for _, v := range c.w.vals[1:] {
		switch op {
		case Sum:
			acc += v
		case Max:
			if v > acc {
				acc = v
			}
		case Min:
			if v < acc {
				acc = v
			}
		}
	}
	if err := c.w.await(ctx); err != nil {
		return 0, err
	}
	return acc, nil
}

func (c *local) Split(ctx context.Context, color, key int) (Comm, error) {
	c.w.colors[c.rank] = color
	c.w.keys[c.rank] = key
	if err := c.w.await(ctx); err != nil {
		return nil, err
	}
	// Each rank derives the same grouping from the exchanged colors.
	group := make([]int, 0, c.w.n)
	for r := 0; r < c.w.n; r++ {
		if c.w.colors[r] == color {
			group = append(group, r)
		}
	}
	sort.Slice(group, func(i, j int) bool {
		if c.w.keys[group[i]] != c.w.keys[group[j]] {
			return c.w.keys[group[i]] < c.w.keys[group[j]]
		}
		return group[i] < group[j]
	})
	newRank := -1
	for i, r := range group {
		if r == c.rank {
			newRank = i
		}
	}
	// The group's first member publishes the shared subworld.
	c.w.mu.Lock()
	if c.w.subs == nil {
		c.w.subs = make(map[int]*world)
	}
	if c.rank == group[0] {
		c.w.subs[color] = newWorld(len(group))
	}
	c.w.mu.Unlock()
	if err := c.w.await(ctx); err != nil {
		return nil, err
	}
	c.w.mu.Lock()
	sub := c.w.subs[color]
	c.w.mu.Unlock()
	if err := c.w.await(ctx); err != nil {
		return nil, err
	}
	// All ranks have read their subworld; rank 0 retires the exchange
	// map before any rank can start the next collective.
	if c.rank == 0 {
		c.w.mu.Lock()
		c.w.subs = nil
		c.w.mu.Unlock()
	}
	return &local{w: sub, rank: newRank}, nil
}
