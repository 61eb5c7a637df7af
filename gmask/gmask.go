// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package gmask implements packed bitsets used to mask vertices and
// edges out of graph views. A mask is an owned buffer of 32-bit words;
// bit b of word i covers element id i*32+b. A set bit marks the
// element active, a cleared bit excludes it. Masks know nothing about
// the adjacency they filter: they are attached to (and detached from)
// views, never baked into graph storage.
package gmask

import (
	"fmt"
	"math/bits"

	"github.com/grailbio/base/errors"
)

// WordWidth is the number of element bits packed into one mask word.
const WordWidth = 32

// A Mask is a fixed-size bitset over element ids [0, Len()).
//
// Masks are single-writer: the owner mutates bits, and mutation must
// complete before any view attaches and reads the mask. Concurrent
// mutation and read is not guarded here.
type Mask struct {
	words []uint32
	n     int
}

// New returns a mask over n elements with every bit cleared. The
// backing store is rounded up to a whole number of words.
func New(n int) *Mask {
	return &Mask{
		words: make([]uint32, (n+WordWidth-1)/WordWidth),
		n:     n,
	}
}

// Len returns the number of elements covered by the mask.
func (m *Mask) Len() int { return m.n }

// Set marks element id active. It returns an error of kind
// errors.Invalid if id is out of range.
func (m *Mask) Set(id int) error {
	if id < 0 || id >= m.n {
		return errors.E(errors.Invalid, fmt.Sprintf("gmask: bit %d out of range [0,%d)", id, m.n))
	}
	m.words[id/WordWidth] |= 1 << (uint(id) % WordWidth)
	return nil
}

// Unset clears element id, excluding it from any view the mask is
// attached to. It returns an error of kind errors.Invalid if id is
// out of range.
func (m *Mask) Unset(id int) error {
	if id < 0 || id >= m.n {
		return errors.E(errors.Invalid, fmt.Sprintf("gmask: bit %d out of range [0,%d)", id, m.n))
	}
	m.words[id/WordWidth] &^= 1 << (uint(id) % WordWidth)
	return nil
}

// SetAll marks every element active.
func (m *Mask) SetAll() {
	for i := range m.words {
		m.words[i] = ^uint32(0)
	}
	m.clearTail()
}

// Clear resets every bit.
func (m *Mask) Clear() {
	for i := range m.words {
		m.words[i] = 0
	}
}

// Bit reports whether element id is active. The caller must ensure
// id is in range; Bit is on the hot path of every masked adjacency
// query and performs no bounds check of its own beyond the slice's.
func (m *Mask) Bit(id int) bool {
	return m.words[id/WordWidth]&(1<<(uint(id)%WordWidth)) != 0
}

// Count returns the number of active elements.
func (m *Mask) Count() int {
	var n int
	for _, w := range m.words {
		n += bits.OnesCount32(w)
	}
	return n
}

// Words exposes the raw backing store. Bulk population goes through
// this view: per-bit mutation is prohibitively slow at scale on the
// primary compute device, so callers prepare a bitset elsewhere and
// copy it in with one transfer. The returned slice aliases the mask.
func (m *Mask) Words() []uint32 {
	return m.words
}

// LoadWords copies a prepared bit buffer into the mask's backing
// store. The buffer must contain exactly ceil(Len()/32) words; any
// bits beyond Len() in the final word are cleared.
func (m *Mask) LoadWords(words []uint32) error {
	if len(words) != len(m.words) {
		return errors.E(errors.Invalid, fmt.Sprintf("gmask: have %d words, need %d", len(words), len(m.words)))
	}
	copy(m.words, words)
	m.clearTail()
	return nil
}

// ClearTail zeroes bits past n in the final word so that Count and
// word-level comparisons are exact.
func (m *Mask) clearTail() {
	if tail := m.n % WordWidth; tail != 0 && len(m.words) > 0 {
		m.words[len(m.words)-1] &= (1 << uint(tail)) - 1
	}
}
