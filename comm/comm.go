// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package comm defines the collective communication surface consumed
// by multi-worker graph operations: barrier, gather, broadcast,
// all-reduce, and MPI-style communicator splitting from which the 2-D
// (row by column) communicator grid is built. The package ships only
// an in-process implementation, used by the local multi-worker driver
// and by tests; cluster transports implement the same interface
// elsewhere.
package comm

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
)

// Op is an all-reduce reduction operator.
type Op int

const (
	Sum Op = iota
	Max
	Min
)

// A Comm is one worker's endpoint into a communicator of Size peers.
// All collective calls block the issuing worker until the collective
// completes on every rank; every rank must issue the same sequence of
// collectives. Calls fail with the context's error if it completes
// first.
type Comm interface {
	// Rank returns this worker's rank in [0, Size).
	Rank() int
	// Size returns the number of workers in the communicator.
	Size() int
	// Barrier blocks until all ranks have entered it.
	Barrier(ctx context.Context) error
	// Gather sends buf to root. On root it returns all ranks' buffers
	// indexed by rank; on other ranks it returns nil.
	Gather(ctx context.Context, buf []byte, root int) ([][]byte, error)
	// Broadcast distributes root's buffer to all ranks. Non-root
	// callers pass nil and receive a copy.
	Broadcast(ctx context.Context, buf []byte, root int) ([]byte, error)
	// AllReduce combines value across ranks with op; every rank
	// receives the result.
	AllReduce(ctx context.Context, value int64, op Op) (int64, error)
	// Split partitions the communicator: ranks passing equal colors
	// form a new communicator, ordered by (key, rank). All ranks must
	// call Split.
	Split(ctx context.Context, color, key int) (Comm, error)
}

// A Grid is a 2-D communicator decomposition: the workers of one
// communicator arranged into rows of rowSize workers each. Row
// communicators bound the fan-in of destination-sharded edge
// exchanges; column communicators carry vertex-range traffic.
type Grid struct {
	// Row is the communicator spanning this worker's row.
	Row Comm
	// Col is the communicator spanning this worker's column.
	Col Comm
	// RowIndex and ColIndex are this worker's grid coordinates.
	RowIndex, ColIndex int
}

// NewGrid splits c into a 2-D grid with rows of rowSize workers. The
// row size must divide the communicator size evenly; callers obtain
// it from partition.ChooseRowSize. All ranks must call NewGrid.
func NewGrid(ctx context.Context, c Comm, rowSize int) (*Grid, error) {
	if rowSize < 1 || c.Size()%rowSize != 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("comm: row size %d does not divide %d workers", rowSize, c.Size()))
	}
	rowIndex, colIndex := c.Rank()/rowSize, c.Rank()%rowSize
	row, err := c.Split(ctx, rowIndex, colIndex)
	if err != nil {
		return nil, err
	}
	col, err := c.Split(ctx, colIndex, rowIndex)
	if err != nil {
		return nil, err
	}
	return &Grid{Row: row, Col: col, RowIndex: rowIndex, ColIndex: colIndex}, nil
}
