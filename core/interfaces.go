//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of CSVClean.
//
// CSVClean is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// CSVClean is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with CSVClean. If not, see https://www.gnu.org/licenses/.

package core

import (
	"context"
)

// This file contains the primary interfaces for batch sources, sinks and transformers.

// BatchSource produces a lazy, finite, forward-only sequence of batches.
type BatchSource interface {
	// Next returns the next non-empty batch or io.EOF when the input is exhausted.
	Next(ctx context.Context) (Batch, error)
	// Header returns the column names, or nil before the header has been read.
	Header() Header
	// Skipped returns the number of malformed records dropped so far.
	Skipped() int64
	// Close releases any resources held by the source.
	Close() error
}

// BatchSink appends batches to a destination in order.
type BatchSink interface {
	// WriteBatch appends the rows of b. When first is true the header is written before them.
	WriteBatch(ctx context.Context, b Batch, first bool) error
	// Close flushes and releases the destination.
	Close() error
}

// BatchTransformer maps a batch to a new batch of the same shape.
type BatchTransformer interface {
	TransformBatch(ctx context.Context, b Batch) (Batch, error)
}

// BatchTransformFunc is a function adapter for the BatchTransformer interface.
type BatchTransformFunc func(ctx context.Context, b Batch) (Batch, error)

// TransformBatch implements the BatchTransformer interface for BatchTransformFunc.
func (f BatchTransformFunc) TransformBatch(ctx context.Context, b Batch) (Batch, error) {
	return f(ctx, b)
}
