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

package writers

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/csvclean/core"
)

// This file implements a Parquet batch sink. Every column is a UTF-8 string column named after
// the header; no types are inferred, so a downstream loader sees exactly the cleaned text.

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "schema", "write_batch", "close_writer")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	Compression  compress.Compression // Compression algorithm
	RowGroupSize int64                // Maximum rows per row group
	Metadata     map[string]string    // File metadata
}

// ParquetWriterStats holds statistics about the Parquet writer's performance.
type ParquetWriterStats struct {
	RecordsWritten int64
	BatchesWritten int64
	FlushDuration  time.Duration
	LastFlushTime  time.Time
}

// ParquetOption represents a configuration function for ParquetWriterOptions.
type ParquetOption func(*ParquetWriterOptions)

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) ParquetOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) ParquetOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// WithMetadata sets key/value metadata stored in the Arrow schema of the file.
func WithMetadata(metadata map[string]string) ParquetOption {
	return func(opts *ParquetWriterOptions) {
		if opts.Metadata == nil {
			opts.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			opts.Metadata[k] = v
		}
	}
}

// ParquetBatchWriter implements core.BatchSink for Parquet files.
type ParquetBatchWriter struct {
	sink       io.WriteCloser
	writer     *pqarrow.FileWriter
	schema     *arrow.Schema
	allocator  memory.Allocator
	opts       ParquetWriterOptions
	stats      ParquetWriterStats
	errorState bool
	closed     bool
	mu         sync.Mutex
}

// NewParquetBatchWriter creates a Parquet sink over w. The schema is fixed by the first batch.
func NewParquetBatchWriter(w io.WriteCloser, options ...ParquetOption) (*ParquetBatchWriter, error) {
	opts := ParquetWriterOptions{
		Compression: compress.Codecs.Snappy,
	}
	for _, option := range options {
		option(&opts)
	}
	if w == nil {
		return nil, &ParquetWriterError{Op: "validate_options", Err: fmt.Errorf("nil destination")}
	}
	return &ParquetBatchWriter{
		sink:      w,
		allocator: memory.NewGoAllocator(),
		opts:      opts,
	}, nil
}

// WriteBatch implements core.BatchSink.
func (p *ParquetBatchWriter) WriteBatch(ctx context.Context, b core.Batch, first bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}
	if p.errorState {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}
	if first {
		if p.writer != nil {
			return &ParquetWriterError{Op: "schema", Err: fmt.Errorf("header already written")}
		}
		if err := p.initialize(b.Header); err != nil {
			p.errorState = true
			return err
		}
	} else if p.writer == nil {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("first batch has not been written")}
	}

	if len(b.Rows) == 0 {
		return nil
	}

	start := time.Now()
	record, err := p.createArrowRecord(b)
	if err != nil {
		return err
	}
	defer record.Release()

	if err := p.writer.Write(record); err != nil {
		p.errorState = true
		return &ParquetWriterError{
			Op:  "write_batch",
			Err: fmt.Errorf("failed to write record batch: %w", err),
		}
	}

	p.stats.RecordsWritten += int64(len(b.Rows))
	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(start)
	p.stats.LastFlushTime = time.Now()
	return nil
}

// Close implements core.BatchSink. It writes the file footer and closes the destination.
func (p *ParquetBatchWriter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.writer == nil {
		return p.sink.Close()
	}
	if err := p.writer.Close(); err != nil {
		return &ParquetWriterError{
			Op:  "close_writer",
			Err: fmt.Errorf("failed to close parquet writer: %w", err),
		}
	}
	p.writer = nil
	return nil
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetBatchWriter) Stats() ParquetWriterStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// initialize builds the all-string schema and the underlying file writer (must hold mutex).
func (p *ParquetBatchWriter) initialize(header core.Header) error {
	if len(header) == 0 {
		return &ParquetWriterError{Op: "schema", Err: fmt.Errorf("empty header")}
	}

	fields := make([]arrow.Field, len(header))
	for i, name := range header {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: false}
	}

	var md *arrow.Metadata
	if len(p.opts.Metadata) > 0 {
		keys := make([]string, 0, len(p.opts.Metadata))
		for k := range p.opts.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		vals := make([]string, len(keys))
		for i, k := range keys {
			vals[i] = p.opts.Metadata[k]
		}
		m := arrow.NewMetadata(keys, vals)
		md = &m
	}
	p.schema = arrow.NewSchema(fields, md)

	props := []parquet.WriterProperty{parquet.WithCompression(p.opts.Compression)}
	if p.opts.RowGroupSize > 0 {
		props = append(props, parquet.WithMaxRowGroupLength(p.opts.RowGroupSize))
	}

	writer, err := pqarrow.NewFileWriter(p.schema, p.sink, parquet.NewWriterProperties(props...), pqarrow.DefaultWriterProps())
	if err != nil {
		return &ParquetWriterError{
			Op:  "create_writer",
			Err: fmt.Errorf("failed to create parquet file writer: %w", err),
		}
	}
	p.writer = writer
	return nil
}

// createArrowRecord converts the rows of a batch to an Arrow record (must hold mutex).
func (p *ParquetBatchWriter) createArrowRecord(b core.Batch) (arrow.Record, error) {
	width := len(p.schema.Fields())
	builders := make([]*array.StringBuilder, width)
	for i := range builders {
		builders[i] = array.NewStringBuilder(p.allocator)
		defer builders[i].Release()
	}

	for i, row := range b.Rows {
		if len(row) != width {
			return nil, &ParquetWriterError{
				Op:  "append_value",
				Err: fmt.Errorf("batch %d row %d has %d fields, header has %d", b.Index, i, len(row), width),
			}
		}
		for j, v := range row {
			builders[j].Append(v)
		}
	}

	arrays := make([]arrow.Array, width)
	for i, builder := range builders {
		arrays[i] = builder.NewArray()
		defer arrays[i].Release()
	}
	return array.NewRecord(p.schema, arrays, int64(len(b.Rows))), nil
}
