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
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aaronlmathis/csvclean/core"
)

// CSVWriterError wraps CSV-specific write errors with context.
type CSVWriterError struct {
	Op  string
	Err error
}

func (e *CSVWriterError) Error() string {
	return fmt.Sprintf("csv writer %s: %v", e.Op, e.Err)
}

func (e *CSVWriterError) Unwrap() error {
	return e.Err
}

// CSVWriterStats holds CSV write performance statistics.
type CSVWriterStats struct {
	RecordsWritten int64
	BatchesWritten int64
	BytesWritten   int64
	FlushDuration  time.Duration
	LastFlushTime  time.Time
}

// CSVWriterOptions configures CSV output.
type CSVWriterOptions struct {
	Comma   rune
	UseCRLF bool
}

// WriterOptionCSV is a functional option.
type WriterOptionCSV func(*CSVWriterOptions)

func WithComma(delim rune) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.Comma = delim
	}
}

func WithUseCRLF(useCRLF bool) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.UseCRLF = useCRLF
	}
}

// Truncater is implemented by destinations that can roll back a partially written batch.
type Truncater interface {
	Truncate(size int64) error
}

// ChunkedCSVWriter implements core.BatchSink for UTF-8 delimited output.
//
// Each batch is encoded in memory and handed to the destination in a single write, so at most
// one batch is buffered. If that write fails, a destination implementing Truncater is cut back
// to the end of the previous batch; rows are never left half-written.
type ChunkedCSVWriter struct {
	w          io.WriteCloser
	options    CSVWriterOptions
	header     core.Header
	buf        bytes.Buffer
	offset     int64
	stats      CSVWriterStats
	errorState bool
	closed     bool
	mu         sync.Mutex
}

// NewChunkedCSVWriter creates a writer appending to w.
func NewChunkedCSVWriter(w io.WriteCloser, opts ...WriterOptionCSV) (*ChunkedCSVWriter, error) {
	options := CSVWriterOptions{
		Comma:   ',',
		UseCRLF: false,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if w == nil {
		return nil, &CSVWriterError{Op: "validate_options", Err: fmt.Errorf("nil destination")}
	}
	return &ChunkedCSVWriter{w: w, options: options}, nil
}

// CreateOutput opens path for writing, creating or truncating it. It fails before any byte is
// written when the path is not writable, leaving nothing behind.
func CreateOutput(path string) (*os.File, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, &CSVWriterError{Op: "open_file", Err: fmt.Errorf("%s is a directory", path)}
	}
	if dir := filepath.Dir(path); dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return nil, &CSVWriterError{Op: "open_file", Err: err}
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, &CSVWriterError{Op: "open_file", Err: err}
	}
	return f, nil
}

// WriteBatch implements core.BatchSink.
func (c *ChunkedCSVWriter) WriteBatch(ctx context.Context, b core.Batch, first bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.errorState {
		return &CSVWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}
	if c.closed {
		return &CSVWriterError{Op: "write", Err: fmt.Errorf("writer is closed")}
	}
	if first && c.header != nil {
		return &CSVWriterError{Op: "write_header", Err: fmt.Errorf("header already written")}
	}
	if !first && c.header == nil {
		return &CSVWriterError{Op: "write", Err: fmt.Errorf("first batch has not been written")}
	}

	header := c.header
	if first {
		header = b.Header
		if len(header) == 0 {
			return &CSVWriterError{Op: "write_header", Err: fmt.Errorf("empty header")}
		}
	}

	start := time.Now()
	if err := c.encode(b, header, first); err != nil {
		return err
	}

	n, err := c.w.Write(c.buf.Bytes())
	if err != nil {
		c.errorState = true
		if rbErr := c.rollback(n); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		return &CSVWriterError{Op: "flush_batch", Err: err}
	}

	if first {
		c.header = append(core.Header(nil), header...)
	}
	c.offset += int64(n)
	c.stats.RecordsWritten += int64(len(b.Rows))
	c.stats.BatchesWritten++
	c.stats.BytesWritten += int64(n)
	c.stats.FlushDuration += time.Since(start)
	c.stats.LastFlushTime = time.Now()
	return nil
}

// Close implements core.BatchSink. Destinations that can sync are synced first.
func (c *ChunkedCSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var syncErr error
	if s, ok := c.w.(interface{ Sync() error }); ok && !c.errorState {
		syncErr = s.Sync()
	}
	if err := c.w.Close(); err != nil {
		return &CSVWriterError{Op: "close", Err: err}
	}
	if syncErr != nil {
		return &CSVWriterError{Op: "sync", Err: syncErr}
	}
	return nil
}

// Stats returns write statistics.
func (c *ChunkedCSVWriter) Stats() CSVWriterStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// encode renders the batch into c.buf (must hold mutex).
func (c *ChunkedCSVWriter) encode(b core.Batch, header core.Header, first bool) error {
	c.buf.Reset()
	cw := csv.NewWriter(&c.buf)
	cw.Comma = c.options.Comma
	cw.UseCRLF = c.options.UseCRLF

	if first {
		if err := cw.Write(header); err != nil {
			return &CSVWriterError{Op: "write_header", Err: err}
		}
	}
	for i, row := range b.Rows {
		if len(row) != len(header) {
			return &CSVWriterError{
				Op:  "write_row",
				Err: fmt.Errorf("batch %d row %d has %d fields, header has %d", b.Index, i, len(row), len(header)),
			}
		}
		if err := cw.Write(row); err != nil {
			return &CSVWriterError{Op: "write_row", Err: err}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return &CSVWriterError{Op: "encode", Err: err}
	}
	return nil
}

// rollback cuts a partially written batch off the destination (must hold mutex).
// A destination that cannot be cut back keeps the partial batch and says so.
func (c *ChunkedCSVWriter) rollback(written int) error {
	if written <= 0 {
		return nil
	}
	t, ok := c.w.(Truncater)
	if !ok {
		return fmt.Errorf("rollback: destination cannot truncate, %d bytes of a partial batch remain", written)
	}
	if err := t.Truncate(c.offset); err != nil {
		return fmt.Errorf("rollback truncate to %d: %w", c.offset, err)
	}
	if s, ok := c.w.(io.Seeker); ok {
		if _, err := s.Seek(c.offset, io.SeekStart); err != nil {
			return fmt.Errorf("rollback seek to %d: %w", c.offset, err)
		}
	}
	return nil
}
