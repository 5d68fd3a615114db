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

package readers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aaronlmathis/csvclean/charset"
	"github.com/aaronlmathis/csvclean/core"
)

// CSVReaderError wraps structured error information for the CSV reader.
type CSVReaderError struct {
	Op  string
	Err error
}

func (e *CSVReaderError) Error() string {
	return fmt.Sprintf("csv reader %s: %v", e.Op, e.Err)
}

func (e *CSVReaderError) Unwrap() error {
	return e.Err
}

// CSVReaderStats holds statistics about the CSV reader's performance.
type CSVReaderStats struct {
	RecordsRead    int64 // data records parsed, including skipped ones
	RecordsSkipped int64
	BatchesRead    int64
	ReadDuration   time.Duration
	LastReadTime   time.Time
}

// CSVReaderOptions configures the CSV reader.
type CSVReaderOptions struct {
	Comma          rune
	Comment        rune
	LazyQuotes     bool
	BatchSize      int
	MaxRecordBytes int64 // input one record may span before it is skipped as malformed
	Decoding       charset.Decoding
	SkipHandler    core.SkipHandler
}

// ReaderOptionCSV allows functional customization of ChunkedCSVReader.
type ReaderOptionCSV func(*CSVReaderOptions)

func WithCSVComma(r rune) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.Comma = r }
}

func WithCSVComment(r rune) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.Comment = r }
}

func WithLazyQuotes(lazy bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.LazyQuotes = lazy }
}

func WithBatchSize(size int) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.BatchSize = size }
}

func WithMaxRecordBytes(n int64) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.MaxRecordBytes = n }
}

func WithDecoding(d charset.Decoding) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.Decoding = d }
}

func WithSkipHandler(h core.SkipHandler) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.SkipHandler = h }
}

// ChunkedCSVReader implements core.BatchSource for delimited text.
//
// All fields are read as opaque text. Records with the wrong column count, broken quoting or,
// under the strict policy, undecodable bytes are counted and skipped; only I/O errors are fatal.
// A quote left open at the end of the input, or one that makes a record outgrow MaxRecordBytes,
// costs only the record it opened on: parsing resumes on the following line.
type ChunkedCSVReader struct {
	reader     *csv.Reader
	tape       *tape
	decoder    *charset.Decoder
	closer     io.Closer
	header     core.Header
	opts       CSVReaderOptions
	stats      CSVReaderStats
	batch      int
	eof        bool
	lineOffset int // input lines consumed before the current parser started
}

// NewChunkedCSVReader creates a reader over r. The header is read lazily on the first Next.
func NewChunkedCSVReader(r io.ReadCloser, options ...ReaderOptionCSV) (*ChunkedCSVReader, error) {
	opts := CSVReaderOptions{
		Comma:          ',',
		BatchSize:      core.DefaultBatchSize,
		MaxRecordBytes: DefaultMaxRecordBytes,
		Decoding:       charset.Decoding{Encoding: charset.DefaultEncoding, Policy: charset.Replace},
	}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.BatchSize <= 0 {
		return nil, &CSVReaderError{Op: "validate_options", Err: fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)}
	}

	dec, err := charset.NewDecoder(opts.Decoding)
	if err != nil {
		return nil, &CSVReaderError{Op: "resolve_encoding", Err: err}
	}

	c := &ChunkedCSVReader{
		tape:    newTape(dec.WrapReader(r), opts.MaxRecordBytes),
		decoder: dec,
		closer:  r,
		opts:    opts,
	}
	// The header fixes the column count for every later record.
	c.reader = c.newParser(c.tape, 0)
	return c, nil
}

func (c *ChunkedCSVReader) newParser(src io.Reader, fields int) *csv.Reader {
	r := csv.NewReader(src)
	r.Comma = c.opts.Comma
	r.Comment = c.opts.Comment
	r.LazyQuotes = c.opts.LazyQuotes
	r.FieldsPerRecord = fields
	return r
}

// Next implements core.BatchSource. It returns io.EOF once every record has been consumed.
func (c *ChunkedCSVReader) Next(ctx context.Context) (core.Batch, error) {
	start := time.Now()
	defer func() {
		c.stats.ReadDuration += time.Since(start)
		c.stats.LastReadTime = time.Now()
	}()

	if err := ctx.Err(); err != nil {
		return core.Batch{}, &CSVReaderError{Op: "read", Err: err}
	}
	if c.eof {
		return core.Batch{}, io.EOF
	}
	if c.header == nil {
		if _, err := c.ReadHeader(); err != nil {
			return core.Batch{}, err
		}
	}

	rows := make([]core.Row, 0, min(c.opts.BatchSize, 4096))
	for len(rows) < c.opts.BatchSize {
		record, err := c.reader.Read()
		if errors.Is(err, io.EOF) {
			c.eof = true
			break
		}
		if err != nil {
			if startLine, ok := c.runaway(err); ok {
				c.resync(ctx, startLine, err)
				continue
			}
			if rowErr := c.rowError(err); rowErr != nil {
				c.tape.release(c.reader.InputOffset())
				c.skip(ctx, rowErr)
				continue
			}
			return core.Batch{}, &CSVReaderError{Op: "read_record", Err: err}
		}
		c.tape.release(c.reader.InputOffset())

		c.stats.RecordsRead++
		if err := c.decoder.DecodeRecord(record); err != nil {
			line, _ := c.reader.FieldPos(0)
			c.skip(ctx, &core.RowError{Line: c.lineOffset + line, Reason: core.RowDecode, Err: err})
			continue
		}
		rows = append(rows, core.Row(record))
	}

	if len(rows) == 0 {
		return core.Batch{}, io.EOF
	}

	b := core.Batch{Index: c.batch, Header: c.header, Rows: rows}
	c.batch++
	c.stats.BatchesRead++
	return b, nil
}

// Header implements core.BatchSource.
func (c *ChunkedCSVReader) Header() core.Header {
	return c.header
}

// Skipped implements core.BatchSource.
func (c *ChunkedCSVReader) Skipped() int64 {
	return c.stats.RecordsSkipped
}

// Close implements core.BatchSource.
func (c *ChunkedCSVReader) Close() error {
	if c.closer != nil {
		err := c.closer.Close()
		c.closer = nil
		return err
	}
	return nil
}

// Stats returns CSV reader performance stats.
func (c *ChunkedCSVReader) Stats() CSVReaderStats {
	return c.stats
}

// ReadHeader consumes the first record if that has not happened yet and returns it.
// An input without records yields core.ErrEmptyInput.
func (c *ChunkedCSVReader) ReadHeader() (core.Header, error) {
	if c.header != nil {
		return c.header, nil
	}
	if c.eof {
		return nil, &CSVReaderError{Op: "read_header", Err: core.ErrEmptyInput}
	}
	record, err := c.reader.Read()
	if errors.Is(err, io.EOF) {
		c.eof = true
		return nil, &CSVReaderError{Op: "read_header", Err: core.ErrEmptyInput}
	}
	if err != nil {
		return nil, &CSVReaderError{Op: "read_header", Err: err}
	}
	c.tape.release(c.reader.InputOffset())
	if err := c.decoder.DecodeRecord(record); err != nil {
		return nil, &CSVReaderError{Op: "decode_header", Err: err}
	}
	c.header = core.Header(record)
	return c.header, nil
}

// rowError converts a parse error into a skippable row error, or returns nil for I/O failures.
func (c *ChunkedCSVReader) rowError(err error) *core.RowError {
	var pe *csv.ParseError
	if !errors.As(err, &pe) {
		return nil
	}
	c.stats.RecordsRead++
	reason := core.RowParse
	if errors.Is(pe.Err, csv.ErrFieldCount) {
		reason = core.RowFieldCount
	}
	return &core.RowError{Line: c.lineOffset + pe.StartLine, Reason: reason, Err: pe.Err}
}

// runaway reports whether err is a record that swallowed the lines after it: a quote still open
// when the input ran out, or a record larger than MaxRecordBytes. It returns the record's first line.
func (c *ChunkedCSVReader) runaway(err error) (int, bool) {
	if errors.Is(err, errRecordTooLong) {
		return c.tape.firstRecordLine(c.opts.Comment), true
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) && errors.Is(pe.Err, csv.ErrQuote) && pe.Line > pe.StartLine &&
		c.tape.drained(c.reader.InputOffset()) {
		return pe.StartLine, true
	}
	return 0, false
}

// resync skips the record that starts on startLine and restarts parsing on the line after it.
func (c *ChunkedCSVReader) resync(ctx context.Context, startLine int, cause error) {
	var pe *csv.ParseError
	if errors.As(cause, &pe) {
		cause = pe.Err
	}
	c.stats.RecordsRead++
	c.skip(ctx, &core.RowError{Line: c.lineOffset + startLine, Reason: core.RowParse, Err: cause})

	src := c.tape.replayAfter(startLine)
	c.lineOffset += startLine
	c.tape = newTape(src, c.opts.MaxRecordBytes)
	c.reader = c.newParser(c.tape, len(c.header))
}

func (c *ChunkedCSVReader) skip(ctx context.Context, rowErr *core.RowError) {
	c.stats.RecordsSkipped++
	if c.opts.SkipHandler != nil {
		c.opts.SkipHandler.HandleSkip(ctx, rowErr)
	}
}
