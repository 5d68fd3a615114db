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

import "time"

// Package core defines the shared types for the CSVClean library.
//
// CSVClean is a streaming CSV normalization library for Go: it reads delimited files of arbitrary
// size batch by batch, repairs their text encoding, strips control characters and writes a
// canonical UTF-8 file that a bulk loader can ingest as-is.
//
// This file contains the batch model, run results and pipeline states.

// DefaultBatchSize is the number of data records per batch when none is configured.
const DefaultBatchSize = 100000

// Header is the ordered sequence of column names taken from the first record of the input.
type Header []string

// Row is one data record, positional against the Header.
type Row []string

// Batch is a bounded, ordered group of rows processed and flushed as one unit.
// Index is zero-based and increases by one for every batch produced in a run.
type Batch struct {
	Index  int
	Header Header
	Rows   []Row
}

// Len returns the number of rows in the batch.
func (b Batch) Len() int {
	return len(b.Rows)
}

// Field returns the value of the named column in row i, and false if the column is unknown.
func (b Batch) Field(i int, column string) (string, bool) {
	for pos, name := range b.Header {
		if name == column {
			if pos < len(b.Rows[i]) {
				return b.Rows[i][pos], true
			}
			return "", false
		}
	}
	return "", false
}

// ProbeResult is the advisory outcome of sampling the head of an input.
type ProbeResult struct {
	Encoding    string  // best-guess source encoding name
	Confidence  float64 // in [0, 1]
	SampleBytes int     // bytes actually sampled
	BOM         bool    // a byte order mark was found
}

// Result summarizes a completed run.
type Result struct {
	RunID       string
	InputPath   string
	OutputPath  string
	Encoding    string // declared encoding used to decode the input
	Probe       ProbeResult
	RowsWritten int64
	RowsSkipped int64
	Batches     int
	Skipped     []RowError // first MaxSkipSamples skipped records
	Duration    time.Duration
}

// MaxSkipSamples bounds how many skipped records a Result keeps for inspection.
const MaxSkipSamples = 100

// State is a stage of the pipeline driver.
type State int32

const (
	NotStarted State = iota
	Reading
	Sanitizing
	Writing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Reading:
		return "reading"
	case Sanitizing:
		return "sanitizing"
	case Writing:
		return "writing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}
