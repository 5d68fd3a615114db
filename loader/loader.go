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

package loader

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aaronlmathis/csvclean/charset"
	"github.com/aaronlmathis/csvclean/core"
	"github.com/aaronlmathis/csvclean/readers"
	"github.com/aaronlmathis/csvclean/writers"
)

// Package loader ingests normalized output files into analytical stores.
//
// Loaders never open connections of their own: the caller passes a handle it owns and decides
// when to close it. Table names must pass ValidateIdentifier and are always quoted.

// LoaderError provides structured error information for load operations.
type LoaderError struct {
	Op    string // Operation that failed (e.g., "create_table", "copy", "insert")
	Table string
	Err   error
}

func (e *LoaderError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("loader %s [%s]: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("loader %s: %v", e.Op, e.Err)
}

func (e *LoaderError) Unwrap() error {
	return e.Err
}

// LoadResult reports what a load did.
type LoadResult struct {
	Table       string
	RowsLoaded  int64
	RowsSkipped int64 // records that could not be read back from the file
	Duration    time.Duration
}

// Loader ingests the file at path into table.
type Loader interface {
	Load(ctx context.Context, path, table string) (LoadResult, error)
}

// openSource reads a normalized file back as batches. CSV output is canonical UTF-8, so it is
// read strictly: anything that fails to decode is counted as skipped rather than replaced.
func openSource(path string, batchSize int) (core.BatchSource, error) {
	if writers.IsParquetPath(path) {
		return readers.NewParquetBatchReader(path, batchSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := readers.NewChunkedCSVReader(f,
		readers.WithBatchSize(batchSize),
		readers.WithDecoding(charset.Decoding{Encoding: charset.Canonical, Policy: charset.Strict}),
	)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// readHeader returns the header of src, reading ahead for CSV sources that read it lazily.
func readHeader(src core.BatchSource) (core.Header, error) {
	if hr, ok := src.(interface{ ReadHeader() (core.Header, error) }); ok {
		return hr.ReadHeader()
	}
	return src.Header(), nil
}
