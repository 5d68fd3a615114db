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

package csvclean

import (
	"github.com/aaronlmathis/csvclean/core"
)

// Package csvclean streams large, inconsistently encoded delimited files through a fixed
// read → sanitize → write pipeline and produces a canonical UTF-8 file for bulk loading.
//
// This file re-exports the core types so callers of the top-level API need a single import.

type (
	// Header is the ordered list of column names.
	Header = core.Header
	// Row is one positional data record.
	Row = core.Row
	// Batch is a bounded, ordered group of rows processed and flushed as one unit.
	Batch = core.Batch
	// Result summarizes a completed run.
	Result = core.Result
	// State is a stage of the pipeline driver.
	State = core.State
	// RowError describes a skipped record.
	RowError = core.RowError
	// RunError is a run-level failure with a reason code.
	RunError = core.RunError
	// Reason is the machine-readable code of a RunError.
	Reason = core.Reason

	// BatchSource produces batches in order.
	BatchSource = core.BatchSource
	// BatchSink appends batches in order.
	BatchSink = core.BatchSink
	// BatchTransformer maps a batch to a batch of the same shape.
	BatchTransformer = core.BatchTransformer
	// BatchTransformFunc is a function adapter for BatchTransformer.
	BatchTransformFunc = core.BatchTransformFunc
	// SkipHandler observes skipped records.
	SkipHandler = core.SkipHandler
	// SkipHandlerFunc is a function adapter for SkipHandler.
	SkipHandlerFunc = core.SkipHandlerFunc
)

const (
	NotStarted = core.NotStarted
	Reading    = core.Reading
	Sanitizing = core.Sanitizing
	Writing    = core.Writing
	Done       = core.Done
	Failed     = core.Failed
)
