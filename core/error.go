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
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// This file contains the row-level and run-level error types and the skip handler adapters.

// ErrEmptyInput is returned by a BatchSource whose input holds no header record.
var ErrEmptyInput = errors.New("input has no header record")

// RowReason classifies why a record was skipped.
type RowReason string

const (
	RowFieldCount RowReason = "field_count"
	RowParse      RowReason = "parse"
	RowDecode     RowReason = "decode"
)

// RowError describes a malformed record that was skipped.
// Line is the 1-based line in the input where the record starts, when known.
type RowError struct {
	Line   int
	Reason RowReason
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Reason, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// SkipHandler observes records dropped as malformed. It cannot stop the run.
type SkipHandler interface {
	HandleSkip(ctx context.Context, rowErr *RowError)
}

// SkipHandlerFunc is a function adapter for the SkipHandler interface.
type SkipHandlerFunc func(ctx context.Context, rowErr *RowError)

// HandleSkip implements the SkipHandler interface for SkipHandlerFunc.
func (f SkipHandlerFunc) HandleSkip(ctx context.Context, rowErr *RowError) {
	f(ctx, rowErr)
}

// Reason is the machine-readable code attached to a failed run.
type Reason string

const (
	ReasonPathNotFound        Reason = "path_not_found"
	ReasonPermissionDenied    Reason = "permission_denied"
	ReasonDiskFull            Reason = "disk_full"
	ReasonOutputUnwritable    Reason = "output_unwritable"
	ReasonProbeFailed         Reason = "probe_failed"
	ReasonReadFailed          Reason = "read_failed"
	ReasonWriteFailed         Reason = "write_failed"
	ReasonCancelled           Reason = "cancelled"
	ReasonInvalidConfig       Reason = "invalid_config"
	ReasonUnsupportedEncoding Reason = "unsupported_encoding"
	ReasonMalformedHeader     Reason = "malformed_header"
	ReasonTransformFailed     Reason = "transform_failed"
)

// RunError is a run-level or batch-level failure surfaced to the caller.
type RunError struct {
	Reason Reason
	Op     string
	Path   string
	Err    error
}

func (e *RunError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("csvclean %s (%s) %s: %v", e.Op, e.Reason, e.Path, e.Err)
	}
	return fmt.Sprintf("csvclean %s (%s): %v", e.Op, e.Reason, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError wraps err, refining fallback with whatever Classify can tell about err.
func NewRunError(op, path string, fallback Reason, err error) *RunError {
	var re *RunError
	if errors.As(err, &re) {
		return re
	}
	reason := Classify(err)
	if reason == "" {
		reason = fallback
	}
	return &RunError{Reason: reason, Op: op, Path: path, Err: err}
}

// Classify maps well-known OS and context errors to a Reason, or returns "" when unknown.
func Classify(err error) Reason {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	case errors.Is(err, fs.ErrNotExist):
		return ReasonPathNotFound
	case errors.Is(err, fs.ErrPermission):
		return ReasonPermissionDenied
	case errors.Is(err, syscall.ENOSPC):
		return ReasonDiskFull
	}
	var re *RunError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}

// ReasonOf returns the Reason carried by err, or "" when err is not a RunError.
func ReasonOf(err error) Reason {
	var re *RunError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
