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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aaronlmathis/csvclean/core"
)

// Format names an output file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat parses "csv" or "parquet". The empty string means FormatCSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return FormatCSV, fmt.Errorf("unknown output format %q", s)
	}
}

func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// IsParquetPath reports whether path has a .parquet extension.
func IsParquetPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".parquet")
}

// Create opens the output at path and wraps it in the sink for format.
// Nothing is created when the path is not writable.
func Create(path string, format Format, comma rune) (core.BatchSink, error) {
	f, err := CreateOutput(path)
	if err != nil {
		return nil, err
	}

	var sink core.BatchSink
	switch format {
	case FormatParquet:
		sink, err = NewParquetBatchWriter(f)
	default:
		sink, err = NewChunkedCSVWriter(f, WithComma(comma))
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return sink, nil
}
