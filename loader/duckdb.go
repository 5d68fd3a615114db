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
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/aaronlmathis/csvclean/writers"
)

// OpenDuckDB opens a DuckDB database at path, or an in-memory one when path is empty.
func OpenDuckDB(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, &LoaderError{Op: "open_duckdb", Err: err}
	}
	return db, nil
}

// DuckDBLoader replaces a table with the contents of a normalized file using DuckDB's
// own CSV and Parquet scanners.
type DuckDBLoader struct {
	DB    *sql.DB
	Allow AllowList
}

// Load implements Loader.
func (l *DuckDBLoader) Load(ctx context.Context, path, table string) (LoadResult, error) {
	start := time.Now()
	res := LoadResult{Table: table}
	if err := l.Allow.Check(table); err != nil {
		return res, &LoaderError{Op: "validate", Table: table, Err: err}
	}

	query, err := duckDBCreateQuery(path, table)
	if err != nil {
		return res, &LoaderError{Op: "build_query", Table: table, Err: err}
	}
	if _, err := l.DB.ExecContext(ctx, query); err != nil {
		return res, &LoaderError{Op: "create_table", Table: table, Err: err}
	}

	row := l.DB.QueryRowContext(ctx, "SELECT count(*) FROM "+quoteIdent(table))
	if err := row.Scan(&res.RowsLoaded); err != nil {
		return res, &LoaderError{Op: "count", Table: table, Err: err}
	}
	res.Duration = time.Since(start)
	return res, nil
}

// duckDBCreateQuery builds the CREATE OR REPLACE statement for path. table must already be validated.
func duckDBCreateQuery(path, table string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	scan := fmt.Sprintf("read_csv_auto(%s, header=true, all_varchar=true)", quoteLiteral(abs))
	if writers.IsParquetPath(path) {
		scan = fmt.Sprintf("read_parquet(%s)", quoteLiteral(abs))
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s", quoteIdent(table), scan), nil
}
