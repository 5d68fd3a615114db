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
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/aaronlmathis/csvclean/core"
)

// PostgresPoolOptions configures the connection pool opened by OpenPostgres.
type PostgresPoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// DefaultPostgresPool returns the pool settings used when none are given.
func DefaultPostgresPool() PostgresPoolOptions {
	return PostgresPoolOptions{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
		PingTimeout:     30 * time.Second,
	}
}

// OpenPostgres opens and pings a PostgreSQL database.
func OpenPostgres(ctx context.Context, dsn string, pool PostgresPoolOptions) (*sql.DB, error) {
	if dsn == "" {
		return nil, &LoaderError{Op: "validate", Err: fmt.Errorf("dsn is required")}
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &LoaderError{Op: "connect", Err: fmt.Errorf("failed to open database: %w", err)}
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if pool.PingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pool.PingTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &LoaderError{Op: "connect", Err: fmt.Errorf("failed to ping database: %w", err)}
	}
	return db, nil
}

// PostgresLoaderOptions configures the PostgreSQL loader.
type PostgresLoaderOptions struct {
	CreateTable   bool // Create the table with TEXT columns if it does not exist
	TruncateTable bool // Truncate the table before loading
	BatchSize     int  // Rows read back from the file per batch
}

// PostgresLoaderOption represents a configuration function for PostgresLoaderOptions.
type PostgresLoaderOption func(*PostgresLoaderOptions)

// WithCreateTable sets whether to create the table if it does not exist.
func WithCreateTable(create bool) PostgresLoaderOption {
	return func(opts *PostgresLoaderOptions) {
		opts.CreateTable = create
	}
}

// WithTruncateTable sets whether to empty the table before loading.
func WithTruncateTable(truncate bool) PostgresLoaderOption {
	return func(opts *PostgresLoaderOptions) {
		opts.TruncateTable = truncate
	}
}

// WithLoadBatchSize sets how many rows are read back from the file at a time.
func WithLoadBatchSize(size int) PostgresLoaderOption {
	return func(opts *PostgresLoaderOptions) {
		opts.BatchSize = size
	}
}

// PostgresLoader streams a normalized file into a table with COPY, inside one transaction.
// Every column is loaded as TEXT; typing is left to the database.
type PostgresLoader struct {
	DB      *sql.DB
	Allow   AllowList
	options PostgresLoaderOptions
}

// NewPostgresLoader creates a loader over db, which the caller keeps ownership of.
func NewPostgresLoader(db *sql.DB, allow AllowList, opts ...PostgresLoaderOption) *PostgresLoader {
	options := PostgresLoaderOptions{CreateTable: true, BatchSize: 10000}
	for _, opt := range opts {
		opt(&options)
	}
	if options.BatchSize <= 0 {
		options.BatchSize = 10000
	}
	return &PostgresLoader{DB: db, Allow: allow, options: options}
}

// Load implements Loader.
func (l *PostgresLoader) Load(ctx context.Context, path, table string) (res LoadResult, err error) {
	start := time.Now()
	res.Table = table
	if err := l.Allow.Check(table); err != nil {
		return res, &LoaderError{Op: "validate", Table: table, Err: err}
	}

	src, err := openSource(path, l.options.BatchSize)
	if err != nil {
		return res, &LoaderError{Op: "open", Table: table, Err: err}
	}
	defer src.Close()

	header, err := readHeader(src)
	if err != nil {
		return res, &LoaderError{Op: "read_header", Table: table, Err: err}
	}

	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, &LoaderError{Op: "begin", Table: table, Err: err}
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if l.options.CreateTable {
		if _, err = tx.ExecContext(ctx, createTableQuery(table, header)); err != nil {
			return res, &LoaderError{Op: "create_table", Table: table, Err: err}
		}
	}
	if l.options.TruncateTable {
		if _, err = tx.ExecContext(ctx, "TRUNCATE TABLE "+pq.QuoteIdentifier(table)); err != nil {
			return res, &LoaderError{Op: "truncate", Table: table, Err: err}
		}
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, header...))
	if err != nil {
		return res, &LoaderError{Op: "prepare_copy", Table: table, Err: err}
	}
	defer stmt.Close()

	for {
		var b core.Batch
		b, err = src.Next(ctx)
		if errors.Is(err, io.EOF) {
			err = nil
			break
		}
		if err != nil {
			return res, &LoaderError{Op: "read", Table: table, Err: err}
		}
		for _, row := range b.Rows {
			args := make([]interface{}, len(row))
			for i, v := range row {
				args[i] = v
			}
			if _, err = stmt.ExecContext(ctx, args...); err != nil {
				return res, &LoaderError{Op: "copy", Table: table, Err: err}
			}
		}
		res.RowsLoaded += int64(len(b.Rows))
	}

	if _, err = stmt.ExecContext(ctx); err != nil {
		return res, &LoaderError{Op: "copy_flush", Table: table, Err: err}
	}
	if err = tx.Commit(); err != nil {
		return res, &LoaderError{Op: "commit", Table: table, Err: err}
	}

	res.RowsSkipped = src.Skipped()
	res.Duration = time.Since(start)
	return res, nil
}

// createTableQuery builds a CREATE TABLE IF NOT EXISTS statement with one TEXT column per header field.
func createTableQuery(table string, header core.Header) string {
	cols := make([]string, len(header))
	for i, name := range header {
		cols[i] = pq.QuoteIdentifier(name) + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pq.QuoteIdentifier(table), strings.Join(cols, ", "))
}
