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

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/csvclean/config"
	"github.com/aaronlmathis/csvclean/loader"
)

func newLoadCmd(a *app) *cobra.Command {
	var (
		driver   string
		dsn      string
		database string
		table    string
		truncate bool
	)

	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Load a normalized file into DuckDB, PostgreSQL or MongoDB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lc := a.cfg.Load
			if cmd.Flags().Changed("driver") {
				lc.Driver = driver
			}
			if cmd.Flags().Changed("dsn") {
				lc.DSN = dsn
			}
			if cmd.Flags().Changed("database") {
				lc.Database = database
			}
			if cmd.Flags().Changed("truncate") {
				lc.Truncate = truncate
			}

			var allow loader.AllowList
			if len(lc.Tables) > 0 {
				var err error
				if allow, err = loader.NewAllowList(lc.Tables...); err != nil {
					return err
				}
			}

			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			l, closeFn, err := openLoader(ctx, lc, allow)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := l.Load(ctx, args[0], table)
			if err != nil {
				return err
			}
			a.log.Info().
				Str("driver", lc.Driver).
				Str("table", res.Table).
				Int64("rows_loaded", res.RowsLoaded).
				Int64("rows_skipped", res.RowsSkipped).
				Dur("duration", res.Duration).
				Msg("load complete")
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d rows into %s\n", res.RowsLoaded, res.Table)
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "", "Target store: duckdb, postgres, mongo")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Database path, connection string or URI")
	cmd.Flags().StringVar(&database, "database", "", "MongoDB database name")
	cmd.Flags().StringVarP(&table, "table", "t", "", "Target table or collection")
	cmd.Flags().BoolVar(&truncate, "truncate", false, "Empty the PostgreSQL table before loading")
	cmd.MarkFlagRequired("table")
	return cmd
}

// openLoader opens the handle for lc.Driver and returns a loader over it with its closer.
func openLoader(ctx context.Context, lc config.LoadConfig, allow loader.AllowList) (loader.Loader, func(), error) {
	switch lc.Driver {
	case "duckdb":
		db, err := loader.OpenDuckDB(lc.DSN)
		if err != nil {
			return nil, nil, err
		}
		return &loader.DuckDBLoader{DB: db, Allow: allow}, func() { db.Close() }, nil

	case "postgres":
		db, err := loader.OpenPostgres(ctx, lc.DSN, loader.DefaultPostgresPool())
		if err != nil {
			return nil, nil, err
		}
		l := loader.NewPostgresLoader(db, allow,
			loader.WithTruncateTable(lc.Truncate),
			loader.WithLoadBatchSize(lc.BatchSize),
		)
		return l, func() { db.Close() }, nil

	case "mongo":
		client, err := loader.ConnectMongo(ctx, loader.MongoConnectOptions{URI: lc.DSN})
		if err != nil {
			return nil, nil, err
		}
		l := &loader.MongoLoader{Client: client, Database: lc.Database, Allow: allow, BatchSize: lc.BatchSize}
		return l, func() { client.Disconnect(context.Background()) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown driver %q", lc.Driver)
	}
}
