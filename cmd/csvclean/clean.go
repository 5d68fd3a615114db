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
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/csvclean"
	"github.com/aaronlmathis/csvclean/readers"
	"github.com/aaronlmathis/csvclean/writers"
)

func newCleanCmd(a *app) *cobra.Command {
	var (
		batchSize   int
		encoding    string
		format      string
		parallelism int
		publish     string
	)

	cmd := &cobra.Command{
		Use:   "clean IN OUT [IN OUT ...]",
		Short: "Normalize one or more CSV files",
		Long: `The clean command reads each input in batches, decodes it under the declared encoding, strips control characters and writes UTF-8 output.
Inputs may be local paths or s3:// URIs. Independent pairs run concurrently.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := pairJobs(args)
			if err != nil {
				return err
			}

			rc := a.cfg.Run
			if cmd.Flags().Changed("batch-size") {
				rc.BatchSize = batchSize
			}
			if cmd.Flags().Changed("encoding") {
				rc.Encoding = encoding
			}
			if cmd.Flags().Changed("format") {
				if err := rc.Format.UnmarshalText([]byte(format)); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("parallelism") {
				rc.Parallelism = parallelism
			}
			opts, err := runOptions(rc)
			if err != nil {
				return err
			}
			opts = append(opts, csvclean.WithLogger(a.log))

			s3opts := s3Options(a.cfg.S3)
			for i := range jobs {
				if readers.IsS3(jobs[i].Input) {
					opener, err := readers.NewS3Opener(s3opts...)
					if err != nil {
						return err
					}
					jobs[i].Options = append(jobs[i].Options, csvclean.WithOpener(opener))
				}
			}

			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			results := csvclean.RunAll(ctx, jobs, rc.Parallelism, opts...)
			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", r.Job.Input, r.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s -> %s (%d written, %d skipped, %s)\n",
					r.Job.Input, r.Result.OutputPath, r.Result.RowsWritten, r.Result.RowsSkipped, r.Result.Encoding)
			}

			if publish != "" {
				if err := publishAll(cmd, a, results, publish); err != nil {
					return err
				}
			}

			if failed := csvclean.FailedJobs(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d jobs failed", len(failed), len(results))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "Data records per batch")
	cmd.Flags().StringVarP(&encoding, "encoding", "e", "", `Declared source encoding, or "auto"`)
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: csv, parquet")
	cmd.Flags().IntVarP(&parallelism, "parallelism", "p", 0, "Jobs to run at once")
	cmd.Flags().StringVar(&publish, "publish", "", "Upload successful outputs under this s3:// prefix")
	return cmd
}

// publishAll uploads every successful output under prefix.
func publishAll(cmd *cobra.Command, a *app, results []csvclean.JobResult, prefix string) error {
	if !readers.IsS3(prefix) {
		return fmt.Errorf("publish destination must be an s3:// URI, got %q", prefix)
	}
	publisher, err := writers.NewS3Publisher(s3Options(a.cfg.S3)...)
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		dest := strings.TrimSuffix(prefix, "/") + "/" + path.Base(filepath.ToSlash(r.Result.OutputPath))
		if err := publisher.Publish(ctx, r.Result.OutputPath, dest); err != nil {
			return err
		}
		a.log.Info().Str("output", r.Result.OutputPath).Str("destination", dest).Msg("published")
	}
	return nil
}
