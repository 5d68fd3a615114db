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
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/csvclean/core"
)

// Job is one input/output pair for RunAll.
type Job struct {
	Input   string
	Output  string
	Options []Option
}

// JobResult pairs a Job with its outcome.
type JobResult struct {
	Job    Job
	Result *core.Result
	Err    error
}

// RunAll runs independent jobs concurrently, at most parallelism at a time (unbounded when <= 0).
// A failing job does not stop the others. Results are returned in job order.
func RunAll(ctx context.Context, jobs []Job, parallelism int, shared ...Option) []JobResult {
	results := make([]JobResult, len(jobs))

	var g errgroup.Group
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			opts := append(append([]Option(nil), shared...), job.Options...)
			res, err := Run(ctx, job.Input, job.Output, opts...)
			results[i] = JobResult{Job: job, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// FailedJobs returns the results that carry an error.
func FailedJobs(results []JobResult) []JobResult {
	var failed []JobResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
