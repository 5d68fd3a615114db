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
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/aaronlmathis/csvclean"
	"github.com/aaronlmathis/csvclean/config"
	"github.com/aaronlmathis/csvclean/readers"
	"github.com/aaronlmathis/csvclean/transform"
	"github.com/aaronlmathis/csvclean/writers"
)

// runOptions converts the run section of the config into pipeline options.
func runOptions(rc config.RunConfig) ([]csvclean.Option, error) {
	comma, err := rc.Comma()
	if err != nil {
		return nil, err
	}
	format, err := writers.ParseFormat(string(rc.Format))
	if err != nil {
		return nil, err
	}

	sanitize := []transform.Option{transform.WithMode(rc.SanitizeMode)}
	if rc.Normalize != "" {
		form, err := parseForm(rc.Normalize)
		if err != nil {
			return nil, err
		}
		sanitize = append(sanitize, transform.WithNormalization(form))
	}

	return []csvclean.Option{
		csvclean.WithBatchSize(rc.BatchSize),
		csvclean.WithEncoding(rc.Encoding),
		csvclean.WithDecodePolicy(rc.DecodePolicy),
		csvclean.WithSampleBytes(rc.SampleBytes),
		csvclean.WithComma(comma),
		csvclean.WithLazyQuotes(rc.LazyQuotes),
		csvclean.WithFormat(format),
		csvclean.WithSanitize(sanitize...),
	}, nil
}

func parseForm(s string) (norm.Form, error) {
	switch strings.ToLower(s) {
	case "nfc":
		return norm.NFC, nil
	case "nfd":
		return norm.NFD, nil
	case "nfkc":
		return norm.NFKC, nil
	case "nfkd":
		return norm.NFKD, nil
	default:
		return norm.NFC, fmt.Errorf("unknown normalization form %q", s)
	}
}

func s3Options(sc config.S3Config) []readers.S3Option {
	var opts []readers.S3Option
	if sc.Region != "" {
		opts = append(opts, readers.WithS3Region(sc.Region))
	}
	if sc.Profile != "" {
		opts = append(opts, readers.WithS3Profile(sc.Profile))
	}
	if sc.Endpoint != "" {
		opts = append(opts, readers.WithS3Endpoint(sc.Endpoint))
	}
	if sc.PathStyle {
		opts = append(opts, readers.WithS3PathStyle(true))
	}
	return opts
}

// pairJobs turns IN OUT [IN OUT ...] arguments into jobs.
func pairJobs(args []string) ([]csvclean.Job, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, fmt.Errorf("expected input/output pairs, got %d arguments", len(args))
	}
	jobs := make([]csvclean.Job, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		jobs = append(jobs, csvclean.Job{Input: args[i], Output: args[i+1]})
	}
	return jobs, nil
}
