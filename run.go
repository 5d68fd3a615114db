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
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aaronlmathis/csvclean/charset"
	"github.com/aaronlmathis/csvclean/core"
	"github.com/aaronlmathis/csvclean/logging"
	"github.com/aaronlmathis/csvclean/probe"
	"github.com/aaronlmathis/csvclean/readers"
	"github.com/aaronlmathis/csvclean/transform"
	"github.com/aaronlmathis/csvclean/writers"
)

// AutoEncoding asks Run to declare whatever encoding the probe detects.
const AutoEncoding = "auto"

// RunOptions configures a single run.
type RunOptions struct {
	BatchSize   int
	Encoding    string
	Policy      charset.Policy
	SampleBytes int
	Comma       rune
	LazyQuotes  bool
	Format      writers.Format
	Sanitize    []transform.Option
	Opener      readers.Opener
	Logger      zerolog.Logger
	SkipHandler core.SkipHandler
	StateHook   func(from, to core.State)
}

// Option allows functional customization of Run.
type Option func(*RunOptions)

// WithBatchSize sets the number of data records per batch.
func WithBatchSize(n int) Option {
	return func(o *RunOptions) { o.BatchSize = n }
}

// WithEncoding declares the source encoding. AutoEncoding takes it from the probe.
func WithEncoding(name string) Option {
	return func(o *RunOptions) { o.Encoding = name }
}

// WithDecodePolicy selects what happens to byte sequences invalid under the declared encoding.
func WithDecodePolicy(p charset.Policy) Option {
	return func(o *RunOptions) { o.Policy = p }
}

// WithSampleBytes sets the probe budget.
func WithSampleBytes(n int) Option {
	return func(o *RunOptions) { o.SampleBytes = n }
}

// WithComma sets the field delimiter for both input and output.
func WithComma(r rune) Option {
	return func(o *RunOptions) { o.Comma = r }
}

// WithLazyQuotes lets quotes appear in unquoted fields and non-doubled quotes in quoted fields.
func WithLazyQuotes(lazy bool) Option {
	return func(o *RunOptions) { o.LazyQuotes = lazy }
}

// WithFormat selects the output format.
func WithFormat(f writers.Format) Option {
	return func(o *RunOptions) { o.Format = f }
}

// WithSanitize configures the row sanitizer.
func WithSanitize(options ...transform.Option) Option {
	return func(o *RunOptions) { o.Sanitize = append(o.Sanitize, options...) }
}

// WithOpener overrides how the input location is opened.
func WithOpener(op readers.Opener) Option {
	return func(o *RunOptions) { o.Opener = op }
}

// WithLogger sets the base logger. Run adds its run ID and input to every line.
func WithLogger(l zerolog.Logger) Option {
	return func(o *RunOptions) { o.Logger = l }
}

// WithSkipHandler observes every skipped record in addition to the built-in sampling.
func WithSkipHandler(h core.SkipHandler) Option {
	return func(o *RunOptions) { o.SkipHandler = h }
}

// WithStateHook observes every state transition of the run.
func WithStateHook(hook func(from, to core.State)) Option {
	return func(o *RunOptions) { o.StateHook = hook }
}

func defaultRunOptions() RunOptions {
	return RunOptions{
		BatchSize:   core.DefaultBatchSize,
		Encoding:    charset.DefaultEncoding,
		Policy:      charset.Replace,
		SampleBytes: probe.DefaultSampleBytes,
		Comma:       ',',
		Format:      writers.FormatCSV,
		Logger:      zerolog.Nop(),
	}
}

func (o RunOptions) validate(input, output string) error {
	var errs []error
	if input == "" {
		errs = append(errs, errors.New("input path is required"))
	}
	if output == "" {
		errs = append(errs, errors.New("output path is required"))
	}
	if input != "" && output != "" && !readers.IsS3(input) && filepath.Clean(input) == filepath.Clean(output) {
		errs = append(errs, errors.New("output path must differ from input path"))
	}
	if o.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", o.BatchSize))
	}
	if o.SampleBytes <= 0 {
		errs = append(errs, fmt.Errorf("sample bytes must be positive, got %d", o.SampleBytes))
	}
	if o.Comma == 0 || o.Comma == '"' || o.Comma == '\r' || o.Comma == '\n' || o.Comma == 0xFFFD {
		errs = append(errs, fmt.Errorf("invalid delimiter %q", o.Comma))
	}
	return errors.Join(errs...)
}

// Run normalizes the delimited file at input into output and reports what it did.
//
// Input problems (missing file, denied access, unknown encoding, unreadable header) fail before
// output is created. Once batches start flowing, a write failure stops the run and leaves the
// batches already flushed in place.
func Run(ctx context.Context, input, output string, options ...Option) (*core.Result, error) {
	opts := defaultRunOptions()
	for _, opt := range options {
		opt(&opts)
	}

	runID := uuid.NewString()
	log := logging.ForRun(opts.Logger, runID, input)
	res := &core.Result{RunID: runID, InputPath: input, OutputPath: output}

	if err := opts.validate(input, output); err != nil {
		return res, &core.RunError{Reason: core.ReasonInvalidConfig, Op: "validate", Err: err}
	}

	if opts.Opener == nil {
		op, err := readers.OpenerFor(input)
		if err != nil {
			return res, core.NewRunError("open", input, core.ReasonReadFailed, err)
		}
		opts.Opener = op
	}

	// Fail fast on a missing or unreadable input before probing.
	in, err := opts.Opener.Open(ctx, input)
	if err != nil {
		return res, core.NewRunError("open", input, core.ReasonReadFailed, err)
	}
	closeInput := true
	defer func() {
		if closeInput {
			in.Close()
		}
	}()

	res.Probe, err = probeInput(ctx, opts.Opener, input, opts.SampleBytes)
	if err != nil {
		return res, core.NewRunError("probe", input, core.ReasonProbeFailed, err)
	}
	log.Info().
		Str("encoding", res.Probe.Encoding).
		Float64("confidence", res.Probe.Confidence).
		Int("sample_bytes", res.Probe.SampleBytes).
		Bool("bom", res.Probe.BOM).
		Msg("probe complete")

	declared := opts.Encoding
	if declared == AutoEncoding {
		declared = fromProbe(res.Probe)
	}
	_, name, err := charset.Resolve(declared)
	if err != nil {
		return res, &core.RunError{Reason: core.ReasonUnsupportedEncoding, Op: "resolve_encoding", Path: input, Err: err}
	}
	res.Encoding = name

	samples := &skipSampler{log: log, next: opts.SkipHandler}
	reader, err := readers.NewChunkedCSVReader(in,
		readers.WithBatchSize(opts.BatchSize),
		readers.WithCSVComma(opts.Comma),
		readers.WithLazyQuotes(opts.LazyQuotes),
		readers.WithDecoding(charset.Decoding{Encoding: declared, Policy: opts.Policy}),
		readers.WithSkipHandler(samples),
	)
	if err != nil {
		return res, &core.RunError{Reason: core.ReasonInvalidConfig, Op: "create_reader", Path: input, Err: err}
	}
	closeInput = false

	if _, err := reader.ReadHeader(); err != nil && !errors.Is(err, core.ErrEmptyInput) {
		reader.Close()
		if isMalformed(err) {
			return res, &core.RunError{Reason: core.ReasonMalformedHeader, Op: "read_header", Path: input, Err: err}
		}
		return res, core.NewRunError("read_header", input, core.ReasonReadFailed, err)
	}

	sink, err := writers.Create(output, opts.Format, opts.Comma)
	if err != nil {
		reader.Close()
		reason := core.Classify(err)
		if reason == "" || reason == core.ReasonPathNotFound {
			reason = core.ReasonOutputUnwritable
		}
		return res, &core.RunError{Reason: reason, Op: "create_output", Path: output, Err: err}
	}

	pipeline, err := NewPipeline().
		From(reader).
		Transform(transform.Sanitizer(opts.Sanitize...)).
		To(sink).
		WithLogger(log).
		WithRunID(runID).
		WithStateHook(opts.StateHook).
		Build()
	if err != nil {
		reader.Close()
		sink.Close()
		return res, &core.RunError{Reason: core.ReasonInvalidConfig, Op: "build", Err: err}
	}

	out, err := pipeline.Execute(ctx)
	if out != nil {
		res.RowsWritten = out.RowsWritten
		res.RowsSkipped = out.RowsSkipped
		res.Batches = out.Batches
		res.Duration = out.Duration
	}
	res.Skipped = samples.samples()
	if err != nil {
		var re *core.RunError
		if errors.As(err, &re) && re.Path == "" {
			re.Path = output
			if re.Op == "read" || re.Op == "transform" {
				re.Path = input
			}
		}
		return res, err
	}
	return res, nil
}

// Clean runs with the default settings and the given batch size.
func Clean(ctx context.Context, input, output string, batchSize int) (*core.Result, error) {
	return Run(ctx, input, output, WithBatchSize(batchSize))
}

func probeInput(ctx context.Context, opener readers.Opener, input string, budget int) (core.ProbeResult, error) {
	head, err := opener.OpenHead(ctx, input, int64(budget))
	if err != nil {
		return core.ProbeResult{}, err
	}
	defer head.Close()
	return probe.Probe(head, budget)
}

// fromProbe maps a probe guess to a declarable encoding name.
func fromProbe(p core.ProbeResult) string {
	switch p.Encoding {
	case "", "ascii", "us-ascii":
		return charset.DefaultEncoding
	}
	if _, _, err := charset.Resolve(p.Encoding); err != nil {
		return charset.DefaultEncoding
	}
	return p.Encoding
}

func isMalformed(err error) bool {
	var pe *csv.ParseError
	return errors.As(err, &pe) || errors.Is(err, charset.ErrInvalidSequence)
}

// skipSampler logs skipped records, keeps the first few and forwards them.
type skipSampler struct {
	log  zerolog.Logger
	next core.SkipHandler

	mu   sync.Mutex
	kept []core.RowError
}

func (s *skipSampler) HandleSkip(ctx context.Context, rowErr *core.RowError) {
	s.log.Warn().
		Int("line", rowErr.Line).
		Str("reason", string(rowErr.Reason)).
		Err(rowErr.Err).
		Msg("record skipped")

	s.mu.Lock()
	if len(s.kept) < core.MaxSkipSamples {
		s.kept = append(s.kept, *rowErr)
	}
	s.mu.Unlock()

	if s.next != nil {
		s.next.HandleSkip(ctx, rowErr)
	}
}

func (s *skipSampler) samples() []core.RowError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.RowError(nil), s.kept...)
}
