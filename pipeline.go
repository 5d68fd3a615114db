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
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aaronlmathis/csvclean/core"
)

// PipelineBuilder provides a fluent API for constructing a normalization pipeline.
// Use NewPipeline() to create a new builder, then chain From, Transform, To and configuration methods.
//
//	pipeline, err := csvclean.NewPipeline().
//	    From(reader).
//	    Transform(transform.Sanitizer()).
//	    To(writer).
//	    WithLogger(log).
//	    Build()
//	if err != nil { return err }
//	result, err := pipeline.Execute(ctx)
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a new PipelineBuilder.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			transformers: make([]core.BatchTransformer, 0),
			logger:       zerolog.Nop(),
		},
	}
}

// From sets the BatchSource for the pipeline.
func (pb *PipelineBuilder) From(source core.BatchSource) *PipelineBuilder {
	pb.pipeline.source = source
	return pb
}

// Transform adds a BatchTransformer. Transformers run in the order they were added.
func (pb *PipelineBuilder) Transform(transformer core.BatchTransformer) *PipelineBuilder {
	pb.pipeline.transformers = append(pb.pipeline.transformers, transformer)
	return pb
}

// Map adds a batch transformation using a function.
func (pb *PipelineBuilder) Map(fn func(ctx context.Context, b core.Batch) (core.Batch, error)) *PipelineBuilder {
	return pb.Transform(core.BatchTransformFunc(fn))
}

// To sets the BatchSink for the pipeline.
func (pb *PipelineBuilder) To(sink core.BatchSink) *PipelineBuilder {
	pb.pipeline.sink = sink
	return pb
}

// WithLogger sets the logger used for progress and state events.
func (pb *PipelineBuilder) WithLogger(logger zerolog.Logger) *PipelineBuilder {
	pb.pipeline.logger = logger
	return pb
}

// WithRunID tags the result with an identifier.
func (pb *PipelineBuilder) WithRunID(id string) *PipelineBuilder {
	pb.pipeline.runID = id
	return pb
}

// WithStateHook registers a function called on every state transition.
func (pb *PipelineBuilder) WithStateHook(hook func(from, to core.State)) *PipelineBuilder {
	pb.pipeline.hook = hook
	return pb
}

// Build validates and constructs the Pipeline from the builder.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	if pb.pipeline.source == nil {
		return nil, fmt.Errorf("pipeline requires a batch source")
	}
	if pb.pipeline.sink == nil {
		return nil, fmt.Errorf("pipeline requires a batch sink")
	}
	return pb.pipeline, nil
}

// Pipeline drives one run: Read → Sanitize → Write, one batch at a time, strictly in order.
//
// A Pipeline executes once. Run state lives in the Pipeline and is discarded with it.
type Pipeline struct {
	source       core.BatchSource
	sink         core.BatchSink
	transformers []core.BatchTransformer
	logger       zerolog.Logger
	hook         func(from, to core.State)
	runID        string

	state         atomic.Int32
	headerEmitted bool
}

// State returns the current state. It is safe to call from other goroutines.
func (p *Pipeline) State() core.State {
	return core.State(p.state.Load())
}

// Execute runs the pipeline to completion.
//
// Malformed records are skipped by the source and counted in the result. Any other read,
// transform or write error moves the pipeline to Failed and is returned as a *core.RunError;
// batches flushed before the failure stay in the sink. Cancellation of ctx is honored before
// each read.
func (p *Pipeline) Execute(ctx context.Context) (*core.Result, error) {
	if !p.state.CompareAndSwap(int32(core.NotStarted), int32(core.Reading)) {
		return nil, fmt.Errorf("pipeline already executed (state %s)", p.State())
	}
	p.notify(core.NotStarted, core.Reading)

	start := time.Now()
	res := &core.Result{RunID: p.runID}

	sinkClosed := false
	defer func() {
		p.source.Close()
		if !sinkClosed {
			p.sink.Close()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return p.fail(res, core.NewRunError("read", "", core.ReasonCancelled, err))
		}

		p.transition(core.Reading)
		batch, err := p.source.Next(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, core.ErrEmptyInput) {
			break
		}
		if err != nil {
			return p.fail(res, core.NewRunError("read", "", core.ReasonReadFailed, err))
		}

		p.transition(core.Sanitizing)
		batch, err = p.applyTransformations(ctx, batch)
		if err != nil {
			return p.fail(res, core.NewRunError("transform", "", core.ReasonTransformFailed, err))
		}

		p.transition(core.Writing)
		if err := p.sink.WriteBatch(ctx, batch, !p.headerEmitted); err != nil {
			return p.fail(res, core.NewRunError("write", "", core.ReasonWriteFailed, err))
		}
		p.headerEmitted = true

		res.Batches++
		res.RowsWritten += int64(len(batch.Rows))
		p.logger.Info().
			Int("batch", batch.Index).
			Int("rows", len(batch.Rows)).
			Int64("rows_written", res.RowsWritten).
			Int64("rows_skipped", p.source.Skipped()).
			Msg("batch flushed")
	}

	// A header without data rows still produces a valid file.
	if !p.headerEmitted {
		if header := p.source.Header(); len(header) > 0 {
			p.transition(core.Writing)
			if err := p.sink.WriteBatch(ctx, core.Batch{Header: header}, true); err != nil {
				return p.fail(res, core.NewRunError("write", "", core.ReasonWriteFailed, err))
			}
			p.headerEmitted = true
		}
	}

	res.RowsSkipped = p.source.Skipped()
	sinkClosed = true
	if err := p.sink.Close(); err != nil {
		return p.fail(res, core.NewRunError("close", "", core.ReasonWriteFailed, err))
	}

	res.Duration = time.Since(start)
	p.transition(core.Done)
	p.logger.Info().
		Int64("rows_written", res.RowsWritten).
		Int64("rows_skipped", res.RowsSkipped).
		Int("batches", res.Batches).
		Dur("duration", res.Duration).
		Msg("run complete")
	return res, nil
}

// applyTransformations runs every transformer in sequence and checks that row shapes are kept.
func (p *Pipeline) applyTransformations(ctx context.Context, b core.Batch) (core.Batch, error) {
	current := b
	for _, transformer := range p.transformers {
		transformed, err := transformer.TransformBatch(ctx, current)
		if err != nil {
			return core.Batch{}, err
		}
		if len(transformed.Rows) != len(current.Rows) {
			return core.Batch{}, fmt.Errorf("transformer changed row count of batch %d from %d to %d",
				b.Index, len(current.Rows), len(transformed.Rows))
		}
		for i := range transformed.Rows {
			if len(transformed.Rows[i]) != len(current.Rows[i]) {
				return core.Batch{}, fmt.Errorf("transformer changed column count of batch %d row %d", b.Index, i)
			}
		}
		current = transformed
	}
	return current, nil
}

func (p *Pipeline) transition(to core.State) {
	from := core.State(p.state.Swap(int32(to)))
	if from != to {
		p.notify(from, to)
	}
}

func (p *Pipeline) notify(from, to core.State) {
	p.logger.Debug().Stringer("from", from).Stringer("to", to).Msg("state")
	if p.hook != nil {
		p.hook(from, to)
	}
}

func (p *Pipeline) fail(res *core.Result, err *core.RunError) (*core.Result, error) {
	res.RowsSkipped = p.source.Skipped()
	p.transition(core.Failed)
	p.logger.Error().
		Err(err).
		Str("reason", string(err.Reason)).
		Int64("rows_written", res.RowsWritten).
		Msg("run failed")
	return res, err
}
