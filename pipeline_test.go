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
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/csvclean/core"
	"github.com/aaronlmathis/csvclean/transform"
)

// sliceSource serves prepared batches.
type sliceSource struct {
	header  core.Header
	batches []core.Batch
	skipped int64
	err     error // returned after the batches run out, instead of io.EOF
	closed  bool
}

func (s *sliceSource) Next(ctx context.Context) (core.Batch, error) {
	if len(s.batches) == 0 {
		if s.err != nil {
			return core.Batch{}, s.err
		}
		return core.Batch{}, io.EOF
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

func (s *sliceSource) Header() core.Header { return s.header }
func (s *sliceSource) Skipped() int64      { return s.skipped }

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

// recordingSink keeps every batch it is given and can fail on a chosen call.
type recordingSink struct {
	batches  []core.Batch
	firsts   []bool
	failOn   int // 1-based WriteBatch call that fails, 0 for never
	closeErr error
	closed   bool
}

func (s *recordingSink) WriteBatch(ctx context.Context, b core.Batch, first bool) error {
	if s.failOn > 0 && len(s.batches)+1 == s.failOn {
		return errors.New("disk gone")
	}
	s.batches = append(s.batches, b)
	s.firsts = append(s.firsts, first)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return s.closeErr
}

var pipeHeader = core.Header{"id", "note"}

func testBatches(rows ...[]core.Row) []core.Batch {
	out := make([]core.Batch, len(rows))
	for i, r := range rows {
		out[i] = core.Batch{Index: i, Header: pipeHeader, Rows: r}
	}
	return out
}

func TestPipelineBuilder(t *testing.T) {
	t.Run("requires source", func(t *testing.T) {
		_, err := NewPipeline().To(&recordingSink{}).Build()
		assert.Error(t, err)
	})

	t.Run("requires sink", func(t *testing.T) {
		_, err := NewPipeline().From(&sliceSource{}).Build()
		assert.Error(t, err)
	})

	t.Run("builds", func(t *testing.T) {
		p, err := NewPipeline().
			From(&sliceSource{}).
			Transform(transform.Sanitizer()).
			To(&recordingSink{}).
			WithRunID("run-1").
			Build()
		require.NoError(t, err)
		assert.Equal(t, core.NotStarted, p.State())
	})
}

func TestPipeline_Execute(t *testing.T) {
	src := &sliceSource{
		header:  pipeHeader,
		skipped: 1,
		batches: testBatches(
			[]core.Row{{"1", "bad\x07char"}},
			[]core.Row{{"2", "ok"}, {"3", "nul\x00byte"}},
		),
	}
	sink := &recordingSink{}

	p, err := NewPipeline().
		From(src).
		Transform(transform.Sanitizer()).
		To(sink).
		WithRunID("run-1").
		Build()
	require.NoError(t, err)

	res, err := p.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, int64(3), res.RowsWritten)
	assert.Equal(t, int64(1), res.RowsSkipped)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, core.Done, p.State())

	require.Len(t, sink.batches, 2)
	assert.Equal(t, []bool{true, false}, sink.firsts)
	assert.Equal(t, core.Row{"1", "badchar"}, sink.batches[0].Rows[0])
	assert.Equal(t, core.Row{"3", "nulbyte"}, sink.batches[1].Rows[1])
	assert.True(t, sink.closed)
	assert.True(t, src.closed)
}

func TestPipeline_StateTransitions(t *testing.T) {
	var seen []string
	p, err := NewPipeline().
		From(&sliceSource{header: pipeHeader, batches: testBatches([]core.Row{{"1", "a"}})}).
		To(&recordingSink{}).
		WithStateHook(func(from, to core.State) {
			seen = append(seen, from.String()+">"+to.String())
		}).
		Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"not_started>reading",
		"reading>sanitizing",
		"sanitizing>writing",
		"writing>reading",
		"reading>done",
	}, seen)
}

func TestPipeline_ExecuteTwice(t *testing.T) {
	p, err := NewPipeline().From(&sliceSource{}).To(&recordingSink{}).Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	assert.Error(t, err)
	assert.Equal(t, core.Done, p.State())
}

func TestPipeline_HeaderOnly(t *testing.T) {
	sink := &recordingSink{}
	p, err := NewPipeline().From(&sliceSource{header: pipeHeader}).To(sink).Build()
	require.NoError(t, err)

	res, err := p.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.RowsWritten)
	require.Len(t, sink.batches, 1)
	assert.Equal(t, pipeHeader, sink.batches[0].Header)
	assert.Empty(t, sink.batches[0].Rows)
	assert.True(t, sink.firsts[0])
}

func TestPipeline_EmptyInput(t *testing.T) {
	sink := &recordingSink{}
	p, err := NewPipeline().From(&sliceSource{err: core.ErrEmptyInput}).To(sink).Build()
	require.NoError(t, err)

	res, err := p.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.RowsWritten)
	assert.Empty(t, sink.batches)
	assert.True(t, sink.closed)
}

func TestPipeline_WriteFailure(t *testing.T) {
	sink := &recordingSink{failOn: 2}
	var buf bytes.Buffer
	p, err := NewPipeline().
		From(&sliceSource{
			header:  pipeHeader,
			batches: testBatches([]core.Row{{"1", "a"}}, []core.Row{{"2", "b"}}, []core.Row{{"3", "c"}}),
		}).
		To(sink).
		WithLogger(zerolog.New(&buf)).
		Build()
	require.NoError(t, err)

	res, err := p.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.ReasonWriteFailed, core.ReasonOf(err))
	assert.Equal(t, int64(1), res.RowsWritten)
	assert.Equal(t, core.Failed, p.State())
	assert.Len(t, sink.batches, 1)
	assert.True(t, sink.closed)
	assert.Contains(t, buf.String(), `"reason":"write_failed"`)
}

func TestPipeline_CloseFailure(t *testing.T) {
	sink := &recordingSink{closeErr: errors.New("sync failed")}
	p, err := NewPipeline().
		From(&sliceSource{header: pipeHeader, batches: testBatches([]core.Row{{"1", "a"}})}).
		To(sink).
		Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	require.Error(t, err)

	var re *core.RunError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "close", re.Op)
	assert.Equal(t, core.ReasonWriteFailed, re.Reason)
}

func TestPipeline_ReadFailure(t *testing.T) {
	p, err := NewPipeline().
		From(&sliceSource{
			header:  pipeHeader,
			batches: testBatches([]core.Row{{"1", "a"}}),
			err:     errors.New("connection reset"),
		}).
		To(&recordingSink{}).
		Build()
	require.NoError(t, err)

	res, err := p.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.ReasonReadFailed, core.ReasonOf(err))
	assert.Equal(t, int64(1), res.RowsWritten)
}

func TestPipeline_TransformMustKeepShape(t *testing.T) {
	tests := []struct {
		name string
		fn   func(ctx context.Context, b core.Batch) (core.Batch, error)
	}{
		{"drops row", func(ctx context.Context, b core.Batch) (core.Batch, error) {
			b.Rows = b.Rows[:0]
			return b, nil
		}},
		{"drops column", func(ctx context.Context, b core.Batch) (core.Batch, error) {
			b.Rows = []core.Row{{"1"}}
			return b, nil
		}},
		{"errors", func(ctx context.Context, b core.Batch) (core.Batch, error) {
			return core.Batch{}, errors.New("boom")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			p, err := NewPipeline().
				From(&sliceSource{header: pipeHeader, batches: testBatches([]core.Row{{"1", "a"}})}).
				Map(tt.fn).
				To(sink).
				Build()
			require.NoError(t, err)

			_, err = p.Execute(context.Background())
			require.Error(t, err)
			assert.Equal(t, core.ReasonTransformFailed, core.ReasonOf(err))
			assert.Empty(t, sink.batches)
		})
	}
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &recordingSink{}
	p, err := NewPipeline().
		From(&sliceSource{header: pipeHeader, batches: testBatches([]core.Row{{"1", "a"}}, []core.Row{{"2", "b"}})}).
		Map(func(ctx context.Context, b core.Batch) (core.Batch, error) {
			cancel()
			return b, nil
		}).
		To(sink).
		Build()
	require.NoError(t, err)

	res, err := p.Execute(ctx)
	require.Error(t, err)
	assert.Equal(t, core.ReasonCancelled, core.ReasonOf(err))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int64(1), res.RowsWritten)
	require.Len(t, sink.batches, 1)
	assert.True(t, strings.HasPrefix(sink.batches[0].Rows[0][0], "1"))
}
