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

package readers

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/csvclean/charset"
	"github.com/aaronlmathis/csvclean/core"
)

func newReader(t *testing.T, data string, options ...ReaderOptionCSV) *ChunkedCSVReader {
	t.Helper()
	r, err := NewChunkedCSVReader(io.NopCloser(strings.NewReader(data)), options...)
	require.NoError(t, err)
	return r
}

func readAll(t *testing.T, r *ChunkedCSVReader) []core.Batch {
	t.Helper()
	var batches []core.Batch
	for {
		b, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return batches
		}
		require.NoError(t, err)
		batches = append(batches, b)
	}
}

func TestCSVReader_Batching(t *testing.T) {
	r := newReader(t, "id,name\n1,a\n2,b\n3,c\n4,d\n5,e\n", WithBatchSize(2))
	batches := readAll(t, r)

	require.Len(t, batches, 3)
	for i, b := range batches {
		assert.Equal(t, i, b.Index)
		assert.Equal(t, core.Header{"id", "name"}, b.Header)
	}
	assert.Equal(t, 2, batches[0].Len())
	assert.Equal(t, 2, batches[1].Len())
	assert.Equal(t, 1, batches[2].Len())
	assert.Equal(t, core.Row{"5", "e"}, batches[2].Rows[0])

	stats := r.Stats()
	assert.Equal(t, int64(5), stats.RecordsRead)
	assert.Equal(t, int64(3), stats.BatchesRead)
	assert.Equal(t, int64(0), r.Skipped())

	// Forward-only: once exhausted it stays exhausted.
	_, err := r.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestCSVReader_FieldsAreOpaqueText(t *testing.T) {
	r := newReader(t, "n,flag,date\n007,TRUE,2024-01-01\n,,\n")
	batches := readAll(t, r)
	require.Len(t, batches, 1)
	assert.Equal(t, []core.Row{{"007", "TRUE", "2024-01-01"}, {"", "", ""}}, batches[0].Rows)

	v, ok := batches[0].Field(0, "n")
	assert.True(t, ok)
	assert.Equal(t, "007", v)
	_, ok = batches[0].Field(0, "missing")
	assert.False(t, ok)
}

func TestCSVReader_SkipsMalformedRecords(t *testing.T) {
	var skipped []*core.RowError
	handler := core.SkipHandlerFunc(func(ctx context.Context, e *core.RowError) {
		skipped = append(skipped, e)
	})

	data := "id,note\n1,ok\n2,extra,field\n3,\"unterminated\n"
	r := newReader(t, data, WithSkipHandler(handler))
	batches := readAll(t, r)

	require.Len(t, batches, 1)
	assert.Equal(t, []core.Row{{"1", "ok"}}, batches[0].Rows)
	assert.Equal(t, int64(2), r.Skipped())
	require.Len(t, skipped, 2)
	assert.Equal(t, core.RowFieldCount, skipped[0].Reason)
	assert.Equal(t, 3, skipped[0].Line)
	assert.Equal(t, core.RowParse, skipped[1].Reason)
	assert.Equal(t, int64(3), r.Stats().RecordsRead)
}

func TestCSVReader_UnterminatedQuoteCostsOneRecord(t *testing.T) {
	var skipped []*core.RowError
	handler := core.SkipHandlerFunc(func(ctx context.Context, e *core.RowError) {
		skipped = append(skipped, e)
	})

	r := newReader(t, "id,note\n1,\"open\n2,ok\n3,ok\n", WithBatchSize(1), WithSkipHandler(handler))
	batches := readAll(t, r)

	require.Len(t, batches, 2)
	assert.Equal(t, core.Row{"2", "ok"}, batches[0].Rows[0])
	assert.Equal(t, core.Row{"3", "ok"}, batches[1].Rows[0])
	assert.Equal(t, int64(1), r.Skipped())
	assert.Equal(t, int64(3), r.Stats().RecordsRead)
	require.Len(t, skipped, 1)
	assert.Equal(t, 2, skipped[0].Line)
	assert.Equal(t, core.RowParse, skipped[0].Reason)
	assert.ErrorIs(t, skipped[0].Err, csv.ErrQuote)
}

func TestCSVReader_LinesAfterRecoveryKeepNumbering(t *testing.T) {
	var lines []int
	handler := core.SkipHandlerFunc(func(ctx context.Context, e *core.RowError) {
		lines = append(lines, e.Line)
	})

	data := "id,note\n1,ok\n2,\"open\n3,ok\n4,too,many\n5,\"again\n6,ok\n"
	r := newReader(t, data, WithSkipHandler(handler))
	batches := readAll(t, r)

	require.Len(t, batches, 1)
	assert.Equal(t, []core.Row{{"1", "ok"}, {"3", "ok"}, {"6", "ok"}}, batches[0].Rows)
	assert.Equal(t, []int{3, 5, 6}, lines)
	assert.Equal(t, int64(len(batches[0].Rows))+r.Skipped(), r.Stats().RecordsRead)
}

func TestCSVReader_MaxRecordBytes(t *testing.T) {
	data := "id,note\n1,\"" + strings.Repeat("x", 100) + "\"\n2,ok\n"
	in := io.NopCloser(iotest.OneByteReader(strings.NewReader(data)))

	r, err := NewChunkedCSVReader(in, WithMaxRecordBytes(32))
	require.NoError(t, err)
	batches := readAll(t, r)

	require.Len(t, batches, 1)
	assert.Equal(t, []core.Row{{"2", "ok"}}, batches[0].Rows)
	assert.Equal(t, int64(1), r.Skipped())
}

func TestCSVReader_CRLFInsideQuotesBecomesLF(t *testing.T) {
	// encoding/csv folds \r\n inside a quoted field to \n before the sanitizer sees it
	r := newReader(t, "id,note\r\n1,\"a\r\nb\"\r\n2,\"c\rd\"\r\n")
	batches := readAll(t, r)
	require.Len(t, batches, 1)
	assert.Equal(t, []core.Row{{"1", "a\nb"}, {"2", "c\rd"}}, batches[0].Rows)
}

func TestCSVReader_ShortRowSkipped(t *testing.T) {
	r := newReader(t, "a,b,c\n1,2,3\n4,5\n6,7,8\n", WithBatchSize(1))
	batches := readAll(t, r)
	require.Len(t, batches, 2)
	assert.Equal(t, core.Row{"6", "7", "8"}, batches[1].Rows[0])
	assert.Equal(t, int64(1), r.Skipped())
}

func TestCSVReader_BatchOfOnlySkippedRowsContinues(t *testing.T) {
	r := newReader(t, "a,b\n1\n2\n3,4\n", WithBatchSize(1))
	batches := readAll(t, r)
	require.Len(t, batches, 1)
	assert.Equal(t, core.Row{"3", "4"}, batches[0].Rows[0])
	assert.Equal(t, int64(2), r.Skipped())
}

func TestCSVReader_QuotedSeparators(t *testing.T) {
	r := newReader(t, "id,text\n1,\"a,b\"\n2,\"line\nbreak\"\n3,\"say \"\"hi\"\"\"\n")
	batches := readAll(t, r)
	require.Len(t, batches, 1)
	assert.Equal(t, []core.Row{{"1", "a,b"}, {"2", "line\nbreak"}, {"3", `say "hi"`}}, batches[0].Rows)
}

func TestCSVReader_Delimiter(t *testing.T) {
	r := newReader(t, "a;b\n1;2\n", WithCSVComma(';'))
	batches := readAll(t, r)
	require.Len(t, batches, 1)
	assert.Equal(t, core.Row{"1", "2"}, batches[0].Rows[0])
}

func TestCSVReader_LazyQuotes(t *testing.T) {
	data := "a,b\n1,x\"y\n"
	strict := newReader(t, data)
	assert.Empty(t, readAll(t, strict))
	assert.Equal(t, int64(1), strict.Skipped())

	lazy := newReader(t, data, WithLazyQuotes(true))
	batches := readAll(t, lazy)
	require.Len(t, batches, 1)
	assert.Equal(t, core.Row{"1", `x"y`}, batches[0].Rows[0])
}

func TestCSVReader_Encodings(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		decoding charset.Decoding
		want     []core.Row
		skipped  int64
	}{
		{
			name:     "latin-1 decoded to utf-8",
			data:     "id,name\n1,Ren\xe9e\n",
			decoding: charset.Decoding{Encoding: "latin-1"},
			want:     []core.Row{{"1", "Renée"}},
		},
		{
			name:     "windows-1252 smart quotes",
			data:     "id,q\n1,\x93hi\x94\n",
			decoding: charset.Decoding{Encoding: "windows-1252"},
			want:     []core.Row{{"1", "“hi”"}},
		},
		{
			name:     "utf-8 replace policy",
			data:     "id,name\n1,a\xffb\n",
			decoding: charset.Decoding{Encoding: "utf-8", Policy: charset.Replace},
			want:     []core.Row{{"1", "a�b"}},
		},
		{
			name:     "utf-8 strict policy skips record",
			data:     "id,name\n1,a\xffb\n2,ok\n",
			decoding: charset.Decoding{Encoding: "utf-8", Policy: charset.Strict},
			want:     []core.Row{{"2", "ok"}},
			skipped:  1,
		},
		{
			name:     "utf-8 bom dropped",
			data:     "\xef\xbb\xbfid,name\n1,a\n",
			decoding: charset.Decoding{Encoding: "utf-8"},
			want:     []core.Row{{"1", "a"}},
		},
		{
			name:     "utf-16le with bom",
			data:     "\xff\xfei\x00d\x00,\x00n\x00\n\x001\x00,\x00\xe9\x00\n\x00",
			decoding: charset.Decoding{Encoding: "utf-16le"},
			want:     []core.Row{{"1", "é"}},
		},
		{
			name: "utf-16le strict keeps literal replacement character",
			data: "i\x00d\x00,\x00n\x00\n\x00" +
				"1\x00,\x00\xfd\xff\n\x00" +
				"2\x00,\x00\x00\xdc\n\x00",
			decoding: charset.Decoding{Encoding: "utf-16le", Policy: charset.Strict},
			want:     []core.Row{{"1", "\ufffd"}},
			skipped:  1,
		},
		{
			name:     "iso-2022-jp decoded before parsing",
			data:     "id,note\n1,\x1b$BF|K\\8l\x1b(B\n2,ok\n",
			decoding: charset.Decoding{Encoding: "iso-2022-jp"},
			want:     []core.Row{{"1", "日本語"}, {"2", "ok"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newReader(t, tt.data, WithDecoding(tt.decoding))
			batches := readAll(t, r)
			require.Len(t, batches, 1)
			assert.Equal(t, tt.want, batches[0].Rows)
			assert.Equal(t, tt.skipped, r.Skipped())
			assert.Equal(t, "id", batches[0].Header[0])
		})
	}
}

func TestCSVReader_ReadHeader(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		r := newReader(t, "")
		_, err := r.ReadHeader()
		assert.ErrorIs(t, err, core.ErrEmptyInput)
		_, err = r.Next(context.Background())
		assert.Error(t, err)
	})

	t.Run("header only", func(t *testing.T) {
		r := newReader(t, "id,name\n")
		h, err := r.ReadHeader()
		require.NoError(t, err)
		assert.Equal(t, core.Header{"id", "name"}, h)
		_, err = r.Next(context.Background())
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("malformed header", func(t *testing.T) {
		r := newReader(t, "id,\"name\n1,a\n")
		_, err := r.ReadHeader()
		var re *CSVReaderError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "read_header", re.Op)
	})

	t.Run("undecodable header under strict", func(t *testing.T) {
		r := newReader(t, "id,n\xffame\n1,a\n", WithDecoding(charset.Decoding{Encoding: "utf-8", Policy: charset.Strict}))
		_, err := r.ReadHeader()
		assert.ErrorIs(t, err, charset.ErrInvalidSequence)
	})
}

func TestCSVReader_Options(t *testing.T) {
	_, err := NewChunkedCSVReader(io.NopCloser(strings.NewReader("")), WithBatchSize(0))
	assert.Error(t, err)

	_, err = NewChunkedCSVReader(io.NopCloser(strings.NewReader("")), WithDecoding(charset.Decoding{Encoding: "klingon"}))
	var re *CSVReaderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "resolve_encoding", re.Op)
}

func TestCSVReader_ContextCancellation(t *testing.T) {
	r := newReader(t, "a\n1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type failingReader struct{ after string }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.after != "" {
		n := copy(p, f.after)
		f.after = f.after[n:]
		return n, nil
	}
	return 0, errors.New("disk on fire")
}

func TestCSVReader_IOErrorIsFatal(t *testing.T) {
	r, err := NewChunkedCSVReader(io.NopCloser(&failingReader{after: "a,b\n1,2\n"}))
	require.NoError(t, err)
	_, err = r.Next(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestCSVReader_Close(t *testing.T) {
	r := newReader(t, "a\n")
	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}
