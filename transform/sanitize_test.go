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

package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/aaronlmathis/csvclean/core"
)

func TestStripControl(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bell removed", "bad\x07char", "badchar"},
		{"nul removed", "a\x00b", "ab"},
		{"escape and vertical tab removed", "\x1b[0m\x0bx", "[0mx"},
		{"tab kept", "a\tb", "a\tb"},
		{"newlines kept", "a\r\nb", "a\r\nb"},
		{"space kept", "a b", "a b"},
		{"unicode kept", "Zürich – 東京", "Zürich – 東京"},
		{"DEL kept", "a\x7fb", "a\x7fb"},
		{"all control becomes empty", "\x01\x02\x03", ""},
		{"empty stays empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripControl(tt.in))
		})
	}
}

func TestEscapeControl(t *testing.T) {
	assert.Equal(t, `bad\x07char`, EscapeControl("bad\x07char"))
	assert.Equal(t, `\x00\x1F`, EscapeControl("\x00\x1f"))
	assert.Equal(t, "a\tb", EscapeControl("a\tb"))
}

func TestSanitizeField_Idempotent(t *testing.T) {
	inputs := []string{"bad\x07char", "\x00\x01x\ty\n", "cafe\u0301", "", "plain"}
	nfc := norm.NFC
	configs := []Options{
		{Mode: ModeStrip},
		{Mode: ModeEscape},
		{Mode: ModeStrip, Form: &nfc},
	}
	for _, opts := range configs {
		for _, in := range inputs {
			once := SanitizeField(in, opts)
			assert.Equal(t, once, SanitizeField(once, opts), "mode %s input %q", opts.Mode, in)
			for _, r := range once {
				assert.True(t, Allowed(r), "disallowed rune %U in %q", r, once)
			}
		}
	}
}

func TestSanitizeField_Normalization(t *testing.T) {
	nfc := norm.NFC
	assert.Equal(t, "caf\u00e9", SanitizeField("cafe\u0301", Options{Form: &nfc}))
	assert.Equal(t, "cafe\u0301", SanitizeField("cafe\u0301", Options{}))
}

func TestSanitizeBatch(t *testing.T) {
	in := core.Batch{
		Index:  3,
		Header: core.Header{"id", "note", "empty"},
		Rows: []core.Row{
			{"1", "bad\x07char", ""},
			{"2", "\x01\x02", "ok"},
		},
	}

	out := SanitizeBatch(in)
	assert.Equal(t, 3, out.Index)
	assert.Equal(t, in.Header, out.Header)
	assert.Equal(t, []core.Row{{"1", "badchar", ""}, {"2", "", "ok"}}, out.Rows)

	// The input batch is untouched.
	assert.Equal(t, "bad\x07char", in.Rows[0][1])

	for i := range out.Rows {
		assert.Len(t, out.Rows[i], len(in.Rows[i]))
	}
}

func TestSanitizer_Transformer(t *testing.T) {
	tr := Sanitizer(WithMode(ModeEscape), WithNormalization(norm.NFC))
	out, err := tr.TransformBatch(context.Background(), core.Batch{
		Header: core.Header{"v"},
		Rows:   []core.Row{{"x\x1by"}, {"cafe\u0301"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []core.Row{{`x\x1By`}, {"caf\u00e9"}}, out.Rows)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeStrip, m)

	m, err = ParseMode("Escape")
	require.NoError(t, err)
	assert.Equal(t, ModeEscape, m)
	assert.Equal(t, "escape", m.String())

	_, err = ParseMode("delete")
	assert.Error(t, err)
}

func BenchmarkSanitizeBatch(b *testing.B) {
	rows := make([]core.Row, 1000)
	for i := range rows {
		rows[i] = core.Row{"12345", "some text\x07 value", "clean"}
	}
	batch := core.Batch{Header: core.Header{"a", "b", "c"}, Rows: rows}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SanitizeBatch(batch)
	}
}
