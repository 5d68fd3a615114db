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
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/aaronlmathis/csvclean/core"
)

// Package transform provides the row sanitizer for CSVClean pipelines.
//
// The sanitizer removes control characters from every field of a batch while keeping
// line breaks and tabs. It is a pure function of its input batch: no state is carried
// between rows or batches, and the column count of every row is preserved.

// Mode selects what happens to a disallowed character.
type Mode int

const (
	// ModeStrip removes disallowed characters. This is the default.
	ModeStrip Mode = iota
	// ModeEscape replaces each disallowed character with a visible \xNN escape.
	ModeEscape
)

func (m Mode) String() string {
	switch m {
	case ModeStrip:
		return "strip"
	case ModeEscape:
		return "escape"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "strip" or "escape". The empty string means ModeStrip.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strip":
		return ModeStrip, nil
	case "escape":
		return ModeEscape, nil
	default:
		return ModeStrip, fmt.Errorf("unknown sanitize mode %q", s)
	}
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Options configures the sanitizer.
type Options struct {
	Mode Mode
	// Form, when non-nil, applies a Unicode normalization form after filtering.
	Form *norm.Form
}

// Option is a functional option for the sanitizer.
type Option func(*Options)

func WithMode(m Mode) Option {
	return func(o *Options) { o.Mode = m }
}

func WithNormalization(f norm.Form) Option {
	return func(o *Options) { o.Form = &f }
}

// Allowed reports whether r survives sanitization: code points from 32 up, plus \n, \r and \t.
func Allowed(r rune) bool {
	return r >= 32 || r == '\n' || r == '\r' || r == '\t'
}

// StripControl removes every disallowed character from s.
func StripControl(s string) string {
	if clean(s) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if Allowed(r) {
			return r
		}
		return -1
	}, s)
}

// EscapeControl replaces every disallowed character in s with \xNN.
func EscapeControl(s string) string {
	if clean(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if Allowed(r) {
			b.WriteRune(r)
			continue
		}
		fmt.Fprintf(&b, `\x%02X`, r)
	}
	return b.String()
}

// SanitizeField applies the configured filter and normalization to one field.
func SanitizeField(s string, opts Options) string {
	if s == "" {
		return s
	}
	switch opts.Mode {
	case ModeEscape:
		s = EscapeControl(s)
	default:
		s = StripControl(s)
	}
	if opts.Form != nil {
		s = opts.Form.String(s)
	}
	return s
}

// SanitizeBatch returns a new batch with every field sanitized. The input batch is not modified.
func SanitizeBatch(b core.Batch, options ...Option) core.Batch {
	var opts Options
	for _, opt := range options {
		opt(&opts)
	}

	out := core.Batch{Index: b.Index, Header: b.Header, Rows: make([]core.Row, len(b.Rows))}
	for i, row := range b.Rows {
		sanitized := make(core.Row, len(row))
		for j, field := range row {
			sanitized[j] = SanitizeField(field, opts)
		}
		out.Rows[i] = sanitized
	}
	return out
}

// Sanitizer returns a core.BatchTransformer that applies SanitizeBatch.
func Sanitizer(options ...Option) core.BatchTransformer {
	return core.BatchTransformFunc(func(ctx context.Context, b core.Batch) (core.Batch, error) {
		return SanitizeBatch(b, options...), nil
	})
}

// clean reports whether s contains no disallowed character.
func clean(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 32 && c != '\n' && c != '\r' && c != '\t' {
			return false
		}
	}
	return true
}
