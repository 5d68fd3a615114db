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

package probe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"

	"github.com/aaronlmathis/csvclean/core"
)

// Package probe samples the head of an input and reports a best-guess source encoding.
//
// The result is advisory. It is logged and returned with the run summary, but it never
// reinterprets bytes that the reader has already decoded under the declared encoding.

// DefaultSampleBytes is the sample budget used when none is given.
const DefaultSampleBytes = 1 << 20

// Fallback is reported when a sample is empty or nothing can be detected.
const Fallback = "utf-8"

// ProbeError wraps read failures while sampling.
type ProbeError struct {
	Op  string
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Op, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

var boms = []struct {
	mark []byte
	name string
}{
	{[]byte{0xEF, 0xBB, 0xBF}, "utf-8"},
	{[]byte{0xFF, 0xFE}, "utf-16le"},
	{[]byte{0xFE, 0xFF}, "utf-16be"},
}

// Probe reads at most budget bytes from r and guesses their encoding.
// A short or empty sample is not an error; only a failing read is.
func Probe(r io.Reader, budget int) (core.ProbeResult, error) {
	if budget <= 0 {
		budget = DefaultSampleBytes
	}

	buf := make([]byte, budget)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return core.ProbeResult{Encoding: Fallback}, &ProbeError{Op: "read_sample", Err: err}
	}

	return Detect(buf[:n], n == budget), nil
}

// Detect guesses the encoding of sample. truncated tells whether the sample was cut at the
// budget boundary, in which case a trailing partial rune is not held against UTF-8.
func Detect(sample []byte, truncated bool) core.ProbeResult {
	res := core.ProbeResult{Encoding: Fallback, SampleBytes: len(sample)}
	if len(sample) == 0 {
		return res
	}

	for _, b := range boms {
		if bytes.HasPrefix(sample, b.mark) {
			res.Encoding = b.name
			res.Confidence = 1
			res.BOM = true
			return res
		}
	}

	if isASCII(sample) {
		res.Encoding = "ascii"
		res.Confidence = 1
		return res
	}

	body := sample
	if truncated {
		body = body[:len(body)-incompleteTail(body)]
	}
	if utf8.Valid(body) {
		res.Encoding = "utf-8"
		res.Confidence = 0.99
		return res
	}

	best, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil || best == nil {
		return res
	}
	res.Encoding = strings.ToLower(best.Charset)
	res.Confidence = clamp(float64(best.Confidence) / 100)
	return res
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// incompleteTail returns how many trailing bytes form the start of an unfinished rune.
func incompleteTail(b []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		c := b[len(b)-i]
		if !utf8.RuneStart(c) {
			continue
		}
		if c < utf8.RuneSelf {
			return 0
		}
		if !utf8.FullRune(b[len(b)-i:]) {
			return i
		}
		return 0
	}
	return 0
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
