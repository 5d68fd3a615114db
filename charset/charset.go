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

package charset

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Package charset implements the declared decoding strategy used by the chunked reader:
// a fixed source encoding plus an explicit policy for byte sequences that are invalid under it.
//
// Output is always UTF-8, the canonical encoding of every run.

// DefaultEncoding is the declared source encoding when none is configured.
const DefaultEncoding = "utf-8"

// Canonical is the name of the single output encoding.
const Canonical = "utf-8"

// ErrInvalidSequence reports a field that is not valid under the declared encoding.
var ErrInvalidSequence = errors.New("invalid byte sequence for declared encoding")

// Policy decides what happens to byte sequences that are invalid under the declared encoding.
type Policy int

const (
	// Replace substitutes U+FFFD for every invalid sequence and keeps the record.
	Replace Policy = iota
	// Strict skips any record that contains an invalid sequence.
	Strict
)

func (p Policy) String() string {
	switch p {
	case Replace:
		return "replace"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses "replace" or "strict". The empty string means Replace.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "replace":
		return Replace, nil
	case "strict":
		return Strict, nil
	default:
		return Replace, fmt.Errorf("unknown decode policy %q", s)
	}
}

// UnmarshalText lets a Policy be read from YAML or an environment variable.
func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Decoding is the declared decoding strategy for one run.
type Decoding struct {
	Encoding string
	Policy   Policy
}

var aliases = map[string]string{
	"latin-1": "iso-8859-1",
	"latin1":  "iso-8859-1",
	"utf8":    "utf-8",
	"ascii":   "us-ascii",
}

// Resolve looks up an encoding by IANA or WHATWG name and returns it with its canonical name.
func Resolve(name string) (encoding.Encoding, string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultEncoding
	}
	if alias, ok := aliases[key]; ok {
		key = alias
	}

	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil || enc == nil {
		enc, err = htmlindex.Get(key)
		if err != nil {
			return nil, "", fmt.Errorf("unsupported encoding %q", name)
		}
	}

	return enc, canonicalName(enc, key), nil
}

// canonicalName prefers the MIME name (iso-8859-1) over the registry name (iso_8859-1:1987).
func canonicalName(enc encoding.Encoding, fallback string) string {
	for _, index := range []*ianaindex.Index{ianaindex.MIME, ianaindex.IANA} {
		if n, err := index.Name(enc); err == nil && n != "" {
			return strings.ToLower(n)
		}
	}
	return fallback
}

// Decoder turns raw field bytes into UTF-8 text under a Decoding. It is not safe for concurrent use.
type Decoder struct {
	name        string
	policy      Policy
	enc         encoding.Encoding
	dec         *encoding.Decoder
	utf8        bool
	streamLevel bool
	utf16       bool // decoded by utf16Decoder, which marks invalid units
	bigEndian   bool
}

// NewDecoder resolves d.Encoding and prepares a decoder for it.
func NewDecoder(d Decoding) (*Decoder, error) {
	enc, name, err := Resolve(d.Encoding)
	if err != nil {
		return nil, err
	}
	dec := &Decoder{
		name:        name,
		policy:      d.Policy,
		enc:         enc,
		dec:         enc.NewDecoder(),
		utf8:        name == "utf-8",
		streamLevel: !asciiCompatible(enc) || stateful(enc),
	}
	switch name {
	case "utf-16", "utf-16be":
		dec.utf16, dec.bigEndian = true, true
	case "utf-16le":
		dec.utf16 = true
	}
	return dec, nil
}

// Name returns the canonical name of the declared encoding.
func (d *Decoder) Name() string { return d.name }

// Policy returns the invalid-sequence policy.
func (d *Decoder) Policy() Policy { return d.policy }

// StreamLevel reports whether the input is decoded before parsing. That is the case for
// encodings such as UTF-16 whose delimiters and quotes are not single ASCII bytes, and for
// stateful 7-bit encodings such as ISO-2022-JP whose fields only make sense in context.
func (d *Decoder) StreamLevel() bool { return d.streamLevel }

// WrapReader prepares the raw input for the CSV parser.
func (d *Decoder) WrapReader(r io.Reader) io.Reader {
	if d.utf16 {
		return transform.NewReader(r, newUTF16Decoder(d.bigEndian, d.policy == Strict))
	}
	if d.streamLevel {
		return transform.NewReader(r, unicode.BOMOverride(d.enc.NewDecoder()))
	}
	if d.utf8 {
		return skipUTF8BOM(r)
	}
	return r
}

// DecodeField converts one raw field to UTF-8 according to the policy.
//
// Stream-level fields arrive already decoded. Under Strict, UTF-16 input carries invalid units
// as bytes that are not valid UTF-8, so a literal U+FFFD in the source is kept. The stateful
// encodings cannot represent U+FFFD, so any U+FFFD there came from the decoder.
func (d *Decoder) DecodeField(raw string) (string, error) {
	if d.streamLevel {
		if d.policy != Strict {
			return raw, nil
		}
		if d.utf16 {
			if !utf8.ValidString(raw) {
				return "", ErrInvalidSequence
			}
			return raw, nil
		}
		if strings.ContainsRune(raw, utf8.RuneError) {
			return "", ErrInvalidSequence
		}
		return raw, nil
	}
	if isASCII(raw) {
		return raw, nil
	}
	if d.utf8 {
		if utf8.ValidString(raw) {
			return raw, nil
		}
		if d.policy == Strict {
			return "", ErrInvalidSequence
		}
	}

	out, err := d.dec.String(raw)
	if err != nil {
		if d.policy == Strict {
			return "", fmt.Errorf("%w: %v", ErrInvalidSequence, err)
		}
		return strings.ToValidUTF8(raw, string(utf8.RuneError)), nil
	}
	if d.policy == Strict && !d.utf8 && strings.ContainsRune(out, utf8.RuneError) {
		return "", ErrInvalidSequence
	}
	return out, nil
}

// DecodeRecord decodes every field of a record in place.
func (d *Decoder) DecodeRecord(fields []string) error {
	for i, f := range fields {
		s, err := d.DecodeField(f)
		if err != nil {
			return fmt.Errorf("field %d: %w", i+1, err)
		}
		fields[i] = s
	}
	return nil
}

var asciiProbe = ",;|\t\"'\r\nazAZ09 "

// asciiCompatible reports whether enc encodes ASCII delimiters and quotes as themselves.
func asciiCompatible(enc encoding.Encoding) bool {
	out, err := enc.NewEncoder().String(asciiProbe)
	return err == nil && out == asciiProbe
}

// shiftSequences switch ISO-2022 and HZ decoders out of ASCII. A stateless decoder returns them as is.
var shiftSequences = []string{"\x1b$B", "\x1b$A", "\x1b(J", "~{"}

// stateful reports whether enc keeps state across bytes, so a field cannot be decoded on its own.
func stateful(enc encoding.Encoding) bool {
	for _, seq := range shiftSequences {
		out, err := enc.NewDecoder().String(seq)
		if err != nil || out != seq {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipUTF8BOM drops a leading UTF-8 byte order mark, commonly added by Windows programs.
func skipUTF8BOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
