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
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

// invalidMark stands in for an invalid UTF-16 unit when marking is on. It can never start
// valid UTF-8, so it survives CSV parsing and is found again per field.
const invalidMark = 0xFF

// utf16Decoder decodes UTF-16 into UTF-8. A byte order mark at the start of the stream
// overrides the declared order and is dropped. Unpaired surrogates and a dangling odd byte
// become U+FFFD, or invalidMark when mark is set.
type utf16Decoder struct {
	declaredBE bool
	bigEndian  bool
	mark       bool
	started    bool
}

var _ transform.Transformer = (*utf16Decoder)(nil)

func newUTF16Decoder(bigEndian, mark bool) *utf16Decoder {
	return &utf16Decoder{declaredBE: bigEndian, bigEndian: bigEndian, mark: mark}
}

func (d *utf16Decoder) Reset() {
	d.bigEndian = d.declaredBE
	d.started = false
}

func (d *utf16Decoder) unit(b []byte) rune {
	if d.bigEndian {
		return rune(b[0])<<8 | rune(b[1])
	}
	return rune(b[1])<<8 | rune(b[0])
}

func (d *utf16Decoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	if !d.started {
		if len(src) < 2 && !atEOF {
			return 0, 0, transform.ErrShortSrc
		}
		d.started = true
		if len(src) >= 2 {
			switch {
			case src[0] == 0xFF && src[1] == 0xFE:
				d.bigEndian = false
				nSrc = 2
			case src[0] == 0xFE && src[1] == 0xFF:
				d.bigEndian = true
				nSrc = 2
			}
		}
	}

	for nSrc < len(src) {
		r, size, valid := utf8.RuneError, 1, false
		switch rest := src[nSrc:]; {
		case len(rest) < 2:
			if !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
		case !utf16.IsSurrogate(d.unit(rest)):
			r, size, valid = d.unit(rest), 2, true
		case d.unit(rest) >= 0xDC00:
			size = 2
		case len(rest) < 4:
			if !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
			size = 2
		default:
			size = 2
			if pair := utf16.DecodeRune(d.unit(rest), d.unit(rest[2:])); pair != utf8.RuneError {
				r, size, valid = pair, 4, true
			}
		}

		if !valid && d.mark {
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = invalidMark
			nDst++
			nSrc += size
			continue
		}
		if len(dst)-nDst < utf8.RuneLen(r) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += utf8.EncodeRune(dst[nDst:], r)
		nSrc += size
	}
	return nDst, nSrc, nil
}
