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
	"bufio"
	"bytes"
	"errors"
	"io"
)

// DefaultMaxRecordBytes bounds how much input a single record may span.
const DefaultMaxRecordBytes = 32 << 20

// errRecordTooLong is returned to the CSV parser once a record outgrows the tape limit.
var errRecordTooLong = errors.New("record exceeds maximum size")

// tape sits between the input and the CSV parser and keeps every byte the parser has pulled
// since the end of the last complete record. When a record turns out to be a runaway quote,
// the bytes after its first line are replayed to a fresh parser.
type tape struct {
	r     io.Reader
	buf   []byte
	base  int64 // stream offset of buf[0]
	read  int64 // stream offset after the last byte handed to the parser
	line  int   // parser line number of buf[0]
	limit int64
	eof   bool
}

func newTape(r io.Reader, limit int64) *tape {
	return &tape{r: r, line: 1, limit: limit}
}

func (t *tape) Read(p []byte) (int, error) {
	if t.limit > 0 && t.read-t.base > t.limit {
		return 0, errRecordTooLong
	}
	n, err := t.r.Read(p)
	t.buf = append(t.buf, p[:n]...)
	t.read += int64(n)
	if errors.Is(err, io.EOF) {
		t.eof = true
	}
	return n, err
}

// release forgets everything before stream offset off.
func (t *tape) release(off int64) {
	if off <= t.base {
		return
	}
	drop := int(min(off-t.base, int64(len(t.buf))))
	t.line += bytes.Count(t.buf[:drop], []byte{'\n'})
	t.buf = t.buf[drop:]
	t.base += int64(drop)
}

// drained reports whether the parser has consumed the whole input.
func (t *tape) drained(consumed int64) bool {
	return t.eof && consumed >= t.read
}

// firstRecordLine returns the parser line of the first line on the tape that can start a record.
func (t *tape) firstRecordLine(comment rune) int {
	line := t.line
	rest := t.buf
	for len(rest) > 0 {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		text := bytes.TrimSuffix(rest[:i], []byte{'\r'})
		if len(text) > 0 && (comment == 0 || !bytes.HasPrefix(text, []byte(string(comment)))) {
			break
		}
		rest = rest[i+1:]
		line++
	}
	return line
}

// replayAfter returns the input that follows parser line startLine: the rest of the tape,
// then whatever the parser never pulled.
func (t *tape) replayAfter(startLine int) io.Reader {
	rest := t.buf
	for skip := startLine - t.line + 1; skip > 0; skip-- {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			return discardLine(t.r)
		}
		rest = rest[i+1:]
	}
	return io.MultiReader(bytes.NewReader(append([]byte(nil), rest...)), t.r)
}

// discardLine drops r up to and including the next newline.
func discardLine(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	for {
		_, err := br.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return br
		}
	}
}
