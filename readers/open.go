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
	"fmt"
	"io"
	"os"
	"strings"
)

// Opener opens a fresh, forward-only stream over an input location for every call.
type Opener interface {
	// Open returns the whole input.
	Open(ctx context.Context, location string) (io.ReadCloser, error)
	// OpenHead returns at most the first n bytes of the input.
	OpenHead(ctx context.Context, location string, n int64) (io.ReadCloser, error)
}

// LocalOpener opens files on the local filesystem.
type LocalOpener struct{}

// Open implements Opener.
func (LocalOpener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(location)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", location)
	}
	return f, nil
}

// OpenHead implements Opener.
func (o LocalOpener) OpenHead(ctx context.Context, location string, n int64) (io.ReadCloser, error) {
	f, err := o.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	return limitedReadCloser{Reader: io.LimitReader(f, n), Closer: f}, nil
}

type limitedReadCloser struct {
	io.Reader
	io.Closer
}

// IsS3 reports whether location is an s3:// URI.
func IsS3(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// OpenerFor picks the opener for location: S3 for s3:// URIs, the local filesystem otherwise.
func OpenerFor(location string, s3opts ...S3Option) (Opener, error) {
	if IsS3(location) {
		return NewS3Opener(s3opts...)
	}
	return LocalOpener{}, nil
}
