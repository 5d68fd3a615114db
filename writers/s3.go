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

package writers

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/csvclean/readers"
)

// S3Putter is the subset of the S3 client used by S3Publisher.
type S3Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads finished output files to S3 so a remote loader can pick them up.
type S3Publisher struct {
	client      S3Putter
	contentType string
}

// NewS3Publisher builds a publisher from S3 options and the default credential chain.
func NewS3Publisher(options ...readers.S3Option) (*S3Publisher, error) {
	client, err := readers.NewS3Client(options...)
	if err != nil {
		return nil, err
	}
	return NewS3PublisherWithClient(client), nil
}

// NewS3PublisherWithClient wraps an existing client.
func NewS3PublisherWithClient(client S3Putter) *S3Publisher {
	return &S3Publisher{client: client, contentType: "text/csv; charset=utf-8"}
}

// Publish uploads the local file at path to the s3:// destination.
func (p *S3Publisher) Publish(ctx context.Context, path, destination string) error {
	bucket, key, err := readers.ParseS3URI(destination)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return &readers.S3Error{Op: "open_file", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &readers.S3Error{Op: "stat_file", Err: err}
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentTypeFor(path, p.contentType)),
	})
	if err != nil {
		return &readers.S3Error{Op: "put_object", Err: fmt.Errorf("failed to upload %s to %s: %w", path, destination, err)}
	}
	return nil
}

func contentTypeFor(path, fallback string) string {
	if IsParquetPath(path) {
		return "application/vnd.apache.parquet"
	}
	return fallback
}
