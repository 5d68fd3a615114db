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
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Error provides structured error information for S3 operations.
type S3Error struct {
	Op  string // Operation that failed (e.g., "get_object", "parse_uri")
	Err error  // Underlying error
}

func (e *S3Error) Error() string {
	return fmt.Sprintf("s3 %s: %v", e.Op, e.Err)
}

func (e *S3Error) Unwrap() error {
	return e.Err
}

// S3Options configures access to S3 or an S3-compatible service.
type S3Options struct {
	Region         string          // AWS region
	Profile        string          // AWS profile to use
	Credentials    aws.Credentials // Explicit credentials
	EndpointURL    string          // Custom S3 endpoint (for S3-compatible services)
	ForcePathStyle bool            // Use path-style addressing
}

// S3Option represents a configuration function for S3 access.
type S3Option func(*S3Options)

func WithS3Region(region string) S3Option {
	return func(opts *S3Options) {
		opts.Region = region
	}
}

func WithS3Profile(profile string) S3Option {
	return func(opts *S3Options) {
		opts.Profile = profile
	}
}

func WithS3Credentials(creds aws.Credentials) S3Option {
	return func(opts *S3Options) {
		opts.Credentials = creds
	}
}

func WithS3Endpoint(endpoint string) S3Option {
	return func(opts *S3Options) {
		opts.EndpointURL = endpoint
	}
}

func WithS3PathStyle(pathStyle bool) S3Option {
	return func(opts *S3Options) {
		opts.ForcePathStyle = pathStyle
	}
}

// S3Getter is the subset of the S3 client used by S3Opener.
type S3Getter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Opener streams objects from S3. Each call issues its own GetObject request.
type S3Opener struct {
	client S3Getter
}

// NewS3Opener loads the default AWS configuration and builds a client.
func NewS3Opener(options ...S3Option) (*S3Opener, error) {
	client, err := NewS3Client(options...)
	if err != nil {
		return nil, err
	}
	return &S3Opener{client: client}, nil
}

// NewS3OpenerWithClient wraps an existing client.
func NewS3OpenerWithClient(client S3Getter) *S3Opener {
	return &S3Opener{client: client}
}

// NewS3Client creates an S3 client from options and the default credential chain.
func NewS3Client(options ...S3Option) (*s3.Client, error) {
	var opts S3Options
	for _, option := range options {
		option(&opts)
	}

	cfg, err := createAWSConfig(opts)
	if err != nil {
		return nil, &S3Error{Op: "create_aws_config", Err: err}
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	}), nil
}

// Open implements Opener.
func (s *S3Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	return s.get(ctx, location, "")
}

// OpenHead implements Opener using a ranged GET so only the sample crosses the network.
func (s *S3Opener) OpenHead(ctx context.Context, location string, n int64) (io.ReadCloser, error) {
	if n <= 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}
	return s.get(ctx, location, fmt.Sprintf("bytes=0-%d", n-1))
}

func (s *S3Opener) get(ctx context.Context, location, byteRange string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URI(location)
	if err != nil {
		return nil, err
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if byteRange != "" {
		input.Range = aws.String(byteRange)
	}

	result, err := s.client.GetObject(ctx, input)
	if err != nil {
		return nil, &S3Error{Op: "get_object", Err: fmt.Errorf("failed to get object %s: %w", location, err)}
	}
	return result.Body, nil
}

// ParseS3URI splits s3://bucket/key into its parts.
func ParseS3URI(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", &S3Error{Op: "parse_uri", Err: err}
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", &S3Error{Op: "parse_uri", Err: fmt.Errorf("not an s3 uri: %q", location)}
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", &S3Error{Op: "parse_uri", Err: fmt.Errorf("missing object key in %q", location)}
	}
	return u.Host, key, nil
}

// createAWSConfig creates AWS configuration from options
func createAWSConfig(opts S3Options) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}

	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}

	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return aws.Config{}, err
	}

	if opts.Credentials.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)
	}

	return cfg, nil
}
