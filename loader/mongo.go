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

package loader

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aaronlmathis/csvclean/core"
)

// MongoConnectOptions configures ConnectMongo.
type MongoConnectOptions struct {
	URI          string
	MaxPoolSize  uint64
	MinPoolSize  uint64
	Timeout      time.Duration
	Username     string
	Password     string
	AuthDatabase string
	TLS          bool
	TLSInsecure  bool
}

// ConnectMongo connects to MongoDB and pings the deployment.
func ConnectMongo(ctx context.Context, opts MongoConnectOptions) (*mongo.Client, error) {
	if opts.URI == "" {
		return nil, &LoaderError{Op: "validate", Err: fmt.Errorf("uri is required")}
	}

	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(opts.MinPoolSize)
	}
	if opts.Timeout > 0 {
		clientOpts.SetConnectTimeout(opts.Timeout)
	}
	if opts.Username != "" && opts.Password != "" {
		clientOpts.SetAuth(options.Credential{
			Username:   opts.Username,
			Password:   opts.Password,
			AuthSource: opts.AuthDatabase,
		})
	}
	if opts.TLS {
		clientOpts.SetTLSConfig(&tls.Config{InsecureSkipVerify: opts.TLSInsecure})
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, &LoaderError{Op: "connect", Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, &LoaderError{Op: "ping", Err: err}
	}
	return client, nil
}

// MongoLoader inserts one document per row into a collection, keyed by the header.
type MongoLoader struct {
	Client    *mongo.Client
	Database  string
	Allow     AllowList
	BatchSize int
}

// Load implements Loader. table names the collection.
func (l *MongoLoader) Load(ctx context.Context, path, table string) (LoadResult, error) {
	start := time.Now()
	res := LoadResult{Table: table}
	if err := l.Allow.Check(table); err != nil {
		return res, &LoaderError{Op: "validate", Table: table, Err: err}
	}
	if l.Database == "" {
		return res, &LoaderError{Op: "validate", Table: table, Err: fmt.Errorf("database name is required")}
	}

	batchSize := l.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}
	src, err := openSource(path, batchSize)
	if err != nil {
		return res, &LoaderError{Op: "open", Table: table, Err: err}
	}
	defer src.Close()

	coll := l.Client.Database(l.Database).Collection(table)
	insertOpts := options.InsertMany().SetOrdered(true)
	for {
		b, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, &LoaderError{Op: "read", Table: table, Err: err}
		}
		if _, err := coll.InsertMany(ctx, documents(b), insertOpts); err != nil {
			return res, &LoaderError{Op: "insert", Table: table, Err: err}
		}
		res.RowsLoaded += int64(len(b.Rows))
	}

	res.RowsSkipped = src.Skipped()
	res.Duration = time.Since(start)
	return res, nil
}

// documents converts a batch to ordered BSON documents, one per row.
func documents(b core.Batch) []interface{} {
	docs := make([]interface{}, len(b.Rows))
	for i, row := range b.Rows {
		doc := make(bson.D, len(b.Header))
		for c, name := range b.Header {
			doc[c] = bson.E{Key: name, Value: row[c]}
		}
		docs[i] = doc
	}
	return docs
}
