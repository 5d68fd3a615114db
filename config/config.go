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

// Package config loads CSVClean's command-line configuration.
//
// Values are resolved in order: `default` struct tags, an optional YAML file, then
// environment variables named by `env` tags. Command-line flags are applied on top by the caller.
package config

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/aaronlmathis/csvclean/charset"
	"github.com/aaronlmathis/csvclean/transform"
	"github.com/aaronlmathis/csvclean/writers"
)

// Config holds all command-line configuration.
type Config struct {
	Run     RunConfig     `yaml:"run"`
	Logging LoggingConfig `yaml:"logging"`
	S3      S3Config      `yaml:"s3"`
	Load    LoadConfig    `yaml:"load"`
}

// RunConfig holds normalization settings shared by every job.
type RunConfig struct {
	// BatchSize is the number of data records per batch
	BatchSize int `yaml:"batch_size" env:"CSVCLEAN_BATCH_SIZE" default:"100000"`

	// Encoding is the declared source encoding, or "auto" to take the probe's guess
	Encoding string `yaml:"encoding" env:"CSVCLEAN_ENCODING" default:"utf-8"`

	// DecodePolicy is "replace" or "strict"
	DecodePolicy charset.Policy `yaml:"decode_policy" env:"CSVCLEAN_DECODE_POLICY" default:"replace"`

	// SampleBytes is the probe budget
	SampleBytes int `yaml:"sample_bytes" env:"CSVCLEAN_SAMPLE_BYTES" default:"1048576"`

	// Delimiter is a single character, or "tab"
	Delimiter Delimiter `yaml:"delimiter" env:"CSVCLEAN_DELIMITER" default:","`

	LazyQuotes bool `yaml:"lazy_quotes" env:"CSVCLEAN_LAZY_QUOTES" default:"false"`

	// Format is "csv" or "parquet"
	Format writers.Format `yaml:"format" env:"CSVCLEAN_FORMAT" default:"csv"`

	// SanitizeMode is "strip" or "escape"
	SanitizeMode transform.Mode `yaml:"sanitize_mode" env:"CSVCLEAN_SANITIZE_MODE" default:"strip"`

	// Normalize is an optional Unicode normalization form: nfc, nfd, nfkc or nfkd
	Normalize string `yaml:"normalize" env:"CSVCLEAN_NORMALIZE"`

	// Parallelism bounds how many jobs run at once
	Parallelism int `yaml:"parallelism" env:"CSVCLEAN_PARALLELISM" default:"4"`

	// Timeout bounds a whole invocation; zero means none
	Timeout time.Duration `yaml:"timeout" env:"CSVCLEAN_TIMEOUT" default:"0s"`
}

// Delimiter is a field separator rune. It is written as a single character, "tab" or `\t`.
type Delimiter rune

func (d *Delimiter) UnmarshalText(b []byte) error {
	s := string(b)
	if s == "tab" || s == `\t` {
		*d = '\t'
		return nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	c, _ := utf8.DecodeRuneInString(s)
	if !validDelimiter(c) {
		return fmt.Errorf("delimiter %q is not allowed", s)
	}
	*d = Delimiter(c)
	return nil
}

func (d Delimiter) String() string {
	if d == '\t' {
		return "tab"
	}
	return string(rune(d))
}

func validDelimiter(c rune) bool {
	return c != 0 && c != '"' && c != '\r' && c != '\n' && c != utf8.RuneError && utf8.ValidRune(c)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"CSVCLEAN_LOG_LEVEL" default:"info"`
	Format string `yaml:"format" env:"CSVCLEAN_LOG_FORMAT" default:"console"`
}

// S3Config holds settings for s3:// inputs and published outputs.
type S3Config struct {
	Region    string `yaml:"region" env:"CSVCLEAN_S3_REGION" envAlt:"AWS_REGION"`
	Profile   string `yaml:"profile" env:"CSVCLEAN_S3_PROFILE" envAlt:"AWS_PROFILE"`
	Endpoint  string `yaml:"endpoint" env:"CSVCLEAN_S3_ENDPOINT"`
	PathStyle bool   `yaml:"path_style" env:"CSVCLEAN_S3_PATH_STYLE" default:"false"`
}

// LoadConfig holds settings for the load command.
type LoadConfig struct {
	// Driver is "duckdb", "postgres" or "mongo"
	Driver string `yaml:"driver" env:"CSVCLEAN_LOAD_DRIVER" default:"duckdb"`

	// DSN is the database path (duckdb), connection string (postgres) or URI (mongo)
	DSN string `yaml:"dsn" env:"CSVCLEAN_LOAD_DSN"`

	// Database is the MongoDB database name
	Database string `yaml:"database" env:"CSVCLEAN_LOAD_DATABASE"`

	// Tables, when set, is the only set of table names loads may target
	Tables []string `yaml:"tables" env:"CSVCLEAN_LOAD_TABLES"`

	Truncate  bool `yaml:"truncate" env:"CSVCLEAN_LOAD_TRUNCATE" default:"false"`
	BatchSize int  `yaml:"batch_size" env:"CSVCLEAN_LOAD_BATCH_SIZE" default:"10000"`
}
