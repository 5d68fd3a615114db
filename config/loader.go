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

package config

import (
	"encoding"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aaronlmathis/csvclean/writers"
)

// Load builds a Config from defaults, the YAML file at path (skipped when path is empty) and
// the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := walk(reflect.ValueOf(cfg).Elem(), applyDefault); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := walk(reflect.ValueOf(cfg).Elem(), applyEnv); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Default returns a Config holding only the tag defaults.
func Default() *Config {
	cfg := &Config{}
	if err := walk(reflect.ValueOf(cfg).Elem(), applyDefault); err != nil {
		panic(fmt.Sprintf("invalid config default: %v", err))
	}
	return cfg
}

// walk calls fn for every settable leaf field, recursing into nested structs.
func walk(v reflect.Value, fn func(reflect.StructField, reflect.Value) error) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			if err := walk(fieldVal, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(field, fieldVal); err != nil {
			return err
		}
	}
	return nil
}

func applyDefault(field reflect.StructField, v reflect.Value) error {
	def, ok := field.Tag.Lookup("default")
	if !ok || def == "" {
		return nil
	}
	if err := setField(v, def); err != nil {
		return fmt.Errorf("default for %s=%q: %w", field.Name, def, err)
	}
	return nil
}

func applyEnv(field reflect.StructField, v reflect.Value) error {
	envName := field.Tag.Get("env")
	if envName == "" {
		return nil
	}
	value, ok := os.LookupEnv(envName)
	if !ok || value == "" {
		if alt := field.Tag.Get("envAlt"); alt != "" {
			value, ok = os.LookupEnv(alt)
		}
	}
	if !ok || value == "" {
		return nil
	}
	if err := setField(v, value); err != nil {
		return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
	}
	return nil
}

// setField sets a reflect.Value from a string. Types with their own text parser
// (decode policy, output format, sanitize mode, delimiter) parse themselves.
func setField(field reflect.Value, value string) error {
	if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
		return u.UnmarshalText([]byte(value))
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// Comma returns the delimiter as a rune.
func (r RunConfig) Comma() (rune, error) {
	if !validDelimiter(rune(r.Delimiter)) {
		return 0, fmt.Errorf("delimiter %q is not allowed", r.Delimiter.String())
	}
	return rune(r.Delimiter), nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []error

	if c.Run.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size (%d) must be positive", c.Run.BatchSize))
	}
	if c.Run.SampleBytes <= 0 {
		errs = append(errs, fmt.Errorf("sample_bytes (%d) must be positive", c.Run.SampleBytes))
	}
	if c.Run.Parallelism <= 0 {
		errs = append(errs, fmt.Errorf("parallelism (%d) must be positive", c.Run.Parallelism))
	}
	if c.Run.Timeout < 0 {
		errs = append(errs, errors.New("timeout must be non-negative"))
	}
	if _, err := c.Run.Comma(); err != nil {
		errs = append(errs, err)
	}
	if _, err := writers.ParseFormat(string(c.Run.Format)); err != nil {
		errs = append(errs, err)
	}
	if c.Run.Normalize != "" && !oneOf(c.Run.Normalize, "nfc", "nfd", "nfkc", "nfkd") {
		errs = append(errs, fmt.Errorf("normalize %q must be one of nfc, nfd, nfkc, nfkd", c.Run.Normalize))
	}

	if !oneOf(c.Logging.Level, "debug", "info", "warn", "warning", "error") {
		errs = append(errs, fmt.Errorf("logging.level %q is not a known level", c.Logging.Level))
	}
	if !oneOf(c.Logging.Format, "console", "json") {
		errs = append(errs, fmt.Errorf("logging.format %q must be console or json", c.Logging.Format))
	}

	if !oneOf(c.Load.Driver, "duckdb", "postgres", "mongo") {
		errs = append(errs, fmt.Errorf("load.driver %q must be duckdb, postgres or mongo", c.Load.Driver))
	}
	if c.Load.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("load.batch_size (%d) must be positive", c.Load.BatchSize))
	}

	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
