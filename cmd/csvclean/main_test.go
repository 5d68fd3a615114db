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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/csvclean/config"
	"github.com/aaronlmathis/csvclean/transform"
)

func TestPairJobs(t *testing.T) {
	jobs, err := pairJobs([]string{"a.csv", "a.out.csv", "b.csv", "b.out.csv"})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "b.csv", jobs[1].Input)
	assert.Equal(t, "b.out.csv", jobs[1].Output)

	_, err = pairJobs([]string{"a.csv"})
	assert.Error(t, err)
	_, err = pairJobs(nil)
	assert.Error(t, err)
}

func TestRunOptions(t *testing.T) {
	rc := config.Default().Run
	opts, err := runOptions(rc)
	require.NoError(t, err)
	assert.NotEmpty(t, opts)

	rc.Normalize = "nfc"
	rc.SanitizeMode = transform.ModeEscape
	_, err = runOptions(rc)
	require.NoError(t, err)

	rc.Normalize = "nfx"
	_, err = runOptions(rc)
	assert.Error(t, err)

	rc = config.Default().Run
	rc.Format = "xlsx"
	_, err = runOptions(rc)
	assert.Error(t, err)

	rc = config.Default().Run
	rc.Delimiter = '"'
	_, err = runOptions(rc)
	assert.Error(t, err)
}

func TestCleanCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	out := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(in, []byte("id,note\n1,bad\x07char\n2,ok\n"), 0o644))

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"clean", "--batch-size", "1", "--log-level", "error", in, out})
	require.NoError(t, root.Execute())

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "id,note\n1,badchar\n2,ok\n", string(got))
	assert.Contains(t, stdout.String(), "2 written, 0 skipped")
}

func TestCleanCommand_ReportsFailure(t *testing.T) {
	dir := t.TempDir()
	var stdout bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"clean", "--log-level", "error", filepath.Join(dir, "missing.csv"), filepath.Join(dir, "out.csv")})

	require.Error(t, root.Execute())
	assert.Contains(t, stdout.String(), "FAIL")
	assert.Contains(t, stdout.String(), "path_not_found")
	_, err := os.Stat(filepath.Join(dir, "out.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestProbeCommand(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(in, []byte("id,name\n1,caf\xc3\xa9\n"), 0o644))

	var stdout bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"probe", in})
	require.NoError(t, root.Execute())
	assert.Contains(t, stdout.String(), "encoding:   utf-8")
}
