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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/csvclean/probe"
	"github.com/aaronlmathis/csvclean/readers"
)

func newProbeCmd(a *app) *cobra.Command {
	var sampleBytes int

	cmd := &cobra.Command{
		Use:   "probe FILE",
		Short: "Guess the encoding of a file from its first bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			budget := a.cfg.Run.SampleBytes
			if cmd.Flags().Changed("sample-bytes") {
				budget = sampleBytes
			}

			opener, err := readers.OpenerFor(args[0], s3Options(a.cfg.S3)...)
			if err != nil {
				return err
			}

			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			head, err := opener.OpenHead(ctx, args[0], int64(budget))
			if err != nil {
				return err
			}
			defer head.Close()

			res, err := probe.Probe(head, budget)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "encoding:   %s\nconfidence: %.2f\nsampled:    %d bytes\nbom:        %t\n",
				res.Encoding, res.Confidence, res.SampleBytes, res.BOM)
			return nil
		},
	}

	cmd.Flags().IntVar(&sampleBytes, "sample-bytes", 0, "Bytes to sample")
	return cmd
}
