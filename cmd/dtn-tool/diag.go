// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"io"

	fxcbor "github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"
)

func newDiagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diag FILE",
		Short: "Print CBOR items in diagnostic notation",
		Long: `Print every CBOR item of FILE, or of stdin for -, in the diagnostic notation
of RFC 8949, one item per line. This works on any CBOR input, not only on
valid Bundles.`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			data, err := io.ReadAll(f)
			if err != nil {
				return err
			}
			return diagnose(data, cmd.OutOrStdout())
		},
	}

	return cmd
}

// diagnose writes each CBOR item of data in diagnostic notation to w.
func diagnose(data []byte, w io.Writer) error {
	if len(data) == 0 {
		return fmt.Errorf("empty input")
	}

	dm, err := fxcbor.DiagOptions{
		ByteStringEncoding: fxcbor.ByteStringBase16Encoding,
	}.DiagMode()
	if err != nil {
		return err
	}

	for rest := data; len(rest) > 0; {
		offset := len(data) - len(rest)

		var notation string
		if notation, rest, err = dm.DiagnoseFirst(rest); err != nil {
			return fmt.Errorf("offset %d: %w", offset, err)
		}

		if _, err := fmt.Fprintln(w, notation); err != nil {
			return err
		}
	}
	return nil
}
