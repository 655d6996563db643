// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/opendtn/dtn7-core/pkg/bpv7"
)

func newShowCommand() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Print a human-readable version of Bundles",
		Long: `Print each Bundle of FILE, or of stdin for -, as JSON.

Invalid or incomplete input results in an error after all preceding Bundles
were printed. CRC values are always checked against the received bytes.

With --verify, a note is written to stderr for each Bundle whose CRC values
do not hold for its canonical re-encoding. Such a Bundle was received with a
non-canonical encoding and must be re-encoded with fresh CRC values before
being sent on.`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return showBundles(f, cmd.OutOrStdout(), cmd.ErrOrStderr(), verify)
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Also check the CRC values against the canonical re-encoding")

	return cmd
}

// showBundles writes all Bundles read from r as JSON to w. If verify is set,
// Bundles not surviving a canonical re-encoding are noted in notes.
func showBundles(r io.Reader, w, notes io.Writer, verify bool) error {
	stream := bpv7.NewReader(r, nil)

	for i := 0; ; i++ {
		b, err := stream.Next()
		if errors.Is(err, io.EOF) {
			if i == 0 {
				return fmt.Errorf("input contains no Bundle")
			}
			return nil
		} else if err != nil {
			return fmt.Errorf("Bundle %d: %w", i, err)
		}

		// Decoding already checked the CRC values over the received bytes.
		if verify {
			if err := b.CheckValid(); err != nil {
				if _, werr := fmt.Fprintf(notes, "Bundle %d is not canonically encoded, its CRC values differ after re-encoding: %v\n", i, err); werr != nil {
					return werr
				}
			}
		}

		data, err := b.MarshalJSON()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, string(data)); err != nil {
			return err
		}
	}
}
