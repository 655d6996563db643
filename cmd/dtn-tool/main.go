// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "dtn-tool",
		Short: "Create, inspect and reassemble Bundles",
		Long: `dtn-tool works with CBOR encoded Bundle Protocol Version 7 Bundles.

Bundle files might contain several concatenated Bundles, e.g., all fragments
of a Bundle. A filename of "-" refers to stdin or stdout.`,

		SilenceUsage: true,

		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetOutput(os.Stderr)
			if verbose {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.WarnLevel)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newCreateCommand(),
		newShowCommand(),
		newDiagCommand(),
		newReassembleCommand(),
		newExchangeCommand(),
	)

	return cmd
}

// openInput opens a file for reading, "-" refers to stdin.
func openInput(name string) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(name)
}

// writeOutput writes data to a file, "-" refers to stdout.
func writeOutput(name string, data []byte) error {
	if name == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(name, data, 0644)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
