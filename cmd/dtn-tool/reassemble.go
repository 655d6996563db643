// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/spf13/cobra"

	"github.com/opendtn/dtn7-core/pkg/bpv7"
	"github.com/opendtn/dtn7-core/pkg/reassembly"
)

func newReassembleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reassemble OUTPUT FILE...",
		Short: "Reassemble fragments into the original payload",
		Long: `Push all Bundles of the given FILEs through a reassembly buffer and write the
first complete payload to OUTPUT, or to stdout for -. The fragments might be
given in any order, duplicates are ignored.`,

		Example: `  dtn-tool reassemble image.png image.bundle.*`,

		Args: cobra.MinimumNArgs(2),

		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := reassembleFiles(args[1:])
			if err != nil {
				return err
			}
			return writeOutput(args[0], payload)
		},
	}

	return cmd
}

// reassembleFiles returns the first payload completed by the Bundles of all files.
func reassembleFiles(files []string) (payload []byte, err error) {
	var delivered bool

	buffer, err := reassembly.New(reassembly.DefaultConfig(), func(p []byte, source, destination string) {
		if delivered {
			log.WithField("source", source).Warn("Ignoring another complete payload")
			return
		}

		log.WithFields(log.Fields{
			"source":      source,
			"destination": destination,
			"size":        len(p),
		}).Debug("Reassembled payload")

		payload, delivered = p, true
	})
	if err != nil {
		return
	}
	defer buffer.Close()

	for _, file := range files {
		if err = pushFile(buffer, file); err != nil {
			return
		}
	}

	if !delivered {
		err = fmt.Errorf("payload is incomplete, %d partial payloads remain", buffer.Len())
	}
	return
}

func pushFile(buffer *reassembly.Buffer, file string) error {
	f, err := openInput(file)
	if err != nil {
		return err
	}
	defer f.Close()

	stream := bpv7.NewReader(f, nil)
	for {
		b, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}

		if err := buffer.Push(b); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
	}
}
