// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/spf13/cobra"

	"github.com/opendtn/dtn7-core/pkg/bpv7"
)

type createOptions struct {
	crc             string
	lifetime        time.Duration
	hopLimit        uint64
	mustNotFragment bool
	fragmentMtu     int
}

func parseCRCType(s string) (bpv7.CRCType, error) {
	for _, crcType := range []bpv7.CRCType{bpv7.CRCNo, bpv7.CRC16, bpv7.CRC32} {
		if crcType.String() == s {
			return crcType, nil
		}
	}
	return bpv7.CRCNo, fmt.Errorf("unknown CRC type %q, select one of no, 16, 32", s)
}

func newCreateCommand() *cobra.Command {
	var opts createOptions

	cmd := &cobra.Command{
		Use:   "create SENDER RECEIVER INPUT OUTPUT",
		Short: "Create a new Bundle",
		Long: `Create a new Bundle, addressed from SENDER to RECEIVER, with the stdin (-) or
the given file INPUT as payload. This Bundle will be saved as OUTPUT.

With --fragment-mtu, the Bundle is fragmented and each fragment is written to
OUTPUT.0, OUTPUT.1 and so on.`,

		Example: `  # Create a Bundle from stdin
  echo hello | dtn-tool create dtn://src/ dtn://dst/ - hello.bundle

  # Create fragments of at most 1024 bytes
  dtn-tool create --fragment-mtu 1024 dtn://src/ dtn://dst/ image.png image.bundle`,

		Args: cobra.ExactArgs(4),

		RunE: func(cmd *cobra.Command, args []string) error {
			return createBundle(args[0], args[1], args[2], args[3], opts)
		},
	}

	cmd.Flags().StringVar(&opts.crc, "crc", bpv7.CRC32.String(), "CRC type of all blocks: no, 16 or 32")
	cmd.Flags().DurationVar(&opts.lifetime, "lifetime", 24*time.Hour, "Bundle lifetime")
	cmd.Flags().Uint64Var(&opts.hopLimit, "hop-limit", 64, "Hop limit, zero omits the hop count block")
	cmd.Flags().BoolVar(&opts.mustNotFragment, "must-not-fragment", false, "Forbid fragmentation")
	cmd.Flags().IntVar(&opts.fragmentMtu, "fragment-mtu", 0, "Fragment into Bundles of at most this size")

	return cmd
}

func buildBundle(sender, receiver string, payload []byte, opts createOptions) (*bpv7.Bundle, error) {
	crcType, err := parseCRCType(opts.crc)
	if err != nil {
		return nil, err
	}

	var flags bpv7.BundleControlFlags
	if opts.mustNotFragment {
		flags |= bpv7.MustNotFragmented
	}

	b := bpv7.New()
	if err := b.AddPrimaryBlock(bpv7.PrimaryBlockParams{
		Flags:        flags,
		CRCType:      crcType,
		Destination:  receiver,
		Source:       sender,
		ReportTo:     sender,
		CreationTime: uint64(bpv7.DtnTimeNow()),
		Lifetime:     uint64(opts.lifetime.Milliseconds()),
	}); err != nil {
		return nil, err
	}

	if opts.hopLimit > 0 {
		if err := b.AddHopCount(bpv7.HopCount{Limit: opts.hopLimit}, crcType); err != nil {
			return nil, err
		}
	}

	if err := b.AddPayload(payload, 0, crcType); err != nil {
		return nil, err
	}

	if err := b.UpdateCRC(); err != nil {
		return nil, err
	}
	return b, b.CheckValid()
}

// createBundle for the "create" CLI option.
func createBundle(sender, receiver, input, output string, opts createOptions) error {
	f, err := openInput(input)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	payload, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	b, err := buildBundle(sender, receiver, payload, opts)
	if err != nil {
		return fmt.Errorf("building Bundle: %w", err)
	}

	if opts.fragmentMtu <= 0 {
		data, err := b.Marshal()
		if err != nil {
			return err
		}
		return writeOutput(output, data)
	}

	frags, err := b.Fragment(opts.fragmentMtu)
	if err != nil {
		return fmt.Errorf("fragmenting Bundle: %w", err)
	}

	for i, frag := range frags {
		data, err := frag.Marshal()
		if err != nil {
			return err
		}

		name := output
		if output != "-" {
			name = fmt.Sprintf("%s.%d", output, i)
		}
		if err := writeOutput(name, data); err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"file":     name,
			"fragment": frag.ID(),
			"size":     len(data),
		}).Debug("Wrote fragment")
	}
	return nil
}
