// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/opendtn/dtn7-core/pkg/cbor"
)

var (
	// ErrNoPrimaryBlock is returned when a Bundle has no primary block yet.
	ErrNoPrimaryBlock = errors.New("bundle has no primary block")

	// ErrPrimaryBlockExists is returned when adding a second primary block.
	ErrPrimaryBlockExists = errors.New("bundle already has a primary block")

	// ErrNoPayloadBlock is returned when a Bundle has no payload block.
	ErrNoPayloadBlock = errors.New("bundle has no payload block")

	// ErrPayloadBlockExists is returned when adding a second payload block.
	ErrPayloadBlockExists = errors.New("bundle already has a payload block")

	// ErrBlockNumber is returned for a taken or reserved block number.
	ErrBlockNumber = errors.New("invalid block number")

	// ErrCRCMismatch is returned if a received CRC value differs from the calculated one.
	ErrCRCMismatch = errors.New("CRC mismatch")
)

// ExtBlockTypePayloadBlock is the block type code of the payload block.
const ExtBlockTypePayloadBlock uint64 = 1

// Bundle is a single CBOR array of blocks. The first element is the primary
// block, followed by at least one canonical block. The payload block is the
// last one.
//
// A Bundle is created empty by New and populated by AddPrimaryBlock and
// AddBlock or one of its variants. A Bundle is not safe for concurrent use.
type Bundle struct {
	blocks *cbor.Array
}

// New creates an empty Bundle.
func New() *Bundle {
	return &Bundle{blocks: cbor.NewArray()}
}

// Raw is the Bundle's CBOR array. Changes apply to the Bundle.
func (b *Bundle) Raw() *cbor.Array {
	return b.blocks
}

// Copy returns a deep copy of this Bundle.
func (b *Bundle) Copy() *Bundle {
	return &Bundle{blocks: cbor.Copy(b.blocks).(*cbor.Array)}
}

// primary returns the primary block or nil.
func (b *Bundle) primary() *cbor.Array {
	pb, _ := b.blocks.Get(0).(*cbor.Array)
	return pb
}

func (b *Bundle) primaryUInt(pos int) uint64 {
	if pb := b.primary(); pb != nil {
		v, _ := uintField(pb, pos)
		return v
	}
	return 0
}

func (b *Bundle) primaryEndpoint(pos int) string {
	if pb := b.primary(); pb != nil {
		s, _ := cbor.AsString(pb.Get(pos))
		return s
	}
	return ""
}

func (b *Bundle) setPrimaryField(pos int, v cbor.Value) error {
	pb := b.primary()
	if pb == nil {
		return ErrNoPrimaryBlock
	}
	return pb.Set(pos, v)
}

func (b *Bundle) setPrimaryEndpoint(pos int, eid string) error {
	pb := b.primary()
	if pb == nil {
		return ErrNoPrimaryBlock
	}
	if _, isText := pb.Get(pos).(cbor.Text); isText {
		return pb.Set(pos, cbor.Text(eid))
	}
	return pb.Set(pos, cbor.Bytes(eid))
}

// AddPrimaryBlock creates the primary block. It fails if there already is one.
func (b *Bundle) AddPrimaryBlock(params PrimaryBlockParams) error {
	if b.blocks.Len() > 0 {
		return ErrPrimaryBlockExists
	}
	if err := params.CRCType.CheckValid(); err != nil {
		return err
	}

	b.blocks.Push(newPrimaryBlock(params))
	return nil
}

// Version of the Bundle Protocol, 7.
func (b *Bundle) Version() uint64 {
	return b.primaryUInt(pbVersion)
}

// Flags are the Bundle Processing Control Flags.
func (b *Bundle) Flags() BundleControlFlags {
	return BundleControlFlags(b.primaryUInt(pbFlags))
}

// SetFlags replaces the Bundle Processing Control Flags. Setting or clearing
// IsFragment adds or removes the fragment fields.
func (b *Bundle) SetFlags(flags BundleControlFlags) error {
	pb := b.primary()
	if pb == nil {
		return ErrNoPrimaryBlock
	}

	old := b.Flags()
	_ = pb.Set(pbFlags, cbor.UInt(flags))

	switch crcType := b.CRCType(); {
	case flags.Has(IsFragment) && !old.Has(IsFragment):
		_ = pb.Insert(pbFragmentOffset, cbor.UInt(0))
		_ = pb.Insert(pbTotalDataLength, cbor.UInt(0))
		resizeCRCSlot(pb, primaryBlockLen(flags, CRCNo), crcType)

	case !flags.Has(IsFragment) && old.Has(IsFragment):
		if pb.Len() >= pbTotalDataLength+1 {
			_, _ = pb.Remove(pbTotalDataLength)
			_, _ = pb.Remove(pbFragmentOffset)
		}
	}
	return nil
}

// IsFragment checks if this Bundle is a fragment.
func (b *Bundle) IsFragment() bool {
	return b.Flags().Has(IsFragment)
}

// CRCType of the primary block.
func (b *Bundle) CRCType() CRCType {
	return CRCType(b.primaryUInt(pbCRCType))
}

// SetCRCType changes the primary block's CRC type and resizes its CRC field.
func (b *Bundle) SetCRCType(crcType CRCType) error {
	if err := crcType.CheckValid(); err != nil {
		return err
	}
	if err := b.setPrimaryField(pbCRCType, cbor.UInt(crcType)); err != nil {
		return err
	}

	resizeCRCSlot(b.primary(), primaryBlockLen(b.Flags(), CRCNo), crcType)
	return nil
}

// SetCRCTypeAll changes the CRC type of all blocks.
func (b *Bundle) SetCRCTypeAll(crcType CRCType) error {
	if err := b.SetCRCType(crcType); err != nil {
		return err
	}
	for _, cb := range b.Blocks() {
		if err := cb.SetCRCType(crcType); err != nil {
			return err
		}
	}
	return nil
}

// Destination endpoint of this Bundle.
func (b *Bundle) Destination() string {
	return b.primaryEndpoint(pbDestination)
}

// SetDestination replaces the destination endpoint.
func (b *Bundle) SetDestination(eid string) error {
	return b.setPrimaryEndpoint(pbDestination, eid)
}

// Source endpoint of this Bundle.
func (b *Bundle) Source() string {
	return b.primaryEndpoint(pbSource)
}

// SetSource replaces the source endpoint.
func (b *Bundle) SetSource(eid string) error {
	return b.setPrimaryEndpoint(pbSource, eid)
}

// ReportTo endpoint of this Bundle.
func (b *Bundle) ReportTo() string {
	return b.primaryEndpoint(pbReportTo)
}

// SetReportTo replaces the report-to endpoint.
func (b *Bundle) SetReportTo(eid string) error {
	return b.setPrimaryEndpoint(pbReportTo, eid)
}

// Timestamp returns the creation time and sequence number.
func (b *Bundle) Timestamp() (creationTime, sequence uint64) {
	pb := b.primary()
	if pb == nil {
		return
	}
	if ts, ok := pb.Get(pbTimestamp).(*cbor.Array); ok {
		creationTime, _ = cbor.AsUInt(ts.Get(0))
		sequence, _ = cbor.AsUInt(ts.Get(1))
	}
	return
}

// SetTimestamp replaces the creation time and sequence number.
func (b *Bundle) SetTimestamp(creationTime, sequence uint64) error {
	return b.setPrimaryField(pbTimestamp, cbor.NewArray(cbor.UInt(creationTime), cbor.UInt(sequence)))
}

// Lifetime of this Bundle in milliseconds.
func (b *Bundle) Lifetime() uint64 {
	return b.primaryUInt(pbLifetime)
}

// SetLifetime replaces the lifetime.
func (b *Bundle) SetLifetime(lifetime uint64) error {
	return b.setPrimaryField(pbLifetime, cbor.UInt(lifetime))
}

// FragmentOffset of a fragment's payload within the original payload.
func (b *Bundle) FragmentOffset() uint64 {
	if !b.IsFragment() {
		return 0
	}
	return b.primaryUInt(pbFragmentOffset)
}

// TotalDataLength is the length of the original payload of a fragment.
func (b *Bundle) TotalDataLength() uint64 {
	if !b.IsFragment() {
		return 0
	}
	return b.primaryUInt(pbTotalDataLength)
}

// SetFragment sets the IsFragment flag together with the fragment fields.
func (b *Bundle) SetFragment(offset, totalDataLength uint64) error {
	if err := b.SetFlags(b.Flags() | IsFragment); err != nil {
		return err
	}
	if err := b.setPrimaryField(pbFragmentOffset, cbor.UInt(offset)); err != nil {
		return err
	}
	return b.setPrimaryField(pbTotalDataLength, cbor.UInt(totalDataLength))
}

// Blocks returns views on all canonical blocks in order.
func (b *Bundle) Blocks() []CanonicalBlock {
	var cbs []CanonicalBlock
	for i := 1; i < b.blocks.Len(); i++ {
		if block, ok := b.blocks.Get(i).(*cbor.Array); ok {
			cbs = append(cbs, CanonicalBlock{block})
		}
	}
	return cbs
}

// Block returns the canonical block with the given number.
func (b *Bundle) Block(number uint64) (CanonicalBlock, bool) {
	for _, cb := range b.Blocks() {
		if cb.Number() == number {
			return cb, true
		}
	}
	return CanonicalBlock{}, false
}

// BlockByCode returns the first canonical block of the given type code.
func (b *Bundle) BlockByCode(code uint64) (CanonicalBlock, bool) {
	for _, cb := range b.Blocks() {
		if cb.Code() == code {
			return cb, true
		}
	}
	return CanonicalBlock{}, false
}

// PayloadBlock returns the payload block.
func (b *Bundle) PayloadBlock() (CanonicalBlock, error) {
	if cb, ok := b.BlockByCode(ExtBlockTypePayloadBlock); ok {
		return cb, nil
	}
	return CanonicalBlock{}, ErrNoPayloadBlock
}

// Payload returns the payload block's data.
func (b *Bundle) Payload() ([]byte, error) {
	cb, err := b.PayloadBlock()
	if err != nil {
		return nil, err
	}
	return cb.Data(), nil
}

// nextBlockNumber returns the lowest free number above the reserved ones.
func (b *Bundle) nextBlockNumber() uint64 {
	for number := uint64(2); ; number++ {
		if _, taken := b.Block(number); !taken {
			return number
		}
	}
}

// AddBlock appends a canonical block and returns its number. A zero number
// selects the next free one. Payload blocks stay last, so other blocks are
// inserted in front of an existing payload block.
func (b *Bundle) AddBlock(code, number uint64, flags BlockControlFlags, crcType CRCType, data []byte) (uint64, error) {
	if b.primary() == nil {
		return 0, ErrNoPrimaryBlock
	}
	if err := crcType.CheckValid(); err != nil {
		return 0, err
	}

	_, payloadErr := b.PayloadBlock()
	hasPayload := payloadErr == nil

	if code == ExtBlockTypePayloadBlock {
		if hasPayload {
			return 0, ErrPayloadBlockExists
		}
		if number == 0 {
			number = 1
		}
	} else if number == 0 {
		number = b.nextBlockNumber()
	} else if number == 1 {
		return 0, fmt.Errorf("%w: %d is reserved for the payload block", ErrBlockNumber, number)
	}

	if _, taken := b.Block(number); taken {
		return 0, fmt.Errorf("%w: %d is already taken", ErrBlockNumber, number)
	}

	block := newCanonicalBlock(code, number, flags, crcType, data)
	if code != ExtBlockTypePayloadBlock && hasPayload {
		if err := b.blocks.Insert(b.blocks.Len()-1, block); err != nil {
			return 0, err
		}
	} else {
		b.blocks.Push(block)
	}
	return number, nil
}

// AddPayload appends the payload block.
func (b *Bundle) AddPayload(data []byte, flags BlockControlFlags, crcType CRCType) error {
	_, err := b.AddBlock(ExtBlockTypePayloadBlock, 1, flags, crcType, data)
	return err
}

// RemoveBlock deletes the canonical block with the given number.
func (b *Bundle) RemoveBlock(number uint64) bool {
	for i := 1; i < b.blocks.Len(); i++ {
		if block, ok := b.blocks.Get(i).(*cbor.Array); ok && (CanonicalBlock{block}).Number() == number {
			_, _ = b.blocks.Remove(i)
			return true
		}
	}
	return false
}

// CheckValid returns all violated structural rules and CRC mismatches.
func (b *Bundle) CheckValid() error {
	return b.checkValid(true)
}

// Verify checks the Bundle's structure and all CRC values.
func (b *Bundle) Verify() bool {
	return b.CheckValid() == nil
}

// checkValid validates all blocks. CRC values are only calculated if crc is set.
func (b *Bundle) checkValid(crc bool) (errs error) {
	if b.blocks.Len() < 2 {
		return fmt.Errorf("bundle has %d blocks, expected a primary and at least one canonical block", b.blocks.Len())
	}

	check := func(err error) {
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	pb := b.primary()
	if pb == nil {
		return ErrNoPrimaryBlock
	}
	if crc {
		check(checkPrimaryBlock(pb, nil))
	}

	var (
		numbers      = make(map[uint64]bool)
		payloadCount = 0
		last         = b.blocks.Len() - 1
	)

	for i := 1; i <= last; i++ {
		block, ok := b.blocks.Get(i).(*cbor.Array)
		if !ok {
			check(fmt.Errorf("block %d is no array", i))
			continue
		}
		if crc {
			check(checkCanonicalBlock(block, nil))
		}

		cb := CanonicalBlock{block}
		number := cb.Number()

		if cb.Code() == ExtBlockTypePayloadBlock {
			payloadCount++
			if i != last {
				check(fmt.Errorf("payload block is at position %d, not last", i))
			}
		} else if number == 0 || number == 1 {
			check(fmt.Errorf("%w: block of type %d uses reserved number %d", ErrBlockNumber, cb.Code(), number))
		}

		if numbers[number] {
			check(fmt.Errorf("%w: %d is used twice", ErrBlockNumber, number))
		}
		numbers[number] = true
	}

	if payloadCount != 1 {
		check(fmt.Errorf("bundle has %d payload blocks, expected one", payloadCount))
	}

	return
}

// ID returns this Bundle's identifier.
func (b *Bundle) ID() BundleID {
	creationTime, sequence := b.Timestamp()
	return BundleID{
		Source:         b.Source(),
		CreationTime:   creationTime,
		SequenceNumber: sequence,

		IsFragment:      b.IsFragment(),
		FragmentOffset:  b.FragmentOffset(),
		TotalDataLength: b.TotalDataLength(),
	}
}

func (b *Bundle) String() string {
	var bldr strings.Builder

	_, _ = fmt.Fprintf(&bldr, "bundle(%v -> %s", b.ID(), b.Destination())
	for _, cb := range b.Blocks() {
		_, _ = fmt.Fprintf(&bldr, ", %v", cb)
	}
	bldr.WriteString(")")

	return bldr.String()
}
