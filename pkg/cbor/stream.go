// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cbor

import (
	"errors"
	"io"
	"slices"
)

const (
	streamMinRead = 4096
	streamMaxRead = 1 << 20
)

// DecodeFunc is an incremental decoder, like Decoder.Decode.
type DecodeFunc[T any] func(buf []byte) (Match, T, int)

// Stream reads consecutive items from an io.Reader by buffering input until
// its DecodeFunc reports a Full match.
type Stream[T any] struct {
	r      io.Reader
	decode DecodeFunc[T]

	buf      []byte
	readSize int
	filled   bool
	err      error
}

// NewStream creates a Stream over r.
func NewStream[T any](r io.Reader, decode DecodeFunc[T]) *Stream[T] {
	return &Stream[T]{
		r:        r,
		decode:   decode,
		readSize: streamMinRead,
	}
}

// NewReader creates a Stream of Values from r, decoded by d. A nil Decoder
// uses DefaultLimits.
func NewReader(r io.Reader, d *Decoder) *Stream[Value] {
	if d == nil {
		d = defaultDecoder
	}
	return NewStream[Value](r, d.Decode)
}

// Next returns the next item. At the end of the input, io.EOF is returned.
// Input ending within an item results in io.ErrUnexpectedEOF, malformed input
// in ErrMalformed.
func (s *Stream[T]) Next() (T, error) {
	var zero T

	for {
		if len(s.buf) > 0 {
			switch m, v, n := s.decode(s.buf); m {
			case Full:
				s.buf = s.buf[n:]
				return v, nil

			case NoMatch:
				s.err = ErrMalformed
				return zero, s.err

			case Partial:
				// Larger reads for larger items keep the number of decoding
				// attempts logarithmic in the item's size.
				if s.filled && s.readSize < streamMaxRead {
					s.readSize *= 2
				}
			}
		}

		if s.err != nil {
			if errors.Is(s.err, io.EOF) && len(s.buf) > 0 {
				return zero, io.ErrUnexpectedEOF
			}
			return zero, s.err
		}

		s.buf = slices.Grow(s.buf, s.readSize)
		n, err := s.r.Read(s.buf[len(s.buf) : len(s.buf)+s.readSize])
		s.buf = s.buf[:len(s.buf)+n]
		s.filled = n == s.readSize
		if err != nil {
			s.err = err
		}
	}
}

// Buffered returns the number of read but not yet decoded bytes.
func (s *Stream[T]) Buffered() int {
	return len(s.buf)
}
