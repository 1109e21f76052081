// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse frames a Server-Sent Events body into data records.
//
// Only "data:" lines carry records; every such line is one record. Comment
// lines, event/id/retry fields, blank separators and data lines with an
// empty payload are ignored. A record
// whose payload is exactly "[DONE]" ends the stream cleanly.
package sse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

const (
	// DefaultMaxLineBytes bounds a single line. Larger lines fail the stream.
	DefaultMaxLineBytes = 4 << 20

	// Done is the sentinel payload that terminates a stream.
	Done = "[DONE]"

	initialBufferBytes = 64 << 10
)

var dataPrefix = []byte("data:")

// ErrLineTooLong is returned by Err when a line exceeds the configured limit.
var ErrLineTooLong = errors.New("sse: line exceeds maximum length")

// Reader yields the payloads of "data:" lines one at a time.
type Reader struct {
	sc   *bufio.Scanner
	data []byte
	done bool
	err  error
}

// NewReader returns a Reader over r. maxLineBytes <= 0 selects DefaultMaxLineBytes.
func NewReader(r io.Reader, maxLineBytes int) *Reader {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(initialBufferBytes, maxLineBytes)), maxLineBytes)
	return &Reader{sc: sc}
}

// Next advances to the next data record. It returns false at end of input,
// after the [DONE] sentinel, or on a read error (see Err).
func (r *Reader) Next() bool {
	if r.done || r.err != nil {
		return false
	}

	for r.sc.Scan() {
		line := bytes.TrimRight(r.sc.Bytes(), "\r")
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := bytes.TrimSpace(line[len(dataPrefix):])
		if len(payload) == 0 {
			continue
		}
		if string(payload) == Done {
			r.done = true
			r.data = nil
			return false
		}
		r.data = payload
		return true
	}

	r.data = nil
	if err := r.sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			r.err = ErrLineTooLong
		} else {
			r.err = fmt.Errorf("sse: read: %w", err)
		}
	}
	return false
}

// Data returns the current record payload. The slice is only valid until the
// next call to Next.
func (r *Reader) Data() []byte {
	return r.data
}

// Done reports whether the stream ended with the [DONE] sentinel.
func (r *Reader) Done() bool {
	return r.done
}

// Err returns the read error that stopped the stream, if any. It unwraps to
// the underlying transport error.
func (r *Reader) Err() error {
	return r.err
}
