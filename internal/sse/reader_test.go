// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(r *Reader) []string {
	var out []string
	for r.Next() {
		out = append(out, string(r.Data()))
	}
	return out
}

func TestReader_Records(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     []string
		wantDone bool
	}{
		{
			name: "plain data lines",
			body: "data: {\"a\":1}\n\ndata: {\"b\":2}\n\n",
			want: []string{`{"a":1}`, `{"b":2}`},
		},
		{
			name: "no space after colon",
			body: "data:{\"a\":1}\n",
			want: []string{`{"a":1}`},
		},
		{
			name: "crlf line endings",
			body: "data: one\r\n\r\ndata: two\r\n",
			want: []string{"one", "two"},
		},
		{
			name: "non-data fields ignored",
			body: ": keepalive\nevent: message\nid: 7\nretry: 100\ndata: x\n\n",
			want: []string{"x"},
		},
		{
			name:     "done terminates",
			body:     "data: a\n\ndata: [DONE]\n\ndata: never\n\n",
			want:     []string{"a"},
			wantDone: true,
		},
		{
			name: "empty body",
			body: "",
			want: nil,
		},
		{
			name: "no trailing newline",
			body: "data: last",
			want: []string{"last"},
		},
		{
			name: "empty data lines skipped",
			body: "data:\n\ndata:   \r\n\ndata: x\n\ndata: \n",
			want: []string{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.body), 0)
			assert.Equal(t, tt.want, collect(r))
			assert.Equal(t, tt.wantDone, r.Done())
			assert.NoError(t, r.Err())
			assert.False(t, r.Next(), "reader stays exhausted")
		})
	}
}

func TestReader_LineTooLong(t *testing.T) {
	body := "data: ok\n\ndata: " + strings.Repeat("x", 2048) + "\n"
	r := NewReader(strings.NewReader(body), 1024)

	assert.Equal(t, []string{"ok"}, collect(r))
	assert.ErrorIs(t, r.Err(), ErrLineTooLong)
}

func TestReader_LargeLineWithinLimit(t *testing.T) {
	payload := strings.Repeat("y", 200<<10)
	r := NewReader(strings.NewReader("data: "+payload+"\n"), 0)

	require.True(t, r.Next())
	assert.Len(t, r.Data(), len(payload))
}

type failingReader struct {
	data string
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.data == "" {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func TestReader_TransportError(t *testing.T) {
	cause := errors.New("connection reset by peer")
	r := NewReader(&failingReader{data: "data: first\n", err: cause}, 0)

	assert.Equal(t, []string{"first"}, collect(r))
	require.Error(t, r.Err())
	assert.ErrorIs(t, r.Err(), cause)
	assert.False(t, r.Done())
}

func TestReader_UnexpectedEOFIsClean(t *testing.T) {
	r := NewReader(&failingReader{data: "data: a\n", err: io.EOF}, 0)
	assert.Equal(t, []string{"a"}, collect(r))
	assert.NoError(t, r.Err())
}
