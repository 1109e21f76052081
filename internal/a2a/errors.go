// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package a2a

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an upstream failure.
type Kind int

const (
	// KindUnexpected covers anything not classified below.
	KindUnexpected Kind = iota
	// KindConnection means the agent could not be reached or the connection
	// was lost while streaming.
	KindConnection
	// KindTimeout means the request's wall-clock budget ran out.
	KindTimeout
	// KindProtocol means the agent answered with something this client does
	// not accept: a non-2xx status, a JSON-RPC error, an invalid enum value.
	KindProtocol
)

// Stable run error codes, one per Kind.
const (
	CodeUnexpected = "A2A_ERROR"
	CodeConnection = "A2A_CONNECTION_ERROR"
	CodeTimeout    = "A2A_TIMEOUT_ERROR"
	CodeProtocol   = "A2A_PROTOCOL_ERROR"
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindProtocol:
		return "protocol"
	default:
		return "unexpected"
	}
}

// Code returns the run error code for k.
func (k Kind) Code() string {
	switch k {
	case KindConnection:
		return CodeConnection
	case KindTimeout:
		return CodeTimeout
	case KindProtocol:
		return CodeProtocol
	default:
		return CodeUnexpected
	}
}

// Error is returned for every failure of an upstream call.
type Error struct {
	Kind       Kind
	Op         string        // "message/stream" or "agent card"
	URL        string        // request URL
	StatusCode int           // HTTP status, when one was received
	Timeout    time.Duration // budget that expired, for KindTimeout
	Message    string        // human readable detail
	Err        error         // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Message
	switch {
	case msg == "" && e.Err != nil:
		msg = e.Err.Error()
	case msg != "" && e.Err != nil:
		msg = msg + ": " + e.Err.Error()
	case msg == "":
		msg = e.Kind.String() + " failure"
	}
	if e.Op == "" {
		return "a2a: " + msg
	}
	return fmt.Sprintf("a2a %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the stable run error code for this failure.
func (e *Error) Code() string {
	return e.Kind.Code()
}

// KindOf returns the Kind of err. Errors that are not *Error are KindUnexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// IsTimeout reports whether err is an upstream timeout.
func IsTimeout(err error) bool {
	return err != nil && KindOf(err) == KindTimeout
}

// CodeOf returns the run error code for err.
func CodeOf(err error) string {
	return KindOf(err).Code()
}

func connectionError(op, url string, err error) *Error {
	return &Error{Kind: KindConnection, Op: op, URL: url, Message: "failed to connect to A2A agent", Err: err}
}

func timeoutError(op, url string, budget time.Duration, err error) *Error {
	return &Error{
		Kind:    KindTimeout,
		Op:      op,
		URL:     url,
		Timeout: budget,
		Message: fmt.Sprintf("A2A agent request timed out after %s", budget),
		Err:     err,
	}
}

func protocolError(op, url, message string) *Error {
	return &Error{Kind: KindProtocol, Op: op, URL: url, Message: message}
}
