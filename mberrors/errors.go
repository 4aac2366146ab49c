// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package mberrors is the error taxonomy shared by transport, master and
// slave: transport failures are sentinel errors callers can test with
// errors.Is; a slave's valid exception response is a typed *modbus.Exception
// (see package modbus) distinguishable from all of these via errors.As.
package mberrors

import "errors"

var (
	// ErrInvalidArg means the caller passed a nil, an out-of-range
	// quantity, or an undersized buffer. Not retryable.
	ErrInvalidArg = errors.New("modbus: invalid argument")

	// ErrInvalidState means the engine's role or lifecycle state does not
	// allow the requested operation (e.g. slave already running).
	ErrInvalidState = errors.New("modbus: invalid state")

	// ErrNoMem means an ADU would exceed the configured buffer size.
	ErrNoMem = errors.New("modbus: buffer too small")

	// ErrPort means the underlying serial port failed a read or write.
	// May be retried.
	ErrPort = errors.New("modbus: port error")

	// ErrTimeout means no response (or no terminating idle gap) arrived
	// within the configured window. Retryable by the caller.
	ErrTimeout = errors.New("modbus: request timed out")

	// ErrCRC means the response frame's CRC did not match its payload.
	// Retryable.
	ErrCRC = errors.New("modbus: CRC mismatch")

	// ErrBadResponse means the response violated a structural invariant
	// (unit id, function code, byte count, echo). Retryable, but usually
	// indicates a misbehaving slave.
	ErrBadResponse = errors.New("modbus: bad response")

	// ErrNotSupported means a slave callback has no implementation for the
	// requested access. The dispatch engine maps it to an
	// ILLEGAL_FUNCTION exception rather than failing the read loop.
	ErrNotSupported = errors.New("modbus: not supported")
)
