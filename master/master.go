// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package master implements the Modbus RTU master transaction engine: a
// mutex-serialized request/response cycle over a half-duplex link, plus the
// ten standard function-code operations built on top of it.
package master

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/ffutop/modbus-rtu-engine/mberrors"
	"github.com/ffutop/modbus-rtu-engine/modbus"
	"github.com/ffutop/modbus-rtu-engine/transport/rtu"
)

// Port is the half-duplex link an Engine drives. *rtu.SerialPort satisfies
// it; tests substitute an in-memory fake.
type Port interface {
	WriteADU(adu []byte) error
	ReadFrame(buf []byte, overallTimeout time.Duration) (int, error)
}

// Config governs one Engine's transaction behavior. Zero values are
// replaced with spec-mandated defaults by New.
type Config struct {
	// ResponseTimeout bounds how long a transaction waits for a slave's
	// reply after the request has been written.
	ResponseTimeout time.Duration

	// LockTimeout bounds how long Transaction waits to acquire the
	// engine's mutex before giving up with ErrTimeout. Exposed per the
	// original firmware's fixed 1s wait, made configurable here since a
	// host process may run many more concurrent callers than a single
	// microcontroller task set.
	LockTimeout time.Duration

	// StrictUnitID rejects a response whose unit id does not match the
	// request's.
	StrictUnitID bool
	// StrictFunction rejects a response whose function code (exception
	// bit masked off) does not match the request's.
	StrictFunction bool
}

func (c Config) withDefaults() Config {
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = 200 * time.Millisecond
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = time.Second
	}
	return c
}

// Engine is a Modbus RTU master bound to one serial port. It is safe for
// concurrent use: transactions are serialized through a try-lock channel so
// a caller that cannot acquire it within LockTimeout gets ErrTimeout rather
// than blocking indefinitely.
type Engine struct {
	port Port
	cfg  Config
	lock chan struct{}
}

// New returns an Engine that issues transactions over port.
func New(port Port, cfg Config) *Engine {
	return &Engine{
		port: port,
		cfg:  cfg.withDefaults(),
		lock: make(chan struct{}, 1),
	}
}

func (e *Engine) acquire() error {
	select {
	case e.lock <- struct{}{}:
		return nil
	case <-time.After(e.cfg.LockTimeout):
		return mberrors.ErrTimeout
	}
}

func (e *Engine) release() { <-e.lock }

// Transaction sends reqPDU to unitID and returns the slave's response PDU.
// unitID 0 is a broadcast: the frame is written and Transaction returns
// immediately with a zero PDU and a nil error, since broadcasts draw no
// reply.
//
// The engine's mutex is held for the whole round trip so that no other
// caller's request can interleave its bytes with this one's on the wire.
func (e *Engine) Transaction(unitID byte, reqPDU modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if err := e.acquire(); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	defer e.release()

	adu, err := rtu.Encode(unitID, reqPDU)
	if err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	slog.Debug("master: tx", "unit", unitID, "adu", hex.EncodeToString(adu))
	if err := e.port.WriteADU(adu); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	if unitID == 0 {
		return modbus.ProtocolDataUnit{}, nil
	}

	rx := make([]byte, rtu.MaxSize)
	n, err := e.port.ReadFrame(rx, e.cfg.ResponseTimeout)
	if err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	slog.Debug("master: rx", "unit", unitID, "adu", hex.EncodeToString(rx[:n]))

	_, respPDU, err := rtu.Decode(rx[:n], unitID, reqPDU, e.cfg.StrictUnitID, e.cfg.StrictFunction)
	return respPDU, err
}

func badResponse(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", mberrors.ErrBadResponse, fmt.Sprintf(format, args...))
}
