// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/modbus-rtu-engine/mberrors"
	"github.com/grid-x/serial"
)

// flusher is implemented by ports that can discard buffered input — the
// real grid-x/serial port does; the in-memory test double need not.
type flusher interface {
	Flush() error
}

// SerialPort owns the UART and the direction-control signal for one
// engine. It is created at engine construction and destroyed with it; it
// is never shared across engines.
type SerialPort struct {
	Config serial.Config

	Direction     DirectionController
	TurnaroundUS  int // txrx_turnaround_us, applied before and after transmit
	IdleTimeoutUS int // inter-character idle gap that ends a frame

	mu   sync.Mutex
	port io.ReadWriteCloser

	// openFunc is overridable in tests to avoid opening a real device.
	openFunc func(*serial.Config) (io.ReadWriteCloser, error)
}

// NewSerialPort returns a SerialPort ready to Open. dir may be nil, in
// which case direction control is a no-op (hardware RS485 mode, or a
// loopback/test link with no direction signal at all).
func NewSerialPort(cfg serial.Config, dir DirectionController) *SerialPort {
	if dir == nil {
		dir = HardwareDirection()
	}
	return &SerialPort{
		Config:        cfg,
		Direction:     dir,
		IdleTimeoutUS: 2000, // 2ms, the t3.5 idle gap at baud rates >= 9600
	}
}

// Open opens the underlying UART. Calling Open twice is a no-op.
func (p *SerialPort) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open()
}

func (p *SerialPort) open() error {
	if p.port != nil {
		return nil
	}
	opener := p.openFunc
	if opener == nil {
		opener = func(cfg *serial.Config) (io.ReadWriteCloser, error) { return serial.Open(cfg) }
	}
	port, err := opener(&p.Config)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", mberrors.ErrPort, p.Config.Address, err)
	}
	p.port = port
	return nil
}

// Close closes the underlying UART, if open.
func (p *SerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port == nil {
		return nil
	}
	err := p.port.Close()
	p.port = nil
	return err
}

func (p *SerialPort) turnaround() {
	if p.TurnaroundUS > 0 {
		time.Sleep(time.Duration(p.TurnaroundUS) * time.Microsecond)
	}
}

// WriteADU writes a complete ADU atomically with respect to ReadFrame on
// the same port: flush stale input, assert TX (after a turnaround delay),
// write, deassert TX (after another turnaround delay). No separate wait for
// the UART to finish transmitting is made: once the port's Write returns,
// only the turnaround delay precedes the deassert.
//
// Callers (the master and slave engines) serialise WriteADU/ReadFrame
// themselves; this method does not take its own lock beyond guarding port
// lifecycle. Concurrent calls from two callers racing for the wire are a
// programmer error, not a concern of this layer.
func (p *SerialPort) WriteADU(adu []byte) error {
	p.mu.Lock()
	if err := p.open(); err != nil {
		p.mu.Unlock()
		return err
	}
	port := p.port
	p.mu.Unlock()

	if f, ok := port.(flusher); ok {
		_ = f.Flush()
	}

	p.turnaround()
	if err := p.Direction.SetTransmit(true); err != nil {
		return fmt.Errorf("%w: direction control: %v", mberrors.ErrPort, err)
	}

	n, err := port.Write(adu)
	if err != nil || n != len(adu) {
		_ = p.Direction.SetTransmit(false)
		if err == nil {
			err = fmt.Errorf("short write: %d of %d bytes", n, len(adu))
		}
		return fmt.Errorf("%w: %v", mberrors.ErrPort, err)
	}

	p.turnaround()
	if err := p.Direction.SetTransmit(false); err != nil {
		return fmt.Errorf("%w: direction control: %v", mberrors.ErrPort, err)
	}

	slog.Debug("rtu: wrote adu", "bytes", len(adu))
	return nil
}

// ReadFrame reads one RTU frame bounded by inter-character idle timing
// (the Modbus t3.5 rule). It reads in small chunks; once any byte has
// arrived, an idle gap of at least IdleTimeoutUS signals end of frame. If
// buf fills before an idle gap, it returns ErrNoMem. If overallTimeout
// elapses before any byte arrives (or before a terminating idle gap), it
// returns ErrTimeout.
//
// Each chunk read is expected to return promptly (bounded by the
// underlying port's configured read timeout, grid-x/serial's
// Config.Timeout) so ReadFrame can poll its own deadline and the idle gap
// between chunks; a port that blocks indefinitely on Read defeats both.
//
// Idle gaps are measured from wall-clock timestamps rather than relying on
// read-call or sleep precision, since OS scheduling granularity makes
// either unreliable at sub-millisecond resolution.
func (p *SerialPort) ReadFrame(buf []byte, overallTimeout time.Duration) (int, error) {
	p.mu.Lock()
	if err := p.open(); err != nil {
		p.mu.Unlock()
		return 0, err
	}
	port := p.port
	p.mu.Unlock()

	if len(buf) < MinSize {
		return 0, fmt.Errorf("%w: read buffer smaller than minimum ADU", mberrors.ErrInvalidArg)
	}

	deadline := time.Now().Add(overallTimeout)
	idleTimeout := time.Duration(p.IdleTimeoutUS) * time.Microsecond
	chunk := make([]byte, 64)

	n := 0
	var lastRx time.Time
	gotAny := false

	for {
		if time.Now().After(deadline) {
			return 0, mberrors.ErrTimeout
		}

		r, err := port.Read(chunk)
		if err != nil && err != io.EOF {
			return 0, fmt.Errorf("%w: %v", mberrors.ErrPort, err)
		}

		if r > 0 {
			if n+r > len(buf) {
				return 0, mberrors.ErrNoMem
			}
			copy(buf[n:], chunk[:r])
			n += r
			lastRx = time.Now()
			gotAny = true
			continue
		}

		if gotAny && time.Since(lastRx) >= idleTimeout {
			slog.Debug("rtu: read frame", "bytes", n)
			return n, nil
		}
	}
}
