// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package slave implements the Modbus RTU slave dispatch engine: a
// background reader that decodes incoming requests, routes them to
// application-supplied Callbacks, and writes back a response or exception.
package slave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
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

// state is the engine's lifecycle: a slave may only be started once and
// stopped once; Start after Stop is an error rather than a silent
// restart.
type state int

const (
	stateCreated state = iota
	stateRunning
	stateStopping
	stateStopped
)

// Config governs one Engine's request handling.
type Config struct {
	// UnitID is this slave's address, 1..247. 0 is reserved for broadcast
	// and is never a valid UnitID.
	UnitID byte

	// PollTimeout bounds each ReadFrame call in the reader loop; it is not
	// a request deadline, just how often the loop re-checks for Stop.
	PollTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Second
	}
	return c
}

// Engine is a Modbus RTU slave bound to one serial port and one set of
// Callbacks. Start spawns a background reader goroutine; Stop cancels it
// and waits for it to exit before returning, so no request is still being
// handled after Stop returns.
type Engine struct {
	port Port
	cb   Callbacks
	cfg  Config

	mu     sync.Mutex
	state  state
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns an Engine ready to Start.
func New(port Port, cb Callbacks, cfg Config) *Engine {
	return &Engine{port: port, cb: cb, cfg: cfg.withDefaults()}
}

// Start begins serving requests in a background goroutine. It returns
// ErrInvalidState if the engine has already been started.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateCreated {
		return fmt.Errorf("%w: slave engine already started", mberrors.ErrInvalidState)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.state = stateRunning

	e.wg.Add(1)
	go e.readLoop(runCtx)
	return nil
}

// Stop cancels the reader goroutine and waits for it to exit. It is a
// no-op if the engine was never started or has already been stopped.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != stateRunning {
		e.mu.Unlock()
		return nil
	}
	e.state = stateStopping
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()

	e.mu.Lock()
	e.state = stateStopped
	e.mu.Unlock()
	return nil
}

func (e *Engine) readLoop(ctx context.Context) {
	defer e.wg.Done()

	buf := make([]byte, rtu.MaxSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := e.port.ReadFrame(buf, e.cfg.PollTimeout)
		if err != nil {
			if !errors.Is(err, mberrors.ErrTimeout) {
				slog.Warn("slave: read frame", "err", err)
			}
			continue
		}
		e.handleFrame(buf[:n])
	}
}

func (e *Engine) handleFrame(adu []byte) {
	unitID, reqPDU, err := rtu.Decode(adu, e.cfg.UnitID, modbus.ProtocolDataUnit{}, false, false)
	if err != nil {
		slog.Debug("slave: dropped malformed frame", "err", err)
		return
	}

	broadcast := unitID == 0
	if !broadcast && unitID != e.cfg.UnitID {
		return // addressed to another unit; not ours to answer
	}

	if broadcast {
		if !isBroadcastWriteFunction(reqPDU.FunctionCode) {
			// No unit is meant to answer a broadcast, so a read has
			// nothing useful to do: there is no reply to suppress and
			// nothing to write back into application storage.
			return
		}
		dispatch(e.cb, reqPDU) // execute the write; a broadcast draws no reply
		return
	}

	respPDU := dispatch(e.cb, reqPDU)
	respADU, err := rtu.Encode(unitID, respPDU)
	if err != nil {
		slog.Warn("slave: failed to encode response", "err", err)
		return
	}
	if err := e.port.WriteADU(respADU); err != nil {
		slog.Warn("slave: failed to write response", "err", err)
	}
}

// isBroadcastWriteFunction reports whether fc is one of the write-only
// function codes a broadcast frame may legitimately carry. Read-only codes
// and the combined read/write FC 0x17 are excluded: nobody is listening
// for their reply, and 0x17's read half has nowhere to go on a broadcast.
func isBroadcastWriteFunction(fc byte) bool {
	switch fc {
	case modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister,
		modbus.FuncCodeWriteMultipleCoils,
		modbus.FuncCodeWriteMultipleRegisters,
		modbus.FuncCodeMaskWriteRegister:
		return true
	default:
		return false
	}
}
