// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package memstore is an in-memory register backing store implementing
// slave.Callbacks. It holds state only for the lifetime of the process;
// it is not a persistence layer, and its contents are lost on restart.
package memstore

import (
	"fmt"
	"sync"

	"github.com/ffutop/modbus-rtu-engine/mberrors"
	"github.com/ffutop/modbus-rtu-engine/slave"
)

// maxAddress is the top of the 16-bit Modbus address space; each table is
// sized to cover it flatly, the way a fixed register table would.
const maxAddress = 65535

// Store is a flat, four-table register file: coils, discrete inputs,
// holding registers and input registers, each addressable 0..65535. It
// implements slave.Callbacks directly; CustomFunction is left to
// slave.Unimplemented since this store knows nothing beyond the four
// standard tables.
type Store struct {
	slave.Unimplemented

	mu               sync.RWMutex
	coils            []bool
	discreteInputs   []bool
	holdingRegisters []uint16
	inputRegisters   []uint16
}

// New returns a Store with every table zeroed.
func New() *Store {
	return &Store{
		coils:            make([]bool, maxAddress+1),
		discreteInputs:   make([]bool, maxAddress+1),
		holdingRegisters: make([]uint16, maxAddress+1),
		inputRegisters:   make([]uint16, maxAddress+1),
	}
}

func validateRange(addr, qty uint16, tableLen int) error {
	if qty == 0 {
		return fmt.Errorf("%w: quantity must be greater than zero", mberrors.ErrInvalidArg)
	}
	if int(addr)+int(qty) > tableLen {
		return fmt.Errorf("%w: address range [%d,%d) exceeds table bound %d", mberrors.ErrInvalidArg, addr, int(addr)+int(qty), tableLen)
	}
	return nil
}

// ReadCoils implements slave.Callbacks.
func (s *Store) ReadCoils(addr, qty uint16) ([]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := validateRange(addr, qty, len(s.coils)); err != nil {
		return nil, err
	}
	out := make([]bool, qty)
	copy(out, s.coils[addr:int(addr)+int(qty)])
	return out, nil
}

// WriteCoils implements slave.Callbacks.
func (s *Store) WriteCoils(addr uint16, values []bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := validateRange(addr, uint16(len(values)), len(s.coils)); err != nil {
		return err
	}
	copy(s.coils[addr:], values)
	return nil
}

// ReadDiscreteInputs implements slave.Callbacks.
func (s *Store) ReadDiscreteInputs(addr, qty uint16) ([]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := validateRange(addr, qty, len(s.discreteInputs)); err != nil {
		return nil, err
	}
	out := make([]bool, qty)
	copy(out, s.discreteInputs[addr:int(addr)+int(qty)])
	return out, nil
}

// ReadHoldingRegisters implements slave.Callbacks.
func (s *Store) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := validateRange(addr, qty, len(s.holdingRegisters)); err != nil {
		return nil, err
	}
	out := make([]uint16, qty)
	copy(out, s.holdingRegisters[addr:int(addr)+int(qty)])
	return out, nil
}

// WriteHoldingRegisters implements slave.Callbacks.
func (s *Store) WriteHoldingRegisters(addr uint16, values []uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := validateRange(addr, uint16(len(values)), len(s.holdingRegisters)); err != nil {
		return err
	}
	copy(s.holdingRegisters[addr:], values)
	return nil
}

// ReadInputRegisters implements slave.Callbacks.
func (s *Store) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := validateRange(addr, qty, len(s.inputRegisters)); err != nil {
		return nil, err
	}
	out := make([]uint16, qty)
	copy(out, s.inputRegisters[addr:int(addr)+int(qty)])
	return out, nil
}

// SeedDiscreteInputs and SeedInputRegisters let a host application set the
// read-only tables out of band (from a sensor poll loop, say); no Modbus
// function code writes to them directly.
func (s *Store) SeedDiscreteInputs(addr uint16, values []bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := validateRange(addr, uint16(len(values)), len(s.discreteInputs)); err != nil {
		return err
	}
	copy(s.discreteInputs[addr:], values)
	return nil
}

func (s *Store) SeedInputRegisters(addr uint16, values []uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := validateRange(addr, uint16(len(values)), len(s.inputRegisters)); err != nil {
		return err
	}
	copy(s.inputRegisters[addr:], values)
	return nil
}
