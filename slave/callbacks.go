// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import "github.com/ffutop/modbus-rtu-engine/mberrors"

// Callbacks is how an Engine reaches into application-owned register
// storage. Each method is called synchronously from the engine's reader
// goroutine for the function codes it serves; an implementation that
// cannot serve one should embed Unimplemented rather than hand-rolling
// mberrors.ErrNotSupported returns for every method.
//
// A returned error other than mberrors.ErrNotSupported is reported to the
// master as ILLEGAL_DATA_ADDRESS; mberrors.ErrNotSupported becomes
// ILLEGAL_FUNCTION.
type Callbacks interface {
	ReadCoils(addr, qty uint16) ([]bool, error)
	WriteCoils(addr uint16, values []bool) error

	ReadDiscreteInputs(addr, qty uint16) ([]bool, error)

	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error)
	WriteHoldingRegisters(addr uint16, values []uint16) error

	ReadInputRegisters(addr, qty uint16) ([]uint16, error)

	// CustomFunction handles any function code this engine does not
	// dispatch natively. Returning mberrors.ErrNotSupported (as
	// Unimplemented does) yields an ILLEGAL_FUNCTION exception.
	CustomFunction(function byte, data []byte) ([]byte, error)
}

// Unimplemented answers every Callbacks method with mberrors.ErrNotSupported.
// Embed it in a partial implementation to satisfy the interface without
// writing out every access type.
type Unimplemented struct{}

func (Unimplemented) ReadCoils(uint16, uint16) ([]bool, error)               { return nil, mberrors.ErrNotSupported }
func (Unimplemented) WriteCoils(uint16, []bool) error                       { return mberrors.ErrNotSupported }
func (Unimplemented) ReadDiscreteInputs(uint16, uint16) ([]bool, error)      { return nil, mberrors.ErrNotSupported }
func (Unimplemented) ReadHoldingRegisters(uint16, uint16) ([]uint16, error)  { return nil, mberrors.ErrNotSupported }
func (Unimplemented) WriteHoldingRegisters(uint16, []uint16) error          { return mberrors.ErrNotSupported }
func (Unimplemented) ReadInputRegisters(uint16, uint16) ([]uint16, error)    { return nil, mberrors.ErrNotSupported }
func (Unimplemented) CustomFunction(byte, []byte) ([]byte, error)           { return nil, mberrors.ErrNotSupported }
