// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package rtu implements the Modbus RTU Application Data Unit codec and
// the half-duplex serial transport it rides on.
package rtu

import (
	"fmt"

	"github.com/ffutop/modbus-rtu-engine/mberrors"
	"github.com/ffutop/modbus-rtu-engine/modbus"
	"github.com/ffutop/modbus-rtu-engine/modbus/crc"
)

const (
	// MinSize is the smallest legal ADU: unit id + function code + at
	// least one byte of function-specific data + 2-byte CRC. No real
	// Modbus function produces a bare function code with zero data bytes,
	// so an ADU shorter than this is always malformed.
	MinSize = 5
	// MaxSize is the largest legal ADU.
	MaxSize = 256
)

// Encode assembles unit id + pdu into an ADU, appending the CRC (low byte
// first).
func Encode(unitID byte, pdu modbus.ProtocolDataUnit) ([]byte, error) {
	length := len(pdu.Data) + 4 // unit(1) + func(1) + data + crc(2)
	if length > MaxSize {
		return nil, fmt.Errorf("%w: adu length %d exceeds %d", mberrors.ErrNoMem, length, MaxSize)
	}
	if length < MinSize {
		return nil, fmt.Errorf("%w: adu length %d below minimum %d", mberrors.ErrInvalidArg, length, MinSize)
	}

	adu := make([]byte, length)
	adu[0] = unitID
	adu[1] = pdu.FunctionCode
	copy(adu[2:], pdu.Data)

	sum := crc.Checksum(adu[:length-2])
	adu[length-2] = byte(sum)
	adu[length-1] = byte(sum >> 8)
	return adu, nil
}

// Decode validates and parses an ADU as a master would a slave's response:
// it checks length and CRC, optionally enforces the unit id and function
// code the request carried, and surfaces exception PDUs as
// *modbus.Exception.
//
// reqPDU is only consulted when strictFunction is set.
func Decode(adu []byte, expectedUnitID byte, reqPDU modbus.ProtocolDataUnit, strictUnitID, strictFunction bool) (byte, modbus.ProtocolDataUnit, error) {
	if len(adu) < MinSize {
		return 0, modbus.ProtocolDataUnit{}, fmt.Errorf("%w: adu length %d below minimum %d", mberrors.ErrBadResponse, len(adu), MinSize)
	}

	length := len(adu)
	got := uint16(adu[length-2]) | uint16(adu[length-1])<<8
	want := crc.Checksum(adu[:length-2])
	if got != want {
		return 0, modbus.ProtocolDataUnit{}, fmt.Errorf("%w: got 0x%04X want 0x%04X", mberrors.ErrCRC, got, want)
	}

	unitID := adu[0]
	fc := adu[1]

	if strictUnitID && unitID != expectedUnitID {
		return 0, modbus.ProtocolDataUnit{}, fmt.Errorf("%w: unit id %d, expected %d", mberrors.ErrBadResponse, unitID, expectedUnitID)
	}
	if strictFunction && fc&0x7F != reqPDU.FunctionCode {
		return 0, modbus.ProtocolDataUnit{}, fmt.Errorf("%w: function 0x%02X, expected 0x%02X", mberrors.ErrBadResponse, fc&0x7F, reqPDU.FunctionCode)
	}

	if modbus.IsException(fc) {
		return 0, modbus.ProtocolDataUnit{}, &modbus.Exception{Function: fc &^ modbus.ExceptionBit, Code: adu[2]}
	}

	return unitID, modbus.ProtocolDataUnit{
		FunctionCode: fc,
		Data:         adu[2 : length-2],
	}, nil
}
