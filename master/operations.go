// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package master

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ffutop/modbus-rtu-engine/mberrors"
	"github.com/ffutop/modbus-rtu-engine/modbus"
	"github.com/ffutop/modbus-rtu-engine/modbus/bitpack"
)

func putU16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func getU16(b []byte) uint16    { return binary.BigEndian.Uint16(b) }

func (e *Engine) readBits(fc byte, unitID byte, addr, qty uint16) ([]bool, error) {
	if qty < 1 || qty > 2000 {
		return nil, fmt.Errorf("%w: quantity %d out of range [1,2000]", mberrors.ErrInvalidArg, qty)
	}

	req := make([]byte, 4)
	putU16(req[0:2], addr)
	putU16(req[2:4], qty)

	resp, err := e.Transaction(unitID, modbus.ProtocolDataUnit{FunctionCode: fc, Data: req})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) < 1 {
		return nil, badResponse("response too short for function 0x%02X", fc)
	}
	byteCount := int(resp.Data[0])
	if len(resp.Data) != 1+byteCount {
		return nil, badResponse("byte count %d does not match payload length %d", byteCount, len(resp.Data)-1)
	}

	return bitpack.Unpack(resp.Data[1:], int(qty)), nil
}

// ReadCoils reads qty coils (FC 01) starting at addr.
func (e *Engine) ReadCoils(unitID byte, addr, qty uint16) ([]bool, error) {
	return e.readBits(modbus.FuncCodeReadCoils, unitID, addr, qty)
}

// ReadDiscreteInputs reads qty discrete inputs (FC 02) starting at addr.
func (e *Engine) ReadDiscreteInputs(unitID byte, addr, qty uint16) ([]bool, error) {
	return e.readBits(modbus.FuncCodeReadDiscreteInputs, unitID, addr, qty)
}

func (e *Engine) readRegisters(fc byte, unitID byte, addr, qty uint16) ([]uint16, error) {
	if qty < 1 || qty > 125 {
		return nil, fmt.Errorf("%w: quantity %d out of range [1,125]", mberrors.ErrInvalidArg, qty)
	}

	req := make([]byte, 4)
	putU16(req[0:2], addr)
	putU16(req[2:4], qty)

	resp, err := e.Transaction(unitID, modbus.ProtocolDataUnit{FunctionCode: fc, Data: req})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) < 1 {
		return nil, badResponse("response too short for function 0x%02X", fc)
	}
	byteCount := int(resp.Data[0])
	if byteCount != int(qty)*2 || len(resp.Data) != 1+byteCount {
		return nil, badResponse("byte count %d does not match requested quantity %d", byteCount, qty)
	}

	regs := make([]uint16, qty)
	for i := range regs {
		regs[i] = getU16(resp.Data[1+i*2 : 3+i*2])
	}
	return regs, nil
}

// ReadHoldingRegisters reads qty holding registers (FC 03) starting at addr.
func (e *Engine) ReadHoldingRegisters(unitID byte, addr, qty uint16) ([]uint16, error) {
	return e.readRegisters(modbus.FuncCodeReadHoldingRegisters, unitID, addr, qty)
}

// ReadInputRegisters reads qty input registers (FC 04) starting at addr.
func (e *Engine) ReadInputRegisters(unitID byte, addr, qty uint16) ([]uint16, error) {
	return e.readRegisters(modbus.FuncCodeReadInputRegisters, unitID, addr, qty)
}

// WriteSingleCoil writes one coil (FC 05). A successful response echoes the
// request exactly, per the published Modbus specification.
func (e *Engine) WriteSingleCoil(unitID byte, addr uint16, value bool) error {
	req := make([]byte, 4)
	putU16(req[0:2], addr)
	if value {
		putU16(req[2:4], 0xFF00)
	}

	resp, err := e.Transaction(unitID, modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeWriteSingleCoil, Data: req})
	if err != nil || unitID == 0 {
		return err
	}
	if resp.FunctionCode != modbus.FuncCodeWriteSingleCoil || !bytes.Equal(resp.Data, req) {
		return badResponse("write single coil response did not echo the request")
	}
	return nil
}

// WriteSingleRegister writes one holding register (FC 06); the response
// echoes the request.
func (e *Engine) WriteSingleRegister(unitID byte, addr, value uint16) error {
	req := make([]byte, 4)
	putU16(req[0:2], addr)
	putU16(req[2:4], value)

	resp, err := e.Transaction(unitID, modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeWriteSingleRegister, Data: req})
	if err != nil || unitID == 0 {
		return err
	}
	if resp.FunctionCode != modbus.FuncCodeWriteSingleRegister || !bytes.Equal(resp.Data, req) {
		return badResponse("write single register response did not echo the request")
	}
	return nil
}

// WriteMultipleCoils writes values starting at addr (FC 0F). The response
// echoes the starting address and quantity, not the data.
func (e *Engine) WriteMultipleCoils(unitID byte, addr uint16, values []bool) error {
	qty := len(values)
	if qty < 1 || qty > 1968 {
		return fmt.Errorf("%w: quantity %d out of range [1,1968]", mberrors.ErrInvalidArg, qty)
	}

	packed := bitpack.Pack(values)
	req := make([]byte, 5+len(packed))
	putU16(req[0:2], addr)
	putU16(req[2:4], uint16(qty))
	req[4] = byte(len(packed))
	copy(req[5:], packed)

	resp, err := e.Transaction(unitID, modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeWriteMultipleCoils, Data: req})
	if err != nil || unitID == 0 {
		return err
	}
	if resp.FunctionCode != modbus.FuncCodeWriteMultipleCoils || len(resp.Data) != 4 ||
		getU16(resp.Data[0:2]) != addr || getU16(resp.Data[2:4]) != uint16(qty) {
		return badResponse("write multiple coils response did not echo address/quantity")
	}
	return nil
}

// WriteMultipleRegisters writes values starting at addr (FC 10). The
// response echoes the starting address and quantity, not the data.
func (e *Engine) WriteMultipleRegisters(unitID byte, addr uint16, values []uint16) error {
	qty := len(values)
	if qty < 1 || qty > 123 {
		return fmt.Errorf("%w: quantity %d out of range [1,123]", mberrors.ErrInvalidArg, qty)
	}

	byteCount := qty * 2
	req := make([]byte, 5+byteCount)
	putU16(req[0:2], addr)
	putU16(req[2:4], uint16(qty))
	req[4] = byte(byteCount)
	for i, v := range values {
		putU16(req[5+i*2:7+i*2], v)
	}

	resp, err := e.Transaction(unitID, modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeWriteMultipleRegisters, Data: req})
	if err != nil || unitID == 0 {
		return err
	}
	if resp.FunctionCode != modbus.FuncCodeWriteMultipleRegisters || len(resp.Data) != 4 ||
		getU16(resp.Data[0:2]) != addr || getU16(resp.Data[2:4]) != uint16(qty) {
		return badResponse("write multiple registers response did not echo address/quantity")
	}
	return nil
}

// MaskWriteRegister applies (current AND andMask) OR (orMask AND NOT
// andMask) to the register at addr (FC 16). The response echoes the
// request exactly.
func (e *Engine) MaskWriteRegister(unitID byte, addr, andMask, orMask uint16) error {
	req := make([]byte, 6)
	putU16(req[0:2], addr)
	putU16(req[2:4], andMask)
	putU16(req[4:6], orMask)

	resp, err := e.Transaction(unitID, modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeMaskWriteRegister, Data: req})
	if err != nil || unitID == 0 {
		return err
	}
	if resp.FunctionCode != modbus.FuncCodeMaskWriteRegister || !bytes.Equal(resp.Data, req) {
		return badResponse("mask write register response did not echo the request")
	}
	return nil
}

// ReadWriteMultipleRegisters writes writeValues starting at writeAddr, then
// reads readQty registers starting at readAddr, as a single transaction
// (FC 17). The two operations are not required to overlap.
func (e *Engine) ReadWriteMultipleRegisters(unitID byte, readAddr, readQty, writeAddr uint16, writeValues []uint16) ([]uint16, error) {
	writeQty := len(writeValues)
	if readQty < 1 || readQty > 125 {
		return nil, fmt.Errorf("%w: read quantity %d out of range [1,125]", mberrors.ErrInvalidArg, readQty)
	}
	if writeQty < 1 || writeQty > 121 {
		return nil, fmt.Errorf("%w: write quantity %d out of range [1,121]", mberrors.ErrInvalidArg, writeQty)
	}

	writeByteCount := writeQty * 2
	req := make([]byte, 9+writeByteCount)
	putU16(req[0:2], readAddr)
	putU16(req[2:4], readQty)
	putU16(req[4:6], writeAddr)
	putU16(req[6:8], uint16(writeQty))
	req[8] = byte(writeByteCount)
	for i, v := range writeValues {
		putU16(req[9+i*2:11+i*2], v)
	}

	resp, err := e.Transaction(unitID, modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeReadWriteMultipleRegisters, Data: req})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) < 1 {
		return nil, badResponse("response too short for read/write multiple registers")
	}
	byteCount := int(resp.Data[0])
	if byteCount != int(readQty)*2 || len(resp.Data) != 1+byteCount {
		return nil, badResponse("byte count %d does not match requested read quantity %d", byteCount, readQty)
	}

	regs := make([]uint16, readQty)
	for i := range regs {
		regs[i] = getU16(resp.Data[1+i*2 : 3+i*2])
	}
	return regs, nil
}
