// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"encoding/binary"
	"errors"

	"github.com/ffutop/modbus-rtu-engine/mberrors"
	"github.com/ffutop/modbus-rtu-engine/modbus"
	"github.com/ffutop/modbus-rtu-engine/modbus/bitpack"
)

func putU16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func getU16(b []byte) uint16    { return binary.BigEndian.Uint16(b) }

func exceptionPDU(function, code byte) modbus.ProtocolDataUnit {
	return modbus.ProtocolDataUnit{FunctionCode: function | modbus.ExceptionBit, Data: []byte{code}}
}

// callbackException maps a Callbacks error to the exception code it
// produces: ErrNotSupported means this engine serves no such access at
// all (ILLEGAL_FUNCTION); any other error is the application rejecting
// this particular address or value (ILLEGAL_DATA_ADDRESS).
func callbackException(function byte, err error) modbus.ProtocolDataUnit {
	if errors.Is(err, mberrors.ErrNotSupported) {
		return exceptionPDU(function, modbus.ExceptionCodeIllegalFunction)
	}
	return exceptionPDU(function, modbus.ExceptionCodeIllegalDataAddress)
}

// dispatch executes one request PDU against cb and returns the response
// PDU to send back (already shaped as an exception if anything failed).
func dispatch(cb Callbacks, req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	fc := req.FunctionCode
	switch fc {
	case modbus.FuncCodeReadCoils:
		return readBits(fc, req.Data, cb.ReadCoils)
	case modbus.FuncCodeReadDiscreteInputs:
		return readBits(fc, req.Data, cb.ReadDiscreteInputs)
	case modbus.FuncCodeReadHoldingRegisters:
		return readRegisters(fc, req.Data, cb.ReadHoldingRegisters)
	case modbus.FuncCodeReadInputRegisters:
		return readRegisters(fc, req.Data, cb.ReadInputRegisters)
	case modbus.FuncCodeWriteSingleCoil:
		return writeSingleCoil(req.Data, cb)
	case modbus.FuncCodeWriteSingleRegister:
		return writeSingleRegister(req.Data, cb)
	case modbus.FuncCodeWriteMultipleCoils:
		return writeMultipleCoils(req.Data, cb)
	case modbus.FuncCodeWriteMultipleRegisters:
		return writeMultipleRegisters(req.Data, cb)
	case modbus.FuncCodeMaskWriteRegister:
		return maskWriteRegister(req.Data, cb)
	case modbus.FuncCodeReadWriteMultipleRegisters:
		return readWriteMultipleRegisters(req.Data, cb)
	default:
		resp, err := cb.CustomFunction(fc, req.Data)
		if err != nil {
			return callbackException(fc, err)
		}
		return modbus.ProtocolDataUnit{FunctionCode: fc, Data: resp}
	}
}

func readBits(fc byte, data []byte, read func(addr, qty uint16) ([]bool, error)) modbus.ProtocolDataUnit {
	if len(data) != 4 {
		return exceptionPDU(fc, modbus.ExceptionCodeIllegalDataValue)
	}
	addr := getU16(data[0:2])
	qty := getU16(data[2:4])
	if qty < 1 || qty > 2000 {
		return exceptionPDU(fc, modbus.ExceptionCodeIllegalDataValue)
	}

	bits, err := read(addr, qty)
	if err != nil {
		return callbackException(fc, err)
	}
	if len(bits) != int(qty) {
		return exceptionPDU(fc, modbus.ExceptionCodeSlaveDeviceFailure)
	}

	packed := bitpack.Pack(bits)
	resp := make([]byte, 1+len(packed))
	resp[0] = byte(len(packed))
	copy(resp[1:], packed)
	return modbus.ProtocolDataUnit{FunctionCode: fc, Data: resp}
}

func readRegisters(fc byte, data []byte, read func(addr, qty uint16) ([]uint16, error)) modbus.ProtocolDataUnit {
	if len(data) != 4 {
		return exceptionPDU(fc, modbus.ExceptionCodeIllegalDataValue)
	}
	addr := getU16(data[0:2])
	qty := getU16(data[2:4])
	if qty < 1 || qty > 125 {
		return exceptionPDU(fc, modbus.ExceptionCodeIllegalDataValue)
	}

	regs, err := read(addr, qty)
	if err != nil {
		return callbackException(fc, err)
	}
	if len(regs) != int(qty) {
		return exceptionPDU(fc, modbus.ExceptionCodeSlaveDeviceFailure)
	}

	resp := make([]byte, 1+len(regs)*2)
	resp[0] = byte(len(regs) * 2)
	for i, v := range regs {
		putU16(resp[1+i*2:3+i*2], v)
	}
	return modbus.ProtocolDataUnit{FunctionCode: fc, Data: resp}
}

func writeSingleCoil(data []byte, cb Callbacks) modbus.ProtocolDataUnit {
	fc := byte(modbus.FuncCodeWriteSingleCoil)
	if len(data) != 4 {
		return exceptionPDU(fc, modbus.ExceptionCodeIllegalDataValue)
	}
	addr := getU16(data[0:2])
	value := getU16(data[2:4])
	if value != 0x0000 && value != 0xFF00 {
		return exceptionPDU(fc, modbus.ExceptionCodeIllegalDataValue)
	}

	if err := cb.WriteCoils(addr, []bool{value == 0xFF00}); err != nil {
		return callbackException(fc, err)
	}
	echo := append([]byte(nil), data...)
	return modbus.ProtocolDataUnit{FunctionCode: fc, Data: echo}
}

func writeSingleRegister(data []byte, cb Callbacks) modbus.ProtocolDataUnit {
	fc := byte(modbus.FuncCodeWriteSingleRegister)
	if len(data) != 4 {
		return exceptionPDU(fc, modbus.ExceptionCodeIllegalDataValue)
	}
	addr := getU16(data[0:2])
	value := getU16(data[2:4])

	if err := cb.WriteHoldingRegisters(addr, []uint16{value}); err != nil {
		return callbackException(fc, err)
	}
	echo := append([]byte(nil), data...)
	return modbus.ProtocolDataUnit{FunctionCode: fc, Data: echo}
}

func writeMultipleCoils(data []byte, cb Callbacks) modbus.ProtocolDataUnit {
	fc := byte(modbus.FuncCodeWriteMultipleCoils)
	if len(data) < 5 {
		return exceptionPDU(fc, modbus.ExceptionCodeIllegalDataValue)
	}
	addr := getU16(data[0:2])
	qty := getU16(data[2:4])
	byteCount := int(data[4])
	if qty < 1 || qty > 1968 || byteCount != bitpack.ByteCount(int(qty)) || len(data) != 5+byteCount {
		return exceptionPDU(fc, modbus.ExceptionCodeIllegalDataValue)
	}

	values := bitpack.Unpack(data[5:], int(qty))
	if err := cb.WriteCoils(addr, values); err != nil {
		return callbackException(fc, err)
	}

	resp := make([]byte, 4)
	putU16(resp[0:2], addr)
	putU16(resp[2:4], qty)
	return modbus.ProtocolDataUnit{FunctionCode: fc, Data: resp}
}

func writeMultipleRegisters(data []byte, cb Callbacks) modbus.ProtocolDataUnit {
	fc := byte(modbus.FuncCodeWriteMultipleRegisters)
	if len(data) < 5 {
		return exceptionPDU(fc, modbus.ExceptionCodeIllegalDataValue)
	}
	addr := getU16(data[0:2])
	qty := getU16(data[2:4])
	byteCount := int(data[4])
	if qty < 1 || qty > 123 || byteCount != int(qty)*2 || len(data) != 5+byteCount {
		return exceptionPDU(fc, modbus.ExceptionCodeIllegalDataValue)
	}

	values := make([]uint16, qty)
	for i := range values {
		values[i] = getU16(data[5+i*2 : 7+i*2])
	}
	if err := cb.WriteHoldingRegisters(addr, values); err != nil {
		return callbackException(fc, err)
	}

	resp := make([]byte, 4)
	putU16(resp[0:2], addr)
	putU16(resp[2:4], qty)
	return modbus.ProtocolDataUnit{FunctionCode: fc, Data: resp}
}

// maskWriteRegister is not in Callbacks directly: it is a read-modify-write
// of a single holding register, composed from ReadHoldingRegisters and
// WriteHoldingRegisters so implementations need not special-case it.
func maskWriteRegister(data []byte, cb Callbacks) modbus.ProtocolDataUnit {
	fc := byte(modbus.FuncCodeMaskWriteRegister)
	if len(data) != 6 {
		return exceptionPDU(fc, modbus.ExceptionCodeIllegalDataValue)
	}
	addr := getU16(data[0:2])
	andMask := getU16(data[2:4])
	orMask := getU16(data[4:6])

	current, err := cb.ReadHoldingRegisters(addr, 1)
	if err != nil {
		return callbackException(fc, err)
	}
	if len(current) != 1 {
		return exceptionPDU(fc, modbus.ExceptionCodeSlaveDeviceFailure)
	}

	newValue := (current[0] & andMask) | (orMask &^ andMask)
	if err := cb.WriteHoldingRegisters(addr, []uint16{newValue}); err != nil {
		return callbackException(fc, err)
	}

	echo := append([]byte(nil), data...)
	return modbus.ProtocolDataUnit{FunctionCode: fc, Data: echo}
}

func readWriteMultipleRegisters(data []byte, cb Callbacks) modbus.ProtocolDataUnit {
	fc := byte(modbus.FuncCodeReadWriteMultipleRegisters)
	if len(data) < 9 {
		return exceptionPDU(fc, modbus.ExceptionCodeIllegalDataValue)
	}
	readAddr := getU16(data[0:2])
	readQty := getU16(data[2:4])
	writeAddr := getU16(data[4:6])
	writeQty := getU16(data[6:8])
	byteCount := int(data[8])
	if readQty < 1 || readQty > 125 || writeQty < 1 || writeQty > 121 ||
		byteCount != int(writeQty)*2 || len(data) != 9+byteCount {
		return exceptionPDU(fc, modbus.ExceptionCodeIllegalDataValue)
	}

	writeValues := make([]uint16, writeQty)
	for i := range writeValues {
		writeValues[i] = getU16(data[9+i*2 : 11+i*2])
	}
	if err := cb.WriteHoldingRegisters(writeAddr, writeValues); err != nil {
		return callbackException(fc, err)
	}

	readValues, err := cb.ReadHoldingRegisters(readAddr, readQty)
	if err != nil {
		return callbackException(fc, err)
	}
	if len(readValues) != int(readQty) {
		return exceptionPDU(fc, modbus.ExceptionCodeSlaveDeviceFailure)
	}

	resp := make([]byte, 1+len(readValues)*2)
	resp[0] = byte(len(readValues) * 2)
	for i, v := range readValues {
		putU16(resp[1+i*2:3+i*2], v)
	}
	return modbus.ProtocolDataUnit{FunctionCode: fc, Data: resp}
}
