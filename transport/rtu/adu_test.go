// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ffutop/modbus-rtu-engine/mberrors"
	"github.com/ffutop/modbus-rtu-engine/modbus"
	"github.com/ffutop/modbus-rtu-engine/modbus/crc"
)

func TestEncodeKnownFrame(t *testing.T) {
	// Read holding registers request, unit 1, address 0, quantity 2.
	pdu := modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x00, 0x00, 0x00, 0x02}}
	adu, err := Encode(0x01, pdu)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02, 0xC4, 0x0B}
	if !bytes.Equal(adu, want) {
		t.Fatalf("Encode = % X, want % X", adu, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for unit := 1; unit <= 247; unit += 37 {
		for n := 2; n <= 253; n += 31 {
			data := make([]byte, n-1)
			for i := range data {
				data[i] = byte(i)
			}
			pdu := modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: data}
			adu, err := Encode(byte(unit), pdu)
			if err != nil {
				t.Fatalf("Encode(%d, len=%d): %v", unit, n, err)
			}
			gotUnit, gotPDU, err := Decode(adu, byte(unit), pdu, true, true)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if gotUnit != byte(unit) {
				t.Fatalf("unit id = %d, want %d", gotUnit, unit)
			}
			if gotPDU.FunctionCode != pdu.FunctionCode || !bytes.Equal(gotPDU.Data, pdu.Data) {
				t.Fatalf("pdu round-trip mismatch: got %+v want %+v", gotPDU, pdu)
			}
		}
	}
}

func TestDecodeExceptionDetection(t *testing.T) {
	reqPDU := modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x00, 0x00, 0x00, 0x01}}
	excPDU := modbus.ProtocolDataUnit{FunctionCode: 0x03 | modbus.ExceptionBit, Data: []byte{0x02}}
	adu, err := Encode(0x01, excPDU)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, _, err = Decode(adu, 0x01, reqPDU, true, true)
	var ex *modbus.Exception
	if !errors.As(err, &ex) {
		t.Fatalf("expected *modbus.Exception, got %v", err)
	}
	if ex.Function != 0x03 || ex.Code != 0x02 {
		t.Fatalf("exception = %+v, want function=3 code=2", ex)
	}
}

func TestDecodeCRCMismatch(t *testing.T) {
	pdu := modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x02, 0x00, 0x7B}}
	adu, _ := Encode(0x01, pdu)
	adu[len(adu)-2] ^= 0xFF // flip CRC lo

	_, _, err := Decode(adu, 0x01, pdu, true, true)
	if !errors.Is(err, mberrors.ErrCRC) {
		t.Fatalf("expected ErrCRC, got %v", err)
	}
}

func TestDecodeStrictUnitID(t *testing.T) {
	pdu := modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x02, 0x00, 0x7B}}
	adu, _ := Encode(0x02, pdu)

	_, _, err := Decode(adu, 0x01, pdu, true, false)
	if !errors.Is(err, mberrors.ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse for unit mismatch, got %v", err)
	}

	// Non-strict: the mismatch is ignored.
	gotUnit, _, err := Decode(adu, 0x01, pdu, false, false)
	if err != nil {
		t.Fatalf("non-strict decode failed: %v", err)
	}
	if gotUnit != 0x02 {
		t.Fatalf("unit id = %d, want 2", gotUnit)
	}
}

func TestDecodeStrictFunction(t *testing.T) {
	reqPDU := modbus.ProtocolDataUnit{FunctionCode: 0x03}
	respPDU := modbus.ProtocolDataUnit{FunctionCode: 0x04, Data: []byte{0x02, 0x00, 0x7B}}
	adu, _ := Encode(0x01, respPDU)

	_, _, err := Decode(adu, 0x01, reqPDU, false, true)
	if !errors.Is(err, mberrors.ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse for function mismatch, got %v", err)
	}
}

func TestDecodeTooShort(t *testing.T) {
	_, _, err := Decode([]byte{0x01, 0x03, 0x00}, 0x01, modbus.ProtocolDataUnit{}, false, false)
	if !errors.Is(err, mberrors.ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse for short adu, got %v", err)
	}
}

func TestDecodeExactlyMinSizeBoundary(t *testing.T) {
	// Four bytes is one short of a legal ADU: a unit id, a bare function
	// code with no data byte at all, and a 2-byte CRC. No real function
	// produces this shape, so it must be rejected rather than accepted as
	// a zero-length-data response.
	short := []byte{0x01, 0x03, 0x00, 0x00}
	_, _, err := Decode(short, 0x01, modbus.ProtocolDataUnit{}, false, false)
	if !errors.Is(err, mberrors.ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse for 4-byte adu, got %v", err)
	}

	valid := []byte{0x01, 0x03, 0x00, 0x00, 0x00}
	// Fix up the CRC so only the length boundary is under test.
	sum := crc.Checksum(valid[:3])
	valid[3] = byte(sum)
	valid[4] = byte(sum >> 8)
	if _, _, err := Decode(valid, 0x01, modbus.ProtocolDataUnit{}, false, false); err != nil {
		t.Fatalf("expected 5-byte adu to decode, got %v", err)
	}
}

func TestEncodeTooLarge(t *testing.T) {
	pdu := modbus.ProtocolDataUnit{FunctionCode: 0x10, Data: make([]byte, 253)}
	_, err := Encode(0x01, pdu)
	if !errors.Is(err, mberrors.ErrNoMem) {
		t.Fatalf("expected ErrNoMem, got %v", err)
	}
}
