// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package memstore

import (
	"errors"
	"testing"

	"github.com/ffutop/modbus-rtu-engine/mberrors"
)

func TestHoldingRegistersRoundTrip(t *testing.T) {
	s := New()
	if err := s.WriteHoldingRegisters(100, []uint16{1, 2, 3}); err != nil {
		t.Fatalf("WriteHoldingRegisters: %v", err)
	}
	got, err := s.ReadHoldingRegisters(100, 3)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters: %v", err)
	}
	want := []uint16{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCoilsRoundTrip(t *testing.T) {
	s := New()
	if err := s.WriteCoils(5, []bool{true, false, true}); err != nil {
		t.Fatalf("WriteCoils: %v", err)
	}
	got, err := s.ReadCoils(5, 3)
	if err != nil {
		t.Fatalf("ReadCoils: %v", err)
	}
	want := []bool{true, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestOutOfRangeIsInvalidArg(t *testing.T) {
	s := New()
	_, err := s.ReadHoldingRegisters(65535, 2)
	if !errors.Is(err, mberrors.ErrInvalidArg) {
		t.Fatalf("expected ErrInvalidArg, got %v", err)
	}
}

func TestSeedInputRegistersIsReadableButNotWritableViaCallbacks(t *testing.T) {
	s := New()
	if err := s.SeedInputRegisters(0, []uint16{77}); err != nil {
		t.Fatalf("SeedInputRegisters: %v", err)
	}
	got, err := s.ReadInputRegisters(0, 1)
	if err != nil || got[0] != 77 {
		t.Fatalf("ReadInputRegisters = %v, %v", got, err)
	}
	if _, ok := interface{}(s).(interface{ WriteInputRegisters(uint16, []uint16) error }); ok {
		t.Fatal("Store exposes a write method for input registers")
	}
}

func TestSeedDiscreteInputsIsReadableButNotWritableViaCallbacks(t *testing.T) {
	s := New()
	if err := s.SeedDiscreteInputs(3, []bool{true, false, true}); err != nil {
		t.Fatalf("SeedDiscreteInputs: %v", err)
	}
	got, err := s.ReadDiscreteInputs(3, 3)
	if err != nil {
		t.Fatalf("ReadDiscreteInputs: %v", err)
	}
	want := []bool{true, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if _, ok := interface{}(s).(interface{ WriteDiscreteInputs(uint16, []bool) error }); ok {
		t.Fatal("Store exposes a write method for discrete inputs")
	}
}

func TestSeedOutOfRangeIsInvalidArg(t *testing.T) {
	s := New()
	if err := s.SeedDiscreteInputs(65535, []bool{true, true}); !errors.Is(err, mberrors.ErrInvalidArg) {
		t.Fatalf("expected ErrInvalidArg, got %v", err)
	}
}

func TestCustomFunctionNotSupported(t *testing.T) {
	s := New()
	if _, err := s.CustomFunction(0x41, nil); !errors.Is(err, mberrors.ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
}
