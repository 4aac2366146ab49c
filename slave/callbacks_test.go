// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"errors"
	"testing"

	"github.com/ffutop/modbus-rtu-engine/mberrors"
)

type partialCallbacks struct {
	Unimplemented
	holding map[uint16]uint16
}

func (p *partialCallbacks) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	out := make([]uint16, qty)
	for i := range out {
		out[i] = p.holding[addr+uint16(i)]
	}
	return out, nil
}

func (p *partialCallbacks) WriteHoldingRegisters(addr uint16, values []uint16) error {
	for i, v := range values {
		p.holding[addr+uint16(i)] = v
	}
	return nil
}

func TestUnimplementedReturnsNotSupported(t *testing.T) {
	var u Unimplemented
	if _, err := u.ReadCoils(0, 1); !errors.Is(err, mberrors.ErrNotSupported) {
		t.Fatalf("ReadCoils: expected ErrNotSupported, got %v", err)
	}
	if err := u.WriteCoils(0, []bool{true}); !errors.Is(err, mberrors.ErrNotSupported) {
		t.Fatalf("WriteCoils: expected ErrNotSupported, got %v", err)
	}
	if _, err := u.CustomFunction(0x41, nil); !errors.Is(err, mberrors.ErrNotSupported) {
		t.Fatalf("CustomFunction: expected ErrNotSupported, got %v", err)
	}
}

func TestPartialCallbacksServesOnlyWhatItImplements(t *testing.T) {
	cb := &partialCallbacks{holding: map[uint16]uint16{10: 42}}

	regs, err := cb.ReadHoldingRegisters(10, 1)
	if err != nil || regs[0] != 42 {
		t.Fatalf("ReadHoldingRegisters = %v, %v", regs, err)
	}

	if _, err := cb.ReadCoils(0, 1); !errors.Is(err, mberrors.ErrNotSupported) {
		t.Fatalf("expected inherited ErrNotSupported for ReadCoils, got %v", err)
	}
}
