// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

// Pin is the GPIO contract this package consumes when direction control is
// driven in software. Configuring the pin (mode, pull resistors) is the
// caller's responsibility — out of scope here.
type Pin interface {
	Set(level bool) error
}

// DirectionController gates the local transmitter on a half-duplex bus.
// SetTransmit(true) must return only once the bus is safe to drive;
// SetTransmit(false) returns the bus to receive.
type DirectionController interface {
	SetTransmit(tx bool) error
}

// hardwareDirection is used when the UART peripheral itself drives RTS in
// a hardware half-duplex mode (modbus_rtu_port_uart.c's use_uart_rs485_mode):
// the port leaves direction alone and this is a no-op.
type hardwareDirection struct{}

// HardwareDirection returns a DirectionController for UARTs that toggle
// their own RTS line in hardware RS485 mode.
func HardwareDirection() DirectionController { return hardwareDirection{} }

func (hardwareDirection) SetTransmit(bool) error { return nil }

// gpioDirection drives a named GPIO pin with configurable polarity:
// level = activeHigh XOR rx (modbus_rtu_port_uart.c's de_re_set).
type gpioDirection struct {
	pin        Pin
	activeHigh bool
}

// GPIODirection returns a DirectionController that toggles pin around
// transmit. activeHigh true means the pin is driven high to transmit.
func GPIODirection(pin Pin, activeHigh bool) DirectionController {
	return &gpioDirection{pin: pin, activeHigh: activeHigh}
}

func (g *gpioDirection) SetTransmit(tx bool) error {
	level := g.activeHigh
	if !tx {
		level = !g.activeHigh
	}
	return g.pin.Set(level)
}
