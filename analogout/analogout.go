// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package analogout drives a 12 bit Microchip MCP4725 or MCP4728 D/A
// converter as a voltage output. Requested voltages are clipped to the
// 0..vRef range instead of being rejected, so a measurement far outside the
// configured span pins the output to a rail.
//
// # Datasheets
//
// # MCP4725
//
// https://ww1.microchip.com/downloads/en/devicedoc/22039d.pdf
//
// # MCP4728
//
// https://www.digikey.com/htmldatasheets/production/623709/0/0/1/mcp4728.html
package analogout

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Variant represents the model of the device.
type Variant string

const (
	MCP4725 Variant = "MCP4725"
	MCP4728 Variant = "MCP4728"

	// MCP4728InternalRef is the internal precision reference of the MCP4728.
	// Passing it as vRef selects the internal reference for every write.
	MCP4728InternalRef physic.ElectricPotential = 2048 * physic.MilliVolt

	// DefaultAddress is the default I²C address of both parts.
	DefaultAddress i2c.Addr = 0x60

	// MaxCode is the full scale code of the converter.
	MaxCode = 1<<12 - 1

	cmdMultiWrite4728 byte = 0x40
	bitInternalRef    byte = 0x80
)

var (
	errInvalidVariant = errors.New("analogout: invalid variant")
	errInvalidRef     = errors.New("analogout: reference voltage must be positive")
	errChannel        = errors.New("analogout: invalid channel")
)

// Dev is a D/A converter used as a voltage output.
type Dev struct {
	mu      sync.Mutex
	d       i2c.Dev
	variant Variant
	vRef    physic.ElectricPotential
	codes   []uint16
}

// New returns a voltage output on the converter at addr. vRef is the voltage
// that full scale corresponds to; VCC for the MCP4725.
func New(bus i2c.Bus, addr i2c.Addr, variant Variant, vRef physic.ElectricPotential) (*Dev, error) {
	n := 0
	switch variant {
	case MCP4725:
		n = 1
	case MCP4728:
		n = 4
	default:
		return nil, errInvalidVariant
	}
	if vRef <= 0 {
		return nil, errInvalidRef
	}
	return &Dev{
		d:       i2c.Dev{Bus: bus, Addr: uint16(addr)},
		variant: variant,
		vRef:    vRef,
		codes:   make([]uint16, n),
	}, nil
}

// Channels returns the number of outputs.
func (d *Dev) Channels() int {
	return len(d.codes)
}

// VRef returns the full scale voltage.
func (d *Dev) VRef() physic.ElectricPotential {
	return d.vRef
}

// VoltageToCode returns the code closest to v. Voltages below 0 give 0 and
// voltages above vRef give MaxCode.
func (d *Dev) VoltageToCode(v physic.ElectricPotential) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= d.vRef {
		return MaxCode
	}
	return uint16((int64(v)*MaxCode + int64(d.vRef)/2) / int64(d.vRef))
}

// CodeToVoltage returns the output voltage for code. Codes above MaxCode are
// treated as MaxCode.
func (d *Dev) CodeToVoltage(code uint16) physic.ElectricPotential {
	if code > MaxCode {
		code = MaxCode
	}
	return physic.ElectricPotential(int64(code) * int64(d.vRef) / MaxCode)
}

// SetVoltage sets channel to v, clipped to 0..vRef. The MCP4725 has the
// single channel 0.
func (d *Dev) SetVoltage(channel int, v physic.ElectricPotential) error {
	return d.SetCode(channel, d.VoltageToCode(v))
}

// SetCode writes a raw code to channel. Codes above MaxCode are treated as
// MaxCode.
func (d *Dev) SetCode(channel int, code uint16) error {
	if channel < 0 || channel >= len(d.codes) {
		return errChannel
	}
	if code > MaxCode {
		code = MaxCode
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.d.Tx(d.frame(channel, code), nil); err != nil {
		return fmt.Errorf("analogout: %w", err)
	}
	d.codes[channel] = code
	return nil
}

// Code returns the last code written to channel.
func (d *Dev) Code(channel int) uint16 {
	if channel < 0 || channel >= len(d.codes) {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.codes[channel]
}

// frame returns the write for a single channel: the fast write command on
// the MCP4725, the multi-write command on the MCP4728. Neither touches the
// EEPROM.
func (d *Dev) frame(channel int, code uint16) []byte {
	if d.variant == MCP4725 {
		return []byte{byte(code>>8) & 0x0f, byte(code)}
	}
	hi := byte(code>>8) & 0x0f
	if d.vRef == MCP4728InternalRef {
		hi |= bitInternalRef
	}
	return []byte{cmdMultiWrite4728 | byte(channel)<<1, hi, byte(code)}
}

// Halt drives every output to 0V. Implements conn.Resource.
func (d *Dev) Halt() error {
	for ch := range d.codes {
		if err := d.SetCode(ch, 0); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("analogout: %s", d.variant)
}

var _ conn.Resource = &Dev{}
