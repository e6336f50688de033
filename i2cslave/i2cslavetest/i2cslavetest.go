// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package i2cslavetest provides an in-memory bus for the i2cslave package. It
// plays the external master and calls the responder's event methods the way
// an interrupt driven I²C peripheral would.
package i2cslavetest

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/GermanBionicSystems/ms5837bridge/i2cslave"
)

var (
	// ErrNACK is returned when no listening device has the requested address.
	ErrNACK = errors.New("i2cslavetest: address not acknowledged")
	// ErrTruncated is returned, and reported to the device as a bus error,
	// when the master transfers a different number of bytes than the device
	// armed.
	ErrTruncated = errors.New("i2cslavetest: transfer length mismatch")
	// ErrNotArmed is returned when the device did not arm a transfer after
	// the address match.
	ErrNotArmed = errors.New("i2cslavetest: no transfer armed")
)

// Handler receives bus events. *i2cslave.Responder implements it.
type Handler interface {
	AddressMatch(dir i2cslave.Direction)
	ReceiveComplete()
	TransmitComplete()
	BusError(err error)
	ListenComplete()
}

// Bus is an in-memory I²C bus with a single target device. It implements
// i2cslave.Port for the device side and MasterWrite and MasterRead for the
// master side. Completed transactions are recorded in Ops in the same form
// i2ctest.Record uses.
type Bus struct {
	// Addr is the address the device answers to.
	Addr uint16
	// ListenErr, when set, is returned by Listen.
	ListenErr error

	xfer sync.Mutex

	mu        sync.Mutex
	handler   Handler
	listening bool
	listens   int
	rx, tx    []byte
	Ops       []i2ctest.IO
}

// Attach sets the device that receives the bus events.
func (b *Bus) Attach(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

// Listen implements i2cslave.Port.
func (b *Bus) Listen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ListenErr != nil {
		return b.ListenErr
	}
	b.listening = true
	b.listens++
	return nil
}

// StopListening implements i2cslave.Port.
func (b *Bus) StopListening() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listening = false
	b.rx, b.tx = nil, nil
	return nil
}

// Receive implements i2cslave.Port.
func (b *Bus) Receive(buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rx = buf
	return nil
}

// Transmit implements i2cslave.Port.
func (b *Bus) Transmit(buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tx = buf
	return nil
}

// Listening reports whether the device armed address matching.
func (b *Bus) Listening() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listening
}

// Listens returns how many times Listen succeeded.
func (b *Bus) Listens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listens
}

// MasterWrite addresses the device for writing and sends data.
func (b *Bus) MasterWrite(addr uint16, data []byte) error {
	b.xfer.Lock()
	defer b.xfer.Unlock()
	h, err := b.match(addr)
	if err != nil {
		return err
	}
	h.AddressMatch(i2cslave.Write)
	b.mu.Lock()
	buf := b.rx
	b.rx = nil
	b.mu.Unlock()
	if buf == nil {
		return ErrNotArmed
	}
	n := copy(buf, data)
	if n != len(buf) || len(data) != len(buf) {
		h.BusError(ErrTruncated)
		return ErrTruncated
	}
	h.ReceiveComplete()
	b.record(i2ctest.IO{Addr: addr, W: append([]byte{}, data...)})
	h.ListenComplete()
	return nil
}

// MasterRead addresses the device for reading and clocks n bytes out of it.
func (b *Bus) MasterRead(addr uint16, n int) ([]byte, error) {
	b.xfer.Lock()
	defer b.xfer.Unlock()
	h, err := b.match(addr)
	if err != nil {
		return nil, err
	}
	h.AddressMatch(i2cslave.Read)
	b.mu.Lock()
	buf := b.tx
	b.tx = nil
	b.mu.Unlock()
	if buf == nil {
		return nil, ErrNotArmed
	}
	if n != len(buf) {
		h.BusError(ErrTruncated)
		return nil, ErrTruncated
	}
	out := append([]byte{}, buf...)
	h.TransmitComplete()
	b.record(i2ctest.IO{Addr: addr, R: out})
	h.ListenComplete()
	return out, nil
}

func (b *Bus) String() string {
	return fmt.Sprintf("i2cslavetest: 0x%02x", b.Addr)
}

func (b *Bus) match(addr uint16) (Handler, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handler == nil || !b.listening || addr != b.Addr {
		return nil, fmt.Errorf("%w: 0x%02x", ErrNACK, addr)
	}
	return b.handler, nil
}

func (b *Bus) record(io i2ctest.IO) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Ops = append(b.Ops, io)
}

var _ i2cslave.Port = &Bus{}
var _ Handler = &i2cslave.Responder{}
