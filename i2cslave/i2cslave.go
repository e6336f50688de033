// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2cslave

import (
	"errors"
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3"
)

// Direction is the transfer direction announced by the master on address
// match.
type Direction uint8

const (
	// Write means the master sends data to the responder.
	Write Direction = iota
	// Read means the master reads data from the responder.
	Read
)

func (d Direction) String() string {
	switch d {
	case Write:
		return "Write"
	case Read:
		return "Read"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// State is the transaction state of a Responder.
type State uint32

const (
	Idle State = iota
	Receiving
	Transmitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Receiving:
		return "Receiving"
	case Transmitting:
		return "Transmitting"
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

// Port is the bus transport a Responder runs on. Receive and Transmit arm a
// single asynchronous transfer; completion is reported back through
// ReceiveComplete, TransmitComplete or BusError. The buffers passed in stay
// owned by the Responder and are valid until the transfer completes.
type Port interface {
	Listen() error
	StopListening() error
	Receive(buf []byte) error
	Transmit(buf []byte) error
}

// Opts holds the configuration options for a Responder. All callbacks run in
// the transport's event context and must not block.
type Opts struct {
	// OnReceive is called with each word written by the master.
	OnReceive func(v uint32)
	// Supplier, when set, is asked for the word to send on every master read
	// and takes precedence over SetTxValue.
	Supplier func() uint32
	// OnError is called for every dropped transaction.
	OnError func(err error)
}

// Stats counts completed and dropped transactions.
type Stats struct {
	Received    uint64
	Transmitted uint64
	Errors      uint64
}

var (
	// ErrUnexpectedEvent is reported through Opts.OnError when a completion
	// event does not match the transaction in progress.
	ErrUnexpectedEvent = errors.New("i2cslave: unexpected event")

	errDirection = errors.New("i2cslave: invalid direction")
	errAddress   = errors.New("i2cslave: address is not a 7 bit address")
	errNilPort   = errors.New("i2cslave: nil port")
)

// Bit 32 of the published and received words flags a value as present.
const present = 1 << 32

// Responder answers master reads and writes of a single 32 bit word.
//
// SetTxValue, ReceivedValue, State and Stats may be called from any
// goroutine. The event methods must be called from a single event context.
type Responder struct {
	port Port
	addr uint16
	opts Opts

	started atomic.Bool
	state   atomic.Uint32
	tx      atomic.Uint64
	rx      atomic.Uint64

	// Owned by the event context.
	rxBuf [WordSize]byte
	txBuf [WordSize]byte

	received    atomic.Uint64
	transmitted atomic.Uint64
	errs        atomic.Uint64
}

// New returns a Responder for the 7 bit address addr on port. It does not
// listen until Start is called. The Opts can be nil.
func New(port Port, addr uint16, opts *Opts) (*Responder, error) {
	if port == nil {
		return nil, errNilPort
	}
	if addr > 0x7f {
		return nil, errAddress
	}
	r := &Responder{port: port, addr: addr}
	if opts != nil {
		r.opts = *opts
	}
	return r, nil
}

// Start arms address-match listening. Calling Start on a started Responder
// does nothing.
func (r *Responder) Start() error {
	if r.started.Load() {
		return nil
	}
	r.clearReady()
	if err := r.port.Listen(); err != nil {
		return fmt.Errorf("i2cslave: listen: %w", err)
	}
	r.state.Store(uint32(Idle))
	r.started.Store(true)
	return nil
}

// Stop disables listening and returns to Idle. A transfer in flight is
// abandoned.
func (r *Responder) Stop() error {
	if !r.started.Swap(false) {
		return nil
	}
	r.state.Store(uint32(Idle))
	if err := r.port.StopListening(); err != nil {
		return fmt.Errorf("i2cslave: stop listening: %w", err)
	}
	return nil
}

// Halt implements conn.Resource. It is the same as Stop.
func (r *Responder) Halt() error {
	return r.Stop()
}

// Started reports whether the Responder is listening.
func (r *Responder) Started() bool {
	return r.started.Load()
}

// Addr returns the 7 bit address the Responder was created for.
func (r *Responder) Addr() uint16 {
	return r.addr
}

// SetTxValue publishes v. The next master read returns it unless a Supplier
// is configured. Only the latest value is kept.
func (r *Responder) SetTxValue(v uint32) {
	r.tx.Store(present | uint64(v))
}

// TxValue returns the published word and whether one was ever set.
func (r *Responder) TxValue() (uint32, bool) {
	w := r.tx.Load()
	return uint32(w), w&present != 0
}

// ReceivedValue returns the last word written by the master. The second
// return value is true only once per received word.
func (r *Responder) ReceivedValue() (uint32, bool) {
	for {
		w := r.rx.Load()
		if w&present == 0 {
			return 0, false
		}
		if r.rx.CompareAndSwap(w, w&^present) {
			return uint32(w), true
		}
	}
}

// State returns the transaction state.
func (r *Responder) State() State {
	return State(r.state.Load())
}

// Stats returns the transaction counters.
func (r *Responder) Stats() Stats {
	return Stats{
		Received:    r.received.Load(),
		Transmitted: r.transmitted.Load(),
		Errors:      r.errs.Load(),
	}
}

// AddressMatch is called by the transport when the master selects this
// device.
func (r *Responder) AddressMatch(dir Direction) {
	if !r.started.Load() {
		return
	}
	switch dir {
	case Write:
		r.state.Store(uint32(Receiving))
		r.clearReady()
		if err := r.port.Receive(r.rxBuf[:]); err != nil {
			r.drop(err)
		}
	case Read:
		r.state.Store(uint32(Transmitting))
		var v uint32
		if r.opts.Supplier != nil {
			v = r.opts.Supplier()
			r.SetTxValue(v)
		} else {
			// Zero if nothing was ever published.
			v = uint32(r.tx.Load())
		}
		PutWord(r.txBuf[:], v)
		if err := r.port.Transmit(r.txBuf[:]); err != nil {
			r.drop(err)
		}
	default:
		r.drop(errDirection)
	}
}

// ReceiveComplete is called by the transport once the armed receive filled
// its buffer.
func (r *Responder) ReceiveComplete() {
	if State(r.state.Load()) != Receiving {
		r.drop(ErrUnexpectedEvent)
		return
	}
	v := Word(r.rxBuf[:])
	r.rx.Store(present | uint64(v))
	r.received.Add(1)
	if r.opts.OnReceive != nil {
		r.opts.OnReceive(v)
	}
	r.state.Store(uint32(Idle))
	r.listen()
}

// TransmitComplete is called by the transport once the armed transmit was
// clocked out.
func (r *Responder) TransmitComplete() {
	if State(r.state.Load()) != Transmitting {
		r.drop(ErrUnexpectedEvent)
		return
	}
	r.transmitted.Add(1)
	r.state.Store(uint32(Idle))
	r.listen()
}

// BusError is called by the transport when a transfer fails, for example on
// a NACK, an arbitration loss or a frame of the wrong length. The
// transaction is dropped; the error is not returned anywhere.
func (r *Responder) BusError(err error) {
	r.drop(err)
}

// ListenComplete is called by the transport when listen mode ends, usually
// on a stop condition.
func (r *Responder) ListenComplete() {
	r.listen()
}

func (r *Responder) String() string {
	return fmt.Sprintf("i2cslave: 0x%02x %s", r.addr, r.State())
}

// drop abandons the transaction in flight and listens again.
func (r *Responder) drop(err error) {
	r.rxBuf = [WordSize]byte{}
	r.state.Store(uint32(Idle))
	r.errs.Add(1)
	if r.opts.OnError != nil {
		r.opts.OnError(err)
	}
	r.listen()
}

func (r *Responder) listen() {
	if !r.started.Load() {
		return
	}
	if err := r.port.Listen(); err != nil {
		r.errs.Add(1)
		if r.opts.OnError != nil {
			r.opts.OnError(fmt.Errorf("i2cslave: listen: %w", err))
		}
	}
}

func (r *Responder) clearReady() {
	for {
		w := r.rx.Load()
		if w&present == 0 || r.rx.CompareAndSwap(w, w&^present) {
			return
		}
	}
}

var _ conn.Resource = &Responder{}
