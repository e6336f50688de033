// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sampling acquires MS5837 readings without ever blocking on the
// sensor. A Sampler advances one state per tick; waiting for a conversion is
// expressed as a number of ticks rather than a sleep, so Step can be called
// from a timer callback or any other context that must not block.
//
// A full cycle is
//
//	StartPressureConv → WaitPressureConv → ReadPressureAdc →
//	StartTempConv → WaitTempConv → ReadTempAdc → Calculate
//
// and the result of each successful Calculate is stored in a Cell. A failed
// transaction diverts the machine to Error, which retries from
// StartPressureConv after RetryTicks+1 ticks.
package sampling

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3"

	"github.com/GermanBionicSystems/ms5837bridge/ms5837"
)

// State is the conversion state of a Sampler.
type State uint32

const (
	Idle State = iota
	StartPressureConv
	WaitPressureConv
	ReadPressureAdc
	StartTempConv
	WaitTempConv
	ReadTempAdc
	Calculate
	Error
)

var stateNames = []string{
	"Idle",
	"StartPressureConv",
	"WaitPressureConv",
	"ReadPressureAdc",
	"StartTempConv",
	"WaitTempConv",
	"ReadTempAdc",
	"Calculate",
	"Error",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

// Sensor is the part of the sensor driver the Sampler needs. *ms5837.Dev
// implements it.
type Sensor interface {
	StartConversion(c ms5837.Conversion) error
	ReadADC() (uint32, error)
}

// Opts holds the configuration options for a Sampler.
type Opts struct {
	// Period is the tick period Run uses. Default is 2ms.
	Period time.Duration
	// ConversionTime is how long the sensor needs for one conversion. It is
	// only used to derive SettleTicks. Default is the OSR256 time.
	ConversionTime time.Duration
	// SettleTicks is the number of ticks to wait between starting a
	// conversion and reading it. Leave 0 to derive it from Period and
	// ConversionTime; the result is never less than 1.
	SettleTicks uint32
	// RetryTicks is how many ticks the Error state lasts before a new cycle
	// starts, minus one. Default is 10.
	RetryTicks uint32
	// OnError, when set, is called from Step with the state that failed and
	// the error. It runs in the tick context and must not block.
	OnError func(State, error)
}

// DefaultOpts holds the default options.
var DefaultOpts = Opts{
	Period:         2 * time.Millisecond,
	ConversionTime: ms5837.OSR256.ConversionTime(),
	RetryTicks:     10,
}

var errNilSensor = errors.New("sampling: nil sensor")

// Sampler runs the conversion state machine.
type Sampler struct {
	sensor Sensor
	cal    *ms5837.Calibration
	cell   *Cell
	opts   Opts

	state atomic.Uint32

	// Only touched by Step.
	counter uint32
	d1, d2  uint32

	cycles atomic.Uint64
	errs   atomic.Uint64

	mu       sync.Mutex
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// New returns a Sampler in the Idle state. Results are written to cell. The
// calibration is not copied and must not be modified afterwards. The Opts
// can be nil.
func New(sensor Sensor, cal *ms5837.Calibration, cell *Cell, opts *Opts) (*Sampler, error) {
	if sensor == nil {
		return nil, errNilSensor
	}
	if cal == nil {
		return nil, ms5837.ErrNilCalibration
	}
	if cell == nil {
		cell = &Cell{}
	}
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Period <= 0 {
		o.Period = DefaultOpts.Period
	}
	if o.ConversionTime <= 0 {
		o.ConversionTime = DefaultOpts.ConversionTime
	}
	if o.SettleTicks == 0 {
		o.SettleTicks = settleTicks(o.ConversionTime, o.Period)
	}
	if o.RetryTicks == 0 {
		o.RetryTicks = DefaultOpts.RetryTicks
	}
	return &Sampler{sensor: sensor, cal: cal, cell: cell, opts: o}, nil
}

// settleTicks returns the number of whole periods covering d, at least 1.
func settleTicks(d, period time.Duration) uint32 {
	n := (d + period - 1) / period
	if n < 1 {
		return 1
	}
	if n > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}

// Start begins a new cycle on the next Step, from any state. The tick counter
// restarts from 0 when that Step enters StartPressureConv, so a cycle started
// in the middle of an Error wait or a conversion wait keeps no stale count.
func (s *Sampler) Start() {
	s.state.Store(uint32(StartPressureConv))
}

// Stop returns the Sampler to Idle. Steps in Idle do nothing, so no drain is
// needed.
func (s *Sampler) Stop() {
	s.state.Store(uint32(Idle))
}

// State returns the current state.
func (s *Sampler) State() State {
	return State(s.state.Load())
}

// Cell returns the cell readings are published to.
func (s *Sampler) Cell() *Cell {
	return s.cell
}

// SettleTicks returns the number of ticks waited for each conversion.
func (s *Sampler) SettleTicks() uint32 {
	return s.opts.SettleTicks
}

// Cycles returns the number of readings computed so far.
func (s *Sampler) Cycles() uint64 {
	return s.cycles.Load()
}

// Errors returns the number of times the Sampler entered the Error state.
func (s *Sampler) Errors() uint64 {
	return s.errs.Load()
}

// Step advances the state machine by one tick. It performs at most one
// sensor transaction and never sleeps. Step must not be called concurrently
// with itself; Start and Stop may be called from anywhere.
func (s *Sampler) Step() {
	cur := State(s.state.Load())
	next := s.advance(cur)
	if next != cur {
		// A concurrent Start or Stop wins over the transition.
		s.state.CompareAndSwap(uint32(cur), uint32(next))
	}
}

func (s *Sampler) advance(cur State) State {
	switch cur {
	case Idle:
		return Idle

	case StartPressureConv:
		s.counter = 0
		if err := s.sensor.StartConversion(ms5837.Pressure); err != nil {
			return s.fail(cur, err)
		}
		s.counter = s.opts.SettleTicks
		return WaitPressureConv

	case WaitPressureConv:
		if s.countDown() {
			return ReadPressureAdc
		}
		return cur

	case ReadPressureAdc:
		v, err := s.sensor.ReadADC()
		if err != nil {
			return s.fail(cur, err)
		}
		s.d1 = v
		return StartTempConv

	case StartTempConv:
		if err := s.sensor.StartConversion(ms5837.Temperature); err != nil {
			return s.fail(cur, err)
		}
		s.counter = s.opts.SettleTicks
		return WaitTempConv

	case WaitTempConv:
		if s.countDown() {
			return ReadTempAdc
		}
		return cur

	case ReadTempAdc:
		v, err := s.sensor.ReadADC()
		if err != nil {
			return s.fail(cur, err)
		}
		s.d2 = v
		return Calculate

	case Calculate:
		r, err := ms5837.Compensate(s.cal, s.d1, s.d2)
		if err != nil {
			return s.fail(cur, err)
		}
		s.cell.Store(r)
		s.cycles.Add(1)
		return StartPressureConv

	case Error:
		s.cell.Invalidate()
		if s.counter < math.MaxUint32 {
			s.counter++
		}
		if s.counter > s.opts.RetryTicks {
			s.counter = 0
			return StartPressureConv
		}
		return Error
	}
	return Idle
}

// countDown decrements the wait counter without wrapping and reports whether
// it reached zero.
func (s *Sampler) countDown() bool {
	if s.counter > 0 {
		s.counter--
	}
	return s.counter == 0
}

func (s *Sampler) fail(cur State, err error) State {
	s.cell.Invalidate()
	s.counter = 0
	s.errs.Add(1)
	if s.opts.OnError != nil {
		s.opts.OnError(cur, err)
	}
	return Error
}

// Run calls Step every Period until ctx is done or Halt is called. It does
// not start a cycle by itself; call Start before or after Run. Run returns
// ctx.Err() when the context ends it and nil after Halt.
func (s *Sampler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.shutdown != nil {
		s.mu.Unlock()
		return errors.New("sampling: Run already in progress")
	}
	shutdown := make(chan struct{})
	s.shutdown = shutdown
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.shutdown == shutdown {
				s.shutdown = nil
			}
			s.mu.Unlock()
			return ctx.Err()
		case <-shutdown:
			return nil
		case <-ticker.C:
			s.Step()
		}
	}
}

// Halt stops Run, if running, and returns the Sampler to Idle. Implements
// conn.Resource.
func (s *Sampler) Halt() error {
	s.mu.Lock()
	shutdown := s.shutdown
	s.shutdown = nil
	s.mu.Unlock()
	if shutdown != nil {
		close(shutdown)
		s.wg.Wait()
	}
	s.Stop()
	return nil
}

func (s *Sampler) String() string {
	return fmt.Sprintf("sampling: %s", s.State())
}

var _ conn.Resource = &Sampler{}
