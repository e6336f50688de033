// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bridge moves readings from the sampler to the bus. A Coordinator
// polls the latest reading, bounds it, converts it to engineering units and
// publishes the pressure word the I²C master reads. It optionally drives a
// voltage output with the same values.
//
// The Coordinator runs outside the tick and bus event contexts and is the
// only part of the pipeline allowed to be slow.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"

	"github.com/GermanBionicSystems/ms5837bridge/ms5837"
)

// Bounds applied to every reading before it is used. They are well outside
// what the sensor can measure and only guard the conversions downstream.
const (
	PressureMin    int32 = -500000 // -5000 mbar
	PressureMax    int32 = 500000  // 5000 mbar
	TemperatureMin int32 = -50000  // -500°C
	TemperatureMax int32 = 100000  // 1000°C

	psiPerMbar = 0.0145038
	maxPSI     = 150
	maxPa      = 1e6
)

// Source supplies the latest reading. *sampling.Cell implements it.
type Source interface {
	Load() (ms5837.Reading, bool)
}

// Publisher receives the word the bus master reads. *i2cslave.Responder
// implements it.
type Publisher interface {
	SetTxValue(v uint32)
}

// Output is a voltage output. *analogout.Dev implements it.
type Output interface {
	SetVoltage(channel int, v physic.ElectricPotential) error
	Channels() int
	VRef() physic.ElectricPotential
}

// NegativePolicy selects how a negative pressure is turned into the
// published word.
type NegativePolicy uint8

const (
	// TwosComplement publishes the int32 bit pattern; the master has to read
	// the word as signed.
	TwosComplement NegativePolicy = iota
	// ClampZero publishes 0 for any negative pressure.
	ClampZero
)

func (n NegativePolicy) String() string {
	switch n {
	case TwosComplement:
		return "twos-complement"
	case ClampZero:
		return "clamp-zero"
	}
	return fmt.Sprintf("NegativePolicy(%d)", uint8(n))
}

// ParseNegativePolicy parses the names returned by NegativePolicy.String.
func ParseNegativePolicy(s string) (NegativePolicy, error) {
	switch strings.ToLower(s) {
	case "", "twos-complement":
		return TwosComplement, nil
	case "clamp-zero":
		return ClampZero, nil
	}
	return 0, fmt.Errorf("bridge: unknown negative pressure policy %q", s)
}

// Word returns the bus word for a pressure in 0.01 mbar.
func (n NegativePolicy) Word(pressure int32) uint32 {
	if pressure < 0 && n == ClampZero {
		return 0
	}
	return uint32(pressure)
}

// Span maps an engineering value linearly onto the output range: Min gives
// 0V and Max gives vRef. A span with Max <= Min is disabled.
type Span struct {
	Min, Max float64
}

// Enabled reports whether the span maps anything.
func (s Span) Enabled() bool {
	return s.Max > s.Min
}

// Voltage returns the output voltage for v. The result is not clipped; the
// output does that.
func (s Span) Voltage(v float64, vRef physic.ElectricPotential) physic.ElectricPotential {
	return physic.ElectricPotential((v - s.Min) / (s.Max - s.Min) * float64(vRef))
}

// AnalogMap configures the voltage output. Pressure drives channel 0 and
// temperature drives channel 1 when the output has one.
type AnalogMap struct {
	// Pressure span in mbar.
	Pressure Span
	// Temperature span in °C.
	Temperature Span
}

// Measurement is a bounded reading with its derived values.
type Measurement struct {
	// Count is the number of valid readings seen, including this one.
	Count uint32
	// Pressure in 0.01 mbar and Temperature in 0.01°C, after bounding.
	Pressure    int32
	Temperature int32
	// Clamped is set when either value was bounded.
	Clamped bool
	// Word is what was published to the bus.
	Word uint32

	Mbar    float64
	PSI     float64
	Pa      float64
	Celsius float64
}

// PressureValue returns the pressure as a physic.Pressure.
func (m Measurement) PressureValue() physic.Pressure {
	return ms5837.Reading{Pressure: m.Pressure}.PressureValue()
}

// TemperatureValue returns the temperature as a physic.Temperature.
func (m Measurement) TemperatureValue() physic.Temperature {
	return ms5837.Reading{Temperature: m.Temperature}.TemperatureValue()
}

func (m Measurement) String() string {
	return fmt.Sprintf("#%d %.2f mbar %.2f°C", m.Count, m.Mbar, m.Celsius)
}

// Opts holds the configuration options for a Coordinator.
type Opts struct {
	Negative NegativePolicy
	// Output, when set, is driven according to Analog.
	Output Output
	Analog AnalogMap
	// OnMeasurement is called by Poll with every measurement.
	OnMeasurement func(m Measurement)
	// OnError is called with output errors. They do not stop Poll.
	OnError func(err error)
}

// Stats counts what the Coordinator did.
type Stats struct {
	Readings     uint32
	Clamped      uint64
	OutputErrors uint64
}

var errNilSource = errors.New("bridge: nil source")

// Coordinator is the application loop.
type Coordinator struct {
	src  Source
	pub  Publisher
	opts Opts

	count        atomic.Uint32
	clamped      atomic.Uint64
	outputErrors atomic.Uint64

	mu       sync.Mutex
	last     Measurement
	hasLast  bool
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// New returns a Coordinator reading from src and publishing to pub. pub can
// be nil when nothing listens on the bus. The Opts can be nil.
func New(src Source, pub Publisher, opts *Opts) (*Coordinator, error) {
	if src == nil {
		return nil, errNilSource
	}
	c := &Coordinator{src: src, pub: pub}
	if opts != nil {
		c.opts = *opts
	}
	return c, nil
}

// Poll handles the latest reading. When the source holds no valid reading it
// does nothing and returns false; the previously published word stays.
// Poll must not be called concurrently with itself.
func (c *Coordinator) Poll() (Measurement, bool) {
	r, ok := c.src.Load()
	if !ok {
		return Measurement{}, false
	}
	n := c.count.Load()
	if n < math.MaxUint32 {
		n++
		c.count.Store(n)
	}
	m := Measurement{
		Count:       n,
		Pressure:    clamp(r.Pressure, PressureMin, PressureMax),
		Temperature: clamp(r.Temperature, TemperatureMin, TemperatureMax),
	}
	m.Clamped = m.Pressure != r.Pressure || m.Temperature != r.Temperature
	if m.Clamped {
		c.clamped.Add(1)
	}
	m.Mbar = float64(m.Pressure) / 100
	m.Celsius = float64(m.Temperature) / 100
	m.PSI = bound(m.Mbar*psiPerMbar, maxPSI)
	m.Pa = bound(m.Mbar*100, maxPa)
	m.Word = c.opts.Negative.Word(m.Pressure)

	if c.pub != nil {
		c.pub.SetTxValue(m.Word)
	}
	if c.opts.Output != nil {
		c.drive(&m)
	}
	c.mu.Lock()
	c.last = m
	c.hasLast = true
	c.mu.Unlock()
	if c.opts.OnMeasurement != nil {
		c.opts.OnMeasurement(m)
	}
	return m, true
}

func (c *Coordinator) drive(m *Measurement) {
	out := c.opts.Output
	vRef := out.VRef()
	if s := c.opts.Analog.Pressure; s.Enabled() {
		c.report(out.SetVoltage(0, s.Voltage(m.Mbar, vRef)))
	}
	if s := c.opts.Analog.Temperature; s.Enabled() && out.Channels() > 1 {
		c.report(out.SetVoltage(1, s.Voltage(m.Celsius, vRef)))
	}
}

func (c *Coordinator) report(err error) {
	if err == nil {
		return
	}
	c.outputErrors.Add(1)
	if c.opts.OnError != nil {
		c.opts.OnError(err)
	}
}

// Last returns the most recent measurement, if any.
func (c *Coordinator) Last() (Measurement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.hasLast
}

// Count returns the number of valid readings handled. It stops at
// math.MaxUint32.
func (c *Coordinator) Count() uint32 {
	return c.count.Load()
}

// Stats returns the counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Readings:     c.count.Load(),
		Clamped:      c.clamped.Load(),
		OutputErrors: c.outputErrors.Load(),
	}
}

// Run calls Poll every interval until ctx is done or Halt is called.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("bridge: interval must be positive")
	}
	c.mu.Lock()
	if c.shutdown != nil {
		c.mu.Unlock()
		return errors.New("bridge: Run already in progress")
	}
	shutdown := make(chan struct{})
	c.shutdown = shutdown
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			if c.shutdown == shutdown {
				c.shutdown = nil
			}
			c.mu.Unlock()
			return ctx.Err()
		case <-shutdown:
			return nil
		case <-ticker.C:
			c.Poll()
		}
	}
}

// Halt stops Run. Implements conn.Resource.
func (c *Coordinator) Halt() error {
	c.mu.Lock()
	shutdown := c.shutdown
	c.shutdown = nil
	c.mu.Unlock()
	if shutdown != nil {
		close(shutdown)
		c.wg.Wait()
	}
	return nil
}

func (c *Coordinator) String() string {
	return fmt.Sprintf("bridge: %d readings", c.Count())
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func bound(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

var _ conn.Resource = &Coordinator{}
