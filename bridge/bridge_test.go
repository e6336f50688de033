// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bridge

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"github.com/GermanBionicSystems/ms5837bridge/analogout"
	"github.com/GermanBionicSystems/ms5837bridge/i2cslave"
	"github.com/GermanBionicSystems/ms5837bridge/i2cslave/i2cslavetest"
	"github.com/GermanBionicSystems/ms5837bridge/ms5837"
	"github.com/GermanBionicSystems/ms5837bridge/sampling"
)

type recorder struct {
	words []uint32
}

func (r *recorder) SetTxValue(v uint32) {
	r.words = append(r.words, v)
}

func TestPoll(t *testing.T) {
	cell := &sampling.Cell{}
	pub := &recorder{}
	c, err := New(cell, pub, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Nothing valid yet: no action.
	if _, ok := c.Poll(); ok {
		t.Fatal("Poll on an empty cell must do nothing")
	}
	cell.Store(ms5837.Reading{Pressure: 18644, Temperature: -4466})
	m, ok := c.Poll()
	if !ok {
		t.Fatal("expected a measurement")
	}
	want := Measurement{
		Count:       1,
		Pressure:    18644,
		Temperature: -4466,
		Word:        18644,
		Mbar:        186.44,
		PSI:         186.44 * 0.0145038,
		Pa:          18644,
		Celsius:     -44.66,
	}
	if diff := cmp.Diff(want, m, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("measurement (-want +got):\n%s", diff)
	}
	if m.PressureValue() != 18644*physic.Pascal {
		t.Errorf("PressureValue()=%s", m.PressureValue())
	}
	if m.TemperatureValue() != physic.ZeroCelsius-44660*physic.MilliKelvin {
		t.Errorf("TemperatureValue()=%s", m.TemperatureValue())
	}

	// An invalidated cell leaves the published word alone.
	cell.Invalidate()
	if _, ok := c.Poll(); ok {
		t.Error("Poll on an invalid cell must do nothing")
	}
	if diff := cmp.Diff([]uint32{18644}, pub.words); diff != "" {
		t.Errorf("published (-want +got):\n%s", diff)
	}
	if last, ok := c.Last(); !ok || last.Count != 1 {
		t.Errorf("Last()=%+v, %t", last, ok)
	}
}

func TestClamp(t *testing.T) {
	var tests = []struct {
		in      ms5837.Reading
		p, temp int32
		psi, pa float64
		clamped bool
	}{
		{ms5837.Reading{Pressure: math.MaxInt32, Temperature: math.MaxInt32}, PressureMax, TemperatureMax, 5000 * 0.0145038, 500000, true},
		{ms5837.Reading{Pressure: math.MinInt32, Temperature: math.MinInt32}, PressureMin, TemperatureMin, -5000 * 0.0145038, -500000, true},
		{ms5837.Reading{Pressure: 500000, Temperature: -50000}, 500000, -50000, 5000 * 0.0145038, 500000, false},
		{ms5837.Reading{Pressure: 101325, Temperature: 2000}, 101325, 2000, 1013.25 * 0.0145038, 101325, false},
	}
	for _, test := range tests {
		cell := &sampling.Cell{}
		cell.Store(test.in)
		c, err := New(cell, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		m, _ := c.Poll()
		if m.Pressure != test.p || m.Temperature != test.temp || m.Clamped != test.clamped {
			t.Errorf("%+v: got %d %d %t", test.in, m.Pressure, m.Temperature, m.Clamped)
		}
		if math.Abs(m.PSI-test.psi) > 1e-9 || m.Pa != test.pa {
			t.Errorf("%+v: psi %g pa %g", test.in, m.PSI, m.Pa)
		}
		if math.Abs(m.PSI) > maxPSI || math.Abs(m.Pa) > maxPa {
			t.Errorf("%+v: derived value out of bounds", test.in)
		}
	}
	if b := bound(1e9, maxPa); b != maxPa {
		t.Errorf("bound()=%g", b)
	}
}

func TestCountSaturates(t *testing.T) {
	cell := &sampling.Cell{}
	cell.Store(ms5837.Reading{Pressure: 1})
	c, err := New(cell, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	c.count.Store(math.MaxUint32 - 1)
	for i := 0; i < 3; i++ {
		c.Poll()
	}
	if c.Count() != math.MaxUint32 {
		t.Errorf("Count()=%d", c.Count())
	}
}

func TestNegativePolicy(t *testing.T) {
	var tests = []struct {
		policy NegativePolicy
		p      int32
		want   uint32
	}{
		{TwosComplement, -2464, 0xfffff660},
		{TwosComplement, 18644, 18644},
		{ClampZero, -2464, 0},
		{ClampZero, -1, 0},
		{ClampZero, 18644, 18644},
	}
	for _, test := range tests {
		if got := test.policy.Word(test.p); got != test.want {
			t.Errorf("%s.Word(%d)=%#x expected %#x", test.policy, test.p, got, test.want)
		}
	}
	for _, p := range []NegativePolicy{TwosComplement, ClampZero} {
		got, err := ParseNegativePolicy(p.String())
		if err != nil || got != p {
			t.Errorf("ParseNegativePolicy(%q)=%s, %v", p.String(), got, err)
		}
	}
	if _, err := ParseNegativePolicy("saturate"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

// The full path from a stored reading to the bytes a master reads.
func TestPublishToBus(t *testing.T) {
	const addr = 0x10
	bus := &i2cslavetest.Bus{Addr: addr}
	r, err := i2cslave.New(bus, addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	bus.Attach(r)
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	cell := &sampling.Cell{}
	c, err := New(cell, r, &Opts{Negative: ClampZero})
	if err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		p    int32
		want []byte
	}{
		{18644, []byte{0xd4, 0x48, 0x00, 0x00}},
		{-2464, []byte{0x00, 0x00, 0x00, 0x00}},
		{600000, []byte{0x20, 0xa1, 0x07, 0x00}},
	} {
		cell.Store(ms5837.Reading{Pressure: test.p})
		c.Poll()
		b, err := bus.MasterRead(addr, 4)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(test.want, b); diff != "" {
			t.Errorf("%d (-want +got):\n%s", test.p, diff)
		}
	}
}

func TestAnalogOutput(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			// 1000 mbar over 0..2000 mbar, 25°C over 0..100°C.
			{Addr: 0x60, W: []byte{0x40, 0x08, 0x00}},
			{Addr: 0x60, W: []byte{0x42, 0x04, 0x00}},
		},
		DontPanic: true,
	}
	out, err := analogout.New(pb, analogout.DefaultAddress, analogout.MCP4728, 4096*physic.MilliVolt)
	if err != nil {
		t.Fatal(err)
	}
	var errs []error
	cell := &sampling.Cell{}
	c, err := New(cell, nil, &Opts{
		Output: out,
		Analog: AnalogMap{
			Pressure:    Span{Min: 0, Max: 2000},
			Temperature: Span{Min: 0, Max: 100},
		},
		OnError: func(err error) { errs = append(errs, err) },
	})
	if err != nil {
		t.Fatal(err)
	}
	cell.Store(ms5837.Reading{Pressure: 100000, Temperature: 2500})
	c.Poll()
	if err := pb.Close(); err != nil {
		t.Fatal(err)
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
	// The playback is exhausted; output errors are reported and counted
	// without stopping the publish.
	if _, ok := c.Poll(); !ok {
		t.Fatal("output errors must not drop the measurement")
	}
	if len(errs) != 2 || c.Stats().OutputErrors != 2 {
		t.Errorf("errors %v stats %+v", errs, c.Stats())
	}
}

func TestSpan(t *testing.T) {
	s := Span{Min: -10, Max: 10}
	if v := s.Voltage(0, 2*physic.Volt); v != physic.Volt {
		t.Errorf("Voltage(0)=%s", v)
	}
	if (Span{}).Enabled() || (Span{Min: 1, Max: 1}).Enabled() {
		t.Error("degenerate span must be disabled")
	}
}

func TestRun(t *testing.T) {
	cell := &sampling.Cell{}
	cell.Store(ms5837.Reading{Pressure: 1})
	got := make(chan Measurement, 1)
	c, err := New(cell, nil, &Opts{OnMeasurement: func(m Measurement) {
		select {
		case got <- m:
		default:
		}
	}})
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error)
	go func() { done <- c.Run(context.Background(), time.Millisecond) }()
	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("no measurement")
	}
	if err := c.Halt(); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Errorf("Run()=%v", err)
	}
	if err := c.Run(context.Background(), 0); err == nil {
		t.Error("expected error for zero interval")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Run(ctx, time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Errorf("Run()=%v expected context.Canceled", err)
	}
	if _, err := New(nil, nil, nil); err == nil {
		t.Error("expected error for nil source")
	}
}
