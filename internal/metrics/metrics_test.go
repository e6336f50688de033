// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/GermanBionicSystems/ms5837bridge/bridge"
	"github.com/GermanBionicSystems/ms5837bridge/i2cslave"
	"github.com/GermanBionicSystems/ms5837bridge/i2cslave/i2cslavetest"
	"github.com/GermanBionicSystems/ms5837bridge/ms5837"
	"github.com/GermanBionicSystems/ms5837bridge/sampling"
)

type idleSensor struct{}

func (idleSensor) StartConversion(ms5837.Conversion) error { return nil }
func (idleSensor) ReadADC() (uint32, error)                { return 1, nil }

func TestRegister(t *testing.T) {
	cal := ms5837.Calibration{}
	s, err := sampling.New(idleSensor{}, &cal, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	bus := &i2cslavetest.Bus{Addr: 0x10}
	r, err := i2cslave.New(bus, 0x10, nil)
	if err != nil {
		t.Fatal(err)
	}
	bus.Attach(r)
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	c, err := bridge.New(s.Cell(), r, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Cell().Store(ms5837.Reading{Pressure: 101325, Temperature: 2000})
	c.Poll()
	if _, err := bus.MasterRead(0x10, 4); err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	if err := Register(reg, Sources{Sampler: s, Responder: r, Coordinator: c}); err != nil {
		t.Fatal(err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			name := f.GetName()
			for _, l := range m.GetLabel() {
				name += "/" + l.GetValue()
			}
			switch {
			case m.Gauge != nil:
				got[name] = m.GetGauge().GetValue()
			case m.Counter != nil:
				got[name] = m.GetCounter().GetValue()
			}
		}
	}
	want := map[string]float64{
		"ms5837bridge_sampler_state":                  0,
		"ms5837bridge_sampler_cycles_total":           0,
		"ms5837bridge_sampler_errors_total":           0,
		"ms5837bridge_reading_valid":                  1,
		"ms5837bridge_readings_total":                 1,
		"ms5837bridge_readings_clamped_total":         0,
		"ms5837bridge_analog_errors_total":            0,
		"ms5837bridge_pressure_mbar":                  1013.25,
		"ms5837bridge_temperature_celsius":            20,
		"ms5837bridge_slave_transactions_total/read":  1,
		"ms5837bridge_slave_transactions_total/write": 0,
		"ms5837bridge_slave_errors_total":             0,
		"ms5837bridge_slave_published_word":           101325,
	}
	for k, v := range want {
		if g, ok := got[k]; !ok || g != v {
			t.Errorf("%s=%g (present %t) expected %g", k, g, ok, v)
		}
	}
	if len(got) != len(want) {
		t.Errorf("got %d series, expected %d", len(got), len(want))
	}

	// Registering the same sources twice fails.
	if err := Register(reg, Sources{Sampler: s}); err == nil {
		t.Error("expected duplicate registration error")
	}
}
