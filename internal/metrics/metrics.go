// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package metrics exports the bridge state to Prometheus. Every collector
// reads the live counters when scraped; nothing is updated on the hot paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/GermanBionicSystems/ms5837bridge/bridge"
	"github.com/GermanBionicSystems/ms5837bridge/i2cslave"
	"github.com/GermanBionicSystems/ms5837bridge/sampling"
)

const namespace = "ms5837bridge"

// Sources are the components scraped. Responder can be nil.
type Sources struct {
	Sampler     *sampling.Sampler
	Responder   *i2cslave.Responder
	Coordinator *bridge.Coordinator
}

// Register adds the collectors for src to reg.
func Register(reg prometheus.Registerer, src Sources) error {
	for _, c := range collectors(src) {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func collectors(src Sources) []prometheus.Collector {
	var out []prometheus.Collector
	if s := src.Sampler; s != nil {
		out = append(out,
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sampler_state",
				Help:      "Conversion state, 0 is Idle and 8 is Error.",
			}, func() float64 { return float64(s.State()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sampler_cycles_total",
				Help:      "Completed conversion cycles.",
			}, func() float64 { return float64(s.Cycles()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sampler_errors_total",
				Help:      "Sensor transactions that sent the sampler to Error.",
			}, func() float64 { return float64(s.Errors()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reading_valid",
				Help:      "1 when the latest reading is valid.",
			}, func() float64 { return boolean(s.Cell().Valid()) }),
		)
	}
	if c := src.Coordinator; c != nil {
		out = append(out,
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "readings_total",
				Help:      "Valid readings published, saturating at 2^32-1.",
			}, func() float64 { return float64(c.Stats().Readings) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "readings_clamped_total",
				Help:      "Readings bounded before publishing.",
			}, func() float64 { return float64(c.Stats().Clamped) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analog_errors_total",
				Help:      "Failed writes to the voltage output.",
			}, func() float64 { return float64(c.Stats().OutputErrors) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pressure_mbar",
				Help:      "Last published pressure.",
			}, func() float64 { m, _ := c.Last(); return m.Mbar }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "temperature_celsius",
				Help:      "Last published temperature.",
			}, func() float64 { m, _ := c.Last(); return m.Celsius }),
		)
	}
	if r := src.Responder; r != nil {
		out = append(out,
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "slave_transactions_total",
				Help:        "Completed bus transactions.",
				ConstLabels: prometheus.Labels{"direction": "write"},
			}, func() float64 { return float64(r.Stats().Received) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "slave_transactions_total",
				Help:        "Completed bus transactions.",
				ConstLabels: prometheus.Labels{"direction": "read"},
			}, func() float64 { return float64(r.Stats().Transmitted) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "slave_errors_total",
				Help:      "Dropped bus transactions.",
			}, func() float64 { return float64(r.Stats().Errors) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "slave_published_word",
				Help:      "Word returned to master reads.",
			}, func() float64 { v, _ := r.TxValue(); return float64(v) }),
		)
	}
	return out
}

func boolean(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
