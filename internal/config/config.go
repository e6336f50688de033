// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config loads the daemon configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Sensor      SensorConfig      `yaml:"sensor"`
	Sampling    SamplingConfig    `yaml:"sampling"`
	Slave       SlaveConfig       `yaml:"slave"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Analog      AnalogConfig      `yaml:"analog"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Gauge       GaugeConfig       `yaml:"gauge"`
}

// ---- SENSOR ----

type SensorConfig struct {
	// Bus is the i2creg name of the bus; empty picks the first one.
	Bus         string `yaml:"bus"`
	Address     uint16 `yaml:"address"`
	OSR         int    `yaml:"osr"` // 256 .. 8192
	ValidateCRC bool   `yaml:"validate_crc"`
}

// ---- SAMPLING ----

type SamplingConfig struct {
	PeriodMs    int    `yaml:"period_ms"`
	SettleTicks uint32 `yaml:"settle_ticks"` // 0 derives it from the OSR
	RetryTicks  uint32 `yaml:"retry_ticks"`
}

// ---- SLAVE ----

type SlaveConfig struct {
	Address uint16 `yaml:"address"`
	// Simulate runs the responder on an in-process bus with a simulated
	// master polling it every SimulateReadMs.
	Simulate       bool `yaml:"simulate"`
	SimulateReadMs int  `yaml:"simulate_read_ms"`
}

// ---- COORDINATOR ----

type CoordinatorConfig struct {
	IntervalMs int `yaml:"interval_ms"`
	// Negative is "twos-complement" or "clamp-zero".
	Negative string `yaml:"negative"`
}

// ---- ANALOG OUTPUT ----

type AnalogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bus     string `yaml:"bus"`
	Variant string `yaml:"variant"` // MCP4725 or MCP4728
	Address uint16 `yaml:"address"`
	VRefMv  int    `yaml:"vref_mv"`

	Pressure    SpanConfig `yaml:"pressure_mbar"`
	Temperature SpanConfig `yaml:"temperature_c"`
}

type SpanConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// ---- METRICS ----

type MetricsConfig struct {
	// Listen is the address /metrics is served on; empty disables it.
	Listen string `yaml:"listen"`
}

// ---- GAUGE ----

type GaugeConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Width         int     `yaml:"width"`
	FullScaleMbar float64 `yaml:"full_scale_mbar"`
}

// Default returns the configuration used for every field a file leaves out.
func Default() *Config {
	return &Config{
		Sensor:      SensorConfig{Address: 0x76, OSR: 256},
		Sampling:    SamplingConfig{PeriodMs: 2, RetryTicks: 10},
		Slave:       SlaveConfig{Address: 0x10, SimulateReadMs: 1000},
		Coordinator: CoordinatorConfig{IntervalMs: 10, Negative: "twos-complement"},
		Analog: AnalogConfig{
			Variant:     "MCP4725",
			Address:     0x60,
			VRefMv:      3300,
			Pressure:    SpanConfig{Min: 0, Max: 3000},
			Temperature: SpanConfig{Min: -20, Max: 85},
		},
		Metrics: MetricsConfig{Listen: ":9108"},
		Gauge:   GaugeConfig{Width: 40, FullScaleMbar: 3000},
	}
}

// Load reads path on top of Default. Unknown keys are an error.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(b)
}

// Parse decodes a YAML document on top of Default.
func Parse(b []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
