// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"time"

	"github.com/GermanBionicSystems/ms5837bridge/analogout"
	"github.com/GermanBionicSystems/ms5837bridge/bridge"
	"github.com/GermanBionicSystems/ms5837bridge/ms5837"
)

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg.Sensor.Address > 0x7f {
		return fmt.Errorf("sensor.address 0x%x is not a 7 bit address", cfg.Sensor.Address)
	}
	if _, err := cfg.Sensor.OversamplingRatio(); err != nil {
		return err
	}
	if cfg.Sampling.PeriodMs <= 0 {
		return fmt.Errorf("sampling.period_ms must be positive, got %d", cfg.Sampling.PeriodMs)
	}
	if cfg.Slave.Address > 0x7f {
		return fmt.Errorf("slave.address 0x%x is not a 7 bit address", cfg.Slave.Address)
	}
	if cfg.Slave.Simulate && cfg.Slave.SimulateReadMs <= 0 {
		return fmt.Errorf("slave.simulate_read_ms must be positive, got %d", cfg.Slave.SimulateReadMs)
	}
	if cfg.Coordinator.IntervalMs <= 0 {
		return fmt.Errorf("coordinator.interval_ms must be positive, got %d", cfg.Coordinator.IntervalMs)
	}
	if _, err := bridge.ParseNegativePolicy(cfg.Coordinator.Negative); err != nil {
		return fmt.Errorf("coordinator.negative: %w", err)
	}
	if a := cfg.Analog; a.Enabled {
		if v := analogout.Variant(a.Variant); v != analogout.MCP4725 && v != analogout.MCP4728 {
			return fmt.Errorf("analog.variant %q must be MCP4725 or MCP4728", a.Variant)
		}
		if a.Address > 0x7f {
			return fmt.Errorf("analog.address 0x%x is not a 7 bit address", a.Address)
		}
		if a.Bus == cfg.Sensor.Bus && a.Address == cfg.Sensor.Address {
			return fmt.Errorf("analog.address 0x%x collides with sensor.address", a.Address)
		}
		if a.VRefMv <= 0 {
			return fmt.Errorf("analog.vref_mv must be positive, got %d", a.VRefMv)
		}
		if a.Pressure.Max <= a.Pressure.Min {
			return fmt.Errorf("analog.pressure_mbar: max %g must be above min %g", a.Pressure.Max, a.Pressure.Min)
		}
	}
	if l := cfg.Metrics.Listen; l != "" {
		if _, _, err := net.SplitHostPort(l); err != nil {
			return fmt.Errorf("metrics.listen %q: %w", l, err)
		}
	}
	if g := cfg.Gauge; g.Enabled {
		if g.Width <= 0 {
			return fmt.Errorf("gauge.width must be positive, got %d", g.Width)
		}
		if g.FullScaleMbar <= 0 {
			return fmt.Errorf("gauge.full_scale_mbar must be positive, got %g", g.FullScaleMbar)
		}
	}
	return nil
}

// OversamplingRatio maps the osr field to the driver constant.
func (s SensorConfig) OversamplingRatio() (ms5837.OSR, error) {
	for o := ms5837.OSR256; o <= ms5837.OSR8192; o++ {
		if 256<<o == s.OSR {
			return o, nil
		}
	}
	return 0, fmt.Errorf("sensor.osr %d must be one of 256, 512, 1024, 2048, 4096, 8192", s.OSR)
}

// Period returns the sampling tick period.
func (s SamplingConfig) Period() time.Duration {
	return time.Duration(s.PeriodMs) * time.Millisecond
}

// Interval returns the coordinator poll interval.
func (c CoordinatorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}
