// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// ms5837bridge samples a MS5837 pressure sensor and republishes the latest
// pressure as a 32 bit word to an I²C master, optionally mirroring it on a
// voltage output.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/ms5837bridge/analogout"
	"github.com/GermanBionicSystems/ms5837bridge/bridge"
	"github.com/GermanBionicSystems/ms5837bridge/gauge"
	"github.com/GermanBionicSystems/ms5837bridge/i2cslave"
	"github.com/GermanBionicSystems/ms5837bridge/i2cslave/i2cslavetest"
	"github.com/GermanBionicSystems/ms5837bridge/internal/config"
	"github.com/GermanBionicSystems/ms5837bridge/internal/metrics"
	"github.com/GermanBionicSystems/ms5837bridge/ms5837"
	"github.com/GermanBionicSystems/ms5837bridge/sampling"
)

func main() {
	cfgPath := flag.String("config", "", "YAML configuration file; defaults apply when empty")
	flag.Parse()

	// --------------------
	// Load + validate config
	// --------------------

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			log.Fatalf("config load failed: %v", err)
		}
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("host init: %w", err)
	}

	// --------------------
	// Sensor + sampler
	// --------------------

	bus, err := i2creg.Open(cfg.Sensor.Bus)
	if err != nil {
		return fmt.Errorf("open sensor bus: %w", err)
	}
	defer bus.Close()

	osr, _ := cfg.Sensor.OversamplingRatio()
	dev, err := ms5837.NewI2C(bus, cfg.Sensor.Address, &ms5837.Opts{OSR: osr, ValidateCRC: cfg.Sensor.ValidateCRC})
	if err != nil {
		return err
	}
	defer dev.Halt()
	cal := dev.Calibration()
	log.Printf("%s: %s, calibration %v", dev, osr, cal)

	// Errors raised in the tick and bus contexts are handed over without
	// blocking and logged here.
	events := make(chan string, 32)
	report := func(format string, args ...interface{}) {
		select {
		case events <- fmt.Sprintf(format, args...):
		default:
		}
	}

	smp, err := sampling.New(dev, &cal, nil, &sampling.Opts{
		Period:         cfg.Sampling.Period(),
		ConversionTime: osr.ConversionTime(),
		SettleTicks:    cfg.Sampling.SettleTicks,
		RetryTicks:     cfg.Sampling.RetryTicks,
		OnError:        func(s sampling.State, err error) { report("sampler: %s: %v", s, err) },
	})
	if err != nil {
		return err
	}
	defer smp.Halt()

	// --------------------
	// Bus responder
	// --------------------

	var responder *i2cslave.Responder
	var pub bridge.Publisher
	if cfg.Slave.Simulate {
		sim := &i2cslavetest.Bus{Addr: cfg.Slave.Address}
		responder, err = i2cslave.New(sim, cfg.Slave.Address, &i2cslave.Opts{
			OnReceive: func(v uint32) { report("slave: received 0x%08x", v) },
			OnError:   func(err error) { report("slave: %v", err) },
		})
		if err != nil {
			return err
		}
		sim.Attach(responder)
		if err := responder.Start(); err != nil {
			return err
		}
		defer responder.Halt()
		pub = responder
		go simulateMaster(ctx, sim, cfg.Slave.Address, time.Duration(cfg.Slave.SimulateReadMs)*time.Millisecond)
	} else {
		log.Printf("slave: no target mode transport configured, set slave.simulate to run the responder in process")
	}

	// --------------------
	// Coordinator, analog output, gauge
	// --------------------

	negative, _ := bridge.ParseNegativePolicy(cfg.Coordinator.Negative)
	opts := bridge.Opts{
		Negative: negative,
		OnError:  func(err error) { report("analog: %v", err) },
	}
	if a := cfg.Analog; a.Enabled {
		abus := bus
		if a.Bus != cfg.Sensor.Bus {
			b, err := i2creg.Open(a.Bus)
			if err != nil {
				return fmt.Errorf("open analog bus: %w", err)
			}
			defer b.Close()
			abus = b
		}
		out, err := analogout.New(abus, i2c.Addr(a.Address), analogout.Variant(a.Variant), physic.ElectricPotential(a.VRefMv)*physic.MilliVolt)
		if err != nil {
			return err
		}
		defer out.Halt()
		opts.Output = out
		opts.Analog = bridge.AnalogMap{
			Pressure:    bridge.Span{Min: a.Pressure.Min, Max: a.Pressure.Max},
			Temperature: bridge.Span{Min: a.Temperature.Min, Max: a.Temperature.Max},
		}
	}
	if g := cfg.Gauge; g.Enabled && isatty.IsTerminal(os.Stdout.Fd()) {
		gd := gauge.New(&gauge.Opts{Width: g.Width, Fill: gauge.DefaultOpts.Fill, Empty: gauge.DefaultOpts.Empty})
		defer gd.Halt()
		opts.OnMeasurement = renderGauge(gd, g.FullScaleMbar, report)
	}
	coord, err := bridge.New(smp.Cell(), pub, &opts)
	if err != nil {
		return err
	}
	defer coord.Halt()

	// --------------------
	// Metrics
	// --------------------

	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg, metrics.Sources{Sampler: smp, Responder: responder, Coordinator: coord}); err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				report("metrics: %v", err)
			}
		}()
		defer srv.Close()
		log.Printf("metrics: serving on %s", cfg.Metrics.Listen)
	}

	// --------------------
	// Run
	// --------------------

	smp.Start()
	go smp.Run(ctx)
	go coord.Run(ctx, cfg.Coordinator.Interval())
	log.Printf("running, sampling every %s with %d settle ticks", cfg.Sampling.Period(), smp.SettleTicks())

	for {
		select {
		case <-ctx.Done():
			log.Printf("shutting down after %d readings", coord.Count())
			return nil
		case e := <-events:
			log.Print(e)
		}
	}
}

// simulateMaster reads the published word the way an external master would.
// renderGauge returns a measurement hook drawing the pressure against
// fullScale mbar. Terminal write errors go to report.
func renderGauge(gd *gauge.Dev, fullScale float64, report func(format string, args ...interface{})) func(bridge.Measurement) {
	return func(m bridge.Measurement) {
		if err := gd.Render(m.Mbar/fullScale, m.String()); err != nil {
			report("gauge: %v", err)
		}
	}
}

func simulateMaster(ctx context.Context, bus *i2cslavetest.Bus, addr uint16, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b, err := bus.MasterRead(addr, i2cslave.WordSize)
			if err != nil {
				log.Printf("master: %v", err)
				continue
			}
			log.Printf("master: read %d (0.01 mbar)", int32(i2cslave.Word(b)))
		}
	}
}
