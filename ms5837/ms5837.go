// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ms5837

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/GermanBionicSystems/ms5837bridge/common"
)

// DefaultAddress is the fixed I²C address of the MS5837.
const DefaultAddress uint16 = 0x76

const (
	cmdReset     byte = 0x1e
	cmdADCRead   byte = 0x00
	cmdPROMRead  byte = 0xa0
	cmdConvertD1 byte = 0x40
	cmdConvertD2 byte = 0x50

	// The datasheet asks for 2.8ms after a reset before the PROM is readable.
	resetDelay = 3 * time.Millisecond
)

// OSR is the oversampling ratio used for a conversion. Higher ratios give a
// lower noise floor at the cost of a longer conversion time.
type OSR byte

const (
	OSR256 OSR = iota
	OSR512
	OSR1024
	OSR2048
	OSR4096
	OSR8192
)

// Maximum conversion times from the datasheet, indexed by OSR.
var conversionTimes = []time.Duration{
	600 * time.Microsecond,
	1170 * time.Microsecond,
	2280 * time.Microsecond,
	4540 * time.Microsecond,
	9040 * time.Microsecond,
	18080 * time.Microsecond,
}

// ConversionTime returns the maximum time a conversion takes at this
// oversampling ratio.
func (o OSR) ConversionTime() time.Duration {
	if int(o) >= len(conversionTimes) {
		return conversionTimes[len(conversionTimes)-1]
	}
	return conversionTimes[o]
}

func (o OSR) String() string {
	if int(o) >= len(conversionTimes) {
		return fmt.Sprintf("OSR(%d)", byte(o))
	}
	return fmt.Sprintf("OSR%d", 256<<o)
}

// Conversion selects which raw value a conversion produces.
type Conversion byte

const (
	// Pressure starts a D1 conversion.
	Pressure Conversion = Conversion(cmdConvertD1)
	// Temperature starts a D2 conversion.
	Temperature Conversion = Conversion(cmdConvertD2)
)

func (c Conversion) String() string {
	switch c {
	case Pressure:
		return "D1"
	case Temperature:
		return "D2"
	}
	return fmt.Sprintf("Conversion(0x%02x)", byte(c))
}

var (
	// ErrCRC is returned when the PROM contents do not match their CRC.
	ErrCRC = errors.New("ms5837: PROM crc mismatch")
	// ErrConversion is returned by ReadADC when the sensor reports a zero
	// code, which it does when no conversion has completed since the last
	// ADC read.
	ErrConversion = errors.New("ms5837: conversion not complete")

	errInvalidOSR        = errors.New("ms5837: invalid oversampling ratio")
	errInvalidConversion = errors.New("ms5837: invalid conversion")
)

// Opts holds the configuration options for the device.
type Opts struct {
	// OSR is the oversampling ratio for both the pressure and temperature
	// conversions. The zero value is OSR256.
	OSR OSR
	// ValidateCRC checks the PROM CRC when the calibration is loaded. Some
	// breakout boards ship parts with an unprogrammed CRC nibble, so it is
	// off by default.
	ValidateCRC bool
}

// DefaultOpts holds the default configuration options for the device.
var DefaultOpts = Opts{OSR: OSR256}

// Dev represents a MS5837 sensor.
type Dev struct {
	d        *i2c.Dev
	opts     Opts
	cal      Calibration
	mu       sync.Mutex
	cmd      [1]byte
	adc      [3]byte
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewI2C returns a MS5837 sensor on the specified bus and address. The sensor
// is reset and its calibration PROM is read before returning; if either
// fails, no device is returned. The Opts can be nil.
func NewI2C(b i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if int(opts.OSR) >= len(conversionTimes) {
		return nil, errInvalidOSR
	}
	dev := &Dev{d: &i2c.Dev{Bus: b, Addr: addr}, opts: *opts}
	if err := dev.Reset(); err != nil {
		return nil, err
	}
	cal, err := dev.ReadCalibration()
	if err != nil {
		return nil, err
	}
	dev.cal = cal
	return dev, nil
}

// WriteCommand sends a single command byte to the sensor.
func (dev *Dev) WriteCommand(cmd byte) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.writeCommand(cmd)
}

// ReadData reads len(buf) bytes from the sensor. What is returned depends on
// the last command written.
func (dev *Dev) ReadData(buf []byte) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.readData(buf)
}

func (dev *Dev) writeCommand(cmd byte) error {
	dev.cmd[0] = cmd
	if err := dev.d.Tx(dev.cmd[:], nil); err != nil {
		return fmt.Errorf("ms5837: command 0x%02x: %w", cmd, err)
	}
	return nil
}

func (dev *Dev) readData(buf []byte) error {
	if err := dev.d.Tx(nil, buf); err != nil {
		return fmt.Errorf("ms5837: %w", err)
	}
	return nil
}

// Reset performs a soft reset of the sensor, which reloads the PROM into the
// internal registers.
func (dev *Dev) Reset() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if err := dev.writeCommand(cmdReset); err != nil {
		return err
	}
	time.Sleep(resetDelay)
	return nil
}

// ReadCalibration reads the seven PROM words from the sensor. The values are
// not cached; use Calibration for the set loaded by NewI2C.
func (dev *Dev) ReadCalibration() (Calibration, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	var cal Calibration
	r := make([]byte, 2)
	for i := range cal {
		if err := dev.writeCommand(cmdPROMRead + byte(i*2)); err != nil {
			return Calibration{}, err
		}
		if err := dev.readData(r); err != nil {
			return Calibration{}, err
		}
		cal[i] = uint16(r[0])<<8 | uint16(r[1])
	}
	if dev.opts.ValidateCRC && !cal.Valid() {
		return Calibration{}, ErrCRC
	}
	return cal, nil
}

// Calibration returns the calibration loaded when the device was created.
func (dev *Dev) Calibration() Calibration {
	return dev.cal
}

// OSR returns the oversampling ratio the device converts with.
func (dev *Dev) OSR() OSR {
	return dev.opts.OSR
}

// StartConversion issues a pressure or temperature conversion at the
// configured oversampling ratio. It returns immediately; the result is
// available through ReadADC once OSR.ConversionTime has elapsed.
func (dev *Dev) StartConversion(c Conversion) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.startConversion(c)
}

func (dev *Dev) startConversion(c Conversion) error {
	if c != Pressure && c != Temperature {
		return errInvalidConversion
	}
	return dev.writeCommand(byte(c) | byte(dev.opts.OSR)<<1)
}

// ReadADC reads the 24 bit result of the last conversion.
func (dev *Dev) ReadADC() (uint32, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.readADC()
}

func (dev *Dev) readADC() (uint32, error) {
	if err := dev.writeCommand(cmdADCRead); err != nil {
		return 0, err
	}
	if err := dev.readData(dev.adc[:]); err != nil {
		return 0, err
	}
	v := uint32(dev.adc[0])<<16 | uint32(dev.adc[1])<<8 | uint32(dev.adc[2])
	if v == 0 {
		return 0, ErrConversion
	}
	return v, nil
}

// convert runs one conversion to completion, sleeping while the sensor works.
func (dev *Dev) convert(c Conversion) (uint32, error) {
	if err := dev.startConversion(c); err != nil {
		return 0, err
	}
	time.Sleep(dev.opts.OSR.ConversionTime())
	return dev.readADC()
}

// Sense runs a pressure and a temperature conversion back to back and writes
// the compensated values to env. Humidity is always 0. Implements
// physic.SenseEnv.
func (dev *Dev) Sense(env *physic.Env) error {
	env.Temperature = 0
	env.Pressure = 0
	env.Humidity = 0
	dev.mu.Lock()
	defer dev.mu.Unlock()
	d1, err := dev.convert(Pressure)
	if err != nil {
		return err
	}
	d2, err := dev.convert(Temperature)
	if err != nil {
		return err
	}
	r, err := Compensate(&dev.cal, d1, d2)
	if err != nil {
		return err
	}
	env.Pressure = r.PressureValue()
	env.Temperature = r.TemperatureValue()
	return nil
}

// SenseContinuous reads from the device every interval and writes the value
// to the returned channel. Implements physic.SenseEnv. To terminate the
// continuous read, call Halt().
//
// If interval is shorter than the time two conversions take, an error is
// returned.
func (dev *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.shutdown != nil {
		return nil, errors.New("ms5837: SenseContinuous already running")
	}
	if interval < 2*dev.opts.OSR.ConversionTime() {
		return nil, errors.New("ms5837: sample interval is < conversion time")
	}
	dev.shutdown = make(chan struct{})
	shutdown := dev.shutdown
	ch := make(chan physic.Env, 16)
	dev.wg.Add(1)
	go func() {
		defer dev.wg.Done()
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-shutdown:
				return
			case <-ticker.C:
				env := physic.Env{}
				if err := dev.Sense(&env); err == nil {
					select {
					case ch <- env:
					default:
					}
				}
			}
		}
	}()
	return ch, nil
}

// Precision returns the resolution of the values the driver reports, 0.01
// mbar and 0.01°C.
func (dev *Dev) Precision(env *physic.Env) {
	env.Temperature = 10 * physic.MilliKelvin
	env.Pressure = physic.Pascal
	env.Humidity = 0
}

// Halt stops a SenseContinuous operation in progress. Implements
// conn.Resource.
func (dev *Dev) Halt() error {
	dev.mu.Lock()
	shutdown := dev.shutdown
	dev.shutdown = nil
	dev.mu.Unlock()
	if shutdown != nil {
		close(shutdown)
		dev.wg.Wait()
	}
	return nil
}

func (dev *Dev) String() string {
	return fmt.Sprintf("ms5837: %s", dev.d.String())
}

// Valid reports whether the CRC nibble in word 0 matches the PROM contents.
func (c *Calibration) Valid() bool {
	return common.CRC4(c[:]) == byte(c[0]>>12)
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
