// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ms5837

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"periph.io/x/conn/v3/physic"
)

// Calibration holds the factory PROM words. Word 0 carries the CRC in its top
// nibble; words 1 to 6 are the coefficients C1 to C6 of the datasheet.
type Calibration [7]uint16

// Reading is a compensated sample in the sensor's fixed point units.
type Reading struct {
	// Pressure in 0.01 mbar, which is also 1 Pa.
	Pressure int32
	// Temperature in 0.01°C.
	Temperature int32
}

// PressureValue returns the pressure as a physic.Pressure.
func (r Reading) PressureValue() physic.Pressure {
	return physic.Pressure(r.Pressure) * physic.Pascal
}

// TemperatureValue returns the temperature as a physic.Temperature.
func (r Reading) TemperatureValue() physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(r.Temperature)*10*physic.MilliKelvin
}

func (r Reading) String() string {
	return fmt.Sprintf("%s %s", r.PressureValue(), r.TemperatureValue())
}

// ErrNilCalibration is returned by Compensate when no calibration is given.
var ErrNilCalibration = errors.New("ms5837: nil calibration")

// Compensate converts the raw pressure (D1) and temperature (D2) codes into a
// Reading using the first order formula of the datasheet:
//
//	dT   = D2 - C5*2^8
//	TEMP = 2000 + dT*C6/2^23
//	OFF  = C2*2^17 + C4*dT/2^6
//	SENS = C1*2^16 + C3*dT/2^7
//	P    = (D1*SENS/2^21 - OFF)/2^15
//
// Divisions truncate toward zero. Results outside the int32 range saturate to
// math.MaxInt32 or math.MinInt32; no error is reported for that.
func Compensate(cal *Calibration, d1, d2 uint32) (Reading, error) {
	if cal == nil {
		return Reading{}, ErrNilCalibration
	}
	temp, off, sens := cal.terms(d2)
	p := (mulShift(d1, sens, 21) - off) / (1 << 15)
	return Reading{Pressure: saturate(p), Temperature: saturate(temp)}, nil
}

// terms returns TEMP, OFF and SENS for the temperature code d2.
func (cal *Calibration) terms(d2 uint32) (temp, off, sens int64) {
	dT := int64(d2) - int64(cal[5])<<8
	temp = 2000 + dT*int64(cal[6])/(1<<23)
	off = int64(cal[2])<<17 + int64(cal[4])*dT/(1<<6)
	sens = int64(cal[1])<<16 + int64(cal[3])*dT/(1<<7)
	return temp, off, sens
}

// mulShift returns a*b/2^n truncated toward zero. The product is kept in 128
// bits since a full 32 bit code times SENS does not fit in 64.
func mulShift(a uint32, b int64, n uint) int64 {
	neg := b < 0
	mag := uint64(b)
	if neg {
		mag = uint64(-b)
	}
	hi, lo := bits.Mul64(uint64(a), mag)
	q := int64(hi<<(64-n) | lo>>n)
	if neg {
		return -q
	}
	return q
}

func saturate(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
