// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ms5837 controls a TE Connectivity MS5837 pressure sensor over I²C.
//
// The sensor is driven through single command bytes: reset, PROM read, start
// a pressure (D1) or temperature (D2) conversion at a given oversampling
// ratio, and ADC read. Raw codes are turned into pressure and temperature
// with the factory coefficients stored in the sensor PROM, see Compensate.
//
// Dev implements physic.SenseEnv with a blocking Sense that waits for each
// conversion. For non-blocking acquisition paced by an external tick, use
// StartConversion and ReadADC directly, as package sampling does.
//
// # Datasheet
//
// https://www.te.com/commerce/DocumentDelivery/DDEController?Action=showdoc&DocId=Data+Sheet%7FMS5837-02BA01%7FB%7Fpdf%7FEnglish%7FENG_DS_MS5837-02BA01_B.pdf
package ms5837
