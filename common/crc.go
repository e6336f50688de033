// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains functions used across multiple packages. For
// example, the CRC4 used to protect the PROM of MEAS/TE pressure sensors.
package common

// CRC4 calculates the 4-bit CRC of a MEAS/TE sensor PROM image, as used by
// the MS5837 and MS5611 families. prom holds the PROM words in read order,
// word 0 first. The CRC itself lives in the top 4 bits of word 0 and is
// excluded from the calculation, as is word 7 when present.
func CRC4(prom []uint16) byte {
	var words [8]uint16
	copy(words[:], prom)
	words[0] &= 0x0fff
	words[7] = 0
	var rem uint16
	for cnt := 0; cnt < 16; cnt++ {
		if cnt%2 == 1 {
			rem ^= words[cnt>>1] & 0x00ff
		} else {
			rem ^= words[cnt>>1] >> 8
		}
		for i := 0; i < 8; i++ {
			if rem&0x8000 != 0 {
				rem = (rem << 1) ^ 0x3000
			} else {
				rem <<= 1
			}
		}
	}
	return byte(rem>>12) & 0x0f
}
