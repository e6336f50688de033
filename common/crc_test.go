// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package common

import "testing"

func TestCRC4(t *testing.T) {
	var tests = []struct {
		prom   []uint16
		result byte
	}{
		{prom: []uint16{0x0000, 0x88a6, 0x8e6b, 0x5115, 0x5bca, 0x84ac, 0x70bf}, result: 0xc},
		// The CRC nibble of word 0 must not change the result.
		{prom: []uint16{0xc000, 0x88a6, 0x8e6b, 0x5115, 0x5bca, 0x84ac, 0x70bf}, result: 0xc},
		{prom: []uint16{0xc0c2, 0x88a6, 0x8e6b, 0x5115, 0x5bca, 0x84ac, 0x70bf}, result: 0x2},
		// Word 7 is a subsidiary value and is ignored.
		{prom: []uint16{0x0000, 0x88a6, 0x8e6b, 0x5115, 0x5bca, 0x84ac, 0x70bf, 0xffff}, result: 0xc},
	}
	for _, test := range tests {
		res := CRC4(test.prom)
		if res != test.result {
			t.Errorf("CRC4(%#v)!=0x%x received 0x%x", test.prom, test.result, res)
		}
	}
}
