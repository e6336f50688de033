// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2cslave

import "encoding/binary"

// WordSize is the size of a transaction payload in bytes.
const WordSize = 4

// PutWord encodes v into b, least significant byte first. b must hold at
// least WordSize bytes.
func PutWord(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

// Word decodes the little-endian word at the start of b.
func Word(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}
