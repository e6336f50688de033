// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sampling

import (
	"sync/atomic"

	"github.com/GermanBionicSystems/ms5837bridge/ms5837"
)

// Cell holds the most recent valid reading. A new Store replaces the previous
// value whether or not it was read; there is no history. The reading is kept
// in a single 64 bit word so a reader never sees the pressure of one cycle
// with the temperature of another.
//
// The zero value is an empty, invalid cell.
type Cell struct {
	word  atomic.Uint64
	valid atomic.Bool
}

// Store publishes r and marks the cell valid.
func (c *Cell) Store(r ms5837.Reading) {
	c.word.Store(uint64(uint32(r.Pressure)) | uint64(uint32(r.Temperature))<<32)
	c.valid.Store(true)
}

// Invalidate marks the cell invalid. The last reading is kept but Load no
// longer returns it.
func (c *Cell) Invalidate() {
	c.valid.Store(false)
}

// Load returns the latest reading and whether it is valid. An invalid cell
// returns a zero Reading.
func (c *Cell) Load() (ms5837.Reading, bool) {
	if !c.valid.Load() {
		return ms5837.Reading{}, false
	}
	w := c.word.Load()
	return ms5837.Reading{Pressure: int32(uint32(w)), Temperature: int32(uint32(w >> 32))}, true
}

// Valid reports whether the cell holds a valid reading.
func (c *Cell) Valid() bool {
	return c.valid.Load()
}
