// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ms5837bridge samples a TE MS5837 pressure sensor on a fixed tick
// and republishes the latest pressure to an external I²C master.
//
// The pieces are independent packages:
//
//   - ms5837 talks to the sensor and compensates its raw codes.
//   - sampling runs the non-blocking conversion state machine.
//   - i2cslave answers the master with 32 bit little-endian words.
//   - bridge moves readings from the sampler to the bus.
//   - analogout and gauge are optional outputs.
//
// cmd/ms5837bridge wires them into a daemon.
package ms5837bridge
