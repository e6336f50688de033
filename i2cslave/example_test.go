// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2cslave_test

import (
	"fmt"
	"log"

	"github.com/GermanBionicSystems/ms5837bridge/i2cslave"
	"github.com/GermanBionicSystems/ms5837bridge/i2cslave/i2cslavetest"
)

func Example() {
	// An in-memory bus stands in for the I²C peripheral.
	bus := &i2cslavetest.Bus{Addr: 0x10}
	r, err := i2cslave.New(bus, 0x10, &i2cslave.Opts{
		OnReceive: func(v uint32) { fmt.Printf("received %#x\n", v) },
	})
	if err != nil {
		log.Fatal(err)
	}
	bus.Attach(r)
	if err := r.Start(); err != nil {
		log.Fatal(err)
	}
	defer r.Halt()

	r.SetTxValue(18644)
	b, err := bus.MasterRead(0x10, i2cslave.WordSize)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("% x\n", b)
	if err := bus.MasterWrite(0x10, []byte{1, 2, 3, 4}); err != nil {
		log.Fatal(err)
	}
	// Output:
	// d4 48 00 00
	// received 0x4030201
}
