// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package analogout_test

import (
	"log"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/ms5837bridge/analogout"
)

func Example() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	bus, err := i2creg.Open("")
	if err != nil {
		log.Fatal(err)
	}
	defer bus.Close()
	// The MCP4725 uses VCC as its reference.
	dev, err := analogout.New(bus, analogout.DefaultAddress, analogout.MCP4725, 3300*physic.MilliVolt)
	if err != nil {
		log.Fatal(err)
	}
	defer dev.Halt()
	if err := dev.SetVoltage(0, 1650*physic.MilliVolt); err != nil {
		log.Fatal(err)
	}
}
