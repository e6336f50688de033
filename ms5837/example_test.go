// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ms5837_test

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/ms5837bridge/ms5837"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	// Open default I²C bus.
	bus, err := i2creg.Open("")
	if err != nil {
		log.Fatalf("failed to open I²C: %v", err)
	}
	defer bus.Close()

	dev, err := ms5837.NewI2C(bus, ms5837.DefaultAddress, &ms5837.Opts{OSR: ms5837.OSR1024, ValidateCRC: true})
	if err != nil {
		log.Fatal(err)
	}
	env := physic.Env{}
	if err := dev.Sense(&env); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%8s %10s\n", env.Temperature, env.Pressure)
}

func ExampleCompensate() {
	// Coefficients and codes from the datasheet example.
	cal := ms5837.Calibration{0, 46372, 43981, 29059, 27842, 31553, 28165}
	r, err := ms5837.Compensate(&cal, 6465444, 8077636)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(r.Pressure, r.Temperature)
	// Output: 110002 2000
}
