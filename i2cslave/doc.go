// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package i2cslave implements the target side of a small I²C register
// protocol: an external master either writes one 32 bit word or reads one 32
// bit word, both little-endian.
//
// The Responder does not own a bus. It is driven by a transport through the
// Port interface and the event methods (AddressMatch, ReceiveComplete,
// TransmitComplete, BusError, ListenComplete), which the transport calls from
// its event context. None of them block.
//
// # Protocol
//
// A write of exactly 4 bytes updates the received word and calls
// Opts.OnReceive. A read of 4 bytes returns the word from Opts.Supplier, or
// the last value passed to SetTxValue, or zero if none was ever set.
// Malformed transactions are dropped and the responder listens again.
package i2cslave
