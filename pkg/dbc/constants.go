// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dbc decodes CAN frames using signal definitions written in the DBC
// description format.
//
// A Catalog is built once from DBC text with Parse or Load and is read-only
// afterwards. DecodeFrame looks a frame up by arbitration ID and extracts every
// signal of the matching message; DecodeSignal does the bit extraction, sign
// extension and affine scaling for a single signal.
//
// Only the BO_ and SG_ directives are interpreted. Multiplexed signals,
// multi-frame transport and CAN-FD payloads are not supported.
package dbc

// ByteOrder selects how a signal's bits are laid out in the payload
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota // Intel, "@0"
	BigEndian                     // Motorola, "@1"
)

// String returns the DBC name of the byte order
func (b ByteOrder) String() string {
	if b == LittleEndian {
		return "intel"
	}
	return "motorola"
}

// Directive tokens
const (
	tokenMessage = "BO_"
	tokenSignal  = "SG_"
)

// Payload limits (classical CAN)
const (
	MaxPayloadSize  = 8
	MaxSignalLength = 64
)

// ExtendedIDFlag is set on BO_ IDs that describe 29-bit frames
const ExtendedIDFlag = 0x80000000

// DefaultUnit is used when a signal line carries no quoted unit
const DefaultUnit = " "

// Record header written once per session before the first decoded signal
const RecordHeader = "SignalName,RawValue,PhysicalValue,Units"
