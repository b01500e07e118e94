// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package source

import (
	"fmt"

	"github.com/Thermoquad/canstat/pkg/dbc"
	"go.einride.tech/can"
)

// FromCANFrame converts an einride frame to a decoder frame
func FromCANFrame(cf can.Frame) dbc.Frame {
	n := int(cf.Length)
	if n > dbc.MaxPayloadSize {
		n = dbc.MaxPayloadSize
	}
	payload := make([]byte, n)
	copy(payload, cf.Data[:n])
	return dbc.Frame{
		ID:       cf.ID,
		Payload:  payload,
		Extended: cf.IsExtended,
	}
}

// ToCANFrame converts a decoder frame to an einride data frame
func ToCANFrame(f dbc.Frame) (can.Frame, error) {
	if len(f.Payload) > dbc.MaxPayloadSize {
		return can.Frame{}, fmt.Errorf("payload of %d bytes exceeds %d", len(f.Payload), dbc.MaxPayloadSize)
	}
	cf := can.Frame{
		ID:         f.ID,
		Length:     uint8(len(f.Payload)),
		IsExtended: f.Extended,
	}
	copy(cf.Data[:], f.Payload)
	if err := cf.Validate(); err != nil {
		return can.Frame{}, fmt.Errorf("invalid frame: %w", err)
	}
	return cf, nil
}
