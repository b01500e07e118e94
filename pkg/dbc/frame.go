// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dbc

import "time"

// Frame is one received CAN frame.
// Extended, Overrun and Timestamp are carried for logging only.
type Frame struct {
	ID        uint32
	Payload   []byte
	Extended  bool
	Overrun   bool
	Timestamp uint64

	// Received is the host time the frame was read, zero when unknown
	Received time.Time
}

// Outcome is the result of decoding one frame.
// Signals is nil when Matched is false.
type Outcome struct {
	Frame   *Frame
	Matched bool
	Message *MessageDef
	Signals []DecodedSignal
}

// SignalErrors returns the number of signals that failed to decode
func (o *Outcome) SignalErrors() int {
	n := 0
	for i := range o.Signals {
		if !o.Signals[i].OK() {
			n++
		}
	}
	return n
}

// MessageName returns the matched message name or an empty string
func (o *Outcome) MessageName() string {
	if o.Message == nil {
		return ""
	}
	return o.Message.Name
}

// DecodeFrame looks the frame up in the catalog and decodes every signal of
// the matching message in declaration order.
// An unknown ID is a normal Unmatched outcome. A signal that cannot be read
// from the payload carries its error and does not stop the others.
func DecodeFrame(c *Catalog, f *Frame) Outcome {
	out := Outcome{Frame: f}

	msg, ok := c.Lookup(f.ID)
	if !ok && f.Extended {
		msg, ok = c.Lookup(f.ID | ExtendedIDFlag)
	}
	if !ok {
		return out
	}

	out.Matched = true
	out.Message = msg
	out.Signals = make([]DecodedSignal, len(msg.Signals))
	for i, sig := range msg.Signals {
		// The error is also stored on the signal itself
		out.Signals[i], _ = DecodeSignal(sig, f.Payload)
	}
	return out
}
