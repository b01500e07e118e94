// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dbc

import (
	"fmt"
	"math"
	"sort"
)

// EncodeSignal writes the low Length bits of raw into payload at the positions
// DecodeSignal reads them from. Bits outside the signal are left untouched.
func EncodeSignal(sig *SignalDef, payload []byte, raw uint64) error {
	if sig.Length < 1 || sig.Length > MaxSignalLength {
		return &SignalError{Signal: sig.Name, Err: ErrInvalidLength}
	}

	totalBits := len(payload) * 8
	// Check the whole range first so a failed encode leaves payload unchanged
	for i := 0; i < sig.Length; i++ {
		if _, _, err := bitPosition(sig, i, totalBits); err != nil {
			return &SignalError{Signal: sig.Name, Err: err}
		}
	}

	for i := 0; i < sig.Length; i++ {
		pos, bitInByte, _ := bitPosition(sig, i, totalBits)
		if raw&(uint64(1)<<i) != 0 {
			payload[pos/8] |= 1 << bitInByte
		} else {
			payload[pos/8] &^= 1 << bitInByte
		}
	}
	return nil
}

// PhysicalToRaw inverts the affine transform: round((physical-offset)/scale),
// clamped to what the signal can represent. Signed values are returned in
// two's complement over Length bits.
func PhysicalToRaw(sig *SignalDef, physical float64) uint64 {
	if sig.Scale == 0 || sig.Length < 1 || sig.Length > MaxSignalLength {
		return 0
	}
	v := math.Round((physical - sig.Offset) / sig.Scale)

	if sig.Signed {
		lo, hi := signedBounds(sig.Length)
		var n int64
		switch {
		case math.IsNaN(v):
			n = 0
		case v <= float64(lo):
			n = lo
		case v >= float64(hi):
			n = hi
		default:
			n = int64(v)
		}
		return uint64(n) & lengthMask(sig.Length)
	}

	hi := lengthMask(sig.Length)
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= float64(hi):
		return hi
	default:
		return uint64(v)
	}
}

// EncodeMessage builds a payload for msg from physical values keyed by
// signal name. Signals without a value are encoded as raw zero.
// The payload is DLC bytes long, or MaxPayloadSize when the DLC is unknown.
func EncodeMessage(msg *MessageDef, values map[string]float64) ([]byte, error) {
	size := msg.DLC
	if size <= 0 || size > MaxPayloadSize {
		size = MaxPayloadSize
	}
	payload := make([]byte, size)

	// Sorted for deterministic error reporting
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if msg.Signal(name) == nil {
			return nil, fmt.Errorf("message %s: %w: %s", msg.Name, ErrUnknownSignal, name)
		}
	}

	for _, sig := range msg.Signals {
		v, ok := values[sig.Name]
		if !ok {
			continue
		}
		if err := EncodeSignal(sig, payload, PhysicalToRaw(sig, v)); err != nil {
			return nil, fmt.Errorf("message %s: %w", msg.Name, err)
		}
	}
	return payload, nil
}

func lengthMask(length int) uint64 {
	if length >= 64 {
		return math.MaxUint64
	}
	return uint64(1)<<length - 1
}

func signedBounds(length int) (lo, hi int64) {
	if length >= 64 {
		return math.MinInt64, math.MaxInt64
	}
	return -int64(1) << (length - 1), int64(1)<<(length-1) - 1
}
