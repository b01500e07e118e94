// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dbc

// DecodedSignal is one extracted and scaled value
type DecodedSignal struct {
	Name          string
	RawValue      uint64
	SignedValue   int64
	PhysicalValue float64
	Unit          string
	Err           error
}

// OK reports whether the signal decoded without error
func (d *DecodedSignal) OK() bool {
	return d.Err == nil
}

// DecodeSignal extracts sig from payload.
// Bit positions outside the payload are an error, never a silent read:
// ErrPayloadTooShort past the end, ErrBitOutOfRange below bit 0.
func DecodeSignal(sig *SignalDef, payload []byte) (DecodedSignal, error) {
	out := DecodedSignal{Name: sig.Name, Unit: sig.Unit}

	raw, err := extractRaw(sig, payload)
	if err != nil {
		out.Err = &SignalError{Signal: sig.Name, Err: err}
		return out, out.Err
	}

	out.RawValue = raw
	out.SignedValue = signExtend(raw, sig.Length, sig.Signed)
	if sig.Signed {
		out.PhysicalValue = float64(out.SignedValue)*sig.Scale + sig.Offset
	} else {
		out.PhysicalValue = float64(raw)*sig.Scale + sig.Offset
	}
	return out, nil
}

// extractRaw collects the signal's bits into an unsigned accumulator,
// bit i of the result taken from the i-th bit position of the signal
func extractRaw(sig *SignalDef, payload []byte) (uint64, error) {
	if sig.Length < 1 || sig.Length > MaxSignalLength {
		return 0, ErrInvalidLength
	}

	totalBits := len(payload) * 8
	var raw uint64
	for i := 0; i < sig.Length; i++ {
		pos, bitInByte, err := bitPosition(sig, i, totalBits)
		if err != nil {
			return 0, err
		}
		if payload[pos/8]&(1<<bitInByte) != 0 {
			raw |= uint64(1) << i
		}
	}
	return raw, nil
}

// bitPosition returns the absolute payload position of the signal's i-th bit
// and the bit index inside its byte (0 = least significant).
//
// Little-endian walks upward from StartBit. Big-endian walks downward from
// StartBit with the in-byte index reversed.
func bitPosition(sig *SignalDef, i, totalBits int) (pos int, bitInByte uint, err error) {
	if sig.ByteOrder == LittleEndian {
		pos = sig.StartBit + i
	} else {
		pos = sig.StartBit - i
	}
	if pos < 0 {
		return 0, 0, ErrBitOutOfRange
	}
	if pos >= totalBits {
		return 0, 0, ErrPayloadTooShort
	}
	if sig.ByteOrder == LittleEndian {
		return pos, uint(pos % 8), nil
	}
	return pos, uint(7 - pos%8), nil
}

// signExtend applies two's complement over the low length bits
func signExtend(raw uint64, length int, signed bool) int64 {
	if !signed || length < 1 {
		return int64(raw)
	}
	if length >= 64 {
		return int64(raw)
	}
	if raw&(uint64(1)<<(length-1)) == 0 {
		return int64(raw)
	}
	return int64(raw) - int64(uint64(1)<<length)
}

// RequiredBytes returns the minimum payload size the signal can be read from,
// or -1 when no payload size can hold it
func RequiredBytes(sig *SignalDef) int {
	if sig.Length < 1 || sig.Length > MaxSignalLength {
		return -1
	}
	if sig.ByteOrder == LittleEndian {
		return (sig.StartBit+sig.Length-1)/8 + 1
	}
	if sig.StartBit-(sig.Length-1) < 0 {
		return -1
	}
	return sig.StartBit/8 + 1
}
