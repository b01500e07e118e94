// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dbc

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeSignal_RoundTripAllLengths(t *testing.T) {
	for _, order := range []ByteOrder{LittleEndian, BigEndian} {
		for length := 1; length <= MaxSignalLength; length++ {
			sig := &SignalDef{Name: "S", Length: length, ByteOrder: order, Scale: 1}
			if order == LittleEndian {
				sig.StartBit = 0
			} else {
				sig.StartBit = 63
			}

			raw := uint64(0xA5C3_96E1_F00F_5AA5) & lengthMask(length)
			payload := make([]byte, MaxPayloadSize)
			if err := EncodeSignal(sig, payload, raw); err != nil {
				t.Fatalf("%s length %d: encode error: %v", order, length, err)
			}
			d, err := DecodeSignal(sig, payload)
			if err != nil {
				t.Fatalf("%s length %d: decode error: %v", order, length, err)
			}
			if d.RawValue != raw {
				t.Errorf("%s length %d: raw 0x%X, want 0x%X", order, length, d.RawValue, raw)
			}
		}
	}
}

func TestEncodeSignal_PreservesOtherBits(t *testing.T) {
	payload := []byte{0xFF, 0xFF}
	sig := leSignal(4, 8, false)
	if err := EncodeSignal(sig, payload, 0); err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if !bytes.Equal(payload, []byte{0x0F, 0xF0}) {
		t.Errorf("Payload = % X, want 0F F0", payload)
	}
}

func TestEncodeSignal_OutOfRangeLeavesPayload(t *testing.T) {
	payload := []byte{0x11, 0x22}
	err := EncodeSignal(leSignal(8, 16, false), payload, 0xFFFF)
	if !errors.Is(err, ErrPayloadTooShort) {
		t.Fatalf("Expected ErrPayloadTooShort, got %v", err)
	}
	if !bytes.Equal(payload, []byte{0x11, 0x22}) {
		t.Error("Failed encode should not modify the payload")
	}
}

func TestPhysicalToRaw(t *testing.T) {
	tests := []struct {
		name     string
		sig      *SignalDef
		physical float64
		raw      uint64
	}{
		{"rpm", &SignalDef{Length: 16, Scale: 0.25}, 2500, 10000},
		{"offset", &SignalDef{Length: 8, Scale: 1, Offset: -40}, 20, 60},
		{"rounding", &SignalDef{Length: 8, Scale: 0.5}, 1.26, 3},
		{"unsigned clamp high", &SignalDef{Length: 8, Scale: 1}, 1000, 255},
		{"unsigned clamp low", &SignalDef{Length: 8, Scale: 1}, -5, 0},
		{"signed negative", &SignalDef{Length: 8, Scale: 1, Signed: true}, -1, 0xFF},
		{"signed clamp low", &SignalDef{Length: 8, Scale: 1, Signed: true}, -1000, 0x80},
		{"signed clamp high", &SignalDef{Length: 8, Scale: 1, Signed: true}, 1000, 0x7F},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PhysicalToRaw(tt.sig, tt.physical); got != tt.raw {
				t.Errorf("PhysicalToRaw = 0x%X, want 0x%X", got, tt.raw)
			}
		})
	}
}

func TestEncodeMessage(t *testing.T) {
	c := mustParse(t, engineDBC)
	msg, _ := c.MessageByName("EngineData")

	payload, err := EncodeMessage(msg, map[string]float64{
		"RPM":         2500,
		"CoolantTemp": 60,
		"Throttle":    42.5,
	})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if len(payload) != 8 {
		t.Fatalf("Payload length = %d, want DLC 8", len(payload))
	}

	out := DecodeFrame(c, &Frame{ID: msg.ID, Payload: payload})
	want := map[string]float64{"RPM": 2500, "CoolantTemp": 60, "Throttle": 42.5}
	for _, d := range out.Signals {
		if d.Err != nil {
			t.Errorf("%s: %v", d.Name, d.Err)
			continue
		}
		if d.PhysicalValue != want[d.Name] {
			t.Errorf("%s = %g, want %g", d.Name, d.PhysicalValue, want[d.Name])
		}
	}
}

func TestEncodeMessage_UnknownSignal(t *testing.T) {
	c := mustParse(t, rpmDBC)
	msg, _ := c.Lookup(256)
	_, err := EncodeMessage(msg, map[string]float64{"Speed": 1})
	if !errors.Is(err, ErrUnknownSignal) {
		t.Errorf("Expected ErrUnknownSignal, got %v", err)
	}
}
