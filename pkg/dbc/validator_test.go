// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dbc

import (
	"strings"
	"testing"
)

func hasAnomaly(errs []ValidationError, typ AnomalyType) bool {
	for _, e := range errs {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestValidateOutcome_Clean(t *testing.T) {
	c := mustParse(t, engineDBC)
	out := DecodeFrame(c, &Frame{ID: 256, Payload: []byte{0x10, 0x27, 0x50, 0x40, 0, 0, 0, 0}})
	if errs := ValidateOutcome(out); len(errs) != 0 {
		t.Errorf("Expected no anomalies, got %v", errs)
	}
}

func TestValidateOutcome_Anomalies(t *testing.T) {
	c := mustParse(t, engineDBC)

	tests := []struct {
		name  string
		frame *Frame
		want  AnomalyType
	}{
		{
			name:  "short payload",
			frame: &Frame{ID: 256, Payload: []byte{0x10, 0x27}},
			want:  AnomalyShortPayload,
		},
		{
			name:  "signal error",
			frame: &Frame{ID: 256, Payload: []byte{0x10, 0x27}},
			want:  AnomalySignalError,
		},
		{
			// Throttle 0xFF * 0.5 = 127.5 > 100
			name:  "out of range",
			frame: &Frame{ID: 256, Payload: []byte{0x10, 0x27, 0x50, 0xFF, 0, 0, 0, 0}},
			want:  AnomalyOutOfRange,
		},
		{
			name:  "overrun on unmatched frame",
			frame: &Frame{ID: 999, Overrun: true},
			want:  AnomalyOverrun,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateOutcome(DecodeFrame(c, tt.frame))
			if !hasAnomaly(errs, tt.want) {
				t.Errorf("Expected %s anomaly, got %v", tt.want, errs)
			}
		})
	}
}

func TestValidateOutcome_OutOfRangeDetails(t *testing.T) {
	c := mustParse(t, engineDBC)
	out := DecodeFrame(c, &Frame{ID: 256, Payload: []byte{0x10, 0x27, 0x50, 0xFF, 0, 0, 0, 0}})
	errs := ValidateOutcome(out)
	if len(errs) != 1 {
		t.Fatalf("Expected 1 anomaly, got %v", errs)
	}
	if errs[0].Details["signal"] != "Throttle" {
		t.Errorf("Details should name Throttle, got %v", errs[0].Details)
	}
	if !strings.Contains(errs[0].Error(), "EngineData.Throttle") {
		t.Errorf("Message should name the signal: %s", errs[0].Error())
	}
}

func TestValidateOutcome_NoRangeDeclared(t *testing.T) {
	c := mustParse(t, rpmDBC)
	out := DecodeFrame(c, &Frame{ID: 256, Payload: []byte{0xFF, 0xFF, 0, 0, 0, 0, 0, 0}})
	if errs := ValidateOutcome(out); len(errs) != 0 {
		t.Errorf("Signals without [min|max] should not be range checked: %v", errs)
	}
}

func TestValidateOutcome_ShortPayloadWithoutDLC(t *testing.T) {
	// No DLC declared: the Temp signal ending in byte 3 sets the expected size
	c := mustParse(t, "BO_ 300 Sensor:\n SG_ Status : 0|8@0+ (1,0) \"\"\n SG_ Temp : 16|8@0+ (1,0) \"C\"\n")

	errs := ValidateOutcome(DecodeFrame(c, &Frame{ID: 300, Payload: []byte{0x01, 0x02}}))
	var short *ValidationError
	for i := range errs {
		if errs[i].Type == AnomalyShortPayload {
			short = &errs[i]
		}
	}
	if short == nil {
		t.Fatalf("Expected short payload anomaly, got %v", errs)
	}
	if short.Details["expected"] != 3 || short.Details["received"] != 2 {
		t.Errorf("Details = %v, want expected 3 received 2", short.Details)
	}
	if !hasAnomaly(errs, AnomalySignalError) {
		t.Errorf("Temp should also fail to decode: %v", errs)
	}

	if errs := ValidateOutcome(DecodeFrame(c, &Frame{ID: 300, Payload: []byte{0x01, 0x02, 0x03}})); len(errs) != 0 {
		t.Errorf("Payload covering every signal should be clean: %v", errs)
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Update(t *testing.T) {
	c := mustParse(t, engineDBC)
	s := NewStatistics()

	frames := []*Frame{
		{ID: 256, Payload: []byte{0x10, 0x27, 0x50, 0x40, 0, 0, 0, 0}},
		{ID: 256, Payload: []byte{0x10, 0x27, 0x50, 0xFF, 0, 0, 0, 0}},
		{ID: 999, Payload: []byte{0x01}},
		{ID: 999, Overrun: true},
	}
	for _, f := range frames {
		out := DecodeFrame(c, f)
		s.Update(out, ValidateOutcome(out))
	}
	s.RecordSinkError()

	if s.TotalFrames != 4 || s.MatchedFrames != 2 || s.UnmatchedFrames != 2 {
		t.Errorf("Counts total=%d matched=%d unmatched=%d", s.TotalFrames, s.MatchedFrames, s.UnmatchedFrames)
	}
	if s.CleanFrames != 2 {
		t.Errorf("CleanFrames = %d, want 2", s.CleanFrames)
	}
	if s.OutOfRange != 1 || s.Overruns != 1 || s.SinkErrors != 1 {
		t.Errorf("Anomaly counts outOfRange=%d overruns=%d sink=%d", s.OutOfRange, s.Overruns, s.SinkErrors)
	}
	if s.Errors() != 3 {
		t.Errorf("Errors() = %d, want 3", s.Errors())
	}

	summary := s.String()
	for _, want := range []string{"Total Frames:", "Out of Range:", "Overruns:", "Write Errors:"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary missing %q:\n%s", want, summary)
		}
	}

	s.Reset()
	if s.TotalFrames != 0 || s.Errors() != 0 {
		t.Error("Reset should clear counters")
	}
}
