// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dbc

import (
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames     uint64
	MatchedFrames   uint64
	UnmatchedFrames uint64
	CleanFrames     uint64
	SignalErrors    uint64
	OutOfRange      uint64
	ShortPayloads   uint64
	Overruns        uint64
	SinkErrors      uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics based on a decoded frame and its anomalies
func (s *Statistics) Update(o Outcome, validationErrors []ValidationError) {
	s.TotalFrames++
	if o.Matched {
		s.MatchedFrames++
	} else {
		s.UnmatchedFrames++
	}

	if len(validationErrors) == 0 {
		s.CleanFrames++
	}
	for _, err := range validationErrors {
		switch err.Type {
		case AnomalySignalError:
			s.SignalErrors++
		case AnomalyOutOfRange:
			s.OutOfRange++
		case AnomalyShortPayload:
			s.ShortPayloads++
		case AnomalyOverrun:
			s.Overruns++
		}
	}

	s.LastUpdateTime = time.Now()
}

// RecordSinkError counts a failed record write
func (s *Statistics) RecordSinkError() {
	s.SinkErrors++
}

// Errors returns the total number of counted errors
func (s *Statistics) Errors() uint64 {
	return s.SignalErrors + s.OutOfRange + s.ShortPayloads + s.Overruns + s.SinkErrors
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var matchedPercent, unmatchedPercent, cleanPercent float64
	if s.TotalFrames > 0 {
		matchedPercent = float64(s.MatchedFrames) * 100.0 / float64(s.TotalFrames)
		unmatchedPercent = float64(s.UnmatchedFrames) * 100.0 / float64(s.TotalFrames)
		cleanPercent = float64(s.CleanFrames) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Matched:         %8d (%.1f%%)\n", s.MatchedFrames, matchedPercent)
	result += fmt.Sprintf("Unmatched:       %8d (%.1f%%)\n", s.UnmatchedFrames, unmatchedPercent)
	result += fmt.Sprintf("Clean:           %8d (%.1f%%)\n", s.CleanFrames, cleanPercent)

	if s.SignalErrors > 0 {
		result += fmt.Sprintf("Signal Errors:   %8d\n", s.SignalErrors)
	}
	if s.ShortPayloads > 0 {
		result += fmt.Sprintf("Short Payloads:  %8d\n", s.ShortPayloads)
	}
	if s.OutOfRange > 0 {
		result += fmt.Sprintf("Out of Range:    %8d\n", s.OutOfRange)
	}
	if s.Overruns > 0 {
		result += fmt.Sprintf("Overruns:        %8d\n", s.Overruns)
	}
	if s.SinkErrors > 0 {
		result += fmt.Sprintf("Write Errors:    %8d\n", s.SinkErrors)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
