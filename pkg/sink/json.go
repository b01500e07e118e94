// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"fmt"
	"io"

	"github.com/Thermoquad/canstat/pkg/dbc"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONSink writes one JSON object per line
type JSONSink struct {
	out output
	enc *jsoniter.Encoder
}

// NewJSONSink creates a JSON-lines sink
func NewJSONSink(w io.Writer) *JSONSink {
	s := &JSONSink{out: newOutput(w)}
	s.enc = json.NewEncoder(s.out.w)
	return s
}

// Write encodes one frame and flushes
func (s *JSONSink) Write(o dbc.Outcome) error {
	if err := s.enc.Encode(NewRecord(o)); err != nil {
		return fmt.Errorf("failed to encode JSON record: %w", err)
	}
	return s.out.flush()
}

// Close flushes and closes the underlying writer
func (s *JSONSink) Close() error {
	return s.out.close()
}
