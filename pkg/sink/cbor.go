// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"fmt"
	"io"

	"github.com/Thermoquad/canstat/pkg/dbc"
	"github.com/fxamacker/cbor/v2"
)

// CBORSink writes one CBOR map per frame as a concatenated stream
type CBORSink struct {
	out output
	enc *cbor.Encoder
}

// NewCBORSink creates a CBOR sink using canonical map key ordering
func NewCBORSink(w io.Writer) (*CBORSink, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	s := &CBORSink{out: newOutput(w)}
	s.enc = em.NewEncoder(s.out.w)
	return s, nil
}

// Write encodes one frame and flushes
func (s *CBORSink) Write(o dbc.Outcome) error {
	if err := s.enc.Encode(NewRecord(o)); err != nil {
		return fmt.Errorf("failed to encode CBOR record: %w", err)
	}
	return s.out.flush()
}

// Close flushes and closes the underlying writer
func (s *CBORSink) Close() error {
	return s.out.close()
}

// ReadCBORRecords decodes a stream written by CBORSink
func ReadCBORRecords(r io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(r)
	var records []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				return records, nil
			}
			return records, fmt.Errorf("failed to decode CBOR record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}
