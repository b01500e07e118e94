// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sink persists decoded frames.
//
// Every sink writes one frame per Write call and flushes before returning, so
// a crash loses at most the frame being written.
package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/canstat/pkg/dbc"
)

// Sink receives decoded frames in arrival order
type Sink interface {
	Write(o dbc.Outcome) error
	Close() error
}

// Format selects the record encoding of a sink
type Format string

const (
	FormatText Format = "text"
	FormatCBOR Format = "cbor"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format value
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatCBOR, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown record format %q (use text, cbor or json)", s)
	}
}

// New creates a sink of the given format writing to w.
// If w is an io.Closer it is closed by the sink's Close.
func New(format Format, w io.Writer) (Sink, error) {
	switch format {
	case FormatText:
		return NewTextSink(w), nil
	case FormatCBOR:
		return NewCBORSink(w)
	case FormatJSON:
		return NewJSONSink(w), nil
	default:
		return nil, fmt.Errorf("unknown record format %q", format)
	}
}

// OpenFile opens path for appending and wraps it in a sink.
// Existing records are kept; a text sink still writes its header once for
// the new session.
func OpenFile(path string, format Format) (Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open record file %s: %w", path, err)
	}
	s, err := New(format, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// output is the buffered writer shared by all sinks
type output struct {
	w   *bufio.Writer
	dst io.Writer
}

func newOutput(dst io.Writer) output {
	return output{w: bufio.NewWriter(dst), dst: dst}
}

func (o *output) flush() error {
	if err := o.w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if s, ok := o.dst.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

func (o *output) close() error {
	err := o.w.Flush()
	if c, ok := o.dst.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Record is the structured form of one frame used by the CBOR and JSON sinks
type Record struct {
	ID        uint32         `cbor:"id" json:"id"`
	Extended  bool           `cbor:"ext,omitempty" json:"ext,omitempty"`
	Overrun   bool           `cbor:"overrun,omitempty" json:"overrun,omitempty"`
	Timestamp uint64         `cbor:"ts" json:"ts"`
	Received  int64          `cbor:"rx,omitempty" json:"rx,omitempty"`
	Message   string         `cbor:"msg,omitempty" json:"msg,omitempty"`
	Data      []byte         `cbor:"data" json:"-"`
	DataHex   string         `cbor:"-" json:"data"`
	Signals   []SignalRecord `cbor:"signals,omitempty" json:"signals,omitempty"`
}

// SignalRecord is one decoded signal inside a Record
type SignalRecord struct {
	Name     string  `cbor:"name" json:"name"`
	Raw      uint64  `cbor:"raw" json:"raw"`
	Physical float64 `cbor:"phys" json:"phys"`
	Unit     string  `cbor:"unit" json:"unit"`
	Error    string  `cbor:"err,omitempty" json:"err,omitempty"`
}

// NewRecord builds the structured record of a decoded frame
func NewRecord(o dbc.Outcome) Record {
	f := o.Frame
	r := Record{
		ID:        f.ID,
		Extended:  f.Extended,
		Overrun:   f.Overrun,
		Timestamp: f.Timestamp,
		Message:   o.MessageName(),
		Data:      f.Payload,
		DataHex:   dbc.FormatHexBytes(f.Payload),
	}
	if !f.Received.IsZero() {
		r.Received = f.Received.UnixNano()
	}

	for i := range o.Signals {
		d := &o.Signals[i]
		s := SignalRecord{Name: d.Name, Unit: d.Unit}
		if d.Err != nil {
			s.Error = d.Err.Error()
		} else {
			s.Raw = d.RawValue
			s.Physical = d.PhysicalValue
		}
		r.Signals = append(r.Signals, s)
	}
	return r
}

// ReceivedTime returns the host receive time, or the zero time
func (r *Record) ReceivedTime() time.Time {
	if r.Received == 0 {
		return time.Time{}
	}
	return time.Unix(0, r.Received)
}
