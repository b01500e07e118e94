// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"io"

	"github.com/Thermoquad/canstat/pkg/dbc"
)

// TextSink writes the line-oriented record format:
// signal lines for matched frames followed by a raw record for every frame.
type TextSink struct {
	out           output
	headerWritten bool
}

// NewTextSink creates a text sink. The header is written before the first
// signal line of the session.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{out: newOutput(w)}
}

// Write appends the records of one frame and flushes
func (t *TextSink) Write(o dbc.Outcome) error {
	if o.Matched && len(o.Signals) > 0 && !t.headerWritten {
		if _, err := t.out.w.WriteString(dbc.RecordHeader + "\n"); err != nil {
			return err
		}
		t.headerWritten = true
	}

	for i := range o.Signals {
		if _, err := t.out.w.WriteString(dbc.FormatSignalRecord(&o.Signals[i]) + "\n"); err != nil {
			return err
		}
	}
	if _, err := t.out.w.WriteString(dbc.FormatRawRecord(o) + "\n"); err != nil {
		return err
	}

	return t.out.flush()
}

// Close flushes and closes the underlying writer
func (t *TextSink) Close() error {
	return t.out.close()
}
