// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dbc

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatOutcome formats a decoded frame into a human-readable string
func FormatOutcome(o Outcome) string {
	f := o.Frame
	name := "UNKNOWN"
	if o.Matched {
		name = o.Message.Name
	}

	result := fmt.Sprintf("[%d] %s (0x%X) len=%d%s\n", f.Timestamp, name, f.ID, len(f.Payload), formatFlags(f))
	for i := range o.Signals {
		d := &o.Signals[i]
		if d.Err != nil {
			result += fmt.Sprintf("  %-24s ERROR: %v\n", d.Name, d.Err)
			continue
		}
		result += fmt.Sprintf("  %-24s %s %s (raw %d)\n", d.Name, FormatPhysical(d.PhysicalValue), strings.TrimSpace(d.Unit), d.RawValue)
	}
	result += "  Data: " + FormatHexBytes(f.Payload) + "\n"
	return result
}

func formatFlags(f *Frame) string {
	var flags []string
	if f.Extended {
		flags = append(flags, "ext")
	}
	if f.Overrun {
		flags = append(flags, "overrun")
	}
	if len(flags) == 0 {
		return ""
	}
	return " [" + strings.Join(flags, ",") + "]"
}

// FormatSignalRecord formats one decoded signal as a record line:
// Name,Raw,Physical,Unit. Failed signals carry ERR and the cause.
func FormatSignalRecord(d *DecodedSignal) string {
	if d.Err != nil {
		return d.Name + ",ERR," + strings.ReplaceAll(d.Err.Error(), ",", ";") + "," + d.Unit
	}
	return d.Name + "," + strconv.FormatUint(d.RawValue, 10) + "," + FormatPhysical(d.PhysicalValue) + "," + d.Unit
}

// FormatRawRecord formats the trailing raw-bytes record of a frame:
// ID: <hex id> [<message>] Data: XX XX ...
func FormatRawRecord(o Outcome) string {
	var b strings.Builder
	b.WriteString("ID: ")
	b.WriteString(strings.ToUpper(strconv.FormatUint(uint64(o.Frame.ID), 16)))
	if o.Matched {
		b.WriteString(" ")
		b.WriteString(o.Message.Name)
	}
	b.WriteString(" Data:")
	for _, x := range o.Frame.Payload {
		b.WriteString(" ")
		b.WriteString(hexByte(x))
	}
	return b.String()
}

// FormatHexBytes formats bytes as space-separated two-digit uppercase hex
func FormatHexBytes(data []byte) string {
	parts := make([]string, len(data))
	for i, x := range data {
		parts[i] = hexByte(x)
	}
	return strings.Join(parts, " ")
}

// FormatPhysical formats a physical value with the shortest exact representation
func FormatPhysical(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatSignalDef formats a signal definition in DBC notation
func FormatSignalDef(s *SignalDef) string {
	order := '0'
	if s.ByteOrder == BigEndian {
		order = '1'
	}
	sign := '+'
	if s.Signed {
		sign = '-'
	}
	return fmt.Sprintf("%s : %d|%d@%c%c (%g,%g) [%g|%g] %q",
		s.Name, s.StartBit, s.Length, order, sign, s.Scale, s.Offset, s.Min, s.Max, s.Unit)
}

func hexByte(x byte) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[x>>4], digits[x&0x0F]})
}
