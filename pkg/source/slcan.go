// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/canstat/pkg/dbc"
)

// SLCAN (Lawicel) frame commands
const (
	slcanStandard       = 't'
	slcanExtended       = 'T'
	slcanStandardRemote = 'r'
	slcanExtendedRemote = 'R'
	slcanStatus         = 'F'
)

// Status flag reported by the adapter when its receive FIFO overflowed
const slcanStatusOverrun = 0x08

// ErrNotFrame is returned by ParseSLCAN for lines that are not frame
// reports (command acknowledgements, status replies, bell)
var ErrNotFrame = errors.New("not an SLCAN frame")

// SLCANBitrates maps CAN bitrates to the adapter's S<n> setup command
var SLCANBitrates = map[int]byte{
	10000:   '0',
	20000:   '1',
	50000:   '2',
	100000:  '3',
	125000:  '4',
	250000:  '5',
	500000:  '6',
	800000:  '7',
	1000000: '8',
}

// ParseSLCAN parses one SLCAN frame report without its terminator:
// t<iii><l><dd..>[tttt], T<iiiiiiii><l><dd..>[tttt], r/R for remote frames.
// The optional trailing four hex digits are the adapter timestamp in ms.
func ParseSLCAN(line string) (f dbc.Frame, remote bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return f, false, ErrNotFrame
	}

	idLen := 3
	switch line[0] {
	case slcanStandard:
	case slcanExtended:
		idLen = 8
		f.Extended = true
	case slcanStandardRemote:
		remote = true
	case slcanExtendedRemote:
		idLen = 8
		f.Extended = true
		remote = true
	default:
		return f, false, ErrNotFrame
	}

	if len(line) < 1+idLen+1 {
		return f, remote, fmt.Errorf("SLCAN line too short: %q", line)
	}

	id, err := strconv.ParseUint(line[1:1+idLen], 16, 32)
	if err != nil {
		return f, remote, fmt.Errorf("SLCAN identifier %q: %w", line[1:1+idLen], err)
	}
	if (!f.Extended && id > MaxStandardID) || id > MaxExtendedID {
		return f, remote, fmt.Errorf("SLCAN identifier 0x%X out of range", id)
	}
	f.ID = uint32(id)

	dlc := int(line[1+idLen] - '0')
	if dlc < 0 || dlc > dbc.MaxPayloadSize {
		return f, remote, fmt.Errorf("SLCAN length %q out of range", line[1+idLen])
	}

	rest := line[2+idLen:]
	if !remote {
		if len(rest) < dlc*2 {
			return f, remote, fmt.Errorf("SLCAN data truncated: %q", line)
		}
		f.Payload = make([]byte, dlc)
		for i := 0; i < dlc; i++ {
			b, err := strconv.ParseUint(rest[i*2:i*2+2], 16, 8)
			if err != nil {
				return f, remote, fmt.Errorf("SLCAN data byte %d: %w", i, err)
			}
			f.Payload[i] = byte(b)
		}
		rest = rest[dlc*2:]
	}

	switch len(rest) {
	case 0:
	case 4:
		ts, err := strconv.ParseUint(rest, 16, 16)
		if err != nil {
			return f, remote, fmt.Errorf("SLCAN timestamp %q: %w", rest, err)
		}
		f.Timestamp = ts
	default:
		return f, remote, fmt.Errorf("SLCAN trailing data %q", rest)
	}

	return f, remote, nil
}

// EncodeSLCAN formats a data frame as an SLCAN transmit command including
// the carriage return terminator
func EncodeSLCAN(f dbc.Frame) (string, error) {
	if len(f.Payload) > dbc.MaxPayloadSize {
		return "", fmt.Errorf("payload of %d bytes exceeds %d", len(f.Payload), dbc.MaxPayloadSize)
	}

	var b strings.Builder
	if f.Extended {
		if f.ID > MaxExtendedID {
			return "", fmt.Errorf("extended identifier 0x%X out of range", f.ID)
		}
		b.WriteByte(slcanExtended)
		fmt.Fprintf(&b, "%08X", f.ID)
	} else {
		if f.ID > MaxStandardID {
			return "", fmt.Errorf("standard identifier 0x%X out of range", f.ID)
		}
		b.WriteByte(slcanStandard)
		fmt.Fprintf(&b, "%03X", f.ID)
	}
	b.WriteByte('0' + byte(len(f.Payload)))
	for _, x := range f.Payload {
		fmt.Fprintf(&b, "%02X", x)
	}
	b.WriteByte('\r')
	return b.String(), nil
}

// parseSLCANStatus returns the flag byte of an F<xx> status reply
func parseSLCANStatus(line string) (byte, bool) {
	if len(line) != 3 || line[0] != slcanStatus {
		return 0, false
	}
	v, err := strconv.ParseUint(line[1:], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(v), true
}

// MaxSLCANLine bounds the bytes buffered while waiting for a line
// terminator. The longest frame line with a timestamp is 30 bytes.
const MaxSLCANLine = 256

// SLCANReader turns a byte stream of SLCAN lines into frames.
// Reads returning zero bytes (serial read timeouts) are tolerated so the
// context can be checked between them.
type SLCANReader struct {
	r       io.Reader
	buf     []byte
	pending []byte

	// set by an overrun status reply, applied to the next frame
	overrun bool
}

// NewSLCANReader creates a reader over r
func NewSLCANReader(r io.Reader) *SLCANReader {
	return &SLCANReader{r: r, buf: make([]byte, 256)}
}

// ReadFrame returns the next data frame. Remote frames, acknowledgements and
// malformed lines are skipped.
func (s *SLCANReader) ReadFrame(ctx context.Context) (dbc.Frame, error) {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return dbc.Frame{}, err
		}

		if status, ok := parseSLCANStatus(line); ok {
			if status&slcanStatusOverrun != 0 {
				s.overrun = true
			}
			continue
		}

		f, remote, err := ParseSLCAN(line)
		if err != nil || remote {
			continue
		}
		f.Received = time.Now()
		f.Overrun = s.overrun
		s.overrun = false
		return f, nil
	}
}

func (s *SLCANReader) readLine(ctx context.Context) (string, error) {
	for {
		if i := indexTerminator(s.pending); i >= 0 {
			line := string(s.pending[:i])
			s.pending = s.pending[i+1:]
			if line == "" {
				continue
			}
			return line, nil
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := s.r.Read(s.buf)
		s.pending = append(s.pending, s.buf[:n]...)
		if len(s.pending) > MaxSLCANLine && indexTerminator(s.pending) < 0 {
			// Unterminated noise; the rest of it ends up in a malformed line
			s.pending = s.pending[:0]
		}
		if err != nil {
			if err == io.EOF {
				if len(s.pending) > 0 {
					line := string(s.pending)
					s.pending = nil
					return line, nil
				}
				return "", ErrClosed
			}
			return "", err
		}
	}
}

// indexTerminator finds the first CR, LF or BEL in b
func indexTerminator(b []byte) int {
	for i, c := range b {
		if c == '\r' || c == '\n' || c == '\a' {
			return i
		}
	}
	return -1
}
