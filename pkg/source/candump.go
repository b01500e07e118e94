// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package source

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/canstat/pkg/dbc"
	"github.com/sirupsen/logrus"
)

// ParseCandumpLine parses one line of a candump -l log:
// (1436509052.249713) vcan0 123#DEADBEEF
// The timestamp is returned in microseconds. Remote frames (ID#R) are
// reported with remote set and no payload.
func ParseCandumpLine(line string) (f dbc.Frame, remote bool, err error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return f, false, fmt.Errorf("candump line needs 3 fields, got %d", len(fields))
	}

	ts := fields[0]
	if len(ts) < 3 || ts[0] != '(' || ts[len(ts)-1] != ')' {
		return f, false, fmt.Errorf("candump timestamp %q not in parentheses", ts)
	}
	if f.Timestamp, err = parseCandumpTime(ts[1 : len(ts)-1]); err != nil {
		return f, false, err
	}
	f.Received = time.UnixMicro(int64(f.Timestamp))

	idPart, data, ok := strings.Cut(fields[2], "#")
	if !ok {
		return f, false, fmt.Errorf("no # separator in %q", fields[2])
	}
	if strings.HasPrefix(data, "#") {
		return f, false, fmt.Errorf("CAN FD frames are not supported")
	}

	id, err := strconv.ParseUint(idPart, 16, 32)
	if err != nil {
		return f, false, fmt.Errorf("candump identifier %q: %w", idPart, err)
	}
	f.Extended = len(idPart) == 8
	if (!f.Extended && id > MaxStandardID) || id > MaxExtendedID {
		return f, false, fmt.Errorf("candump identifier 0x%X out of range", id)
	}
	f.ID = uint32(id)

	if strings.HasPrefix(data, "R") {
		return f, true, nil
	}

	data = strings.ReplaceAll(data, ".", "")
	payload, err := hex.DecodeString(data)
	if err != nil {
		return f, false, fmt.Errorf("candump data: %w", err)
	}
	if len(payload) > dbc.MaxPayloadSize {
		return f, false, fmt.Errorf("candump payload of %d bytes exceeds %d", len(payload), dbc.MaxPayloadSize)
	}
	f.Payload = payload
	return f, false, nil
}

// parseCandumpTime converts seconds.micros to microseconds without going
// through float64
func parseCandumpTime(s string) (uint64, error) {
	secPart, fracPart, _ := strings.Cut(s, ".")
	sec, err := strconv.ParseUint(secPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("candump timestamp %q: %w", s, err)
	}
	if len(fracPart) > 6 {
		fracPart = fracPart[:6]
	}
	var micros uint64
	if fracPart != "" {
		if micros, err = strconv.ParseUint(fracPart, 10, 64); err != nil {
			return 0, fmt.Errorf("candump timestamp %q: %w", s, err)
		}
		for i := len(fracPart); i < 6; i++ {
			micros *= 10
		}
	}
	return sec*1_000_000 + micros, nil
}

// Candump replays frames from a candump log
type Candump struct {
	scanner *bufio.Scanner
	closer  io.Closer

	// Pace sleeps between frames to reproduce the recorded timing
	Pace bool
	last uint64

	// Line is the number of the last line read
	Line int
	// Skipped counts malformed lines
	Skipped int

	// Log, when set, receives a warning for every malformed line
	Log logrus.FieldLogger
}

// NewCandump replays frames read from r
func NewCandump(r io.Reader) *Candump {
	c := &Candump{scanner: bufio.NewScanner(r)}
	if closer, ok := r.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// OpenCandump opens a candump log file for replay
func OpenCandump(path string) (*Candump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open candump log %s: %w", path, err)
	}
	return NewCandump(f), nil
}

// ReadFrame returns the next data frame of the log. Blank lines, comments,
// remote frames and malformed lines are skipped.
// ErrClosed is returned at the end of the log.
func (c *Candump) ReadFrame(ctx context.Context) (dbc.Frame, error) {
	for c.scanner.Scan() {
		c.Line++
		line := strings.TrimSpace(c.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		f, remote, err := ParseCandumpLine(line)
		if err != nil {
			c.Skipped++
			if c.Log != nil {
				c.Log.WithError(err).WithField("line", c.Line).Warn("skipping malformed candump line")
			}
			continue
		}
		if remote {
			continue
		}

		if err := c.wait(ctx, f.Timestamp); err != nil {
			return dbc.Frame{}, err
		}
		return f, nil
	}

	if err := c.scanner.Err(); err != nil {
		return dbc.Frame{}, err
	}
	return dbc.Frame{}, ErrClosed
}

func (c *Candump) wait(ctx context.Context, ts uint64) error {
	defer func() { c.last = ts }()
	if !c.Pace || c.last == 0 || ts <= c.last {
		return ctx.Err()
	}

	timer := time.NewTimer(time.Duration(ts-c.last) * time.Microsecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close closes the underlying log
func (c *Candump) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
