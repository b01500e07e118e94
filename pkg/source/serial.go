// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/canstat/pkg/dbc"
	"go.bug.st/serial"
)

// serialReadTimeout bounds each port read so cancellation is noticed
const serialReadTimeout = 100 * time.Millisecond

// SerialConfig configures an SLCAN adapter on a serial port
type SerialConfig struct {
	Port     string
	BaudRate int

	// Bitrate is the CAN bus bitrate. Zero leaves the adapter configuration
	// untouched and skips the open command.
	Bitrate int
}

// Serial reads and writes SLCAN frames over a serial port
type Serial struct {
	port   serial.Port
	reader *SLCANReader
	setup  bool

	writeMu sync.Mutex
}

// OpenSerial opens the port and, when a bitrate is given, configures and
// opens the CAN channel
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	var code byte
	if cfg.Bitrate != 0 {
		var ok bool
		if code, ok = SLCANBitrates[cfg.Bitrate]; !ok {
			return nil, fmt.Errorf("unsupported SLCAN bitrate %d", cfg.Bitrate)
		}
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", cfg.Port, err)
	}

	s := &Serial{port: port, reader: NewSLCANReader(port)}
	if code != 0 {
		// Close first in case the channel was left open
		for _, c := range []string{"C\r", "S" + string(code) + "\r", "O\r"} {
			if _, err := port.Write([]byte(c)); err != nil {
				port.Close()
				return nil, fmt.Errorf("SLCAN setup on %s: %w", cfg.Port, err)
			}
		}
		s.setup = true
	}
	return s, nil
}

// ReadFrame reads the next frame reported by the adapter
func (s *Serial) ReadFrame(ctx context.Context) (dbc.Frame, error) {
	return s.reader.ReadFrame(ctx)
}

// WriteFrame transmits a data frame
func (s *Serial) WriteFrame(ctx context.Context, f dbc.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd, err := EncodeSLCAN(f)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.port.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("SLCAN write: %w", err)
	}
	return nil
}

// Close closes the CAN channel if it was opened, then the port
func (s *Serial) Close() error {
	if s.setup {
		s.writeMu.Lock()
		s.port.Write([]byte("C\r"))
		s.writeMu.Unlock()
	}
	return s.port.Close()
}
