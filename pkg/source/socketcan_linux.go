// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package source

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Thermoquad/canstat/pkg/dbc"
	"go.einride.tech/can/pkg/socketcan"
)

// SocketCAN reads and writes frames on a Linux CAN interface
type SocketCAN struct {
	conn net.Conn
	recv *socketcan.Receiver
	tx   *socketcan.Transmitter
}

// DialSocketCAN opens a raw CAN socket bound to iface (can0, vcan0, ...)
func DialSocketCAN(ctx context.Context, iface string) (*SocketCAN, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", iface, err)
	}
	return &SocketCAN{
		conn: conn,
		recv: socketcan.NewReceiver(conn),
		tx:   socketcan.NewTransmitter(conn),
	}, nil
}

// ReadFrame blocks until a data frame arrives. Remote and error frames are
// skipped.
func (s *SocketCAN) ReadFrame(ctx context.Context) (dbc.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return dbc.Frame{}, err
		}
		if deadline, ok := ctx.Deadline(); ok {
			s.conn.SetReadDeadline(deadline)
		}
		if !s.recv.Receive() {
			if err := s.recv.Err(); err != nil {
				return dbc.Frame{}, err
			}
			return dbc.Frame{}, ErrClosed
		}
		if s.recv.HasErrorFrame() {
			continue
		}

		cf := s.recv.Frame()
		if cf.IsRemote {
			continue
		}
		f := FromCANFrame(cf)
		f.Received = time.Now()
		f.Timestamp = uint64(f.Received.UnixMicro())
		return f, nil
	}
}

// WriteFrame transmits a data frame
func (s *SocketCAN) WriteFrame(ctx context.Context, f dbc.Frame) error {
	cf, err := ToCANFrame(f)
	if err != nil {
		return err
	}
	return s.tx.TransmitFrame(ctx, cf)
}

// Close closes the socket
func (s *SocketCAN) Close() error {
	return s.conn.Close()
}
