// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !linux

package source

import (
	"context"
	"errors"

	"github.com/Thermoquad/canstat/pkg/dbc"
)

// SocketCAN is only available on Linux
type SocketCAN struct{}

// DialSocketCAN always fails outside Linux
func DialSocketCAN(ctx context.Context, iface string) (*SocketCAN, error) {
	return nil, errors.New("socketcan is only supported on linux")
}

func (s *SocketCAN) ReadFrame(ctx context.Context) (dbc.Frame, error) {
	return dbc.Frame{}, ErrClosed
}

func (s *SocketCAN) WriteFrame(ctx context.Context, f dbc.Frame) error {
	return ErrClosed
}

func (s *SocketCAN) Close() error {
	return nil
}
