// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package source reads CAN frames from buses, adapters and log files.
//
// ReadFrame blocks until a frame arrives. Closing a source unblocks a pending
// ReadFrame, which then returns ErrClosed or the transport's error.
package source

import (
	"context"
	"errors"

	"github.com/Thermoquad/canstat/pkg/dbc"
)

// ErrClosed is returned when reading from a closed or exhausted source
var ErrClosed = errors.New("source closed")

// Source delivers received frames in bus order
type Source interface {
	ReadFrame(ctx context.Context) (dbc.Frame, error)
	Close() error
}

// Transmitter sends frames onto the bus
type Transmitter interface {
	WriteFrame(ctx context.Context, f dbc.Frame) error
}

// Standard and extended identifier masks
const (
	MaxStandardID = 0x7FF
	MaxExtendedID = 0x1FFFFFFF
)
