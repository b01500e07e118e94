// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dbc

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySource is returned when the DBC text has no content
	ErrEmptySource = errors.New("dbc: empty source")

	// ErrPayloadTooShort is returned when a signal reads past the payload
	ErrPayloadTooShort = errors.New("dbc: payload too short")

	// ErrBitOutOfRange is returned when a big-endian signal walks below bit 0
	ErrBitOutOfRange = errors.New("dbc: bit position out of range")

	// ErrInvalidLength is returned for signal lengths outside 1..64
	ErrInvalidLength = errors.New("dbc: invalid signal length")

	// ErrUnknownSignal is returned when encoding a value for a signal the
	// message does not define
	ErrUnknownSignal = errors.New("dbc: unknown signal")
)

// LoadError reports a catalog that could not be built at all
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("load catalog: %v", e.Err)
	}
	return fmt.Sprintf("load catalog %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ParseError reports a single rejected DBC line
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SignalError reports a signal that could not be extracted from a payload
type SignalError struct {
	Signal string
	Err    error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("signal %s: %v", e.Signal, e.Err)
}

func (e *SignalError) Unwrap() error {
	return e.Err
}
