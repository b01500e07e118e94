// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dbc

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyShortPayload AnomalyType = iota
	AnomalySignalError
	AnomalyOutOfRange
	AnomalyOverrun
)

// String returns a short name for the anomaly
func (a AnomalyType) String() string {
	switch a {
	case AnomalyShortPayload:
		return "short_payload"
	case AnomalySignalError:
		return "signal_error"
	case AnomalyOutOfRange:
		return "out_of_range"
	case AnomalyOverrun:
		return "overrun"
	default:
		return "unknown"
	}
}

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateOutcome checks a decoded frame for anomalies.
// Returns a slice of validation errors (empty if the frame is clean).
func ValidateOutcome(o Outcome) []ValidationError {
	errors := []ValidationError{}

	if o.Frame != nil && o.Frame.Overrun {
		errors = append(errors, ValidationError{
			Type:    AnomalyOverrun,
			Message: fmt.Sprintf("receive overrun before frame 0x%X", o.Frame.ID),
			Details: map[string]interface{}{"id": o.Frame.ID},
		})
	}

	if !o.Matched {
		return errors
	}

	// Without a declared DLC the signal layout decides the expected size
	expected := o.Message.DLC
	if expected <= 0 {
		expected = requiredPayload(o.Message)
	}
	if o.Frame != nil && expected > 0 && len(o.Frame.Payload) < expected {
		errors = append(errors, ValidationError{
			Type:    AnomalyShortPayload,
			Message: fmt.Sprintf("%s: payload %d bytes, expected %d", o.Message.Name, len(o.Frame.Payload), expected),
			Details: map[string]interface{}{
				"received": len(o.Frame.Payload),
				"expected": expected,
			},
		})
	}

	for i := range o.Signals {
		errors = append(errors, validateSignal(o.Message, &o.Signals[i])...)
	}

	return errors
}

// validateSignal checks one decoded signal against its definition
func validateSignal(msg *MessageDef, d *DecodedSignal) []ValidationError {
	if !d.OK() {
		return []ValidationError{{
			Type:    AnomalySignalError,
			Message: fmt.Sprintf("%s: %v", msg.Name, d.Err),
			Details: map[string]interface{}{"signal": d.Name},
		}}
	}

	sig := msg.Signal(d.Name)
	if sig == nil || !sig.HasRange() {
		return nil
	}
	if d.PhysicalValue < sig.Min || d.PhysicalValue > sig.Max {
		return []ValidationError{{
			Type:    AnomalyOutOfRange,
			Message: fmt.Sprintf("%s.%s = %g %s outside [%g, %g]", msg.Name, d.Name, d.PhysicalValue, d.Unit, sig.Min, sig.Max),
			Details: map[string]interface{}{
				"signal": d.Name,
				"value":  d.PhysicalValue,
				"min":    sig.Min,
				"max":    sig.Max,
			},
		}}
	}
	return nil
}

// requiredPayload returns the largest payload size any signal of msg needs
func requiredPayload(msg *MessageDef) int {
	n := 0
	for _, s := range msg.Signals {
		if b := RequiredBytes(s); b > n {
			n = b
		}
	}
	return n
}
