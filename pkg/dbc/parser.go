// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dbc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	errMissingDelimiter = errors.New("missing delimiter")
	errZeroScale        = errors.New("scale must be nonzero")
)

// ParseReport collects the diagnostics of one catalog build
type ParseReport struct {
	Lines      int
	Errors     []*ParseError
	Duplicates []string
}

// Dropped returns the number of rejected lines
func (r *ParseReport) Dropped() int {
	return len(r.Errors)
}

func (r *ParseReport) fail(line int, text string, err error) {
	r.Errors = append(r.Errors, &ParseError{Line: line, Text: text, Err: err})
}

// LoadFile reads and parses a DBC file
func LoadFile(path string) (*Catalog, *ParseReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return newCatalog(), &ParseReport{}, &LoadError{Source: path, Err: err}
	}
	defer f.Close()
	return Load(f, path)
}

// Load reads the whole DBC source from r and parses it.
// source names the input in errors and may be empty.
func Load(r io.Reader, source string) (*Catalog, *ParseReport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return newCatalog(), &ParseReport{}, &LoadError{Source: source, Err: err}
	}
	c, report, err := Parse(string(data))
	var le *LoadError
	if errors.As(err, &le) {
		le.Source = source
	}
	return c, report, err
}

// Parse builds a catalog from DBC text.
// Rejected signal lines are listed in the report and do not stop the build.
// Empty text yields an empty catalog and a *LoadError wrapping ErrEmptySource.
func Parse(text string) (*Catalog, *ParseReport, error) {
	c := newCatalog()
	report := &ParseReport{}

	if strings.TrimSpace(text) == "" {
		return c, report, &LoadError{Err: ErrEmptySource}
	}

	lines := strings.Split(text, "\n")
	report.Lines = len(lines)

	var current *MessageDef
	for idx, raw := range lines {
		lineNum := idx + 1
		line := strings.TrimSpace(raw)

		switch {
		case hasDirective(line, tokenMessage):
			msg, err := parseMessage(line)
			if err != nil {
				report.fail(lineNum, line, err)
				current = nil
				continue
			}
			if c.put(msg) {
				report.Duplicates = append(report.Duplicates,
					fmt.Sprintf("line %d: message %d (%s) redefined", lineNum, msg.ID, msg.Name))
			}
			current = msg

		case hasDirective(line, tokenSignal):
			if current == nil {
				continue
			}
			sig, err := parseSignal(line)
			if err != nil {
				report.fail(lineNum, line, err)
				continue
			}
			if addSignal(current, sig) {
				report.Duplicates = append(report.Duplicates,
					fmt.Sprintf("line %d: signal %s redefined in message %s", lineNum, sig.Name, current.Name))
			}
		}
	}

	return c, report, nil
}

// hasDirective matches a directive token followed by whitespace, so that
// BO_TX_BU_ and SG_MUL_VAL_ are not mistaken for BO_ and SG_
func hasDirective(line, token string) bool {
	if !strings.HasPrefix(line, token) || len(line) == len(token) {
		return false
	}
	next := line[len(token)]
	return next == ' ' || next == '\t'
}

// addSignal appends sig, or replaces an earlier signal with the same name
// in place. Returns true on replacement.
func addSignal(m *MessageDef, sig *SignalDef) bool {
	for i, s := range m.Signals {
		if s.Name == sig.Name {
			m.Signals[i] = sig
			return true
		}
	}
	m.Signals = append(m.Signals, sig)
	return false
}

// parseMessage parses: BO_ <id> <name>: [<dlc> [<transmitter>]]
func parseMessage(line string) (*MessageDef, error) {
	rest := strings.TrimSpace(line[len(tokenMessage):])

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil, fmt.Errorf("message id: %w", errMissingDelimiter)
	}
	id, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("message id %q: %w", fields[0], err)
	}
	rest = strings.TrimSpace(rest[len(fields[0]):])

	colon := strings.Index(rest, ":")
	if colon < 0 {
		return nil, fmt.Errorf("message name: %w", errMissingDelimiter)
	}
	name := strings.TrimSpace(rest[:colon])
	if name == "" {
		return nil, fmt.Errorf("message name is empty")
	}

	msg := &MessageDef{ID: uint32(id), Name: name}

	tail := strings.Fields(rest[colon+1:])
	if len(tail) > 0 {
		// A bad DLC is not fatal for the message: signals still decode
		// against the frame's real payload length.
		if dlc, err := strconv.Atoi(tail[0]); err == nil && dlc >= 0 {
			msg.DLC = dlc
		}
	}
	if len(tail) > 1 {
		msg.Transmitter = tail[1]
	}
	return msg, nil
}

// parseSignal parses:
// SG_ <name> : <start>|<length>@<order><sign> (<scale>,<offset>) [<min>|<max>] "<unit>" <receivers>
func parseSignal(line string) (*SignalDef, error) {
	start := len(tokenSignal)
	colon := strings.Index(line[start:], ":")
	if colon < 0 {
		return nil, fmt.Errorf("signal name: %w", errMissingDelimiter)
	}
	colon += start

	sig := &SignalDef{
		Name: strings.ReplaceAll(line[start:colon], " ", ""),
		Unit: DefaultUnit,
	}
	sig.Name = strings.ReplaceAll(sig.Name, "\t", "")
	if sig.Name == "" {
		return nil, fmt.Errorf("signal name is empty")
	}

	pipe := indexFrom(line, "|", colon)
	at := indexFrom(line, "@", pipe)
	if pipe < 0 || at < 0 {
		return nil, fmt.Errorf("signal %s bit layout: %w", sig.Name, errMissingDelimiter)
	}

	var err error
	if sig.StartBit, err = strconv.Atoi(strings.TrimSpace(line[colon+1 : pipe])); err != nil {
		return nil, fmt.Errorf("signal %s start bit: %w", sig.Name, err)
	}
	if sig.Length, err = strconv.Atoi(strings.TrimSpace(line[pipe+1 : at])); err != nil {
		return nil, fmt.Errorf("signal %s length: %w", sig.Name, err)
	}
	if sig.Length < 1 || sig.Length > MaxSignalLength {
		return nil, fmt.Errorf("signal %s length %d: %w", sig.Name, sig.Length, ErrInvalidLength)
	}

	if at+2 >= len(line) {
		return nil, fmt.Errorf("signal %s byte order and sign: %w", sig.Name, errMissingDelimiter)
	}
	if line[at+1] != '0' {
		sig.ByteOrder = BigEndian
	}
	sig.Signed = line[at+2] == '-'

	openParen := indexFrom(line, "(", at)
	comma := indexFrom(line, ",", openParen)
	closeParen := indexFrom(line, ")", comma)
	if openParen < 0 || comma < 0 || closeParen < 0 {
		return nil, fmt.Errorf("signal %s scale and offset: %w", sig.Name, errMissingDelimiter)
	}
	if sig.Scale, err = parseFloat(line[openParen+1 : comma]); err != nil {
		return nil, fmt.Errorf("signal %s scale: %w", sig.Name, err)
	}
	if sig.Scale == 0 {
		return nil, fmt.Errorf("signal %s: %w", sig.Name, errZeroScale)
	}
	if sig.Offset, err = parseFloat(line[comma+1 : closeParen]); err != nil {
		return nil, fmt.Errorf("signal %s offset: %w", sig.Name, err)
	}

	rest := closeParen + 1
	quote1 := indexFrom(line, "\"", rest)

	// Optional [min|max], only looked for before the unit
	searchEnd := len(line)
	if quote1 >= 0 {
		searchEnd = quote1
	}
	if openBracket := strings.Index(line[rest:searchEnd], "["); openBracket >= 0 {
		openBracket += rest
		bar := indexFrom(line, "|", openBracket)
		closeBracket := indexFrom(line, "]", openBracket)
		if bar < 0 || closeBracket < 0 || bar > closeBracket {
			return nil, fmt.Errorf("signal %s range: %w", sig.Name, errMissingDelimiter)
		}
		if sig.Min, err = parseFloat(line[openBracket+1 : bar]); err != nil {
			return nil, fmt.Errorf("signal %s minimum: %w", sig.Name, err)
		}
		if sig.Max, err = parseFloat(line[bar+1 : closeBracket]); err != nil {
			return nil, fmt.Errorf("signal %s maximum: %w", sig.Name, err)
		}
		rest = closeBracket + 1
	}

	if quote1 >= 0 {
		if quote2 := indexFrom(line, "\"", quote1+1); quote2 >= 0 {
			sig.Unit = line[quote1+1 : quote2]
			sig.Receivers = parseReceivers(line[quote2+1:])
		}
	} else {
		sig.Receivers = parseReceivers(line[rest:])
	}

	return sig, nil
}

func parseReceivers(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// indexFrom returns the index of sep in s at or after from, or -1
func indexFrom(s, sep string, from int) int {
	if from < 0 || from > len(s) {
		return -1
	}
	i := strings.Index(s[from:], sep)
	if i < 0 {
		return -1
	}
	return i + from
}
