// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dbc

import "sort"

// SignalDef describes one packed sub-field of a message payload
type SignalDef struct {
	Name      string
	StartBit  int
	Length    int
	ByteOrder ByteOrder
	Signed    bool
	Scale     float64
	Offset    float64
	Min       float64
	Max       float64
	Unit      string
	Receivers []string
}

// HasRange reports whether the DBC declared a usable [min|max] range
func (s *SignalDef) HasRange() bool {
	return s.Min != s.Max
}

// MessageDef is a BO_ entry with its signals in declaration order
type MessageDef struct {
	ID          uint32
	Name        string
	DLC         int
	Transmitter string
	Signals     []*SignalDef
}

// Signal returns the named signal, or nil
func (m *MessageDef) Signal(name string) *SignalDef {
	for _, s := range m.Signals {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// IsExtended reports whether the DBC ID carries the extended-frame flag
func (m *MessageDef) IsExtended() bool {
	return m.ID&ExtendedIDFlag != 0
}

// FrameID returns the arbitration ID without the DBC extended flag
func (m *MessageDef) FrameID() uint32 {
	return m.ID &^ ExtendedIDFlag
}

// Catalog maps message IDs to their definitions.
// It is never modified after Parse returns, so it can be shared between
// goroutines without locking.
type Catalog struct {
	messages map[uint32]*MessageDef
	byName   map[string]*MessageDef
}

func newCatalog() *Catalog {
	return &Catalog{
		messages: make(map[uint32]*MessageDef),
		byName:   make(map[string]*MessageDef),
	}
}

// Lookup returns the message registered under the decimal ID key
func (c *Catalog) Lookup(id uint32) (*MessageDef, bool) {
	if c == nil {
		return nil, false
	}
	m, ok := c.messages[id]
	return m, ok
}

// MessageByName returns the message with the given name
func (c *Catalog) MessageByName(name string) (*MessageDef, bool) {
	if c == nil {
		return nil, false
	}
	m, ok := c.byName[name]
	return m, ok
}

// Len returns the number of messages
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.messages)
}

// Messages returns all messages sorted by ID
func (c *Catalog) Messages() []*MessageDef {
	if c == nil {
		return nil
	}
	out := make([]*MessageDef, 0, len(c.messages))
	for _, m := range c.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SignalCount returns the total number of signals across all messages
func (c *Catalog) SignalCount() int {
	n := 0
	for _, m := range c.Messages() {
		n += len(m.Signals)
	}
	return n
}

func (c *Catalog) put(m *MessageDef) (replaced bool) {
	if old, ok := c.messages[m.ID]; ok {
		replaced = true
		if c.byName[old.Name] == old {
			delete(c.byName, old.Name)
		}
	}
	c.messages[m.ID] = m
	c.byName[m.Name] = m
	return replaced
}
