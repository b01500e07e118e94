// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/canstat/pkg/dbc"
)

const testDBC = "BO_ 256 EngineData: 8 ECU\n" +
	" SG_ RPM : 0|16@0+ (0.25,0) \"rpm\"\n" +
	" SG_ Temp : 16|8@0- (1,-40) \"degC\"\n" +
	" SG_ Late : 56|8@0+ (1,0)\n"

func testCatalog(t *testing.T) *dbc.Catalog {
	t.Helper()
	c, _, err := dbc.Parse(testDBC)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return c
}

func testOutcomes(t *testing.T) []dbc.Outcome {
	c := testCatalog(t)
	return []dbc.Outcome{
		dbc.DecodeFrame(c, &dbc.Frame{ID: 256, Timestamp: 1, Payload: []byte{0x10, 0x27, 0x50, 0, 0, 0, 0, 0x0A}}),
		dbc.DecodeFrame(c, &dbc.Frame{ID: 999, Timestamp: 2, Payload: []byte{0xDE, 0xAD}}),
		dbc.DecodeFrame(c, &dbc.Frame{ID: 256, Timestamp: 3, Extended: true, Payload: []byte{0x01, 0x00, 0xFF}}),
	}
}

// ============================================================
// Text Sink Tests
// ============================================================

func TestTextSink_Records(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSink(&buf)
	for _, o := range testOutcomes(t) {
		if err := s.Write(o); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	want := []string{
		dbc.RecordHeader,
		"RPM,10000,2500,rpm",
		"Temp,80,40,degC",
		"Late,10,10, ",
		"ID: 100 EngineData Data: 10 27 50 00 00 00 00 0A",
		"ID: 3E7 Data: DE AD",
		"RPM,1,0.25,rpm",
		"Temp,255,-41,degC",
	}
	if len(lines) != len(want)+2 {
		t.Fatalf("Got %d lines, want %d:\n%s", len(lines), len(want)+2, buf.String())
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("Line %d = %q, want %q", i, lines[i], w)
		}
	}
	if !strings.HasPrefix(lines[8], "Late,ERR,") {
		t.Errorf("Line 8 = %q, want an error record", lines[8])
	}
	if lines[9] != "ID: 100 EngineData Data: 01 00 FF" {
		t.Errorf("Line 9 = %q", lines[9])
	}
}

func TestTextSink_HeaderOncePerSession(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSink(&buf)
	outcomes := testOutcomes(t)
	for i := 0; i < 5; i++ {
		if err := s.Write(outcomes[0]); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	if n := strings.Count(buf.String(), dbc.RecordHeader); n != 1 {
		t.Errorf("Header written %d times, want 1", n)
	}

	// A new sink is a new session
	s = NewTextSink(&buf)
	s.Write(outcomes[0])
	if n := strings.Count(buf.String(), dbc.RecordHeader); n != 2 {
		t.Errorf("Header written %d times after second session, want 2", n)
	}
}

func TestTextSink_UnmatchedOnlyHasNoHeader(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSink(&buf)
	s.Write(testOutcomes(t)[1])
	if buf.String() != "ID: 3E7 Data: DE AD\n" {
		t.Errorf("Output = %q", buf.String())
	}
}

func TestTextSink_FlushesEachFrame(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSink(&buf)
	s.Write(testOutcomes(t)[1])
	if buf.Len() == 0 {
		t.Error("Write should flush before returning")
	}
}

func TestOpenFile_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.txt")
	outcomes := testOutcomes(t)

	for session := 0; session < 2; session++ {
		s, err := OpenFile(path, FormatText)
		if err != nil {
			t.Fatalf("OpenFile error: %v", err)
		}
		if err := s.Write(outcomes[0]); err != nil {
			t.Fatalf("Write error: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close error: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if n := strings.Count(string(data), "ID: 100 EngineData"); n != 2 {
		t.Errorf("Expected 2 raw records after two sessions, got %d", n)
	}
}

// ============================================================
// Structured Sink Tests
// ============================================================

func TestCBORSink_Stream(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewCBORSink(&buf)
	if err != nil {
		t.Fatalf("NewCBORSink error: %v", err)
	}
	outcomes := testOutcomes(t)
	outcomes[0].Frame.Received = time.Unix(1700000000, 5)
	for _, o := range outcomes {
		if err := s.Write(o); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}

	records, err := ReadCBORRecords(&buf)
	if err != nil {
		t.Fatalf("ReadCBORRecords error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Got %d records, want 3", len(records))
	}

	r := records[0]
	if r.ID != 256 || r.Message != "EngineData" || len(r.Signals) != 3 {
		t.Errorf("Record 0 = %+v", r)
	}
	if r.Signals[0].Physical != 2500 || r.Signals[0].Raw != 10000 {
		t.Errorf("RPM record = %+v", r.Signals[0])
	}
	if !r.ReceivedTime().Equal(time.Unix(1700000000, 5)) {
		t.Errorf("Received = %v", r.ReceivedTime())
	}
	if !bytes.Equal(r.Data, outcomes[0].Frame.Payload) {
		t.Errorf("Data = % X", r.Data)
	}

	if records[1].Message != "" || records[1].Signals != nil {
		t.Errorf("Unmatched record = %+v", records[1])
	}
	if !records[2].Extended || records[2].Signals[2].Error == "" {
		t.Errorf("Record 2 = %+v", records[2])
	}
}

func TestJSONSink_Lines(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONSink(&buf)
	for _, o := range testOutcomes(t) {
		if err := s.Write(o); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}

	scanner := bufio.NewScanner(&buf)
	var records []Record
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("Line %d: %v", len(records), err)
		}
		records = append(records, r)
	}
	if len(records) != 3 {
		t.Fatalf("Got %d lines, want 3", len(records))
	}
	if records[1].DataHex != "DE AD" || records[1].ID != 999 {
		t.Errorf("Record 1 = %+v", records[1])
	}
	if records[0].Signals[1].Physical != 40 || records[0].Signals[1].Unit != "degC" {
		t.Errorf("Temp record = %+v", records[0].Signals[1])
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range []string{"text", "cbor", "json"} {
		if _, err := ParseFormat(f); err != nil {
			t.Errorf("ParseFormat(%q) error: %v", f, err)
		}
	}
	if _, err := ParseFormat("csv"); err == nil {
		t.Error("ParseFormat(csv) should fail")
	}
}
