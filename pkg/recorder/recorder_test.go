// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package recorder

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/canstat/pkg/dbc"
	"github.com/Thermoquad/canstat/pkg/sink"
	"github.com/Thermoquad/canstat/pkg/source"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

const testDBC = "BO_ 256 EngineData: 8 ECU\n" +
	" SG_ RPM : 0|16@0+ (0.25,0) [0|1000] \"rpm\"\n"

// sliceSource replays frames, then blocks until closed or returns err
type sliceSource struct {
	frames []dbc.Frame
	err    error
	block  bool

	closeOnce sync.Once
	closed    chan struct{}

	// waiting, when set, is closed once every frame has been handed out
	// and the source blocks
	waiting chan struct{}
}

func newSliceSource(frames []dbc.Frame) *sliceSource {
	return &sliceSource{frames: frames, closed: make(chan struct{})}
}

func (s *sliceSource) ReadFrame(ctx context.Context) (dbc.Frame, error) {
	if len(s.frames) > 0 {
		f := s.frames[0]
		s.frames = s.frames[1:]
		return f, nil
	}
	if s.block {
		if s.waiting != nil {
			close(s.waiting)
			s.waiting = nil
		}
		<-s.closed
		return dbc.Frame{}, errors.New("use of closed connection")
	}
	if s.err != nil {
		return dbc.Frame{}, s.err
	}
	return dbc.Frame{}, source.ErrClosed
}

func (s *sliceSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// memorySink keeps outcomes in memory
type memorySink struct {
	outcomes []dbc.Outcome
	fail     map[uint32]bool
	closed   bool
}

func (m *memorySink) Write(o dbc.Outcome) error {
	if m.fail[o.Frame.ID] {
		return errors.New("disk full")
	}
	m.outcomes = append(m.outcomes, o)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func testCatalog(t *testing.T) *dbc.Catalog {
	t.Helper()
	c, _, err := dbc.Parse(testDBC)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return c
}

func TestRecorder_PreservesOrder(t *testing.T) {
	logger, _ := test.NewNullLogger()

	var frames []dbc.Frame
	for i := 0; i < 1000; i++ {
		id := uint32(256)
		if i%3 == 0 {
			id = 999
		}
		frames = append(frames, dbc.Frame{ID: id, Timestamp: uint64(i), Payload: []byte{byte(i), 0}})
	}

	mem := &memorySink{}
	r := New(logger, testCatalog(t), mem)
	r.QueueSize = 4
	if err := r.Run(context.Background(), newSliceSource(frames)); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(mem.outcomes) != len(frames) {
		t.Fatalf("Recorded %d frames, want %d", len(mem.outcomes), len(frames))
	}
	for i, o := range mem.outcomes {
		if o.Frame.Timestamp != uint64(i) {
			t.Fatalf("Record %d has timestamp %d, order not preserved", i, o.Frame.Timestamp)
		}
		if o.Matched != (o.Frame.ID == 256) {
			t.Errorf("Record %d matched=%v for ID %d", i, o.Matched, o.Frame.ID)
		}
	}
	if !mem.closed {
		t.Error("Sink should be closed when Run returns")
	}

	stats := r.Stats()
	if stats.TotalFrames != 1000 || stats.UnmatchedFrames != 334 {
		t.Errorf("Stats total=%d unmatched=%d", stats.TotalFrames, stats.UnmatchedFrames)
	}
}

func TestRecorder_TextSinkEndToEnd(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var buf bytes.Buffer

	frames := []dbc.Frame{
		{ID: 256, Payload: []byte{0x10, 0x0E, 0, 0, 0, 0, 0, 0}},
		{ID: 999, Payload: []byte{0x01}},
	}
	r := New(logger, testCatalog(t), sink.NewTextSink(&buf))
	if err := r.Run(context.Background(), newSliceSource(frames)); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	want := dbc.RecordHeader + "\n" +
		"RPM,3600,900,rpm\n" +
		"ID: 100 EngineData Data: 10 0E 00 00 00 00 00 00\n" +
		"ID: 3E7 Data: 01\n"
	if buf.String() != want {
		t.Errorf("Output =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestRecorder_SinkErrorsCountedAndLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	mem := &memorySink{fail: map[uint32]bool{999: true}}

	frames := []dbc.Frame{
		{ID: 999},
		{ID: 256, Payload: make([]byte, 8)},
	}
	r := New(logger, testCatalog(t), mem)
	if err := r.Run(context.Background(), newSliceSource(frames)); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(mem.outcomes) != 1 {
		t.Errorf("Recording should continue after a sink error, got %d records", len(mem.outcomes))
	}
	if stats := r.Stats(); stats.SinkErrors != 1 {
		t.Errorf("SinkErrors = %d, want 1", stats.SinkErrors)
	}

	found := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && strings.Contains(e.Message, "failed to write record") {
			found = true
		}
	}
	if !found {
		t.Error("Sink error should be logged")
	}
}

func TestRecorder_AnomaliesLoggedAndObserved(t *testing.T) {
	logger, hook := test.NewNullLogger()

	var observed []int
	r := New(logger, testCatalog(t), nil)
	r.Observer = func(o dbc.Outcome, anomalies []dbc.ValidationError) {
		observed = append(observed, len(anomalies))
	}

	// 0xFFFF * 0.25 is above the declared maximum of 1000
	frames := []dbc.Frame{{ID: 256, Payload: []byte{0xFF, 0xFF, 0, 0, 0, 0, 0, 0}}}
	if err := r.Run(context.Background(), newSliceSource(frames)); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(observed) != 1 || observed[0] != 1 {
		t.Errorf("Observer saw %v", observed)
	}
	last := hook.LastEntry()
	if last == nil || last.Level != logrus.WarnLevel || last.Data["anomaly"] != "out_of_range" {
		t.Errorf("Expected out_of_range warning, got %+v", last)
	}
}

func TestRecorder_ReadErrorReturned(t *testing.T) {
	logger, _ := test.NewNullLogger()
	src := newSliceSource([]dbc.Frame{{ID: 256}})
	src.err = errors.New("bus off")

	mem := &memorySink{}
	err := New(logger, testCatalog(t), mem).Run(context.Background(), src)
	if err == nil || err.Error() != "bus off" {
		t.Errorf("Expected bus off error, got %v", err)
	}
	if len(mem.outcomes) != 1 {
		t.Error("Frames read before the error should still be recorded")
	}
}

func TestRecorder_Cancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	src := newSliceSource([]dbc.Frame{{ID: 256}})
	src.block = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(logger, testCatalog(t), &memorySink{}).Run(ctx, src)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Cancelled Run should return nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRecorder_CancelKeepsQueuedFrames(t *testing.T) {
	logger, _ := test.NewNullLogger()

	var frames []dbc.Frame
	for i := 0; i < 5; i++ {
		frames = append(frames, dbc.Frame{ID: 256, Timestamp: uint64(i), Payload: make([]byte, 8)})
	}
	src := newSliceSource(frames)
	src.block = true
	src.waiting = make(chan struct{})
	waiting := src.waiting

	// Hold the consumer on the first frame so the rest stay queued
	release := make(chan struct{})
	var once sync.Once
	mem := &memorySink{}
	r := New(logger, testCatalog(t), mem)
	r.QueueSize = 16
	r.Observer = func(o dbc.Outcome, anomalies []dbc.ValidationError) {
		once.Do(func() { <-release })
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, src)
	}()

	select {
	case <-waiting:
	case <-time.After(2 * time.Second):
		t.Fatal("Source was not drained by the reader")
	}
	cancel()
	close(release)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Cancelled Run should return nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if len(mem.outcomes) != len(frames) {
		t.Fatalf("Recorded %d frames, want %d", len(mem.outcomes), len(frames))
	}
	for i, o := range mem.outcomes {
		if o.Frame.Timestamp != uint64(i) {
			t.Errorf("Record %d has timestamp %d, order not preserved", i, o.Frame.Timestamp)
		}
	}
	if !mem.closed {
		t.Error("Sink should be closed after the queue is drained")
	}
}

func TestRecorder_StatsStartOverEachRun(t *testing.T) {
	logger, _ := test.NewNullLogger()
	r := New(logger, testCatalog(t), nil)

	first := []dbc.Frame{{ID: 256, Payload: make([]byte, 8)}, {ID: 999}}
	if err := r.Run(context.Background(), newSliceSource(first)); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := r.Stats().TotalFrames; got != 2 {
		t.Fatalf("TotalFrames = %d, want 2", got)
	}

	second := []dbc.Frame{{ID: 256, Payload: make([]byte, 8)}}
	if err := r.Run(context.Background(), newSliceSource(second)); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	stats := r.Stats()
	if stats.TotalFrames != 1 || stats.UnmatchedFrames != 0 {
		t.Errorf("Second run stats total=%d unmatched=%d, want 1 and 0", stats.TotalFrames, stats.UnmatchedFrames)
	}
}
