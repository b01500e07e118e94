// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package recorder connects a frame source to a record sink.
//
// One goroutine reads frames into a bounded queue; a single consumer decodes
// them and writes records in arrival order.
package recorder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Thermoquad/canstat/pkg/dbc"
	"github.com/Thermoquad/canstat/pkg/sink"
	"github.com/Thermoquad/canstat/pkg/source"
	"github.com/sirupsen/logrus"
)

// DefaultQueueSize is the number of frames buffered between reader and consumer
const DefaultQueueSize = 256

// Observer is called by the consumer for every decoded frame, after the
// record was written
type Observer func(o dbc.Outcome, anomalies []dbc.ValidationError)

// Recorder decodes frames from a source and writes them to a sink
type Recorder struct {
	log     logrus.FieldLogger
	catalog *dbc.Catalog
	sink    sink.Sink

	// QueueSize bounds the frame queue, DefaultQueueSize when zero
	QueueSize int
	// StatsInterval logs a statistics summary periodically when non-zero
	StatsInterval time.Duration
	// Observer, when set, sees every decoded frame
	Observer Observer

	mu    sync.Mutex
	stats *dbc.Statistics
}

// New creates a recorder. The sink may be nil to decode without recording.
func New(log logrus.FieldLogger, catalog *dbc.Catalog, s sink.Sink) *Recorder {
	return &Recorder{
		log:     log,
		catalog: catalog,
		sink:    s,
		stats:   dbc.NewStatistics(),
	}
}

// Stats returns a snapshot of the counters
func (r *Recorder) Stats() dbc.Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := *r.stats
	s.CalculateRates()
	return s
}

// Run records frames until the source is exhausted or ctx is cancelled.
// Statistics start over with each run. Frames already queued when ctx is
// cancelled are still recorded. The source is closed when Run returns.
// Exhausting the source and cancellation are not errors.
func (r *Recorder) Run(ctx context.Context, src source.Source) error {
	queueSize := r.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	r.mu.Lock()
	r.stats.Reset()
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan dbc.Frame, queueSize)
	var readErr error
	readerDone := make(chan struct{})

	// Reader goroutine
	go func() {
		defer close(readerDone)
		defer close(frames)
		for {
			f, err := src.ReadFrame(ctx)
			if err != nil {
				readErr = err
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	var tick <-chan time.Time
	if r.StatsInterval > 0 {
		ticker := time.NewTicker(r.StatsInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var err error
loop:
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				break loop
			}
			r.process(&f)

		case <-tick:
			stats := r.Stats()
			r.log.Info("\n" + stats.String())

		case <-ctx.Done():
			break loop
		}
	}

	stopped := ctx.Err() != nil

	// Unblock a reader waiting on the transport
	cancel()
	closeErr := src.Close()
	<-readerDone

	// The reader closed the queue on its way out
	for f := range frames {
		r.process(&f)
	}

	switch {
	case stopped:
		// Read errors caused by closing the source during shutdown
	case readErr == nil, errors.Is(readErr, source.ErrClosed):
	default:
		err = readErr
	}
	if err == nil && closeErr != nil && !stopped {
		err = closeErr
	}

	if r.sink != nil {
		if serr := r.sink.Close(); err == nil && serr != nil {
			err = serr
		}
	}
	return err
}

// process decodes, records and counts one frame
func (r *Recorder) process(f *dbc.Frame) {
	out := dbc.DecodeFrame(r.catalog, f)
	anomalies := dbc.ValidateOutcome(out)

	r.log.WithFields(logrus.Fields{
		"id":        f.ID,
		"len":       len(f.Payload),
		"extended":  f.Extended,
		"overrun":   f.Overrun,
		"timestamp": f.Timestamp,
		"message":   out.MessageName(),
	}).Debug("frame")

	for _, a := range anomalies {
		r.log.WithField("anomaly", a.Type.String()).Warn(a.Message)
	}

	var sinkErr error
	if r.sink != nil {
		sinkErr = r.sink.Write(out)
		if sinkErr != nil {
			r.log.WithError(sinkErr).WithField("id", f.ID).Error("failed to write record")
		}
	}

	r.mu.Lock()
	r.stats.Update(out, anomalies)
	if sinkErr != nil {
		r.stats.RecordSinkError()
	}
	r.mu.Unlock()

	if r.Observer != nil {
		r.Observer(out, anomalies)
	}
}
