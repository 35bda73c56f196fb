// Package analytics delivers click events to their recorder off the
// redirect hot path. Delivery is best-effort: a full buffer or a failing
// recorder drops events (an under-count), but emitting never blocks and a
// redirect is never failed because of analytics.
package analytics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shortyhq/shorty/internal/models"
)

// Recorder persists a single click event together with its aggregate
// click count update.
type Recorder interface {
	RecordClick(ctx context.Context, event models.ClickEvent) error
}

// Sink buffers click events and writes them through a Recorder from a
// background worker.
type Sink struct {
	recorder      Recorder
	logger        *slog.Logger
	events        chan models.ClickEvent
	recordTimeout time.Duration
	dropped       atomic.Int64
}

func NewSink(recorder Recorder, logger *slog.Logger, buffer int, recordTimeout time.Duration) *Sink {
	return &Sink{
		recorder:      recorder,
		logger:        logger,
		events:        make(chan models.ClickEvent, buffer),
		recordTimeout: recordTimeout,
	}
}

// Emit enqueues an event without blocking. When the buffer is full the
// event is dropped and counted; each accepted event is recorded at most
// once, so click counts can lag but never overshoot.
func (s *Sink) Emit(event models.ClickEvent) {
	select {
	case s.events <- event:
	default:
		s.dropped.Add(1)
		s.logger.Warn("analytics buffer full, dropping click event",
			slog.String("code", event.Code))
	}
}

// Dropped returns the number of events discarded because the buffer was
// full.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Run processes events until ctx is canceled, then flushes whatever is
// still buffered before returning.
func (s *Sink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.flush()
			return nil
		case event := <-s.events:
			s.record(event)
		}
	}
}

func (s *Sink) flush() {
	for {
		select {
		case event := <-s.events:
			s.record(event)
		default:
			return
		}
	}
}

func (s *Sink) record(event models.ClickEvent) {
	// Recording is detached from any request lifecycle; only the timeout
	// bounds it.
	ctx, cancel := context.WithTimeout(context.Background(), s.recordTimeout)
	defer cancel()

	if err := s.recorder.RecordClick(ctx, event); err != nil {
		s.dropped.Add(1)
		s.logger.Warn("failed to record click event",
			slog.String("code", event.Code), slog.Any("err", err))
	}
}
