// Package service contains the application services that sit between the
// inbound adapters and the domain: auditing, policy enforcement, action
// execution and conversation management.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/audit"
)

const (
	defaultAuditChannelSize  = 1024
	defaultAuditBatchSize    = 32
	defaultAuditFlushEvery   = 2 * time.Second
	defaultAuditSendTimeout  = 50 * time.Millisecond
	defaultAuditCloseTimeout = 5 * time.Second
)

// ErrAuditServiceClosed is returned when recording after Stop.
var ErrAuditServiceClosed = errors.New("audit service closed")

// AuditService is an asynchronous audit.Recorder. Entries are queued on a
// buffered channel and flushed to the sink in batches, so callers on the
// request path never block on sink latency. When the queue is full, Record
// waits up to the send timeout and then drops the entry, counting the drop.
type AuditService struct {
	sink   audit.Sink
	logger *slog.Logger

	channelSize  int
	batchSize    int
	flushEvery   time.Duration
	sendTimeout  time.Duration
	closeTimeout time.Duration

	entries chan audit.Entry
	done    chan struct{}
	wg      sync.WaitGroup

	started atomic.Bool
	closed  atomic.Bool
	dropped atomic.Uint64
}

// AuditOption configures an AuditService.
type AuditOption func(*AuditService)

// WithAuditChannelSize sets the queue capacity.
func WithAuditChannelSize(n int) AuditOption {
	return func(s *AuditService) {
		if n > 0 {
			s.channelSize = n
		}
	}
}

// WithAuditBatchSize sets how many entries are written per sink append.
func WithAuditBatchSize(n int) AuditOption {
	return func(s *AuditService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithAuditFlushInterval sets the maximum time a queued entry waits before
// a partial batch is flushed.
func WithAuditFlushInterval(d time.Duration) AuditOption {
	return func(s *AuditService) {
		if d > 0 {
			s.flushEvery = d
		}
	}
}

// WithAuditSendTimeout sets how long Record waits on a full queue before
// dropping the entry.
func WithAuditSendTimeout(d time.Duration) AuditOption {
	return func(s *AuditService) {
		if d >= 0 {
			s.sendTimeout = d
		}
	}
}

// NewAuditService creates an AuditService writing to sink. Call Start before
// recording and Stop to drain on shutdown.
func NewAuditService(sink audit.Sink, logger *slog.Logger, opts ...AuditOption) *AuditService {
	s := &AuditService{
		sink:         sink,
		logger:       logger,
		channelSize:  defaultAuditChannelSize,
		batchSize:    defaultAuditBatchSize,
		flushEvery:   defaultAuditFlushEvery,
		sendTimeout:  defaultAuditSendTimeout,
		closeTimeout: defaultAuditCloseTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.entries = make(chan audit.Entry, s.channelSize)
	s.done = make(chan struct{})
	return s
}

// Start launches the background flusher. Calling Start twice is a no-op.
func (s *AuditService) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go s.run()
}

// Record implements audit.Recorder. It never blocks beyond the send timeout.
func (s *AuditService) Record(entry audit.Entry) {
	if s.closed.Load() {
		s.dropped.Add(1)
		return
	}
	select {
	case s.entries <- entry:
		return
	default:
	}
	timer := time.NewTimer(s.sendTimeout)
	defer timer.Stop()
	select {
	case s.entries <- entry:
	case <-timer.C:
		s.dropped.Add(1)
		s.logger.Warn("audit queue full, entry dropped",
			"event_type", entry.EventType,
			"correlation_id", entry.CorrelationID,
			"dropped_total", s.dropped.Load())
	}
}

// Dropped reports how many entries were discarded due to backpressure.
func (s *AuditService) Dropped() uint64 {
	return s.dropped.Load()
}

// Stop drains queued entries, flushes the sink and closes it. Safe to call
// once; subsequent Record calls are dropped.
func (s *AuditService) Stop(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrAuditServiceClosed
	}
	close(s.done)

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.sink.Close()
}

func (s *AuditService) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()

	batch := make([]audit.Entry, 0, s.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.closeTimeout)
		if err := s.sink.Append(ctx, batch...); err != nil {
			s.logger.Error("audit sink append failed", "error", err, "batch_size", len(batch))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-s.entries:
			batch = append(batch, entry)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			// Drain whatever is still queued before exiting.
			for {
				select {
				case entry := <-s.entries:
					batch = append(batch, entry)
					if len(batch) >= s.batchSize {
						flush()
					}
				default:
					flush()
					ctx, cancel := context.WithTimeout(context.Background(), s.closeTimeout)
					if err := s.sink.Flush(ctx); err != nil {
						s.logger.Error("audit sink flush failed", "error", err)
					}
					cancel()
					return
				}
			}
		}
	}
}

// Compile-time interface verification.
var _ audit.Recorder = (*AuditService)(nil)
