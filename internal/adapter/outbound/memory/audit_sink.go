package memory

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/audit"
)

const defaultRecentCap = 1000

// AuditSink implements audit.Sink writing JSON lines to a writer (stdout by
// default) while keeping a bounded in-memory ring buffer of recent entries
// for queries and tests.
type AuditSink struct {
	mu      sync.Mutex
	encoder *json.Encoder
	writer  io.Writer
	recent  []audit.Entry
	cap     int
}

// resolveCapacity returns the first positive capacity value, or the default.
func resolveCapacity(capacity ...int) int {
	if len(capacity) > 0 && capacity[0] > 0 {
		return capacity[0]
	}
	return defaultRecentCap
}

// NewAuditSink creates an audit sink writing to stdout. An optional capacity
// parameter sets the ring buffer size (default 1000).
func NewAuditSink(capacity ...int) *AuditSink {
	return NewAuditSinkWithWriter(os.Stdout, capacity...)
}

// NewAuditSinkWithWriter creates an audit sink writing to the given writer.
func NewAuditSinkWithWriter(w io.Writer, capacity ...int) *AuditSink {
	c := resolveCapacity(capacity...)
	return &AuditSink{
		encoder: json.NewEncoder(w),
		writer:  w,
		recent:  make([]audit.Entry, 0, c),
		cap:     c,
	}
}

// Append writes entries as JSON lines and records them in the ring buffer.
func (s *AuditSink) Append(ctx context.Context, entries ...audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if err := s.encoder.Encode(e); err != nil {
			return err
		}
		if len(s.recent) >= s.cap {
			copy(s.recent, s.recent[1:])
			s.recent[len(s.recent)-1] = e
		} else {
			s.recent = append(s.recent, e)
		}
	}
	return nil
}

// Flush is a no-op: this sink does not buffer.
func (s *AuditSink) Flush(ctx context.Context) error {
	return nil
}

// Close closes the underlying file when the writer is a regular file.
func (s *AuditSink) Close() error {
	if f, ok := s.writer.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		return f.Close()
	}
	return nil
}

// Recent returns the n most recent entries, newest first.
func (s *AuditSink) Recent(n int) []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := len(s.recent)
	if n > total {
		n = total
	}
	if n == 0 {
		return nil
	}
	out := make([]audit.Entry, n)
	for i := 0; i < n; i++ {
		out[i] = s.recent[total-1-i]
	}
	return out
}

// CountByCategory returns how many buffered entries carry the category.
func (s *AuditSink) CountByCategory(cat audit.Category) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.recent {
		if e.Category == cat {
			n++
		}
	}
	return n
}

// Compile-time interface verification.
var _ audit.Sink = (*AuditSink)(nil)
