package audit

import "context"

// Recorder is the call contract emitters write to. Record must be
// non-blocking from the caller's perspective; the implementation batches
// behind a buffered channel.
type Recorder interface {
	// Record submits one entry to the audit trail.
	Record(entry Entry)
}

// Sink persists audit entries. Interface owned by the domain per hexagonal
// architecture; implementations handle batching and storage.
type Sink interface {
	// Append stores entries. Entries are immutable once appended.
	Append(ctx context.Context, entries ...Entry) error

	// Flush forces pending entries to storage. Called during shutdown.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// NopRecorder discards every entry. Useful for tests that don't assert on
// the audit trail.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(Entry) {}

// Compile-time interface verification.
var _ Recorder = NopRecorder{}
