package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/audit"
)

func newTestSink(t *testing.T) *AuditSink {
	t.Helper()
	sink, err := NewAuditSink(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewAuditSink: %v", err)
	}
	t.Cleanup(func() { sink.Close() })
	return sink
}

func entryAt(correlationID string, ts time.Time) audit.Entry {
	e := audit.NewEntry(audit.EntrySpec{
		CorrelationID: correlationID,
		Category:      audit.CategoryAction,
		EventType:     audit.EventActionExecuted,
		UserID:        "k1",
		ResourceType:  "tag",
		ResourcePath:  "plc1/motor",
		ActionType:    "delete",
		Details:       map[string]interface{}{"status": "success"},
	})
	e.Timestamp = ts
	return e
}

func TestAuditSinkRoundTrip(t *testing.T) {
	ctx := context.Background()
	sink := newTestSink(t)

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	entries := []audit.Entry{
		entryAt("c-1", base),
		entryAt("c-2", base.Add(time.Second)),
		entryAt("c-3", base.Add(2*time.Second)),
	}
	if err := sink.Append(ctx, entries...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recent, err := sink.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent length = %d, want 2", len(recent))
	}
	if recent[0].CorrelationID != "c-3" || recent[1].CorrelationID != "c-2" {
		t.Errorf("order = %q, %q, want newest first", recent[0].CorrelationID, recent[1].CorrelationID)
	}

	got := recent[0]
	if got.Category != audit.CategoryAction || got.EventType != audit.EventActionExecuted {
		t.Errorf("entry = %+v", got)
	}
	if got.ResourcePath != "plc1/motor" || got.ActionType != "delete" {
		t.Errorf("entry fields = %+v", got)
	}
	if got.Details["status"] != "success" {
		t.Errorf("Details = %v", got.Details)
	}
	if !got.Timestamp.Equal(base.Add(2 * time.Second)) {
		t.Errorf("Timestamp = %v", got.Timestamp)
	}
}

func TestAuditSinkEmptyAppend(t *testing.T) {
	sink := newTestSink(t)
	if err := sink.Append(context.Background()); err != nil {
		t.Errorf("empty Append: %v", err)
	}
}

func TestAuditSinkSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")

	sink, err := NewAuditSink(path)
	if err != nil {
		t.Fatalf("NewAuditSink: %v", err)
	}
	if err := sink.Append(ctx, entryAt("c-1", time.Now().UTC())); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewAuditSink(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	recent, err := reopened.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].CorrelationID != "c-1" {
		t.Errorf("recent = %+v, want the persisted entry", recent)
	}
}
