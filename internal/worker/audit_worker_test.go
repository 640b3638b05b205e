package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"finbook/internal/amqp"
	"finbook/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "finbook.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestHandleEventRecordsAudit(t *testing.T) {
	repo := newTestRepo(t)
	w := NewAuditWorker(repo)
	ctx := context.Background()

	msg := &amqp.TransactionEventMessage{
		TransactionID: "tx-1",
		Action:        amqp.ActionCreated,
		Source:        amqp.SourceImport,
		Timestamp:     time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := w.HandleEvent(ctx, msg); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	entries, err := repo.ListAudit(ctx, 10)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	got := entries[0]
	if got.TransactionID != "tx-1" || got.Action != amqp.ActionCreated || got.Source != amqp.SourceImport {
		t.Errorf("unexpected entry: %+v", got)
	}
	if !got.RecordedAt.Equal(msg.Timestamp) {
		t.Errorf("RecordedAt = %v, want %v", got.RecordedAt, msg.Timestamp)
	}
}

func TestHandleEventDropsIncompletePayload(t *testing.T) {
	repo := newTestRepo(t)
	w := NewAuditWorker(repo)
	ctx := context.Background()

	// Missing IDs are dropped without error so they are not requeued.
	if err := w.HandleEvent(ctx, &amqp.TransactionEventMessage{}); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	entries, err := repo.ListAudit(ctx, 10)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no audit entries, got %d", len(entries))
	}
}
