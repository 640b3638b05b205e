// Package worker consumes transaction audit events and appends them to
// the audit log.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finbook/internal/amqp"
	"finbook/internal/storage"
)

// AuditWorker turns published transaction events into audit_log rows.
type AuditWorker struct {
	storage *storage.SQLiteRepository
}

func NewAuditWorker(storage *storage.SQLiteRepository) *AuditWorker {
	return &AuditWorker{storage: storage}
}

// HandleEvent processes a single transaction event from AMQP. Returning
// an error causes the delivery to be requeued.
func (w *AuditWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	if msg.TransactionID == "" || msg.Action == "" {
		// Unusable payload; dropping beats requeue-looping it forever.
		slog.WarnContext(ctx, "Dropping incomplete transaction event",
			"transaction_id", msg.TransactionID,
			"action", msg.Action)
		return nil
	}

	entry := storage.AuditEntry{
		TransactionID: msg.TransactionID,
		Action:        msg.Action,
		Source:        msg.Source,
		RecordedAt:    msg.Timestamp,
	}
	if err := w.storage.RecordAudit(ctx, entry); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}

	slog.InfoContext(ctx, "Audit entry recorded",
		"transaction_id", msg.TransactionID,
		"action", msg.Action,
		"source", msg.Source)

	return nil
}

// Run consumes events until ctx is cancelled.
func (w *AuditWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeTransactionEvents(ctx, func(msg *amqp.TransactionEventMessage) error {
		return w.HandleEvent(ctx, msg)
	})
}
