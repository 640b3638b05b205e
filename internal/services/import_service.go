package services

import (
	"context"
	"fmt"
	"log/slog"

	"finbook/internal/amqp"
	"finbook/internal/core"
	"finbook/internal/storage"
	"finbook/internal/upload"
)

// ImportService runs the CSV bulk-import pipeline. Unlike single
// creation, which checks the invariant before every insert, the import
// applies one batch-level check on the file's net effect, then persists
// categories and transactions all-or-nothing.
type ImportService struct {
	repo    *storage.SQLiteRepository
	uploads *upload.Store
	events  EventPublisher
}

func NewImportService(repo *storage.SQLiteRepository, uploads *upload.Store, events EventPublisher) *ImportService {
	return &ImportService{
		repo:    repo,
		uploads: uploads,
		events:  events,
	}
}

// ImportFile reads a held upload, removes it, and imports its rows.
// The file is removed exactly once, right after reading, so every later
// outcome (malformed rows, invariant violation, storage failure,
// cancellation) leaves the holding area clean.
func (s *ImportService) ImportFile(ctx context.Context, filename string) ([]core.Transaction, error) {
	data, err := s.uploads.Read(filename)
	if err != nil {
		return nil, err
	}
	if err := s.uploads.Remove(filename); err != nil {
		return nil, err
	}

	return s.Import(ctx, data)
}

// Import parses raw CSV contents and persists the resulting
// transactions in one storage transaction.
func (s *ImportService) Import(ctx context.Context, data []byte) ([]core.Transaction, error) {
	records, err := parseImportCSV(data)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Net effect of the whole batch in cents.
	var net int64
	for _, rec := range records {
		if rec.Type == core.Income {
			net += rec.Value.Cents
		} else {
			net -= rec.Value.Cents
		}
	}

	created := make([]core.Transaction, 0, len(records))
	err = s.repo.InTransaction(ctx, func(tx *storage.SQLiteRepository) error {
		// Batch-level invariant check: an outcome-heavy file may not
		// push the resulting balance below zero.
		if net < 0 {
			balance, err := tx.GetBalance(ctx)
			if err != nil {
				return fmt.Errorf("get balance: %w", err)
			}
			if balance.Total.Cents+net < 0 {
				return core.ErrInvalidBalance
			}
		}

		// Resolve each distinct category once, inside the transaction
		// so a failed import leaves no new categories behind.
		categoryIDs := make(map[string]string)
		for _, rec := range records {
			if _, ok := categoryIDs[rec.Category]; ok {
				continue
			}
			category, err := tx.ResolveCategory(ctx, rec.Category)
			if err != nil {
				return fmt.Errorf("resolve category %q: %w", rec.Category, err)
			}
			categoryIDs[rec.Category] = category.ID
		}

		// Persist in arrival order.
		for _, rec := range records {
			tn := core.NewTransaction(rec.Title, rec.Value, rec.Type, categoryIDs[rec.Category])
			tn.CategoryTitle = rec.Category
			if err := tx.InsertTransaction(ctx, tn); err != nil {
				return err
			}
			created = append(created, tn)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "CSV import committed",
		"row_count", len(created),
		"net_cents", net)

	for _, tn := range created {
		s.publish(ctx, tn.ID)
	}

	return created, nil
}

func (s *ImportService) publish(ctx context.Context, transactionID string) {
	if s.events == nil {
		return
	}
	msg := amqp.NewTransactionEventMessage(transactionID, amqp.ActionCreated, amqp.SourceImport)
	if err := s.events.PublishTransactionEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish import event",
			"transaction_id", transactionID,
			"error", err)
	}
}
