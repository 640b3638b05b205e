package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"finbook/internal/amqp"
	"finbook/internal/core"
	"finbook/internal/storage"
)

// EventPublisher emits audit events after committed writes. Satisfied
// by *amqp.Client; nil disables publishing.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error
}

// TransactionService holds the bookkeeping rules for single transactions:
// the balance may never go negative, and categories are resolved
// find-or-create by exact title.
type TransactionService struct {
	repo   *storage.SQLiteRepository
	events EventPublisher
}

func NewTransactionService(repo *storage.SQLiteRepository, events EventPublisher) *TransactionService {
	return &TransactionService{
		repo:   repo,
		events: events,
	}
}

// CreateTransactionInput carries a new transaction before category
// resolution.
type CreateTransactionInput struct {
	Title    string
	Value    core.Money
	Type     core.TransactionType
	Category string
}

func (in CreateTransactionInput) validate() error {
	if len(strings.TrimSpace(in.Title)) == 0 {
		return core.ErrEmptyTitle
	}
	if err := in.Value.Validate(); err != nil {
		return err
	}
	if !in.Type.Valid() {
		return core.ErrInvalidType
	}
	if len(strings.TrimSpace(in.Category)) == 0 {
		return core.ErrEmptyCategory
	}
	return nil
}

// Create validates and persists one transaction. The balance check,
// category resolution and insert share a single storage transaction, so
// concurrent outcomes cannot jointly drive the balance negative. On the
// ErrInvalidBalance path nothing is written.
func (s *TransactionService) Create(ctx context.Context, in CreateTransactionInput) (core.Transaction, error) {
	if err := in.validate(); err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	err := s.repo.InTransaction(ctx, func(tx *storage.SQLiteRepository) error {
		if in.Type == core.Outcome {
			balance, err := tx.GetBalance(ctx)
			if err != nil {
				return fmt.Errorf("get balance: %w", err)
			}
			if balance.Total.Cents-in.Value.Cents < 0 {
				return core.ErrInvalidBalance
			}
		}

		category, err := tx.ResolveCategory(ctx, in.Category)
		if err != nil {
			return fmt.Errorf("resolve category %q: %w", in.Category, err)
		}

		created = core.NewTransaction(in.Title, in.Value, in.Type, category.ID)
		created.CategoryTitle = category.Title
		if err := tx.InsertTransaction(ctx, created); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", created.ID,
		"transaction_title", created.Title,
		"transaction_type", string(created.Type),
		"amount_cents", created.Value.Cents,
		"category", in.Category)

	s.publish(ctx, created.ID, amqp.ActionCreated, amqp.SourceAPI)

	return created, nil
}

// Balance recomputes the aggregate from the store on every call.
func (s *TransactionService) Balance(ctx context.Context) (core.Balance, error) {
	return s.repo.GetBalance(ctx)
}

// List returns all transactions in creation order together with the
// current balance.
func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, core.Balance, error) {
	transactions, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return nil, core.Balance{}, err
	}
	balance, err := s.repo.GetBalance(ctx)
	if err != nil {
		return nil, core.Balance{}, err
	}
	return transactions, balance, nil
}

// Delete removes a transaction by ID. Administrative operation; the
// balance invariant is not re-checked here.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteTransaction(ctx, id); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", "transaction_id", id)
	s.publish(ctx, id, amqp.ActionDeleted, amqp.SourceAPI)
	return nil
}

// publish emits an audit event. Failures are logged and swallowed: the
// write already committed and audit is best-effort.
func (s *TransactionService) publish(ctx context.Context, transactionID, action, source string) {
	if s.events == nil {
		return
	}
	msg := amqp.NewTransactionEventMessage(transactionID, action, source)
	if err := s.events.PublishTransactionEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", transactionID,
			"action", action,
			"error", err)
	}
}
