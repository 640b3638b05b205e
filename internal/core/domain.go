package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Income  TransactionType = "income"
	Outcome TransactionType = "outcome"
)

type (
	TransactionType string

	Money struct {
		Cents int64
	}

	// Transaction is a single bookkeeping entry. Immutable after
	// creation. CategoryTitle is the resolved title of CategoryID.
	Transaction struct {
		ID            string
		Title         string
		Value         Money
		Type          TransactionType
		CategoryID    string
		CategoryTitle string
		CreatedAt     time.Time
	}

	// Category groups transactions by a unique, case-sensitive title.
	// Created lazily the first time a transaction references it.
	Category struct {
		ID        string
		Title     string
		CreatedAt time.Time
	}

	// Balance is the aggregate over all persisted transactions.
	Balance struct {
		Income  Money
		Outcome Money
		Total   Money
	}
)

var (
	ErrInvalidBalance      = errors.New("balance would become negative")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyTitle          = errors.New("empty title")
	ErrEmptyCategory       = errors.New("empty category")
	ErrMalformedRow        = errors.New("malformed csv row")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// ParseTransactionType validates a raw type string.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(s) {
	case Income, Outcome:
		return TransactionType(s), nil
	default:
		return "", ErrInvalidType
	}
}

// NewTransaction mints a transaction with a fresh ID. The category must
// already be resolved to an identifier.
func NewTransaction(title string, value Money, kind TransactionType, categoryID string) Transaction {
	return Transaction{
		ID:         uuid.NewString(),
		Title:      title,
		Value:      value,
		Type:       kind,
		CategoryID: categoryID,
		CreatedAt:  time.Now().UTC(),
	}
}

// NewCategory mints a category with a fresh ID.
func NewCategory(title string) Category {
	return Category{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Outcome
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if err := t.Value.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.CategoryID == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Signed returns the balance contribution of a transaction of this type:
// positive for income, negative for outcome.
func (t Transaction) Signed() int64 {
	if t.Type == Outcome {
		return -t.Value.Cents
	}
	return t.Value.Cents
}
