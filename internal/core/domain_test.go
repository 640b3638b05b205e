package core

import (
	"errors"
	"testing"
)

func TestParseTransactionType(t *testing.T) {
	tests := []struct {
		in      string
		want    TransactionType
		wantErr bool
	}{
		{"income", Income, false},
		{"outcome", Outcome, false},
		{"expense", "", true},
		{"INCOME", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTransactionType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidType) {
					t.Fatalf("expected ErrInvalidType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := func() Transaction {
		return NewTransaction("Rent", Money{Cents: 120000}, Outcome, "cat-1")
	}

	t.Run("valid", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("empty title", func(t *testing.T) {
		tn := valid()
		tn.Title = "   "
		if err := tn.Validate(); !errors.Is(err, ErrEmptyTitle) {
			t.Fatalf("expected ErrEmptyTitle, got %v", err)
		}
	})

	t.Run("non-positive value", func(t *testing.T) {
		tn := valid()
		tn.Value = Money{Cents: 0}
		if err := tn.Validate(); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("bad type", func(t *testing.T) {
		tn := valid()
		tn.Type = "transfer"
		if err := tn.Validate(); !errors.Is(err, ErrInvalidType) {
			t.Fatalf("expected ErrInvalidType, got %v", err)
		}
	})

	t.Run("missing category", func(t *testing.T) {
		tn := valid()
		tn.CategoryID = ""
		if err := tn.Validate(); !errors.Is(err, ErrEmptyCategory) {
			t.Fatalf("expected ErrEmptyCategory, got %v", err)
		}
	})
}

func TestNewTransactionMintsDistinctIDs(t *testing.T) {
	a := NewTransaction("Salary", Money{Cents: 500000}, Income, "cat-1")
	b := NewTransaction("Salary", Money{Cents: 500000}, Income, "cat-1")
	if a.ID == "" || b.ID == "" {
		t.Fatal("expected non-empty IDs")
	}
	if a.ID == b.ID {
		t.Fatal("expected distinct IDs for distinct transactions")
	}
}

func TestTransactionSigned(t *testing.T) {
	in := NewTransaction("Salary", Money{Cents: 500000}, Income, "c")
	out := NewTransaction("Rent", Money{Cents: 120000}, Outcome, "c")
	if in.Signed() != 500000 {
		t.Errorf("income Signed() = %d, want 500000", in.Signed())
	}
	if out.Signed() != -120000 {
		t.Errorf("outcome Signed() = %d, want -120000", out.Signed())
	}
}
