package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"finbook/internal/amqp"
	"finbook/internal/core"
	"finbook/internal/upload"
)

func newTestUploads(t *testing.T) *upload.Store {
	t.Helper()
	store, err := upload.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("upload.NewStore: %v", err)
	}
	return store
}

func holdFile(t *testing.T, store *upload.Store, contents string) string {
	t.Helper()
	name, err := store.Save("import.csv", strings.NewReader(contents))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	return name
}

func TestImportAgainstEmptyStore(t *testing.T) {
	repo := newTestRepo(t)
	uploads := newTestUploads(t)
	pub := &recordingPublisher{}
	svc := NewImportService(repo, uploads, pub)
	ctx := context.Background()

	name := holdFile(t, uploads, "title,type,value,category\n"+
		"Salary,income,5000,Job\n"+
		"Rent,outcome,1200,Housing\n")

	created, err := svc.ImportFile(ctx, name)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(created))
	}

	// Arrival order preserved.
	if created[0].Title != "Salary" || created[1].Title != "Rent" {
		t.Errorf("unexpected order: %q, %q", created[0].Title, created[1].Title)
	}
	if created[0].CategoryTitle != "Job" || created[1].CategoryTitle != "Housing" {
		t.Errorf("unexpected category titles: %q, %q",
			created[0].CategoryTitle, created[1].CategoryTitle)
	}

	balance, err := repo.GetBalance(ctx)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Income.Cents != 500000 || balance.Outcome.Cents != 120000 || balance.Total.Cents != 380000 {
		t.Errorf("unexpected balance: %+v", balance)
	}

	if n, _ := repo.CountCategories(ctx); n != 2 {
		t.Errorf("expected 2 categories, got %d", n)
	}
	if uploads.Exists(name) {
		t.Error("upload not removed after successful import")
	}
	if len(pub.messages) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.messages))
	}
	for _, msg := range pub.messages {
		if msg.Source != amqp.SourceImport {
			t.Errorf("event source = %q, want %q", msg.Source, amqp.SourceImport)
		}
	}
}

func TestImportReusesExistingCategory(t *testing.T) {
	repo := newTestRepo(t)
	uploads := newTestUploads(t)
	svc := NewImportService(repo, uploads, nil)
	ctx := context.Background()

	existing, err := repo.ResolveCategory(ctx, "Job")
	if err != nil {
		t.Fatalf("ResolveCategory: %v", err)
	}

	name := holdFile(t, uploads, "title,type,value,category\n"+
		"Salary,income,5000,Job\n"+
		"Bonus,income,500,Job\n")

	created, err := svc.ImportFile(ctx, name)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	for _, tn := range created {
		if tn.CategoryID != existing.ID {
			t.Errorf("transaction %q references %q, want existing %q", tn.Title, tn.CategoryID, existing.ID)
		}
	}
	if n, _ := repo.CountCategories(ctx); n != 1 {
		t.Errorf("expected 1 category, got %d", n)
	}
}

func TestImportResolvesDistinctCategoryOnce(t *testing.T) {
	repo := newTestRepo(t)
	uploads := newTestUploads(t)
	svc := NewImportService(repo, uploads, nil)
	ctx := context.Background()

	name := holdFile(t, uploads, "title,type,value,category\n"+
		"Salary,income,5000,Job\n"+
		"Rent,outcome,1200,Housing\n"+
		"Bonus,income,500,Job\n"+
		"Internet,outcome,80,Housing\n")

	created, err := svc.ImportFile(ctx, name)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if len(created) != 4 {
		t.Fatalf("expected 4 transactions, got %d", len(created))
	}
	if created[0].CategoryID != created[2].CategoryID {
		t.Error("Job rows should share one category")
	}
	if created[1].CategoryID != created[3].CategoryID {
		t.Error("Housing rows should share one category")
	}
	if n, _ := repo.CountCategories(ctx); n != 2 {
		t.Errorf("expected 2 categories, got %d", n)
	}
}

func TestImportNetOutcomeExceedingBalanceFails(t *testing.T) {
	repo := newTestRepo(t)
	uploads := newTestUploads(t)
	svc := NewImportService(repo, uploads, nil)
	ctx := context.Background()

	name := holdFile(t, uploads, "title,type,value,category\n"+
		"Coffee,income,5,Misc\n"+
		"Car,outcome,30000,Vehicles\n")

	_, err := svc.ImportFile(ctx, name)
	if !errors.Is(err, core.ErrInvalidBalance) {
		t.Fatalf("expected ErrInvalidBalance, got %v", err)
	}

	// Atomic rejection: zero transactions and zero categories.
	if n, _ := repo.CountTransactions(ctx); n != 0 {
		t.Errorf("expected 0 transactions, got %d", n)
	}
	if n, _ := repo.CountCategories(ctx); n != 0 {
		t.Errorf("expected 0 categories, got %d", n)
	}
	if uploads.Exists(name) {
		t.Error("upload not removed after rejected import")
	}
}

func TestImportNetOutcomeCoveredByBalanceSucceeds(t *testing.T) {
	repo := newTestRepo(t)
	uploads := newTestUploads(t)
	svc := NewImportService(repo, uploads, nil)
	ctx := context.Background()

	// Seed an existing balance of 400.00.
	creator := NewTransactionService(repo, nil)
	mustCreate(t, creator, "Savings", 40000, core.Income, "Job")

	// Batch is outcome-heavy by 300.00 but covered by the balance.
	name := holdFile(t, uploads, "title,type,value,category\n"+
		"Snacks,income,100,Misc\n"+
		"Rent,outcome,400,Housing\n")

	created, err := svc.ImportFile(ctx, name)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(created))
	}

	balance, err := repo.GetBalance(ctx)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Total.Cents != 10000 {
		t.Errorf("balance total = %d, want 10000", balance.Total.Cents)
	}
}

func TestImportMalformedFileRejectedAndRemoved(t *testing.T) {
	repo := newTestRepo(t)
	uploads := newTestUploads(t)
	svc := NewImportService(repo, uploads, nil)
	ctx := context.Background()

	name := holdFile(t, uploads, "title,type,value,category\n"+
		"Salary,income,5000,Job\n"+
		"Broken,outcome,not-a-number,Housing\n")

	_, err := svc.ImportFile(ctx, name)
	if !errors.Is(err, core.ErrMalformedRow) {
		t.Fatalf("expected ErrMalformedRow, got %v", err)
	}

	if n, _ := repo.CountTransactions(ctx); n != 0 {
		t.Errorf("expected 0 transactions, got %d", n)
	}
	if uploads.Exists(name) {
		t.Error("upload not removed after malformed import")
	}
}

func TestImportMissingFile(t *testing.T) {
	svc := NewImportService(newTestRepo(t), newTestUploads(t), nil)

	if _, err := svc.ImportFile(context.Background(), "nope.csv"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestImportEmptyFile(t *testing.T) {
	repo := newTestRepo(t)
	uploads := newTestUploads(t)
	svc := NewImportService(repo, uploads, nil)

	name := holdFile(t, uploads, "")
	created, err := svc.ImportFile(context.Background(), name)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("expected no transactions, got %d", len(created))
	}
	if uploads.Exists(name) {
		t.Error("upload not removed after empty import")
	}
}
