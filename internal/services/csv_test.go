package services

import (
	"errors"
	"testing"

	"finbook/internal/core"
)

func TestParseImportCSV(t *testing.T) {
	data := []byte("title, type, value, category\n" +
		"Salary, income, 5000, Job\n" +
		"\n" +
		"Rent, outcome, 1200, Housing\n")

	records, err := parseImportCSV(data)
	if err != nil {
		t.Fatalf("parseImportCSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	want := []importRecord{
		{Title: "Salary", Value: core.Money{Cents: 500000}, Type: core.Income, Category: "Job"},
		{Title: "Rent", Value: core.Money{Cents: 120000}, Type: core.Outcome, Category: "Housing"},
	}
	for i, rec := range records {
		if rec != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, rec, want[i])
		}
	}
}

func TestParseImportCSVHeaderOrderIndependent(t *testing.T) {
	data := []byte("category,value,type,title\nJob,5000,income,Salary\n")

	records, err := parseImportCSV(data)
	if err != nil {
		t.Fatalf("parseImportCSV: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Title != "Salary" || records[0].Category != "Job" {
		t.Errorf("positional mapping broken: %+v", records[0])
	}
}

func TestParseImportCSVWindowsLineEndings(t *testing.T) {
	data := []byte("title,type,value,category\r\nSalary,income,5000,Job\r\n")

	records, err := parseImportCSV(data)
	if err != nil {
		t.Fatalf("parseImportCSV: %v", err)
	}
	if len(records) != 1 || records[0].Title != "Salary" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestParseImportCSVLeadingBlankLinesBeforeHeader(t *testing.T) {
	data := []byte("\n\ntitle,type,value,category\nSalary,income,5000,Job\n")

	records, err := parseImportCSV(data)
	if err != nil {
		t.Fatalf("parseImportCSV: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestParseImportCSVEmptyFile(t *testing.T) {
	records, err := parseImportCSV([]byte("\n\n"))
	if err != nil {
		t.Fatalf("parseImportCSV: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestParseImportCSVMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"field count mismatch short", "title,type,value,category\nSalary,income,5000\n"},
		{"field count mismatch long", "title,type,value,category\nSalary,income,5000,Job,extra\n"},
		{"unknown type", "title,type,value,category\nSalary,transfer,5000,Job\n"},
		{"negative value", "title,type,value,category\nSalary,income,-5,Job\n"},
		{"zero value", "title,type,value,category\nSalary,income,0,Job\n"},
		{"non-numeric value", "title,type,value,category\nSalary,income,lots,Job\n"},
		{"empty title", "title,type,value,category\n,income,5000,Job\n"},
		{"empty category", "title,type,value,category\nSalary,income,5000,\n"},
		{"header missing column", "title,type,value\nSalary,income,5000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseImportCSV([]byte(tt.data))
			if !errors.Is(err, core.ErrMalformedRow) {
				t.Errorf("expected ErrMalformedRow, got %v", err)
			}
		})
	}
}
