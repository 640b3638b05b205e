package services

import (
	"fmt"
	"strings"

	"finbook/internal/core"
)

// importRecord is one parsed CSV row, in arrival order.
type importRecord struct {
	Title    string
	Value    core.Money
	Type     core.TransactionType
	Category string
}

// Required header field names.
const (
	fieldTitle    = "title"
	fieldValue    = "value"
	fieldType     = "type"
	fieldCategory = "category"
)

// parseImportCSV parses the bookkeeping CSV convention: the first
// non-empty line is a comma-delimited header naming the fields, every
// later non-empty line maps positionally onto those names. Fields are
// trimmed of surrounding whitespace. Any row that does not yield a
// valid transaction fails the whole batch with ErrMalformedRow.
func parseImportCSV(data []byte) ([]importRecord, error) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	var header []string
	var records []importRecord
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		values := strings.Split(line, ",")
		for j := range values {
			values[j] = strings.TrimSpace(values[j])
		}

		if header == nil {
			header = values
			if err := validateHeader(header); err != nil {
				return nil, err
			}
			continue
		}

		if len(values) != len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d: %w", i+1, len(header), len(values), core.ErrMalformedRow)
		}

		fields := make(map[string]string, len(header))
		for j, name := range header {
			fields[name] = values[j]
		}

		rec, err := buildRecord(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func validateHeader(header []string) error {
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		seen[name] = true
	}
	for _, required := range []string{fieldTitle, fieldValue, fieldType, fieldCategory} {
		if !seen[required] {
			return fmt.Errorf("header missing %q field: %w", required, core.ErrMalformedRow)
		}
	}
	return nil
}

func buildRecord(fields map[string]string) (importRecord, error) {
	title := fields[fieldTitle]
	if title == "" {
		return importRecord{}, fmt.Errorf("empty title: %w", core.ErrMalformedRow)
	}

	kind, err := core.ParseTransactionType(fields[fieldType])
	if err != nil {
		return importRecord{}, fmt.Errorf("type %q: %w", fields[fieldType], core.ErrMalformedRow)
	}

	cents, err := core.ParseDecimalToCents(fields[fieldValue])
	if err != nil {
		return importRecord{}, fmt.Errorf("value %q: %w", fields[fieldValue], core.ErrMalformedRow)
	}

	category := fields[fieldCategory]
	if category == "" {
		return importRecord{}, fmt.Errorf("empty category: %w", core.ErrMalformedRow)
	}

	return importRecord{
		Title:    title,
		Value:    core.Money{Cents: cents},
		Type:     kind,
		Category: category,
	}, nil
}
