package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"finbook/internal/core"
	"finbook/internal/services"
)

const maxImportSize = 10 << 20 // 10 MiB upload cap

// Monetary values cross the wire as decimal strings ("12.34"); cents
// stay internal.
type transactionPayload struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Value     string    `json:"value"`
	Type      string    `json:"type"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

type balancePayload struct {
	Income  string `json:"income"`
	Outcome string `json:"outcome"`
	Total   string `json:"total"`
}

type listTransactionsResponse struct {
	Transactions []transactionPayload `json:"transactions"`
	Balance      balancePayload       `json:"balance"`
}

type createTransactionRequest struct {
	Title    string `json:"title"`
	Value    string `json:"value"`
	Type     string `json:"type"`
	Category string `json:"category"`
}

type importTransactionsResponse struct {
	Transactions []transactionPayload `json:"transactions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, balance, err := s.transactions.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := listTransactionsResponse{
		Transactions: make([]transactionPayload, 0, len(transactions)),
		Balance:      toBalancePayload(balance),
	}
	for _, t := range transactions {
		resp.Transactions = append(resp.Transactions, toTransactionPayload(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid value: "+req.Value)
		return
	}
	kind, err := core.ParseTransactionType(req.Type)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	created, err := s.transactions.Create(r.Context(), services.CreateTransactionInput{
		Title:    req.Title,
		Value:    core.Money{Cents: cents},
		Type:     kind,
		Category: req.Category,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionPayload(created))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.transactions.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.transactions.Balance(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalancePayload(balance))
}

func (s *Server) handleImportTransactions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	stored, err := s.uploads.Save(header.Filename, file)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to store upload",
			"filename", header.Filename,
			"error", err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	created, err := s.imports.ImportFile(r.Context(), stored)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := importTransactionsResponse{
		Transactions: make([]transactionPayload, 0, len(created)),
	}
	for _, t := range created {
		resp.Transactions = append(resp.Transactions, toTransactionPayload(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics := s.tracer.GetMetrics()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "ok",
		"total_requests":        metrics.TotalRequests,
		"last_response_time_ms": metrics.LastResponseTime,
	})
}

// writeServiceError maps domain errors onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidBalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, core.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrMalformedRow),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrEmptyCategory):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func toTransactionPayload(t core.Transaction) transactionPayload {
	return transactionPayload{
		ID:        t.ID,
		Title:     t.Title,
		Value:     t.Value.Format(),
		Type:      string(t.Type),
		Category:  t.CategoryTitle,
		CreatedAt: t.CreatedAt,
	}
}

func toBalancePayload(b core.Balance) balancePayload {
	return balancePayload{
		Income:  b.Income.Format(),
		Outcome: b.Outcome.Format(),
		Total:   b.Total.Format(),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
