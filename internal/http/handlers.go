package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"financeiro/internal/core"
	"financeiro/internal/ledger"
	"financeiro/internal/snapshot"
)

// 1 MiB is plenty for any request body, snapshots included.
const maxBodyBytes = 1 << 20

type transactionJSON struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amountCents"`
	Amount      string    `json:"amount"`
	Category    string    `json:"category"`
	Kind        string    `json:"kind"`
	OccurredAt  time.Time `json:"occurredAt"`
	Settled     bool      `json:"settled"`
}

type draftJSON struct {
	TemplateID  string `json:"templateId"`
	AmountCents int64  `json:"amountCents"`
	Amount      string `json:"amount"`
	Settled     bool   `json:"settled"`
}

type statementJSON struct {
	MonthKey          string            `json:"monthKey"`
	Income            []transactionJSON `json:"income"`
	Expense           []transactionJSON `json:"expense"`
	TotalIncomeCents  int64             `json:"totalIncomeCents"`
	TotalExpenseCents int64             `json:"totalExpenseCents"`
	BalanceCents      int64             `json:"balanceCents"`
}

type templateJSON struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Category           string `json:"category"`
	Kind               string `json:"kind"`
	DefaultAmountCents int64  `json:"defaultAmountCents"`
}

func toTransactionJSON(tx core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          tx.ID,
		Description: tx.Description,
		AmountCents: tx.Amount.Cents,
		Amount:      tx.Amount.String(),
		Category:    tx.Category,
		Kind:        string(tx.Kind),
		OccurredAt:  tx.OccurredAt.UTC(),
		Settled:     tx.Settled,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"connected": s.ledgerSvc.Connected(),
	})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	out := make([]templateJSON, 0, s.catalog.Len())
	appendTemplates := func(tpls []core.Template, kind core.Kind) {
		for _, tpl := range tpls {
			out = append(out, templateJSON{
				ID:                 tpl.ID,
				Name:               tpl.Name,
				Category:           tpl.Category,
				Kind:               string(kind),
				DefaultAmountCents: tpl.DefaultAmount.Cents,
			})
		}
	}
	appendTemplates(s.catalog.Income(), core.Income)
	appendTemplates(s.catalog.Expense(), core.Expense)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	key, ok := monthKeyFromPath(w, r)
	if !ok {
		return
	}
	st, err := s.ledgerSvc.Statement(r.Context(), key)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := statementJSON{
		MonthKey:          st.Key.String(),
		Income:            make([]transactionJSON, 0, len(st.Income)),
		Expense:           make([]transactionJSON, 0, len(st.Expense)),
		TotalIncomeCents:  st.TotalIncome.Cents,
		TotalExpenseCents: st.TotalExpense.Cents,
		BalanceCents:      st.Balance.Cents,
	}
	for _, tx := range st.Income {
		resp.Income = append(resp.Income, toTransactionJSON(tx))
	}
	for _, tx := range st.Expense {
		resp.Expense = append(resp.Expense, toTransactionJSON(tx))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string    `json:"description"`
		AmountCents *int64    `json:"amountCents"`
		Amount      string    `json:"amount"`
		Kind        string    `json:"kind"`
		OccurredAt  time.Time `json:"occurredAt"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	amount, ok := amountFromRequest(w, req.AmountCents, req.Amount)
	if !ok {
		return
	}
	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	tx, err := s.ledgerSvc.AddManual(r.Context(), req.Description, amount, core.Kind(req.Kind), occurredAt)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionJSON(tx))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Description *string `json:"description"`
		AmountCents *int64  `json:"amountCents"`
		Amount      *string `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	var patch ledger.TransactionPatch
	patch.Description = req.Description
	switch {
	case req.AmountCents != nil:
		patch.Amount = &core.Money{Cents: *req.AmountCents}
	case req.Amount != nil:
		cents, err := core.ParseDecimalToCents(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid amount: %v", err))
			return
		}
		patch.Amount = &core.Money{Cents: cents}
	}
	if patch.Description == nil && patch.Amount == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if err := s.ledgerSvc.UpdateTransaction(r.Context(), id, patch); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledgerSvc.RemoveTransaction(r.Context(), r.PathValue("id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetSettled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Settled bool `json:"settled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.ledgerSvc.SetSettled(r.Context(), r.PathValue("id"), req.Settled); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	key, ok := monthKeyFromPath(w, r)
	if !ok {
		return
	}
	drafts, err := s.ledgerSvc.Store().DraftsForMonth(r.Context(), key)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// Catalog order, absent templates included as empty rows the way the
	// quick-entry grid renders them.
	out := make([]draftJSON, 0, s.catalog.Len())
	for _, tpl := range append(s.catalog.Income(), s.catalog.Expense()...) {
		d := drafts[tpl.ID]
		out = append(out, draftJSON{
			TemplateID:  tpl.ID,
			AmountCents: d.Amount.Cents,
			Amount:      d.Amount.String(),
			Settled:     d.Settled,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePutDraft(w http.ResponseWriter, r *http.Request) {
	key, ok := monthKeyFromPath(w, r)
	if !ok {
		return
	}
	templateID := r.PathValue("templateID")

	var req struct {
		AmountCents *int64 `json:"amountCents"`
		Input       string `json:"input"`
		Settled     bool   `json:"settled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	var amount core.Money
	switch {
	case req.AmountCents != nil:
		amount = core.Money{Cents: *req.AmountCents}
	default:
		// Raw keystrokes from the amount field; non-digits are stripped and
		// the remainder is read as centavos.
		amount = core.ParseCentavosInput(req.Input)
	}

	d, err := s.reconciler.SetDraft(r.Context(), key, templateID, amount, req.Settled)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draftJSON{
		TemplateID:  templateID,
		AmountCents: d.Amount.Cents,
		Amount:      d.Amount.String(),
		Settled:     d.Settled,
	})
}

func (s *Server) handleResetDefaults(w http.ResponseWriter, r *http.Request) {
	key, ok := monthKeyFromPath(w, r)
	if !ok {
		return
	}
	if err := s.reconciler.ResetToDefaults(r.Context(), key); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	key, ok := monthKeyFromPath(w, r)
	if !ok {
		return
	}
	var req struct {
		OccurredAt time.Time `json:"occurredAt"`
	}
	// An empty body means "first day of the month".
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	count, err := s.reconciler.Consolidate(r.Context(), key, req.OccurredAt)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"consolidated": count})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := snapshot.Export(r.Context(), s.ledgerSvc.Store())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="financeiro_backup_%s.json"`, time.Now().Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	if err := snapshot.Import(r.Context(), s.ledgerSvc.Store(), data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func monthKeyFromPath(w http.ResponseWriter, r *http.Request) (core.MonthKey, bool) {
	key, err := core.ParseMonthKey(r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid month key: %v", err))
		return core.MonthKey{}, false
	}
	return key, true
}

func amountFromRequest(w http.ResponseWriter, cents *int64, decimal string) (core.Money, bool) {
	if cents != nil {
		return core.Money{Cents: *cents}, true
	}
	if strings.TrimSpace(decimal) == "" {
		writeError(w, http.StatusBadRequest, "amount is required")
		return core.Money{}, false
	}
	parsed, err := core.ParseDecimalToCents(decimal)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid amount: %v", err))
		return core.Money{}, false
	}
	return core.Money{Cents: parsed}, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrInvalidKind):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
