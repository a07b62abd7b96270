package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"financeiro/internal/backend"
	"financeiro/internal/catalog"
	"financeiro/internal/ledger"
	"financeiro/internal/services"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cat := catalog.Default()
	store := ledger.NewMemoryStore()
	ledgerSvc := services.NewLedgerService(store, nil)
	b := &backend.Result{
		Store:      store,
		Ledger:     ledgerSvc,
		Reconciler: services.NewReconciler(cat, ledgerSvc),
		Catalog:    cat,
	}
	s := NewServer(":0", b)
	t.Cleanup(func() { s.rateLimiter.stop() })
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(w, req)
	return w
}

func decodeResponse[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decodeResponse[map[string]any](t, w)
	if resp["status"] != "ok" {
		t.Errorf("status field = %v, want ok", resp["status"])
	}
	// No publisher configured, so the server reports offline.
	if resp["connected"] != false {
		t.Errorf("connected = %v, want false", resp["connected"])
	}
}

func TestListTemplates(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/templates", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	templates := decodeResponse[[]templateJSON](t, w)
	if len(templates) != s.catalog.Len() {
		t.Fatalf("got %d templates, want %d", len(templates), s.catalog.Len())
	}
	if templates[0].Kind != "income" {
		t.Errorf("first template kind = %q, want income (income listed first)", templates[0].Kind)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"description": "MERCADO",
		"amount":      "150.00",
		"kind":        "expense",
		"occurredAt":  "2025-08-10T00:00:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	created := decodeResponse[transactionJSON](t, w)
	if created.AmountCents != 15000 {
		t.Errorf("amountCents = %d, want 15000", created.AmountCents)
	}
	if created.Category != "Manual" {
		t.Errorf("category = %q, want Manual", created.Category)
	}
	if created.Settled {
		t.Error("manual transaction should start unsettled")
	}

	w = doJSON(t, s, http.MethodGet, "/api/months/2025-7/statement", nil)
	st := decodeResponse[statementJSON](t, w)
	if len(st.Expense) != 1 || st.TotalExpenseCents != 15000 {
		t.Fatalf("statement = %+v, want one expense of 15000", st)
	}
	if st.BalanceCents != -15000 {
		t.Errorf("balance = %d, want -15000", st.BalanceCents)
	}

	w = doJSON(t, s, http.MethodPatch, "/api/transactions/"+created.ID, map[string]any{
		"amountCents": 12345,
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, http.MethodPut, "/api/transactions/"+created.ID+"/settled", map[string]any{
		"settled": true,
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("settle status = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, http.MethodGet, "/api/months/2025-7/statement", nil)
	st = decodeResponse[statementJSON](t, w)
	if st.Expense[0].AmountCents != 12345 || !st.Expense[0].Settled {
		t.Errorf("after edits expense = %+v, want 12345 cents settled", st.Expense[0])
	}

	w = doJSON(t, s, http.MethodDelete, "/api/transactions/"+created.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, s, http.MethodDelete, "/api/transactions/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestCreateTransaction_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "empty description", body: map[string]any{"description": "  ", "amount": "10.00", "kind": "expense"}},
		{name: "missing amount", body: map[string]any{"description": "X", "kind": "expense"}},
		{name: "negative amount", body: map[string]any{"description": "X", "amountCents": -100, "kind": "expense"}},
		{name: "bad kind", body: map[string]any{"description": "X", "amount": "10.00", "kind": "transfer"}},
		{name: "unparseable amount", body: map[string]any{"description": "X", "amount": "dez", "kind": "expense"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, s, http.MethodPost, "/api/transactions", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestDraftFlowAndConsolidate(t *testing.T) {
	s := newTestServer(t)

	// Typing digits into a template row: "266400" reads as 2664,00.
	w := doJSON(t, s, http.MethodPut, "/api/months/2025-7/drafts/salario_andre", map[string]any{
		"input":   "2.664,00",
		"settled": false,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("put draft status = %d, body %s", w.Code, w.Body.String())
	}
	d := decodeResponse[draftJSON](t, w)
	if d.AmountCents != 266400 {
		t.Errorf("draft amount = %d, want 266400", d.AmountCents)
	}
	// A positive amount settles the row automatically.
	if !d.Settled {
		t.Error("positive draft should auto-settle")
	}

	w = doJSON(t, s, http.MethodGet, "/api/months/2025-7/drafts", nil)
	drafts := decodeResponse[[]draftJSON](t, w)
	if len(drafts) != s.catalog.Len() {
		t.Fatalf("got %d draft rows, want full catalog %d", len(drafts), s.catalog.Len())
	}

	w = doJSON(t, s, http.MethodPost, "/api/months/2025-7/consolidate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("consolidate status = %d, body %s", w.Code, w.Body.String())
	}
	result := decodeResponse[map[string]int](t, w)
	if result["consolidated"] != 1 {
		t.Errorf("consolidated = %d, want 1", result["consolidated"])
	}

	// Repeating the action is a no-op.
	w = doJSON(t, s, http.MethodPost, "/api/months/2025-7/consolidate", nil)
	result = decodeResponse[map[string]int](t, w)
	if result["consolidated"] != 0 {
		t.Errorf("second consolidate = %d, want 0", result["consolidated"])
	}

	w = doJSON(t, s, http.MethodGet, "/api/months/2025-7/statement", nil)
	st := decodeResponse[statementJSON](t, w)
	if len(st.Income) != 1 || st.Income[0].Description != "SALÁRIO ANDRÉ" {
		t.Fatalf("statement income = %+v, want SALÁRIO ANDRÉ", st.Income)
	}
	if st.Income[0].Settled {
		t.Error("consolidated entry should start unsettled")
	}
}

func TestPutDraft_UnknownTemplate(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPut, "/api/months/2025-7/drafts/nope", map[string]any{
		"input": "100", "settled": false,
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestResetDefaults(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/months/2025-7/defaults", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, "/api/months/2025-7/drafts", nil)
	drafts := decodeResponse[[]draftJSON](t, w)
	for _, d := range drafts {
		tpl, ok := s.catalog.Lookup(d.TemplateID)
		if !ok {
			t.Fatalf("unknown template %q in drafts", d.TemplateID)
		}
		if d.AmountCents != tpl.DefaultAmount.Cents {
			t.Errorf("draft %s amount = %d, want default %d", d.TemplateID, d.AmountCents, tpl.DefaultAmount.Cents)
		}
		if !d.Settled {
			t.Errorf("draft %s should be settled after reset", d.TemplateID)
		}
	}
}

func TestInvalidMonthKey(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{
		"/api/months/agosto/statement",
		"/api/months/2025-12/drafts",
	} {
		w := doJSON(t, s, http.MethodGet, path, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", path, w.Code)
		}
	}
}

func TestSnapshotRoundTripOverHTTP(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"description": "ENERGIA",
		"amountCents": 22768,
		"kind":        "expense",
		"occurredAt":  "2025-08-05T00:00:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, "/api/snapshot", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	exported := w.Body.Bytes()

	// Import into a fresh server.
	s2 := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/snapshot", bytes.NewReader(exported))
	w2 := httptest.NewRecorder()
	s2.Server.Handler.ServeHTTP(w2, req)
	if w2.Code != http.StatusNoContent {
		t.Fatalf("import status = %d, body %s", w2.Code, w2.Body.String())
	}

	w2b := doJSON(t, s2, http.MethodGet, "/api/months/2025-7/statement", nil)
	st := decodeResponse[statementJSON](t, w2b)
	if len(st.Expense) != 1 || st.Expense[0].Description != "ENERGIA" {
		t.Fatalf("imported statement = %+v, want ENERGIA expense", st)
	}

	// A corrupt document is rejected and leaves state alone.
	req = httptest.NewRequest(http.MethodPost, "/api/snapshot", bytes.NewReader([]byte(`{"version": 99}`)))
	w2 = httptest.NewRecorder()
	s2.Server.Handler.ServeHTTP(w2, req)
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("bad import status = %d, want 400", w2.Code)
	}
	w2b = doJSON(t, s2, http.MethodGet, "/api/months/2025-7/statement", nil)
	st = decodeResponse[statementJSON](t, w2b)
	if len(st.Expense) != 1 {
		t.Errorf("state mutated by rejected import: %+v", st)
	}
}

func TestRateLimiting(t *testing.T) {
	s := newTestServer(t)
	var last int
	for i := 0; i < 70; i++ {
		w := doJSON(t, s, http.MethodPost, "/api/transactions", map[string]any{
			"description": fmt.Sprintf("TX %d", i),
			"amountCents": 100,
			"kind":        "expense",
			"occurredAt":  "2025-08-01T00:00:00Z",
		})
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("status after burst = %d, want 429", last)
	}
}
