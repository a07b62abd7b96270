package snapshot

import (
	"context"
	"strings"
	"testing"
	"time"

	"financeiro/internal/core"
	"financeiro/internal/ledger"
)

var august = core.MonthKey{Year: 2025, Month: 7}

func seedStore(t *testing.T) *ledger.MemoryStore {
	t.Helper()
	store := ledger.NewMemoryStore()
	ctx := context.Background()

	txs := []core.Transaction{
		{
			ID:          "tx-1",
			Description: "SALÁRIO ANDRÉ",
			Amount:      core.Money{Cents: 266400},
			Category:    "Renda",
			Kind:        core.Income,
			OccurredAt:  august.Date(1),
		},
		{
			ID:          "tx-2",
			Description: "ENERGIA",
			Amount:      core.Money{Cents: 22768},
			Category:    "Moradia",
			Kind:        core.Expense,
			OccurredAt:  august.Date(5),
			Settled:     true,
		},
	}
	for _, tx := range txs {
		if err := store.Append(ctx, tx); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	draft := core.Draft{Amount: core.Money{Cents: 22768}, Settled: true}
	if err := store.PutDraft(ctx, august, "energia", draft); err != nil {
		t.Fatalf("PutDraft() error = %v", err)
	}
	return store
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := seedStore(t)

	data, err := Export(ctx, src)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(string(data), `"version": 1`) {
		t.Errorf("export should carry version 1, got:\n%s", data)
	}

	dst := ledger.NewMemoryStore()
	if err := Import(ctx, dst, data); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	txs, err := dst.ListForMonth(ctx, august)
	if err != nil {
		t.Fatalf("ListForMonth() error = %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("imported %d transactions, want 2", len(txs))
	}
	if txs[0].ID != "tx-1" || txs[1].ID != "tx-2" {
		t.Errorf("imported order = [%s %s], want [tx-1 tx-2]", txs[0].ID, txs[1].ID)
	}
	if txs[0].Amount.Cents != 266400 {
		t.Errorf("imported amount = %d, want 266400", txs[0].Amount.Cents)
	}
	if !txs[1].Settled {
		t.Error("imported tx-2 should be settled")
	}

	d, ok, err := dst.GetDraft(ctx, august, "energia")
	if err != nil || !ok {
		t.Fatalf("GetDraft() = %v, %v, %v", d, ok, err)
	}
	if d.Amount.Cents != 22768 || !d.Settled {
		t.Errorf("imported draft = %+v, want {22768 true}", d)
	}
}

func TestImport_ReplacesExistingState(t *testing.T) {
	ctx := context.Background()
	data, err := Export(ctx, seedStore(t))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	dst := seedStore(t)
	extra := core.Transaction{
		ID:          "tx-old",
		Description: "MERCADO",
		Amount:      core.Money{Cents: 5000},
		Category:    "Manual",
		Kind:        core.Expense,
		OccurredAt:  time.Date(2025, time.July, 3, 0, 0, 0, 0, time.UTC),
	}
	if err := dst.Append(ctx, extra); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := Import(ctx, dst, data); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if _, err := dst.Get(ctx, "tx-old"); err == nil {
		t.Error("transaction outside the snapshot should be gone after import")
	}
}

func TestImport_RejectsWithoutMutation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		data string
	}{
		{name: "malformed json", data: `{"version": 1, "transactions":`},
		{name: "wrong version", data: `{"version": 2, "transactions": {}, "quickState": {}}`},
		{name: "bad month key", data: `{"version": 1, "transactions": {"agosto": []}, "quickState": {}}`},
		{
			name: "negative amount",
			data: `{"version": 1, "transactions": {"2025-7": [{"id": "x", "description": "A", "amountCents": -1, "category": "Manual", "kind": "expense", "occurredAt": "2025-08-01T00:00:00Z"}]}, "quickState": {}}`,
		},
		{
			name: "date outside month",
			data: `{"version": 1, "transactions": {"2025-7": [{"id": "x", "description": "A", "amountCents": 100, "category": "Manual", "kind": "expense", "occurredAt": "2025-09-01T00:00:00Z"}]}, "quickState": {}}`,
		},
		{
			name: "negative draft",
			data: `{"version": 1, "transactions": {}, "quickState": {"2025-7": {"energia": {"amountCents": -5, "settled": false}}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seedStore(t)
			if err := Import(ctx, store, []byte(tt.data)); err == nil {
				t.Fatal("Import() should reject bad document")
			}
			// Existing state stays intact.
			txs, err := store.ListForMonth(ctx, august)
			if err != nil {
				t.Fatalf("ListForMonth() error = %v", err)
			}
			if len(txs) != 2 {
				t.Errorf("store mutated by rejected import: %d transactions, want 2", len(txs))
			}
		})
	}
}
