// Package snapshot serializes the full local state to a versioned JSON
// document and restores it. Import parses and validates the whole document
// before touching the store, so a bad file never leaves partial state behind.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"financeiro/internal/core"
	"financeiro/internal/ledger"
)

const Version = 1

type Document struct {
	Version      int                               `json:"version"`
	Transactions map[string][]TransactionRecord    `json:"transactions"`
	QuickState   map[string]map[string]DraftRecord `json:"quickState"`
}

type TransactionRecord struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amountCents"`
	Category    string    `json:"category"`
	Kind        string    `json:"kind"`
	OccurredAt  time.Time `json:"occurredAt"`
	Settled     bool      `json:"settled"`
}

type DraftRecord struct {
	AmountCents int64 `json:"amountCents"`
	Settled     bool  `json:"settled"`
}

// Export writes the entire store as a JSON document.
func Export(ctx context.Context, store ledger.Store) ([]byte, error) {
	doc := Document{
		Version:      Version,
		Transactions: make(map[string][]TransactionRecord),
		QuickState:   make(map[string]map[string]DraftRecord),
	}

	months, err := store.Months(ctx)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	for _, key := range months {
		txs, err := store.ListForMonth(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("list month %s: %w", key.String(), err)
		}
		records := make([]TransactionRecord, 0, len(txs))
		for _, tx := range txs {
			records = append(records, TransactionRecord{
				ID:          tx.ID,
				Description: tx.Description,
				AmountCents: tx.Amount.Cents,
				Category:    tx.Category,
				Kind:        string(tx.Kind),
				OccurredAt:  tx.OccurredAt.UTC(),
				Settled:     tx.Settled,
			})
		}
		doc.Transactions[key.String()] = records
	}

	draftMonths, err := store.DraftMonths(ctx)
	if err != nil {
		return nil, fmt.Errorf("list draft months: %w", err)
	}
	for _, key := range draftMonths {
		drafts, err := store.DraftsForMonth(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("list drafts for %s: %w", key.String(), err)
		}
		month := make(map[string]DraftRecord, len(drafts))
		for id, d := range drafts {
			month[id] = DraftRecord{AmountCents: d.Amount.Cents, Settled: d.Settled}
		}
		doc.QuickState[key.String()] = month
	}

	return json.MarshalIndent(doc, "", "  ")
}

// Import replaces the entire store contents with the document's. The document
// is parsed and validated up front; any error leaves the store untouched.
func Import(ctx context.Context, store ledger.Store, data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	if doc.Version != Version {
		return fmt.Errorf("unsupported snapshot version %d", doc.Version)
	}

	transactions := make(map[core.MonthKey][]core.Transaction, len(doc.Transactions))
	for monthKey, records := range doc.Transactions {
		key, err := core.ParseMonthKey(monthKey)
		if err != nil {
			return fmt.Errorf("snapshot month %q: %w", monthKey, err)
		}
		txs := make([]core.Transaction, 0, len(records))
		for _, rec := range records {
			tx := core.Transaction{
				ID:          rec.ID,
				Description: rec.Description,
				Amount:      core.Money{Cents: rec.AmountCents},
				Category:    rec.Category,
				Kind:        core.Kind(rec.Kind),
				OccurredAt:  rec.OccurredAt,
				Settled:     rec.Settled,
			}
			if err := tx.Validate(); err != nil {
				return fmt.Errorf("snapshot transaction %q in %s: %w", rec.ID, monthKey, err)
			}
			if !key.Contains(tx.OccurredAt) {
				return fmt.Errorf("snapshot transaction %q dated outside month %s", rec.ID, monthKey)
			}
			txs = append(txs, tx)
		}
		transactions[key] = txs
	}

	drafts := make(map[core.MonthKey]map[string]core.Draft, len(doc.QuickState))
	for monthKey, records := range doc.QuickState {
		key, err := core.ParseMonthKey(monthKey)
		if err != nil {
			return fmt.Errorf("snapshot quick state month %q: %w", monthKey, err)
		}
		month := make(map[string]core.Draft, len(records))
		for id, rec := range records {
			if rec.AmountCents < 0 {
				return fmt.Errorf("snapshot draft %q in %s: %w", id, monthKey, core.ErrInvalidAmount)
			}
			month[id] = core.Draft{Amount: core.Money{Cents: rec.AmountCents}, Settled: rec.Settled}
		}
		drafts[key] = month
	}

	if err := store.ReplaceAll(ctx, transactions); err != nil {
		return fmt.Errorf("replace transactions: %w", err)
	}
	if err := store.ReplaceAllDrafts(ctx, drafts); err != nil {
		return fmt.Errorf("replace drafts: %w", err)
	}
	return nil
}
