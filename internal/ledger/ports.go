// Package ledger defines the persistence ports of the tracker and an
// in-memory store used as the default offline backend and by tests.
package ledger

import (
	"context"

	"financeiro/internal/core"
)

// TransactionPatch carries the editable fields of an update. Nil means
// "leave unchanged".
type TransactionPatch struct {
	Description *string
	Amount      *core.Money
}

// Ports for the persistence backends.
type (
	// TransactionStore holds the authoritative, month-partitioned ledger.
	// Every mutation is immediately visible to ListForMonth. Update, Remove,
	// SetSettled and Get fail with core.ErrNotFound for unknown ids.
	TransactionStore interface {
		Append(ctx context.Context, tx core.Transaction) error
		// AppendBatch appends the transactions in order, as one unit.
		AppendBatch(ctx context.Context, txs []core.Transaction) error
		Update(ctx context.Context, id string, patch TransactionPatch) error
		Remove(ctx context.Context, id string) error
		SetSettled(ctx context.Context, id string, settled bool) error
		Get(ctx context.Context, id string) (core.Transaction, error)
		// ListForMonth returns the month partition in insertion order.
		ListForMonth(ctx context.Context, key core.MonthKey) ([]core.Transaction, error)
		SumByKind(ctx context.Context, key core.MonthKey, kind core.Kind) (core.Money, error)
		Balance(ctx context.Context, key core.MonthKey) (core.Money, error)
		Months(ctx context.Context) ([]core.MonthKey, error)
		// ReplaceAll swaps the whole ledger for the given partitions. Used by
		// snapshot import and the startup fetch from the remote store.
		ReplaceAll(ctx context.Context, partitions map[core.MonthKey][]core.Transaction) error
	}

	// DraftStore holds quick-entry drafts keyed by (month, template id).
	// PutDraft is an upsert with last-write-wins semantics.
	DraftStore interface {
		PutDraft(ctx context.Context, key core.MonthKey, templateID string, d core.Draft) error
		GetDraft(ctx context.Context, key core.MonthKey, templateID string) (core.Draft, bool, error)
		DraftsForMonth(ctx context.Context, key core.MonthKey) (map[string]core.Draft, error)
		ClearMonthDrafts(ctx context.Context, key core.MonthKey) error
		DraftMonths(ctx context.Context) ([]core.MonthKey, error)
		ReplaceAllDrafts(ctx context.Context, partitions map[core.MonthKey]map[string]core.Draft) error
	}

	// Store is the full persistence backend boundary.
	Store interface {
		TransactionStore
		DraftStore
	}
)
