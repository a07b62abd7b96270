package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"financeiro/internal/catalog"
	"financeiro/internal/core"
)

// Reconciler maintains the per-month quick-entry drafts and consolidates
// them into the ledger without duplicating previously consolidated entries.
type Reconciler struct {
	catalog *catalog.Catalog
	ledger  *LedgerService
}

func NewReconciler(cat *catalog.Catalog, ledgerSvc *LedgerService) *Reconciler {
	return &Reconciler{catalog: cat, ledger: ledgerSvc}
}

// SetDraft overwrites the draft for (month, template). Entering a positive
// amount marks the row settled automatically, but only in one direction:
// when both the stored draft and the caller's flag are unsettled. A caller
// turning an already-settled draft off is an explicit unsettle and wins.
func (r *Reconciler) SetDraft(ctx context.Context, key core.MonthKey, templateID string, amount core.Money, settled bool) (core.Draft, error) {
	if _, ok := r.catalog.Lookup(templateID); !ok {
		return core.Draft{}, fmt.Errorf("template %s: %w", templateID, core.ErrNotFound)
	}
	if amount.Cents < 0 {
		return core.Draft{}, core.ErrInvalidAmount
	}

	store := r.ledger.Store()
	prev, _, err := store.GetDraft(ctx, key, templateID)
	if err != nil {
		return core.Draft{}, fmt.Errorf("read draft: %w", err)
	}
	if amount.Cents > 0 && !settled && !prev.Settled {
		settled = true
	}

	d := core.Draft{Amount: amount, Settled: settled}
	if err := store.PutDraft(ctx, key, templateID, d); err != nil {
		return core.Draft{}, fmt.Errorf("put draft: %w", err)
	}
	r.ledger.publishDraft(ctx, key, templateID, d)
	return d, nil
}

// ResetToDefaults discards every draft of the month and repopulates all
// catalog templates with {defaultAmount, settled}. The confirmation dialog
// lives at the boundary; this overwrite is unconditional.
func (r *Reconciler) ResetToDefaults(ctx context.Context, key core.MonthKey) error {
	store := r.ledger.Store()
	if err := store.ClearMonthDrafts(ctx, key); err != nil {
		return fmt.Errorf("clear month drafts: %w", err)
	}
	for _, tpl := range append(r.catalog.Income(), r.catalog.Expense()...) {
		d := core.Draft{Amount: tpl.DefaultAmount, Settled: true}
		if err := store.PutDraft(ctx, key, tpl.ID, d); err != nil {
			return fmt.Errorf("put default draft %s: %w", tpl.ID, err)
		}
		r.ledger.publishDraft(ctx, key, tpl.ID, d)
	}
	slog.InfoContext(ctx, "Quick-entry drafts reset to catalog defaults",
		"month_key", key.String(), "templates", r.catalog.Len())
	return nil
}

// Consolidate turns qualifying drafts into ledger transactions: income
// templates first, then expense, in catalog order. A draft qualifies when it
// exists with a positive amount and the month does not already contain a
// transaction with the template's name and the same amount. Matching on
// name+amount rather than identity is deliberate; it is the guard that makes
// repeating the action a no-op. Returns the number of new transactions;
// zero means nothing was appended.
func (r *Reconciler) Consolidate(ctx context.Context, key core.MonthKey, occurredAt time.Time) (int, error) {
	if occurredAt.IsZero() {
		occurredAt = key.Date(1)
	}
	if !key.Contains(occurredAt) {
		return 0, fmt.Errorf("occurred_at %s outside month %s", occurredAt.Format("2006-01-02"), key.String())
	}

	store := r.ledger.Store()
	existing, err := store.ListForMonth(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("list month: %w", err)
	}
	drafts, err := store.DraftsForMonth(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read drafts: %w", err)
	}

	var toAdd []core.Transaction
	process := func(tpl core.Template, kind core.Kind) {
		d, ok := drafts[tpl.ID]
		if !ok || d.Amount.Cents <= 0 {
			return
		}
		if alreadyConsolidated(existing, tpl.Name, d.Amount) {
			return
		}
		toAdd = append(toAdd, core.Transaction{
			ID:          uuid.NewString(),
			Description: tpl.Name,
			Amount:      d.Amount,
			Category:    tpl.Category,
			Kind:        kind,
			OccurredAt:  occurredAt,
			Settled:     false,
		})
	}
	for _, tpl := range r.catalog.Income() {
		process(tpl, core.Income)
	}
	for _, tpl := range r.catalog.Expense() {
		process(tpl, core.Expense)
	}

	if len(toAdd) == 0 {
		slog.InfoContext(ctx, "Nothing to consolidate", "month_key", key.String())
		return 0, nil
	}
	if err := r.ledger.AppendBatch(ctx, toAdd); err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Drafts consolidated into ledger",
		"month_key", key.String(), "count", len(toAdd))
	return len(toAdd), nil
}

// alreadyConsolidated is the duplicate test: same description and an amount
// within a cent. With integer cents the tolerance degenerates to equality,
// which is exactly the sub-cent window the input parsing guarantees.
func alreadyConsolidated(existing []core.Transaction, name string, amount core.Money) bool {
	for _, tx := range existing {
		if tx.Description != name {
			continue
		}
		diff := tx.Amount.Cents - amount.Cents
		if diff < 0 {
			diff = -diff
		}
		if diff < 1 {
			return true
		}
	}
	return false
}
