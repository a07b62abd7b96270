// Package services orchestrates ledger mutations across the local store and
// the fire-and-forget remote sync channel, and owns the quick-entry
// reconciliation logic.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"financeiro/internal/core"
	"financeiro/internal/ledger"
)

// SyncPublisher is the detached side channel to the remote store. A failed
// publish never affects the local mutation that preceded it.
type SyncPublisher interface {
	PublishTransactionUpsert(ctx context.Context, tx core.Transaction) error
	PublishTransactionDelete(ctx context.Context, id string, key core.MonthKey) error
	PublishDraftUpsert(ctx context.Context, key core.MonthKey, templateID string, d core.Draft) error
}

// LedgerService applies every mutation to the local store first, then
// publishes a sync message. Local state is authoritative; sync failures are
// logged, flip the connectivity flag and nothing else.
type LedgerService struct {
	store     ledger.Store
	publisher SyncPublisher
	connected atomic.Bool
}

func NewLedgerService(store ledger.Store, publisher SyncPublisher) *LedgerService {
	s := &LedgerService{store: store, publisher: publisher}
	s.connected.Store(publisher != nil)
	return s
}

// Store exposes the underlying backend to collaborators that only read.
func (s *LedgerService) Store() ledger.Store {
	return s.store
}

// Connected reports whether the last interaction with the sync channel or
// the remote store succeeded.
func (s *LedgerService) Connected() bool {
	return s.connected.Load()
}

// SetConnected is flipped by the startup fetch and by sync outcomes.
func (s *LedgerService) SetConnected(v bool) {
	s.connected.Store(v)
}

// AddManual creates a one-off transaction. An empty category defaults to
// "Manual", matching how ad-hoc entries have always been labelled.
func (s *LedgerService) AddManual(ctx context.Context, description string, amount core.Money, kind core.Kind, occurredAt time.Time) (core.Transaction, error) {
	if strings.TrimSpace(description) == "" {
		return core.Transaction{}, core.ErrEmptyDescription
	}
	if err := amount.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		ID:          uuid.NewString(),
		Description: description,
		Amount:      amount,
		Category:    "Manual",
		Kind:        kind,
		OccurredAt:  occurredAt,
		Settled:     false,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.Append(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	s.publishUpsert(ctx, tx)
	return tx, nil
}

// AppendBatch appends pre-built transactions in one unit and publishes each.
// Used by the reconciler's consolidate pass.
func (s *LedgerService) AppendBatch(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	if err := s.store.AppendBatch(ctx, txs); err != nil {
		return fmt.Errorf("append batch: %w", err)
	}
	for _, tx := range txs {
		s.publishUpsert(ctx, tx)
	}
	return nil
}

// UpdateTransaction edits description and/or amount in place.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id string, patch ledger.TransactionPatch) error {
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		return core.ErrEmptyDescription
	}
	if patch.Amount != nil {
		if err := patch.Amount.Validate(); err != nil {
			return err
		}
	}
	if err := s.store.Update(ctx, id, patch); err != nil {
		return err
	}
	if tx, err := s.store.Get(ctx, id); err == nil {
		s.publishUpsert(ctx, tx)
	}
	return nil
}

// RemoveTransaction deletes unconditionally; there is no soft delete.
func (s *LedgerService) RemoveTransaction(ctx context.Context, id string) error {
	tx, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	s.publishDelete(ctx, id, core.MonthKeyOf(tx.OccurredAt))
	return nil
}

// SetSettled flips the reviewed/paid flag on a ledger entry.
func (s *LedgerService) SetSettled(ctx context.Context, id string, settled bool) error {
	if err := s.store.SetSettled(ctx, id, settled); err != nil {
		return err
	}
	if tx, err := s.store.Get(ctx, id); err == nil {
		s.publishUpsert(ctx, tx)
	}
	return nil
}

// Statement rebuilds the month view from a fresh read.
func (s *LedgerService) Statement(ctx context.Context, key core.MonthKey) (core.MonthStatement, error) {
	return ledger.Statement(ctx, s.store, key)
}

func (s *LedgerService) publishUpsert(ctx context.Context, tx core.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionUpsert(ctx, tx); err != nil {
		s.connected.Store(false)
		slog.WarnContext(ctx, "Failed to publish transaction sync message",
			"id", tx.ID, "error", err)
		return
	}
	s.connected.Store(true)
}

func (s *LedgerService) publishDelete(ctx context.Context, id string, key core.MonthKey) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionDelete(ctx, id, key); err != nil {
		s.connected.Store(false)
		slog.WarnContext(ctx, "Failed to publish delete sync message",
			"id", id, "error", err)
		return
	}
	s.connected.Store(true)
}

func (s *LedgerService) publishDraft(ctx context.Context, key core.MonthKey, templateID string, d core.Draft) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishDraftUpsert(ctx, key, templateID, d); err != nil {
		s.connected.Store(false)
		slog.WarnContext(ctx, "Failed to publish draft sync message",
			"month_key", key.String(), "template_id", templateID, "error", err)
		return
	}
	s.connected.Store(true)
}
