// Package worker applies local ledger changes to the remote store. Messages
// from the quick-entry app only carry identifiers; the worker always rereads
// the authoritative row from SQLite before writing remotely.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"financeiro/internal/amqp"
	"financeiro/internal/core"
	"financeiro/internal/storage"
)

// RemoteApplier is the subset of the remote backend the worker needs.
type RemoteApplier interface {
	UpsertTransaction(ctx context.Context, key core.MonthKey, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	UpsertDraft(ctx context.Context, key core.MonthKey, templateID string, d core.Draft) error
}

type SyncWorker struct {
	storage   *storage.SQLiteRepository
	remote    RemoteApplier
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, remote RemoteApplier, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		remote:    remote,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "op", msg.Op, "id", msg.ID)

	switch msg.Op {
	case amqp.OpTransactionUpsert:
		return w.syncTransaction(ctx, msg.ID)
	case amqp.OpTransactionDelete:
		if err := w.remote.DeleteTransaction(ctx, msg.ID); err != nil {
			return fmt.Errorf("delete remote transaction: %w", err)
		}
		return nil
	case amqp.OpDraftUpsert:
		return w.syncDraft(ctx, msg.MonthKey, msg.TemplateID)
	default:
		return fmt.Errorf("unknown sync operation %q", msg.Op)
	}
}

func (w *SyncWorker) syncTransaction(ctx context.Context, id string) error {
	tx, err := w.storage.Get(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted locally before the upsert was consumed. The delete message
		// that follows will remove the remote row.
		slog.WarnContext(ctx, "Transaction vanished before sync, skipping", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	key := core.MonthKeyOf(tx.OccurredAt)
	if err := w.remote.UpsertTransaction(ctx, key, tx); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("upsert remote transaction: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, id); err != nil {
		// Don't fail here - the remote write actually worked.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced transaction",
		"id", id,
		"month_key", key.String(),
		"description", tx.Description,
		"amount_cents", tx.Amount.Cents)
	return nil
}

func (w *SyncWorker) syncDraft(ctx context.Context, monthKey, templateID string) error {
	key, err := core.ParseMonthKey(monthKey)
	if err != nil {
		return fmt.Errorf("parse month key: %w", err)
	}

	d, ok, err := w.storage.GetDraft(ctx, key, templateID)
	if err != nil {
		return fmt.Errorf("get draft from storage: %w", err)
	}
	if !ok {
		slog.WarnContext(ctx, "Draft vanished before sync, skipping",
			"month_key", monthKey, "template_id", templateID)
		return nil
	}

	if err := w.remote.UpsertDraft(ctx, key, templateID, d); err != nil {
		return fmt.Errorf("upsert remote draft: %w", err)
	}

	slog.InfoContext(ctx, "Successfully synced draft",
		"month_key", monthKey,
		"template_id", templateID,
		"amount_cents", d.Amount.Cents,
		"settled", d.Settled)
	return nil
}

// ProcessPendingTransactions pushes any transactions that have not been
// confirmed on the remote store. This is a backup mechanism in case AMQP
// messages are lost.
func (w *SyncWorker) ProcessPendingTransactions(ctx context.Context) error {
	pending, err := w.storage.PendingSync(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, tx := range pending {
		if err := w.syncTransaction(ctx, tx.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync pending transaction", "id", tx.ID, "error", err)
			continue
		}
	}
	return nil
}

// StartupSyncCheck drains the pending backlog at worker startup, recovering
// from missed AMQP messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.PendingSync(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending transactions for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending transactions on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0
	for _, tx := range pending {
		if err := w.syncTransaction(ctx, tx.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction during startup",
				"id", tx.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)
	return nil
}
