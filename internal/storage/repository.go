// Package storage is the SQLite-backed persistence layer: the authoritative
// local copy of the ledger and the quick-entry drafts, plus the per-row sync
// bookkeeping the remote worker relies on.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"financeiro/internal/core"
	"financeiro/internal/ledger"
)

// Sync status values for the transactions table.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Append(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, month_key, description, amount_cents, category, kind, occurred_at, settled, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		core.MonthKeyOf(tx.OccurredAt).String(),
		tx.Description,
		tx.Amount.Cents,
		tx.Category,
		string(tx.Kind),
		tx.OccurredAt.UTC().Format(time.RFC3339),
		boolToInt(tx.Settled),
		SyncPending,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"month_key", core.MonthKeyOf(tx.OccurredAt).String(),
		"description", tx.Description,
		"amount_cents", tx.Amount.Cents,
		"kind", string(tx.Kind))
	return nil
}

func (r *SQLiteRepository) AppendBatch(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer dbtx.Rollback()

	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		_, err := dbtx.ExecContext(ctx, `
			INSERT INTO transactions (id, month_key, description, amount_cents, category, kind, occurred_at, settled, sync_status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tx.ID,
			core.MonthKeyOf(tx.OccurredAt).String(),
			tx.Description,
			tx.Amount.Cents,
			tx.Category,
			string(tx.Kind),
			tx.OccurredAt.UTC().Format(time.RFC3339),
			boolToInt(tx.Settled),
			SyncPending,
		)
		if err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, patch ledger.TransactionPatch) error {
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		return core.ErrEmptyDescription
	}
	if patch.Amount != nil {
		if err := patch.Amount.Validate(); err != nil {
			return err
		}
	}
	sets := []string{"sync_status = ?", "updated_at = datetime('now')"}
	args := []any{SyncPending}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Amount != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, patch.Amount.Cents)
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res, id)
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res, id)
}

func (r *SQLiteRepository) SetSettled(ctx context.Context, id string, settled bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET settled = ?, sync_status = ?, updated_at = datetime('now') WHERE id = ?`,
		boolToInt(settled), SyncPending, id)
	if err != nil {
		return fmt.Errorf("update settled flag: %w", err)
	}
	return requireRow(res, id)
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, description, amount_cents, category, kind, occurred_at, settled
		FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) ListForMonth(ctx context.Context, key core.MonthKey) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, description, amount_cents, category, kind, occurred_at, settled
		FROM transactions WHERE month_key = ? ORDER BY rowid`, key.String())
	if err != nil {
		return nil, fmt.Errorf("list month transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) SumByKind(ctx context.Context, key core.MonthKey, kind core.Kind) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE month_key = ? AND kind = ?`,
		key.String(), string(kind)).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum by kind: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

func (r *SQLiteRepository) Balance(ctx context.Context, key core.MonthKey) (core.Money, error) {
	income, err := r.SumByKind(ctx, key, core.Income)
	if err != nil {
		return core.Money{}, err
	}
	expense, err := r.SumByKind(ctx, key, core.Expense)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: income.Cents - expense.Cents}, nil
}

func (r *SQLiteRepository) Months(ctx context.Context) ([]core.MonthKey, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT month_key FROM transactions")
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	defer rows.Close()
	return scanMonthKeys(rows)
}

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, partitions map[core.MonthKey][]core.Transaction) error {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer dbtx.Rollback()

	if _, err := dbtx.ExecContext(ctx, "DELETE FROM transactions"); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	for key, txs := range partitions {
		for _, tx := range txs {
			_, err := dbtx.ExecContext(ctx, `
				INSERT INTO transactions (id, month_key, description, amount_cents, category, kind, occurred_at, settled, sync_status)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				tx.ID, key.String(), tx.Description, tx.Amount.Cents, tx.Category,
				string(tx.Kind), tx.OccurredAt.UTC().Format(time.RFC3339), boolToInt(tx.Settled), SyncDone)
			if err != nil {
				return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
			}
		}
	}
	return dbtx.Commit()
}

func (r *SQLiteRepository) PutDraft(ctx context.Context, key core.MonthKey, templateID string, d core.Draft) error {
	if d.Amount.Cents < 0 {
		return core.ErrInvalidAmount
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO quick_state (month_key, template_id, amount_cents, settled, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT (month_key, template_id) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			settled = excluded.settled,
			updated_at = excluded.updated_at`,
		key.String(), templateID, d.Amount.Cents, boolToInt(d.Settled))
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetDraft(ctx context.Context, key core.MonthKey, templateID string) (core.Draft, bool, error) {
	var cents int64
	var settled int
	err := r.db.QueryRowContext(ctx, `
		SELECT amount_cents, settled FROM quick_state WHERE month_key = ? AND template_id = ?`,
		key.String(), templateID).Scan(&cents, &settled)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Draft{}, false, nil
	}
	if err != nil {
		return core.Draft{}, false, fmt.Errorf("get draft: %w", err)
	}
	return core.Draft{Amount: core.Money{Cents: cents}, Settled: settled != 0}, true, nil
}

func (r *SQLiteRepository) DraftsForMonth(ctx context.Context, key core.MonthKey) (map[string]core.Draft, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT template_id, amount_cents, settled FROM quick_state WHERE month_key = ?`, key.String())
	if err != nil {
		return nil, fmt.Errorf("list month drafts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]core.Draft)
	for rows.Next() {
		var id string
		var cents int64
		var settled int
		if err := rows.Scan(&id, &cents, &settled); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		out[id] = core.Draft{Amount: core.Money{Cents: cents}, Settled: settled != 0}
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ClearMonthDrafts(ctx context.Context, key core.MonthKey) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM quick_state WHERE month_key = ?", key.String())
	if err != nil {
		return fmt.Errorf("clear month drafts: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DraftMonths(ctx context.Context) ([]core.MonthKey, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT month_key FROM quick_state")
	if err != nil {
		return nil, fmt.Errorf("list draft months: %w", err)
	}
	defer rows.Close()
	return scanMonthKeys(rows)
}

func (r *SQLiteRepository) ReplaceAllDrafts(ctx context.Context, partitions map[core.MonthKey]map[string]core.Draft) error {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace drafts: %w", err)
	}
	defer dbtx.Rollback()

	if _, err := dbtx.ExecContext(ctx, "DELETE FROM quick_state"); err != nil {
		return fmt.Errorf("clear quick_state: %w", err)
	}
	for key, month := range partitions {
		for id, d := range month {
			_, err := dbtx.ExecContext(ctx, `
				INSERT INTO quick_state (month_key, template_id, amount_cents, settled, updated_at)
				VALUES (?, ?, ?, ?, datetime('now'))`,
				key.String(), id, d.Amount.Cents, boolToInt(d.Settled))
			if err != nil {
				return fmt.Errorf("insert draft %s/%s: %w", key.String(), id, err)
			}
		}
	}
	return dbtx.Commit()
}

// PendingSync returns transactions not yet confirmed on the remote store,
// oldest first, for the worker's periodic catch-up scan.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, description, amount_cents, category, kind, occurred_at, settled
		FROM transactions WHERE sync_status != ? ORDER BY rowid LIMIT ?`, SyncDone, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan pending transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET sync_status = ? WHERE id = ?", SyncDone, id)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET sync_status = ? WHERE id = ?", SyncError, id)
	if err != nil {
		return fmt.Errorf("mark sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

func scanTransaction(scan func(dest ...any) error) (core.Transaction, error) {
	var tx core.Transaction
	var kind, occurredAt string
	var cents int64
	var settled int
	if err := scan(&tx.ID, &tx.Description, &cents, &tx.Category, &kind, &occurredAt, &settled); err != nil {
		return core.Transaction{}, err
	}
	at, err := time.Parse(time.RFC3339, occurredAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse occurred_at %q: %w", occurredAt, err)
	}
	tx.Amount = core.Money{Cents: cents}
	tx.Kind = core.Kind(kind)
	tx.OccurredAt = at
	tx.Settled = settled != 0
	return tx, nil
}

func scanMonthKeys(rows *sql.Rows) ([]core.MonthKey, error) {
	var keys []core.MonthKey
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan month key: %w", err)
		}
		key, err := core.ParseMonthKey(s)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Year != keys[j].Year {
			return keys[i].Year < keys[j].Year
		}
		return keys[i].Month < keys[j].Month
	})
	return keys, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
