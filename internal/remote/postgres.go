// Package remote talks to the shared PostgreSQL store that mirrors the local
// ledger. The local database stays authoritative; everything here is applied
// after the fact by the sync worker or read once at startup.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"financeiro/internal/core"
)

type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(ctx context.Context, url string) (*PostgresBackend, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	b := &PostgresBackend{pool: pool}
	if err := b.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	slog.InfoContext(ctx, "Connected to remote store")
	return b, nil
}

func (b *PostgresBackend) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			month_key TEXT NOT NULL,
			description TEXT NOT NULL,
			amount_cents BIGINT NOT NULL,
			category TEXT NOT NULL,
			kind TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			settled BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_month_key ON transactions (month_key)`,
		`CREATE TABLE IF NOT EXISTS quick_state (
			month_key TEXT NOT NULL,
			template_id TEXT NOT NULL,
			amount_cents BIGINT NOT NULL,
			settled BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (month_key, template_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure remote schema: %w", err)
		}
	}
	return nil
}

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

func (b *PostgresBackend) Close() {
	b.pool.Close()
}

func (b *PostgresBackend) UpsertTransaction(ctx context.Context, key core.MonthKey, tx core.Transaction) error {
	query := `
		INSERT INTO transactions (id, month_key, description, amount_cents, category, kind, occurred_at, settled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			month_key = EXCLUDED.month_key,
			description = EXCLUDED.description,
			amount_cents = EXCLUDED.amount_cents,
			category = EXCLUDED.category,
			kind = EXCLUDED.kind,
			occurred_at = EXCLUDED.occurred_at,
			settled = EXCLUDED.settled,
			updated_at = NOW()
	`
	_, err := b.pool.Exec(ctx, query,
		tx.ID, key.String(), tx.Description, tx.Amount.Cents,
		tx.Category, string(tx.Kind), tx.OccurredAt.UTC(), tx.Settled)
	if err != nil {
		return fmt.Errorf("upsert remote transaction: %w", err)
	}
	return nil
}

func (b *PostgresBackend) DeleteTransaction(ctx context.Context, id string) error {
	_, err := b.pool.Exec(ctx, "DELETE FROM transactions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete remote transaction: %w", err)
	}
	return nil
}

func (b *PostgresBackend) UpsertDraft(ctx context.Context, key core.MonthKey, templateID string, d core.Draft) error {
	query := `
		INSERT INTO quick_state (month_key, template_id, amount_cents, settled, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (month_key, template_id) DO UPDATE SET
			amount_cents = EXCLUDED.amount_cents,
			settled = EXCLUDED.settled,
			updated_at = NOW()
	`
	_, err := b.pool.Exec(ctx, query, key.String(), templateID, d.Amount.Cents, d.Settled)
	if err != nil {
		return fmt.Errorf("upsert remote draft: %w", err)
	}
	return nil
}

// FetchAll reads the full remote state, used to seed the local store at
// startup. Rows with an unparseable month key are skipped with a warning
// rather than failing the whole fetch.
func (b *PostgresBackend) FetchAll(ctx context.Context) (map[core.MonthKey][]core.Transaction, map[core.MonthKey]map[string]core.Draft, error) {
	txs, err := b.fetchTransactions(ctx)
	if err != nil {
		return nil, nil, err
	}
	drafts, err := b.fetchDrafts(ctx)
	if err != nil {
		return nil, nil, err
	}
	return txs, drafts, nil
}

func (b *PostgresBackend) fetchTransactions(ctx context.Context) (map[core.MonthKey][]core.Transaction, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT id, month_key, description, amount_cents, category, kind, occurred_at, settled
		FROM transactions ORDER BY occurred_at, id`)
	if err != nil {
		return nil, fmt.Errorf("fetch remote transactions: %w", err)
	}
	defer rows.Close()

	out := make(map[core.MonthKey][]core.Transaction)
	for rows.Next() {
		var tx core.Transaction
		var monthKey, kind string
		var cents int64
		var occurredAt time.Time
		if err := rows.Scan(&tx.ID, &monthKey, &tx.Description, &cents, &tx.Category, &kind, &occurredAt, &tx.Settled); err != nil {
			return nil, fmt.Errorf("scan remote transaction: %w", err)
		}
		key, err := core.ParseMonthKey(monthKey)
		if err != nil {
			slog.WarnContext(ctx, "Skipping remote transaction with bad month key",
				"id", tx.ID, "month_key", monthKey, "error", err)
			continue
		}
		tx.Amount = core.Money{Cents: cents}
		tx.Kind = core.Kind(kind)
		tx.OccurredAt = occurredAt.UTC()
		out[key] = append(out[key], tx)
	}
	return out, rows.Err()
}

func (b *PostgresBackend) fetchDrafts(ctx context.Context) (map[core.MonthKey]map[string]core.Draft, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT month_key, template_id, amount_cents, settled FROM quick_state`)
	if err != nil {
		return nil, fmt.Errorf("fetch remote drafts: %w", err)
	}
	defer rows.Close()

	out := make(map[core.MonthKey]map[string]core.Draft)
	for rows.Next() {
		var monthKey, templateID string
		var cents int64
		var settled bool
		if err := rows.Scan(&monthKey, &templateID, &cents, &settled); err != nil {
			return nil, fmt.Errorf("scan remote draft: %w", err)
		}
		key, err := core.ParseMonthKey(monthKey)
		if err != nil {
			slog.WarnContext(ctx, "Skipping remote draft with bad month key",
				"template_id", templateID, "month_key", monthKey, "error", err)
			continue
		}
		if out[key] == nil {
			out[key] = make(map[string]core.Draft)
		}
		out[key][templateID] = core.Draft{Amount: core.Money{Cents: cents}, Settled: settled}
	}
	return out, rows.Err()
}
