package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	// Kind classifies a transaction. It never changes after creation.
	Kind string

	Money struct {
		Cents int64
	}

	// Transaction is a finalized ledger entry. It belongs to exactly one
	// month partition, derived from OccurredAt.
	Transaction struct {
		ID          string
		Description string
		Amount      Money
		Category    string
		Kind        Kind
		OccurredAt  time.Time
		Settled     bool
	}

	// Template is a read-only catalog entry for recurring quick entries.
	// Name doubles as the description of any transaction generated from it.
	Template struct {
		ID            string
		Name          string
		Category      string
		DefaultAmount Money
	}

	// Draft is the per-month, per-template quick-entry record. Settled here
	// means "has a value entered", not "reconciled in the ledger".
	Draft struct {
		Amount  Money
		Settled bool
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidKind      = errors.New("invalid kind")
	ErrNotFound         = errors.New("not found")
)

func (k Kind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IsZero reports a zero amount; drafts at or below zero are never consolidated.
func (m Money) IsZero() bool {
	return m.Cents == 0
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("empty id")
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if t.OccurredAt.IsZero() {
		return errors.New("occurred_at cannot be zero")
	}
	return nil
}

func (tpl Template) Validate() error {
	if strings.TrimSpace(tpl.ID) == "" {
		return errors.New("empty template id")
	}
	if strings.TrimSpace(tpl.Name) == "" {
		return ErrEmptyDescription
	}
	if tpl.DefaultAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}
