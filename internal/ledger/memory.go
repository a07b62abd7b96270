package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"financeiro/internal/core"
)

// MemoryStore is the in-process backend: month partitions as ordered slices,
// drafts as nested maps. It backs the offline mode and the test suites.
type MemoryStore struct {
	mu     sync.Mutex
	txs    map[core.MonthKey][]core.Transaction
	index  map[string]core.MonthKey
	drafts map[core.MonthKey]map[string]core.Draft
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txs:    make(map[core.MonthKey][]core.Transaction),
		index:  make(map[string]core.MonthKey),
		drafts: make(map[core.MonthKey]map[string]core.Draft),
	}
}

func (s *MemoryStore) Append(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(tx)
}

func (s *MemoryStore) AppendBatch(_ context.Context, txs []core.Transaction) error {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		if err := s.appendLocked(tx); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) appendLocked(tx core.Transaction) error {
	if _, dup := s.index[tx.ID]; dup {
		return fmt.Errorf("duplicate transaction id %s", tx.ID)
	}
	key := core.MonthKeyOf(tx.OccurredAt)
	s.txs[key] = append(s.txs[key], tx)
	s.index[tx.ID] = key
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch TransactionPatch) error {
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		return core.ErrEmptyDescription
	}
	if patch.Amount != nil {
		if err := patch.Amount.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key, txs, i, err := s.locateLocked(id)
	if err != nil {
		return err
	}
	if patch.Description != nil {
		txs[i].Description = *patch.Description
	}
	if patch.Amount != nil {
		txs[i].Amount = *patch.Amount
	}
	s.txs[key] = txs
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, txs, i, err := s.locateLocked(id)
	if err != nil {
		return err
	}
	s.txs[key] = append(txs[:i], txs[i+1:]...)
	delete(s.index, id)
	return nil
}

func (s *MemoryStore) SetSettled(_ context.Context, id string, settled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, txs, i, err := s.locateLocked(id)
	if err != nil {
		return err
	}
	txs[i].Settled = settled
	s.txs[key] = txs
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, txs, i, err := s.locateLocked(id)
	if err != nil {
		return core.Transaction{}, err
	}
	return txs[i], nil
}

func (s *MemoryStore) locateLocked(id string) (core.MonthKey, []core.Transaction, int, error) {
	key, ok := s.index[id]
	if !ok {
		return core.MonthKey{}, nil, 0, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	txs := s.txs[key]
	for i := range txs {
		if txs[i].ID == id {
			return key, txs, i, nil
		}
	}
	// Index said it exists; the partition disagrees. Treat as absent.
	delete(s.index, id)
	return core.MonthKey{}, nil, 0, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *MemoryStore) ListForMonth(_ context.Context, key core.MonthKey) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.txs[key]...), nil
}

func (s *MemoryStore) SumByKind(ctx context.Context, key core.MonthKey, kind core.Kind) (core.Money, error) {
	txs, err := s.ListForMonth(ctx, key)
	if err != nil {
		return core.Money{}, err
	}
	return SumByKind(txs, kind), nil
}

func (s *MemoryStore) Balance(ctx context.Context, key core.MonthKey) (core.Money, error) {
	txs, err := s.ListForMonth(ctx, key)
	if err != nil {
		return core.Money{}, err
	}
	return BalanceOf(txs), nil
}

func (s *MemoryStore) Months(_ context.Context) ([]core.MonthKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]core.MonthKey, 0, len(s.txs))
	for key, txs := range s.txs {
		if len(txs) > 0 {
			keys = append(keys, key)
		}
	}
	sortKeys(keys)
	return keys, nil
}

func (s *MemoryStore) ReplaceAll(_ context.Context, partitions map[core.MonthKey][]core.Transaction) error {
	txs := make(map[core.MonthKey][]core.Transaction, len(partitions))
	index := make(map[string]core.MonthKey)
	for key, list := range partitions {
		for _, tx := range list {
			if _, dup := index[tx.ID]; dup {
				return fmt.Errorf("duplicate transaction id %s", tx.ID)
			}
			index[tx.ID] = key
		}
		txs[key] = append([]core.Transaction(nil), list...)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = txs
	s.index = index
	return nil
}

func (s *MemoryStore) PutDraft(_ context.Context, key core.MonthKey, templateID string, d core.Draft) error {
	if d.Amount.Cents < 0 {
		return core.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	month := s.drafts[key]
	if month == nil {
		month = make(map[string]core.Draft)
		s.drafts[key] = month
	}
	month[templateID] = d
	return nil
}

func (s *MemoryStore) GetDraft(_ context.Context, key core.MonthKey, templateID string) (core.Draft, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[key][templateID]
	return d, ok, nil
}

func (s *MemoryStore) DraftsForMonth(_ context.Context, key core.MonthKey) (map[string]core.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]core.Draft, len(s.drafts[key]))
	for id, d := range s.drafts[key] {
		out[id] = d
	}
	return out, nil
}

func (s *MemoryStore) ClearMonthDrafts(_ context.Context, key core.MonthKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, key)
	return nil
}

func (s *MemoryStore) DraftMonths(_ context.Context) ([]core.MonthKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]core.MonthKey, 0, len(s.drafts))
	for key, month := range s.drafts {
		if len(month) > 0 {
			keys = append(keys, key)
		}
	}
	sortKeys(keys)
	return keys, nil
}

func (s *MemoryStore) ReplaceAllDrafts(_ context.Context, partitions map[core.MonthKey]map[string]core.Draft) error {
	drafts := make(map[core.MonthKey]map[string]core.Draft, len(partitions))
	for key, month := range partitions {
		copied := make(map[string]core.Draft, len(month))
		for id, d := range month {
			copied[id] = d
		}
		drafts[key] = copied
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts = drafts
	return nil
}

func sortKeys(keys []core.MonthKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Year != keys[j].Year {
			return keys[i].Year < keys[j].Year
		}
		return keys[i].Month < keys[j].Month
	})
}
