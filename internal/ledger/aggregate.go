package ledger

import (
	"context"

	"financeiro/internal/core"
)

// SumByKind folds a month partition into the total for one kind.
func SumByKind(txs []core.Transaction, kind core.Kind) core.Money {
	var cents int64
	for _, tx := range txs {
		if tx.Kind == kind {
			cents += tx.Amount.Cents
		}
	}
	return core.Money{Cents: cents}
}

// BalanceOf is income minus expense over the same partition.
func BalanceOf(txs []core.Transaction) core.Money {
	return core.Money{Cents: SumByKind(txs, core.Income).Cents - SumByKind(txs, core.Expense).Cents}
}

// Statement builds the month view from a single fresh read. Totals are
// recomputed here on every call; nothing is cached.
func Statement(ctx context.Context, store TransactionStore, key core.MonthKey) (core.MonthStatement, error) {
	txs, err := store.ListForMonth(ctx, key)
	if err != nil {
		return core.MonthStatement{}, err
	}
	st := core.MonthStatement{Key: key}
	for _, tx := range txs {
		switch tx.Kind {
		case core.Income:
			st.Income = append(st.Income, tx)
		case core.Expense:
			st.Expense = append(st.Expense, tx)
		}
	}
	st.TotalIncome = SumByKind(txs, core.Income)
	st.TotalExpense = SumByKind(txs, core.Expense)
	st.Balance = BalanceOf(txs)
	return st, nil
}
