package core

// MonthStatement is the display view of one month partition: both kinds in
// insertion order plus the derived totals. It is rebuilt on every read.
type MonthStatement struct {
	Key          MonthKey
	Income       []Transaction
	Expense      []Transaction
	TotalIncome  Money
	TotalExpense Money
	Balance      Money
}
