package models

import "github.com/shopspring/decimal"

// IncomeExpenseStats represents income and expense totals of one period
type IncomeExpenseStats struct {
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	NetBalance decimal.Decimal `json:"net_balance"`
}

// MonthlyPoint represents income and expense totals of one calendar month
type MonthlyPoint struct {
	Month    string          `json:"month"` // Format: Jan
	Year     int             `json:"year"`
	Label    string          `json:"label"` // Format: Jan 2006
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Balance  decimal.Decimal `json:"balance"`
}

// CategoryTotal represents total spending in one category
type CategoryTotal struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
	Color string          `json:"color"` // Format: #rrggbb
}

// Summary represents overall totals and month-over-month changes
type Summary struct {
	TotalIncome   decimal.Decimal    `json:"total_income"`
	TotalExpenses decimal.Decimal    `json:"total_expenses"`
	Balance       decimal.Decimal    `json:"balance"`
	SavingsRate   decimal.Decimal    `json:"savings_rate"` // Percent of income kept
	CurrentMonth  IncomeExpenseStats `json:"current_month"`
	PreviousMonth IncomeExpenseStats `json:"previous_month"`
	IncomeChange  decimal.Decimal    `json:"income_change"`  // Percent vs previous month
	ExpenseChange decimal.Decimal    `json:"expense_change"` // Percent vs previous month
}

// Dashboard bundles all derived metrics shown to a user
type Dashboard struct {
	Summary           Summary         `json:"summary"`
	Monthly           []MonthlyPoint  `json:"monthly"`
	Categories        []CategoryTotal `json:"categories"`
	Anomalies         []string        `json:"anomalies"`
	Trend             string          `json:"trend"`
	ProjectedMonthEnd decimal.Decimal `json:"projected_month_end"`
}
