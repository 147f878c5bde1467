package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType distinguishes money coming in from money going out
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// DefaultTransactionName is used when a transaction is recorded without a name
const DefaultTransactionName = "Untitled"

// Transaction represents a single income or expense entry of a user
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	RuleID    *uuid.UUID      `json:"rule_id,omitempty"` // Set when generated by a recurring rule
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
	Type      TransactionType `json:"type"`
	Date      time.Time       `json:"date"`
	CreatedAt time.Time       `json:"created_at"`
}

// IsExpense reports whether the transaction is an expense
func (t Transaction) IsExpense() bool {
	return t.Type == TransactionTypeExpense
}

// Magnitude returns the absolute amount. Aggregations rely on Type, not on the sign.
func (t Transaction) Magnitude() decimal.Decimal {
	return t.Amount.Abs()
}

// SignedAmount returns amount with the sign implied by the type:
// positive for income, negative for expenses.
func SignedAmount(amount decimal.Decimal, txType TransactionType) decimal.Decimal {
	if txType == TransactionTypeExpense {
		return amount.Abs().Neg()
	}
	return amount.Abs()
}
