package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Frequency is the period of a recurring rule
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Valid reports whether f is a supported frequency
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// DefaultRuleName is used when a rule is created without a name
const DefaultRuleName = "Recurring Transaction"

// RecurringRule is a transaction template with a schedule.
// NextDueDate only ever moves forward.
type RecurringRule struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Type        TransactionType `json:"type"`
	Frequency   Frequency       `json:"frequency"`
	StartDate   time.Time       `json:"start_date"`
	NextDueDate time.Time       `json:"next_due_date"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsDue reports whether the rule should fire at now
func (r RecurringRule) IsDue(now time.Time) bool {
	return r.IsActive && !r.NextDueDate.After(now)
}

// Occurrence builds the transaction the rule produces for the given due date
func (r RecurringRule) Occurrence(due time.Time) Transaction {
	ruleID := r.ID
	return Transaction{
		UserID:   r.UserID,
		RuleID:   &ruleID,
		Name:     r.Name,
		Amount:   r.Amount,
		Category: r.Category,
		Type:     r.Type,
		Date:     due,
	}
}
