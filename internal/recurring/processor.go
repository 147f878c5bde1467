// Package recurring materialises transactions from recurring rules whose
// due date has elapsed.
package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/fintrack/internal/models"
	"github.com/Dan9191/fintrack/internal/schedule"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Mode controls how many elapsed periods one invocation emits per rule
type Mode string

const (
	// ModeCatchUp emits every elapsed occurrence, bounded by MaxOccurrences
	ModeCatchUp Mode = "catch-up"
	// ModeSingleStep emits at most one occurrence per rule and invocation
	ModeSingleStep Mode = "single-step"
)

// DefaultMaxOccurrences bounds catch-up for rules that were dormant for a long time
const DefaultMaxOccurrences = 366

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCatchUp, ModeSingleStep:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown recurrence mode %q", s)
}

// Store is the persistence the processor needs
type Store interface {
	FindDueRules(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.RecurringRule, error)
	// AdvanceRule moves the rule's due date from -> to and inserts txns atomically.
	// It returns models.ErrStaleRule when the rule no longer has due date from.
	AdvanceRule(ctx context.Context, ruleID uuid.UUID, from, to time.Time, txns []models.Transaction) error
}

// Status is the outcome of processing one rule
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// RuleOutcome reports what happened to a single rule
type RuleOutcome struct {
	RuleID      uuid.UUID `json:"rule_id"`
	Status      Status    `json:"status"`
	Generated   int       `json:"generated"`
	NextDueDate time.Time `json:"next_due_date"`
	Error       string    `json:"error,omitempty"`
}

// Result is the outcome of one Process call
type Result struct {
	Transactions []models.Transaction `json:"transactions"`
	Rules        []RuleOutcome        `json:"rules"`
}

// Count returns the number of rules that ended with the given status
func (r *Result) Count(status Status) int {
	n := 0
	for _, o := range r.Rules {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Options configures a Processor
type Options struct {
	Mode           Mode
	MaxOccurrences int
}

// Processor rolls due rules forward and records their transactions
type Processor struct {
	store Store
	log   *logrus.Logger
	mode  Mode
	limit int
}

// NewProcessor initializes a new processor
func NewProcessor(store Store, log *logrus.Logger, opts Options) *Processor {
	mode := opts.Mode
	if mode == "" {
		mode = ModeCatchUp
	}
	limit := opts.MaxOccurrences
	if limit <= 0 {
		limit = DefaultMaxOccurrences
	}
	if mode == ModeSingleStep {
		limit = 1
	}
	return &Processor{store: store, log: log, mode: mode, limit: limit}
}

// Process emits the transactions of every active rule of userID due at or
// before now. Rules are handled independently: a rule that fails to persist
// is reported as failed and the others still advance.
func (p *Processor) Process(ctx context.Context, userID uuid.UUID, now time.Time) (*Result, error) {
	rules, err := p.store.FindDueRules(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load due rules: %w", err)
	}

	result := &Result{Transactions: []models.Transaction{}, Rules: []RuleOutcome{}}
	for _, rule := range rules {
		if !rule.IsDue(now) {
			continue
		}
		outcome, txns := p.processRule(ctx, rule, now)
		result.Rules = append(result.Rules, outcome)
		result.Transactions = append(result.Transactions, txns...)
	}

	if len(result.Rules) > 0 {
		p.log.WithFields(logrus.Fields{
			"user_id":   userID,
			"mode":      p.mode,
			"count":     len(result.Transactions),
			"processed": result.Count(StatusProcessed),
			"skipped":   result.Count(StatusSkipped),
			"failed":    result.Count(StatusFailed),
		}).Info("Recurring rules processed")
	}
	return result, nil
}

func (p *Processor) processRule(ctx context.Context, rule models.RecurringRule, now time.Time) (RuleOutcome, []models.Transaction) {
	outcome := RuleOutcome{RuleID: rule.ID, NextDueDate: rule.NextDueDate}
	entry := p.log.WithFields(logrus.Fields{"user_id": rule.UserID, "rule_id": rule.ID})

	txns, next, err := p.occurrences(rule, now)
	if err != nil {
		entry.Errorf("Failed to compute occurrences: %v", err)
		outcome.Status = StatusFailed
		outcome.Error = err.Error()
		return outcome, nil
	}

	err = p.store.AdvanceRule(ctx, rule.ID, rule.NextDueDate, next, txns)
	switch {
	case errors.Is(err, models.ErrStaleRule):
		entry.Info("Rule already advanced, skipping")
		outcome.Status = StatusSkipped
		return outcome, nil
	case err != nil:
		entry.Errorf("Failed to advance rule: %v", err)
		outcome.Status = StatusFailed
		outcome.Error = err.Error()
		return outcome, nil
	}

	outcome.Status = StatusProcessed
	outcome.Generated = len(txns)
	outcome.NextDueDate = next
	entry.WithField("count", len(txns)).Infof("Rule advanced to %s", next.Format("2006-01-02"))
	return outcome, txns
}

// occurrences lists the transactions for every period elapsed at now,
// starting at the rule's current due date, and the due date that follows them.
func (p *Processor) occurrences(rule models.RecurringRule, now time.Time) ([]models.Transaction, time.Time, error) {
	sched, err := schedule.New(rule.Frequency, rule.StartDate)
	if err != nil {
		return nil, time.Time{}, err
	}

	var txns []models.Transaction
	due := rule.NextDueDate
	for len(txns) < p.limit && !due.After(now) {
		txn := rule.Occurrence(due)
		txn.ID = uuid.New()
		txn.Amount = models.SignedAmount(txn.Amount, txn.Type)
		txn.CreatedAt = now
		txns = append(txns, txn)

		if due, err = sched.Next(due); err != nil {
			return nil, time.Time{}, err
		}
	}
	return txns, due, nil
}
