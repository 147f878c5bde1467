// Package scheduler runs the periodic sweep that records due recurring
// transactions for every user, independent of user requests.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/fintrack/internal/recurring"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Processor is the part of the service the sweeper drives
type Processor interface {
	OwnersWithDueRules(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ProcessRecurringAt(ctx context.Context, userID uuid.UUID, now time.Time) (*recurring.Result, error)
}

// Summary reports the outcome of one sweep
type Summary struct {
	Owners       int
	Transactions int
	Failed       int
}

// Sweeper processes the due rules of all users on a cron schedule
type Sweeper struct {
	processor Processor
	log       *logrus.Logger
	cron      *cron.Cron
	now       func() time.Time
}

// NewSweeper initializes a new sweeper
func NewSweeper(processor Processor, log *logrus.Logger) *Sweeper {
	return &Sweeper{
		processor: processor,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce processes every user with due rules at now. A failing user is
// logged and counted; the sweep continues with the others.
func (s *Sweeper) RunOnce(ctx context.Context, now time.Time) (Summary, error) {
	owners, err := s.processor.OwnersWithDueRules(ctx, now)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to find users with due rules: %w", err)
	}

	summary := Summary{Owners: len(owners)}
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result, err := s.processor.ProcessRecurringAt(ctx, owner, now)
		if err != nil {
			s.log.WithField("user_id", owner).Errorf("Sweep failed for user: %v", err)
			summary.Failed++
			continue
		}
		summary.Transactions += len(result.Transactions)
		summary.Failed += result.Count(recurring.StatusFailed)
	}

	s.log.WithFields(logrus.Fields{
		"users":  summary.Owners,
		"count":  summary.Transactions,
		"failed": summary.Failed,
	}).Info("Recurring sweep finished")
	return summary, nil
}

// Start schedules RunOnce with a cron spec such as "@every 1h" or "0 * * * *".
// Overlapping runs are skipped. The sweeper stops when ctx is done.
func (s *Sweeper) Start(ctx context.Context, spec string) error {
	logger := cron.PrintfLogger(s.log)
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.RunOnce(ctx, s.now()); err != nil {
			s.log.Errorf("Recurring sweep failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}

	s.cron = c
	c.Start()
	s.log.Infof("Recurring sweep scheduled: %s", spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		s.log.Info("Recurring sweep stopped")
	}()
	return nil
}
