package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Dan9191/fintrack/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestMemoryStore_Users(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user := &models.User{Username: "alice", Email: "alice@example.com", Categories: []string{"Food"}}
	require.NoError(t, store.CreateUser(ctx, user))
	assert.NotEqual(t, uuid.Nil, user.ID)

	assert.ErrorIs(t, store.CreateUser(ctx, &models.User{Username: "other", Email: "ALICE@example.com"}), models.ErrConflict)
	assert.ErrorIs(t, store.CreateUser(ctx, &models.User{Username: "alice", Email: "new@example.com"}), models.ErrConflict)

	found, err := store.FindUserByEmail(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	// returned users do not alias stored state
	found.Categories[0] = "Changed"
	again, err := store.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Food"}, again.Categories)

	require.NoError(t, store.UpdateUserCategories(ctx, user.ID, []string{"Pets"}))
	again, err = store.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pets"}, again.Categories)

	_, err = store.FindUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, store.UpdateUserCategories(ctx, uuid.New(), nil), models.ErrNotFound)
}

func TestMemoryStore_TransactionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	userID := uuid.New()

	for _, d := range []int{3, 9, 1} {
		require.NoError(t, store.CreateTransaction(ctx, &models.Transaction{
			UserID: userID, Amount: decimal.NewFromInt(1), Type: models.TransactionTypeIncome, Date: day(d),
		}))
	}
	require.NoError(t, store.CreateTransaction(ctx, &models.Transaction{UserID: uuid.New(), Date: day(5)}))

	txns, err := store.ListTransactions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, []time.Time{day(9), day(3), day(1)}, []time.Time{txns[0].Date, txns[1].Date, txns[2].Date})

	require.NoError(t, store.DeleteTransaction(ctx, txns[0].ID))
	assert.ErrorIs(t, store.DeleteTransaction(ctx, txns[0].ID), models.ErrNotFound)
	_, err = store.FindTransactionByID(ctx, txns[0].ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_AdvanceRule(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	userID := uuid.New()

	rule := &models.RecurringRule{UserID: userID, Frequency: models.FrequencyDaily, StartDate: day(1), NextDueDate: day(1), IsActive: true}
	require.NoError(t, store.CreateRule(ctx, rule))

	due, err := store.FindDueRules(ctx, userID, day(1))
	require.NoError(t, err)
	require.Len(t, due, 1)

	owners, err := store.FindOwnersWithDueRules(ctx, day(1))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{userID}, owners)

	txn := rule.Occurrence(day(1))
	require.NoError(t, store.AdvanceRule(ctx, rule.ID, day(1), day(2), []models.Transaction{txn}))

	// the same advance again is stale and writes nothing
	assert.ErrorIs(t, store.AdvanceRule(ctx, rule.ID, day(1), day(2), []models.Transaction{txn}), models.ErrStaleRule)
	txns, err := store.ListTransactions(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, txns, 1)

	stored, err := store.FindRuleByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2), stored.NextDueDate)

	due, err = store.FindDueRules(ctx, userID, day(1))
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, store.SetRuleActive(ctx, rule.ID, false))
	assert.ErrorIs(t, store.AdvanceRule(ctx, rule.ID, day(2), day(3), nil), models.ErrStaleRule)
}

func TestMemoryStore_DeleteRuleUnlinksTransactions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	userID := uuid.New()

	rule := &models.RecurringRule{UserID: userID, Frequency: models.FrequencyDaily, StartDate: day(1), NextDueDate: day(1), IsActive: true}
	require.NoError(t, store.CreateRule(ctx, rule))
	require.NoError(t, store.AdvanceRule(ctx, rule.ID, day(1), day(2), []models.Transaction{rule.Occurrence(day(1))}))

	require.NoError(t, store.DeleteRule(ctx, rule.ID))
	assert.ErrorIs(t, store.DeleteRule(ctx, rule.ID), models.ErrNotFound)

	txns, err := store.ListTransactions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Nil(t, txns[0].RuleID)
}

func TestMemoryStore_AdvanceRuleDuplicateOccurrenceIsStale(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	userID := uuid.New()

	rule := &models.RecurringRule{UserID: userID, Frequency: models.FrequencyDaily, StartDate: day(1), NextDueDate: day(1), IsActive: true}
	require.NoError(t, store.CreateRule(ctx, rule))

	existing := rule.Occurrence(day(1))
	require.NoError(t, store.CreateTransaction(ctx, &existing))

	err := store.AdvanceRule(ctx, rule.ID, day(1), day(2), []models.Transaction{rule.Occurrence(day(1))})
	assert.ErrorIs(t, err, models.ErrStaleRule)

	stored, err := store.FindRuleByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, day(1), stored.NextDueDate)
}
