package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dan9191/fintrack/internal/models"
	"github.com/google/uuid"
)

// MemoryStore keeps all data in process memory. It satisfies the same
// contract as Repository and is used for local runs and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]models.User
	transactions map[uuid.UUID]models.Transaction
	rules        map[uuid.UUID]models.RecurringRule
	now          func() time.Time
}

// NewMemoryStore initializes an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[uuid.UUID]models.User),
		transactions: make(map[uuid.UUID]models.Transaction),
		rules:        make(map[uuid.UUID]models.RecurringRule),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser stores a new user; email and username must be unique
func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) || u.Username == user.Username {
			return models.ErrConflict
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = m.now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	stored.Categories = append([]string(nil), user.Categories...)
	m.users[user.ID] = stored
	return nil
}

// FindUserByEmail retrieves a user by email
func (m *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, models.ErrNotFound
}

// FindUserByID retrieves a user by id
func (m *MemoryStore) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyUser(u), nil
}

// UpdateUserCategories replaces the category list of a user
func (m *MemoryStore) UpdateUserCategories(ctx context.Context, id uuid.UUID, categories []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.Categories = append([]string(nil), categories...)
	u.UpdatedAt = m.now()
	m.users[id] = u
	return nil
}

func copyUser(u models.User) *models.User {
	u.Categories = append([]string(nil), u.Categories...)
	return &u
}

// CreateTransaction stores a transaction
func (m *MemoryStore) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	txn.CreatedAt = m.now()
	m.transactions[txn.ID] = *txn
	return nil
}

// ListTransactions returns the transactions of a user, newest first
func (m *MemoryStore) ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txns := []models.Transaction{}
	for _, t := range m.transactions {
		if t.UserID == userID {
			txns = append(txns, t)
		}
	}
	sort.SliceStable(txns, func(i, j int) bool {
		if !txns[i].Date.Equal(txns[j].Date) {
			return txns[i].Date.After(txns[j].Date)
		}
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})
	return txns, nil
}

// FindTransactionByID retrieves a transaction by id
func (m *MemoryStore) FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transactions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &t, nil
}

// DeleteTransaction removes a transaction
func (m *MemoryStore) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transactions[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.transactions, id)
	return nil
}

// CreateRule stores a recurring rule
func (m *MemoryStore) CreateRule(ctx context.Context, rule *models.RecurringRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	rule.CreatedAt = m.now()
	rule.UpdatedAt = rule.CreatedAt
	m.rules[rule.ID] = *rule
	return nil
}

// ListRules returns the rules of a user, newest first
func (m *MemoryStore) ListRules(ctx context.Context, userID uuid.UUID) ([]models.RecurringRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules := []models.RecurringRule{}
	for _, r := range m.rules {
		if r.UserID == userID {
			rules = append(rules, r)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.After(rules[j].CreatedAt)
		}
		return rules[i].ID.String() < rules[j].ID.String()
	})
	return rules, nil
}

// FindRuleByID retrieves a rule by id
func (m *MemoryStore) FindRuleByID(ctx context.Context, id uuid.UUID) (*models.RecurringRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rules[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &r, nil
}

// SetRuleActive pauses or resumes a rule
func (m *MemoryStore) SetRuleActive(ctx context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[id]
	if !ok {
		return models.ErrNotFound
	}
	r.IsActive = active
	r.UpdatedAt = m.now()
	m.rules[id] = r
	return nil
}

// DeleteRule removes a rule; its generated transactions are kept and unlinked
func (m *MemoryStore) DeleteRule(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.rules, id)
	for txnID, t := range m.transactions {
		if t.RuleID != nil && *t.RuleID == id {
			t.RuleID = nil
			m.transactions[txnID] = t
		}
	}
	return nil
}

// FindDueRules returns the active rules of a user due at or before now
func (m *MemoryStore) FindDueRules(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.RecurringRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules := []models.RecurringRule{}
	for _, r := range m.rules {
		if r.UserID == userID && r.IsDue(now) {
			rules = append(rules, r)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if !rules[i].NextDueDate.Equal(rules[j].NextDueDate) {
			return rules[i].NextDueDate.Before(rules[j].NextDueDate)
		}
		return rules[i].ID.String() < rules[j].ID.String()
	})
	return rules, nil
}

// FindOwnersWithDueRules returns the users having at least one due rule
func (m *MemoryStore) FindOwnersWithDueRules(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[uuid.UUID]bool)
	owners := []uuid.UUID{}
	for _, r := range m.rules {
		if r.IsDue(now) && !seen[r.UserID] {
			seen[r.UserID] = true
			owners = append(owners, r.UserID)
		}
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].String() < owners[j].String() })
	return owners, nil
}

// AdvanceRule moves the due date of an active rule from -> to and stores txns
// in one step. Nothing is written when the rule is no longer due at from.
func (m *MemoryStore) AdvanceRule(ctx context.Context, ruleID uuid.UUID, from, to time.Time, txns []models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[ruleID]
	if !ok || !r.IsActive || !r.NextDueDate.Equal(from) {
		return models.ErrStaleRule
	}
	for _, t := range txns {
		if t.RuleID == nil {
			continue
		}
		for _, existing := range m.transactions {
			if existing.RuleID != nil && *existing.RuleID == *t.RuleID && existing.Date.Equal(t.Date) {
				return models.ErrStaleRule
			}
		}
	}

	now := m.now()
	for _, t := range txns {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		m.transactions[t.ID] = t
	}
	r.NextDueDate = to
	r.UpdatedAt = now
	m.rules[ruleID] = r
	return nil
}
