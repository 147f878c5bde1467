package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/fintrack/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// mapError translates driver errors into model errors
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return models.ErrConflict
	}
	return err
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	query := `
		INSERT INTO fintrack.users (id, username, email, password_hash, categories, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash, pq.Array(user.Categories)).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if mapped := mapError(err); mapped == models.ErrConflict {
			return mapped
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findUser(ctx, "lower(email) = lower($1)", email)
}

// FindUserByID retrieves a user by id
func (r *Repository) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.findUser(ctx, "id = $1", id)
}

func (r *Repository) findUser(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, categories, created_at, updated_at
		FROM fintrack.users
		WHERE ` + where
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, pq.Array(&user.Categories), &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// UpdateUserCategories replaces the category list of a user
func (r *Repository) UpdateUserCategories(ctx context.Context, id uuid.UUID, categories []string) error {
	query := `
		UPDATE fintrack.users
		SET categories = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, pq.Array(categories), id)
	if err != nil {
		return fmt.Errorf("failed to update categories: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

const transactionColumns = `id, user_id, rule_id, name, amount, category, type, date, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scanner) (models.Transaction, error) {
	var t models.Transaction
	var ruleID uuid.NullUUID
	err := row.Scan(&t.ID, &t.UserID, &ruleID, &t.Name, &t.Amount, &t.Category, &t.Type, &t.Date, &t.CreatedAt)
	if ruleID.Valid {
		t.RuleID = &ruleID.UUID
	}
	// lib/pq returns timestamptz in the session zone
	t.Date = t.Date.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	return t, err
}

// CreateTransaction creates a new transaction in the database
func (r *Repository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	query := `
		INSERT INTO fintrack.transactions (id, user_id, rule_id, name, amount, category, type, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
		RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, txn.ID, txn.UserID, txn.RuleID, txn.Name, txn.Amount, txn.Category, txn.Type, txn.Date).
		Scan(&txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the transactions of a user, newest first
func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM fintrack.transactions
		WHERE user_id = $1
		ORDER BY date DESC, created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txns := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// FindTransactionByID retrieves a transaction by id
func (r *Repository) FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM fintrack.transactions WHERE id = $1`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return &t, nil
}

// DeleteTransaction removes a transaction
func (r *Repository) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fintrack.transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return requireRow(res)
}

const ruleColumns = `id, user_id, name, amount, category, type, frequency, start_date, next_due_date, is_active, created_at, updated_at`

func scanRule(row scanner) (models.RecurringRule, error) {
	var rule models.RecurringRule
	err := row.Scan(&rule.ID, &rule.UserID, &rule.Name, &rule.Amount, &rule.Category, &rule.Type,
		&rule.Frequency, &rule.StartDate, &rule.NextDueDate, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt)
	rule.StartDate = rule.StartDate.UTC()
	rule.NextDueDate = rule.NextDueDate.UTC()
	return rule, err
}

func (r *Repository) queryRules(ctx context.Context, query string, args ...interface{}) ([]models.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring rules: %w", err)
	}
	defer rows.Close()

	rules := []models.RecurringRule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query recurring rules: %w", err)
	}
	return rules, nil
}

// CreateRule creates a new recurring rule in the database
func (r *Repository) CreateRule(ctx context.Context, rule *models.RecurringRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	query := `
		INSERT INTO fintrack.recurring_rules
			(id, user_id, name, amount, category, type, frequency, start_date, next_due_date, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, rule.ID, rule.UserID, rule.Name, rule.Amount, rule.Category, rule.Type,
		rule.Frequency, rule.StartDate, rule.NextDueDate, rule.IsActive).
		Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create recurring rule: %w", err)
	}
	return nil
}

// ListRules returns the rules of a user, newest first
func (r *Repository) ListRules(ctx context.Context, userID uuid.UUID) ([]models.RecurringRule, error) {
	return r.queryRules(ctx, `SELECT `+ruleColumns+`
		FROM fintrack.recurring_rules
		WHERE user_id = $1
		ORDER BY created_at DESC, id`, userID)
}

// FindRuleByID retrieves a recurring rule by id
func (r *Repository) FindRuleByID(ctx context.Context, id uuid.UUID) (*models.RecurringRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM fintrack.recurring_rules WHERE id = $1`
	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recurring rule: %w", err)
	}
	return &rule, nil
}

// SetRuleActive pauses or resumes a rule
func (r *Repository) SetRuleActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `
		UPDATE fintrack.recurring_rules
		SET is_active = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("failed to update recurring rule: %w", err)
	}
	return requireRow(res)
}

// DeleteRule removes a rule. Generated transactions are kept, unlinked by the foreign key.
func (r *Repository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fintrack.recurring_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recurring rule: %w", err)
	}
	return requireRow(res)
}

// FindDueRules returns the active rules of a user due at or before now
func (r *Repository) FindDueRules(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.RecurringRule, error) {
	return r.queryRules(ctx, `SELECT `+ruleColumns+`
		FROM fintrack.recurring_rules
		WHERE user_id = $1 AND is_active AND next_due_date <= $2
		ORDER BY next_due_date, id`, userID, now)
}

// FindOwnersWithDueRules returns the users having at least one due rule
func (r *Repository) FindOwnersWithDueRules(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT user_id
		FROM fintrack.recurring_rules
		WHERE is_active AND next_due_date <= $1
		ORDER BY user_id`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find rule owners: %w", err)
	}
	defer rows.Close()

	owners := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan rule owner: %w", err)
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

// AdvanceRule moves the due date of an active rule from -> to and bulk inserts
// txns in the same database transaction. The update only matches while the
// rule is still due at from, so a concurrent run gets models.ErrStaleRule.
func (r *Repository) AdvanceRule(ctx context.Context, ruleID uuid.UUID, from, to time.Time, txns []models.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE fintrack.recurring_rules
		SET next_due_date = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND next_due_date = $3 AND is_active`, to, ruleID, from)
	if err != nil {
		return fmt.Errorf("failed to advance recurring rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return models.ErrStaleRule
	}

	if len(txns) > 0 {
		if err := copyTransactions(ctx, tx, txns); err != nil {
			if mapError(err) == models.ErrConflict {
				return models.ErrStaleRule
			}
			return fmt.Errorf("failed to insert generated transactions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func copyTransactions(ctx context.Context, tx *sql.Tx, txns []models.Transaction) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema("fintrack", "transactions",
		"id", "user_id", "rule_id", "name", "amount", "category", "type", "date", "created_at"))
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, t := range txns {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		createdAt := t.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		var ruleID interface{}
		if t.RuleID != nil {
			ruleID = t.RuleID.String()
		}
		if _, err := stmt.ExecContext(ctx, t.ID.String(), t.UserID.String(), ruleID, t.Name,
			t.Amount.String(), t.Category, string(t.Type), t.Date, createdAt); err != nil {
			return err
		}
	}
	_, err = stmt.ExecContext(ctx)
	return err
}
