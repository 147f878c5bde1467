package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/Dan9191/fintrack/internal/analytics"
	"github.com/Dan9191/fintrack/internal/config"
	"github.com/Dan9191/fintrack/internal/export"
	"github.com/Dan9191/fintrack/internal/models"
	"github.com/Dan9191/fintrack/internal/recurring"
	"github.com/Dan9191/fintrack/internal/schedule"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// Store is the persistence used by the service
type Store interface {
	recurring.Store

	CreateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateUserCategories(ctx context.Context, id uuid.UUID, categories []string) error

	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) error

	CreateRule(ctx context.Context, rule *models.RecurringRule) error
	ListRules(ctx context.Context, userID uuid.UUID) ([]models.RecurringRule, error)
	FindRuleByID(ctx context.Context, id uuid.UUID) (*models.RecurringRule, error)
	SetRuleActive(ctx context.Context, id uuid.UUID, active bool) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	FindOwnersWithDueRules(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// Notifier delivers a digest of generated recurring transactions
type Notifier interface {
	SendRecurringDigest(user *models.User, txns []models.Transaction) error
}

// Service handles business logic
type Service struct {
	repo      Store
	log       *logrus.Logger
	config    *config.Config
	processor *recurring.Processor
	notifier  Notifier
	now       func() time.Time
	digests   sync.WaitGroup
}

// NewService initializes a new service
func NewService(repo Store, log *logrus.Logger, cfg *config.Config) *Service {
	processor := recurring.NewProcessor(repo, log, recurring.Options{
		Mode:           recurring.Mode(cfg.RecurrenceMode),
		MaxOccurrences: cfg.RecurrenceMaxOccurrences,
	})
	return &Service{
		repo:      repo,
		log:       log,
		config:    cfg,
		processor: processor,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithNotifier enables digest emails after recurring processing
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Register creates a new user with hashed password and returns a token for it
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return nil, "", models.NewValidationError("username", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", models.NewValidationError("email", "is not a valid address")
	}
	if len(password) < minPasswordLength {
		return nil, "", models.NewValidationError("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Categories:   append([]string(nil), models.DefaultCategories...),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}

	s.log.WithField("user_id", user.ID).Infof("User registered: %s", user.Email)
	return user, token, nil
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.repo.FindUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, models.ErrNotFound) {
		return nil, "", models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", models.ErrInvalidCredentials
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}

	s.log.WithField("user_id", user.ID).Infof("User logged in: %s", user.Email)
	return user, token, nil
}

func (s *Service) issueToken(userID uuid.UUID) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ParseToken validates a JWT and returns the user id it was issued for
func (s *Service) ParseToken(tokenString string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token subject: %w", err)
	}
	return userID, nil
}

// Me returns the profile of the authenticated user
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.repo.FindUserByID(ctx, userID)
}

// UpdateCategories replaces the user's categories. Names are trimmed, blanks
// and duplicates dropped, and the order is kept.
func (s *Service) UpdateCategories(ctx context.Context, userID uuid.UUID, categories []string) (*models.User, error) {
	cleaned := make([]string, 0, len(categories))
	seen := make(map[string]bool)
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		cleaned = append(cleaned, c)
	}
	if len(cleaned) == 0 {
		return nil, models.NewValidationError("categories", "at least one category is required")
	}

	if err := s.repo.UpdateUserCategories(ctx, userID, cleaned); err != nil {
		return nil, err
	}
	s.log.WithField("user_id", userID).Infof("Categories updated: %d", len(cleaned))
	return s.repo.FindUserByID(ctx, userID)
}

// TransactionInput is the user supplied part of a transaction
type TransactionInput struct {
	Name     string
	Amount   decimal.Decimal
	Category string
	Type     models.TransactionType
	Date     time.Time
}

func validateEntry(amount decimal.Decimal, category string, txType models.TransactionType) error {
	if amount.IsZero() {
		return models.NewValidationError("amount", "must not be zero")
	}
	if strings.TrimSpace(category) == "" {
		return models.NewValidationError("category", "is required")
	}
	if !txType.Valid() {
		return models.NewValidationError("type", "must be income or expense")
	}
	return nil
}

func nameOrDefault(name, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fallback
}

// ListTransactions returns the user's transactions, newest first
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	return s.repo.ListTransactions(ctx, userID)
}

// AddTransaction records a transaction for the user. The amount's sign is
// normalised from the type.
func (s *Service) AddTransaction(ctx context.Context, userID uuid.UUID, in TransactionInput) (*models.Transaction, error) {
	if err := validateEntry(in.Amount, in.Category, in.Type); err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		return nil, models.NewValidationError("date", "is required")
	}

	txn := &models.Transaction{
		ID:       uuid.New(),
		UserID:   userID,
		Name:     nameOrDefault(in.Name, models.DefaultTransactionName),
		Amount:   models.SignedAmount(in.Amount, in.Type),
		Category: strings.TrimSpace(in.Category),
		Type:     in.Type,
		Date:     in.Date.UTC(),
	}
	if err := s.repo.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "transaction_id": txn.ID}).
		Infof("Transaction added: %s %s", txn.Type, txn.Amount)
	return txn, nil
}

// DeleteTransaction removes one of the user's transactions
func (s *Service) DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error {
	txn, err := s.repo.FindTransactionByID(ctx, id)
	if err != nil {
		return err
	}
	if txn.UserID != userID {
		return models.ErrForbidden
	}
	if err := s.repo.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "transaction_id": id}).Info("Transaction deleted")
	return nil
}

// RuleInput is the user supplied part of a recurring rule
type RuleInput struct {
	Name      string
	Amount    decimal.Decimal
	Category  string
	Type      models.TransactionType
	Frequency models.Frequency
	StartDate time.Time
}

// ListRules processes the user's due rules and returns all their rules
func (s *Service) ListRules(ctx context.Context, userID uuid.UUID) ([]models.RecurringRule, error) {
	if _, err := s.ProcessRecurring(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListRules(ctx, userID)
}

// CreateRule stores a recurring rule and immediately records any occurrence
// already due. The start date defaults to now.
func (s *Service) CreateRule(ctx context.Context, userID uuid.UUID, in RuleInput) (*models.RecurringRule, error) {
	if err := validateEntry(in.Amount, in.Category, in.Type); err != nil {
		return nil, err
	}
	if !in.Frequency.Valid() {
		return nil, models.NewValidationError("frequency", "must be daily, weekly, monthly or yearly")
	}
	start := in.StartDate
	if start.IsZero() {
		start = s.now()
	}
	// recurrence arithmetic works on whole seconds
	start = start.UTC().Truncate(time.Second)

	rule := &models.RecurringRule{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        nameOrDefault(in.Name, models.DefaultRuleName),
		Amount:      in.Amount.Abs(),
		Category:    strings.TrimSpace(in.Category),
		Type:        in.Type,
		Frequency:   in.Frequency,
		StartDate:   start,
		NextDueDate: start,
		IsActive:    true,
	}
	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "rule_id": rule.ID}).
		Infof("Recurring rule created: %s starting %s", rule.Frequency, rule.StartDate.Format("2006-01-02"))

	if _, err := s.ProcessRecurring(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.FindRuleByID(ctx, rule.ID)
}

func (s *Service) ownedRule(ctx context.Context, userID, id uuid.UUID) (*models.RecurringRule, error) {
	rule, err := s.repo.FindRuleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.UserID != userID {
		return nil, models.ErrForbidden
	}
	return rule, nil
}

// SetRuleActive pauses or resumes one of the user's rules
func (s *Service) SetRuleActive(ctx context.Context, userID, id uuid.UUID, active bool) (*models.RecurringRule, error) {
	if _, err := s.ownedRule(ctx, userID, id); err != nil {
		return nil, err
	}
	if err := s.repo.SetRuleActive(ctx, id, active); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "rule_id": id}).Infof("Recurring rule active=%t", active)
	return s.repo.FindRuleByID(ctx, id)
}

// DeleteRule removes one of the user's rules
func (s *Service) DeleteRule(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.ownedRule(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteRule(ctx, id); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "rule_id": id}).Info("Recurring rule deleted")
	return nil
}

// UpcomingOccurrences previews the next count due dates of a rule,
// starting with its current due date.
func (s *Service) UpcomingOccurrences(ctx context.Context, userID, id uuid.UUID, count int) ([]time.Time, error) {
	if count < 1 || count > 100 {
		return nil, models.NewValidationError("count", "must be between 1 and 100")
	}
	rule, err := s.ownedRule(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	sched, err := schedule.New(rule.Frequency, rule.StartDate)
	if err != nil {
		return nil, err
	}
	if count == 1 {
		return []time.Time{rule.NextDueDate}, nil
	}
	rest, err := sched.Upcoming(rule.NextDueDate, count-1)
	if err != nil {
		return nil, err
	}
	return append([]time.Time{rule.NextDueDate}, rest...), nil
}

// ProcessRecurring records the occurrences of the user's due rules
func (s *Service) ProcessRecurring(ctx context.Context, userID uuid.UUID) (*recurring.Result, error) {
	return s.ProcessRecurringAt(ctx, userID, s.now())
}

// ProcessRecurringAt records the occurrences of the user's rules due at now
func (s *Service) ProcessRecurringAt(ctx context.Context, userID uuid.UUID, now time.Time) (*recurring.Result, error) {
	result, err := s.processor.Process(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, userID, result.Transactions)
	return result, nil
}

// OwnersWithDueRules lists users having at least one rule due at now
func (s *Service) OwnersWithDueRules(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return s.repo.FindOwnersWithDueRules(ctx, now)
}

func (s *Service) notify(ctx context.Context, userID uuid.UUID, txns []models.Transaction) {
	if s.notifier == nil || len(txns) == 0 {
		return
	}
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		s.log.WithField("user_id", userID).Warnf("Digest skipped: %v", err)
		return
	}

	// delivery runs outside the request so a slow SMTP server cannot stall it
	s.digests.Add(1)
	go func() {
		defer s.digests.Done()
		if err := s.notifier.SendRecurringDigest(user, txns); err != nil {
			s.log.WithField("user_id", userID).Warnf("Digest not delivered: %v", err)
		}
	}()
}

// WaitForDigests blocks until every digest email started so far has been handed off
func (s *Service) WaitForDigests() {
	s.digests.Wait()
}

// Dashboard computes the analytics of the user's transactions
func (s *Service) Dashboard(ctx context.Context, userID uuid.UUID) (*models.Dashboard, error) {
	txns, err := s.repo.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	d := analytics.BuildDashboard(txns, s.now(), s.config.CurrencySymbol)
	return &d, nil
}

// Export writes the user's transactions to w in the requested format
func (s *Service) Export(ctx context.Context, userID uuid.UUID, format export.Format, w io.Writer) error {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	txns, err := s.repo.ListTransactions(ctx, userID)
	if err != nil {
		return err
	}
	if err := export.Write(w, format, user.Username, txns); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "count": len(txns)}).Infof("Transactions exported as %s", format)
	return nil
}
