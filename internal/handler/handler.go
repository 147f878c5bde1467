package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Dan9191/fintrack/internal/export"
	"github.com/Dan9191/fintrack/internal/middleware"
	"github.com/Dan9191/fintrack/internal/models"
	"github.com/Dan9191/fintrack/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeError maps service errors to HTTP responses
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeMessage(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, models.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, models.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "Not authorized")
	case errors.Is(err, models.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		writeMessage(w, http.StatusConflict, "Resource already exists")
	default:
		h.log.WithField("request_id", middleware.RequestIDFromContext(r.Context())).Errorf("Request failed: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.NewValidationError("body", "malformed JSON")
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, models.NewValidationError("id", "must be a UUID")
	}
	return id, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp
func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, models.NewValidationError(field, "must be YYYY-MM-DD or RFC 3339")
	}
	return t.UTC(), nil
}

// currentUser returns the id set by the auth middleware
func currentUser(r *http.Request) uuid.UUID {
	id, _ := middleware.UserIDFromContext(r.Context())
	return id
}

// Health reports that the API is up
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("API is running..."))
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, token, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// Me returns the authenticated user
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), currentUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type categoriesRequest struct {
	Categories []string `json:"categories"`
}

// UpdateCategories replaces the user's categories
func (h *Handler) UpdateCategories(w http.ResponseWriter, r *http.Request) {
	var req categoriesRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.svc.UpdateCategories(r.Context(), currentUser(r), req.Categories)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type transactionRequest struct {
	Name     string                 `json:"name"`
	Amount   decimal.Decimal        `json:"amount"`
	Category string                 `json:"category"`
	Type     models.TransactionType `json:"type"`
	Date     string                 `json:"date"`
}

// ListTransactions returns the user's transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := h.svc.ListTransactions(r.Context(), currentUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

// AddTransaction records a transaction
func (h *Handler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	txn, err := h.svc.AddTransaction(r.Context(), currentUser(r), service.TransactionInput{
		Name:     req.Name,
		Amount:   req.Amount,
		Category: req.Category,
		Type:     req.Type,
		Date:     date,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

// DeleteTransaction removes a transaction
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteTransaction(r.Context(), currentUser(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id.String(), "message": "Transaction removed"})
}

// ExportTransactions downloads the user's transactions as CSV or XML
func (h *Handler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.`+string(format)+`"`)
	if err := h.svc.Export(r.Context(), currentUser(r), format, w); err != nil {
		h.writeError(w, r, err)
	}
}

type ruleRequest struct {
	Name      string                 `json:"name"`
	Amount    decimal.Decimal        `json:"amount"`
	Category  string                 `json:"category"`
	Type      models.TransactionType `json:"type"`
	Frequency models.Frequency       `json:"frequency"`
	StartDate string                 `json:"start_date"`
}

type ruleStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// ListRules returns the user's recurring rules after recording due occurrences
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.ListRules(r.Context(), currentUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// CreateRule creates a recurring rule
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rule, err := h.svc.CreateRule(r.Context(), currentUser(r), service.RuleInput{
		Name:      req.Name,
		Amount:    req.Amount,
		Category:  req.Category,
		Type:      req.Type,
		Frequency: req.Frequency,
		StartDate: start,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// UpdateRule pauses or resumes a recurring rule
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req ruleStatusRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.IsActive == nil {
		h.writeError(w, r, models.NewValidationError("is_active", "is required"))
		return
	}
	rule, err := h.svc.SetRuleActive(r.Context(), currentUser(r), id, *req.IsActive)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule removes a recurring rule
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteRule(r.Context(), currentUser(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id.String(), "message": "Recurring rule removed"})
}

// UpcomingOccurrences previews the next due dates of a rule
func (h *Handler) UpcomingOccurrences(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	count := 5
	if raw := r.URL.Query().Get("count"); raw != "" {
		if count, err = strconv.Atoi(raw); err != nil {
			h.writeError(w, r, models.NewValidationError("count", "must be a number"))
			return
		}
	}
	dates, err := h.svc.UpcomingOccurrences(r.Context(), currentUser(r), id, count)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rule_id": id, "occurrences": dates})
}

// Dashboard returns the analytics of the user's transactions
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context(), currentUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
