package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCategories is the starter category list of a new user
var DefaultCategories = []string{
	"Food", "Transport", "Entertainment", "Bills",
	"Shopping", "Healthcare", "Education", "Other",
}

// User represents a user in the system
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Not serialized
	Categories   []string  `json:"categories"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
