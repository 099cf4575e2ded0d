package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ProviderCredential = "credential"
	ProviderGoogle     = "google"
)

// Account links a user to one authentication provider. Credential accounts
// carry the password hash, OAuth accounts carry the provider subject.
type Account struct {
	ID           uuid.UUID `db:"id"`
	UserID       uuid.UUID `db:"user_id"`
	ProviderID   string    `db:"provider_id"`
	AccountID    string    `db:"account_id"`
	PasswordHash *string   `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
