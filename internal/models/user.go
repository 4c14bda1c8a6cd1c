package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that can sign in with username and password.
// Authentication uses Argon2id password hashing.
type User struct {
	ID           uuid.UUID `db:"id"`
	Username     string    `db:"username"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"` // Argon2id hash
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// DisplayName returns the label used as the sender of the user's turns
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Email != "" {
		return u.Email
	}
	return u.Username
}
