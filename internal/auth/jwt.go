package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/Phannhothinh/chatbot-op/internal/models"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or shape checks
var ErrInvalidToken = errors.New("invalid or expired session token")

// SessionClaims is the payload of a session token.
// Subject carries the user id and ID carries the revocable session id.
type SessionClaims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the stable identifier used to key the user's data.
// Sessions without a subject fall back to the email address.
func (c *SessionClaims) UserID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.Email
}

// ExpiresTime returns the expiry time, or the zero time if unset
func (c *SessionClaims) ExpiresTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// GenerateSessionToken signs a session token for user valid for maxAge
func GenerateSessionToken(user *models.User, secret []byte, maxAge time.Duration, now time.Time) (string, *SessionClaims, error) {
	if len(secret) == 0 {
		return "", nil, errors.New("signing secret is required")
	}

	name := user.Name
	if name == "" {
		name = user.Username
	}

	claims := &SessionClaims{
		Name:  name,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(maxAge)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, claims, nil
}

// ValidateSessionToken verifies the signature and expiry of a session token
func ValidateSessionToken(tokenString string, secret []byte) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
