package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Phannhothinh/chatbot-op/internal/models"
	"github.com/Phannhothinh/chatbot-op/internal/storage"
	"github.com/Phannhothinh/chatbot-op/internal/utils"
)

var (
	// ErrInvalidCredentials is returned for an unknown username or wrong password
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrSessionRevoked is returned for a token that was signed out
	ErrSessionRevoked = errors.New("session has been revoked")
)

// UserStore looks up accounts by username
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// RevocationStore remembers signed-out session ids until they expire
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// SessionAuthority signs users in and validates their session tokens
type SessionAuthority struct {
	users       UserStore
	revocations RevocationStore
	secret      []byte
	maxAge      time.Duration
	logger      *utils.Logger
	now         func() time.Time
}

// NewSessionAuthority creates a session authority
func NewSessionAuthority(users UserStore, revocations RevocationStore, secret []byte, maxAge time.Duration) *SessionAuthority {
	return &SessionAuthority{
		users:       users,
		revocations: revocations,
		secret:      secret,
		maxAge:      maxAge,
		logger:      utils.NewLogger("auth"),
		now:         time.Now,
	}
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnPasswordCheck spends the same work as a real verification so unknown
// usernames are not distinguishable by timing
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = utils.HashPasswordArgon2("not-a-real-password")
	})
	if dummyHash != "" {
		_, _ = utils.VerifyPasswordArgon2(password, dummyHash)
	}
}

// SignIn verifies the username and password and issues a session token
func (a *SessionAuthority) SignIn(ctx context.Context, username, password string) (string, *SessionClaims, *models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", nil, nil, ErrInvalidCredentials
	}

	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			burnPasswordCheck(password)
			return "", nil, nil, ErrInvalidCredentials
		}
		return "", nil, nil, fmt.Errorf("failed to load user: %w", err)
	}

	ok, err := utils.VerifyPasswordArgon2(password, user.PasswordHash)
	if err != nil {
		a.logger.Error("Stored password hash is unreadable", "user_id", user.ID, "error", err)
		return "", nil, nil, ErrInvalidCredentials
	}
	if !ok {
		return "", nil, nil, ErrInvalidCredentials
	}

	token, claims, err := GenerateSessionToken(user, a.secret, a.maxAge, a.now())
	if err != nil {
		return "", nil, nil, err
	}

	a.logger.Info("User signed in", "user_id", user.ID, "session_id", claims.ID)
	return token, claims, user, nil
}

// Verify validates a token and checks that it has not been signed out
func (a *SessionAuthority) Verify(ctx context.Context, token string) (*SessionClaims, error) {
	claims, err := ValidateSessionToken(token, a.secret)
	if err != nil {
		return nil, err
	}

	revoked, err := a.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check session revocation: %w", err)
	}
	if revoked {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// SignOut revokes the session until its natural expiry
func (a *SessionAuthority) SignOut(ctx context.Context, claims *SessionClaims) error {
	if claims == nil || claims.ID == "" {
		return ErrInvalidToken
	}
	if err := a.revocations.Revoke(ctx, claims.ID, claims.ExpiresTime()); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	a.logger.Info("User signed out", "user_id", claims.UserID(), "session_id", claims.ID)
	return nil
}
