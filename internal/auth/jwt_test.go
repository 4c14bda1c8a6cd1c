package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Phannhothinh/chatbot-op/internal/models"
)

var testSecret = []byte("test-secret-key-for-testing")

func testUser() *models.User {
	return &models.User{
		ID:       uuid.MustParse("6f1c1b7e-2a39-4d3c-9a77-1f1d2a3b4c5d"),
		Username: "alice",
		Name:     "Alice",
		Email:    "alice@example.com",
	}
}

func TestGenerateAndValidateSessionToken(t *testing.T) {
	now := time.Now()
	token, claims, err := GenerateSessionToken(testUser(), testSecret, time.Hour, now)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.Equal(t, "6f1c1b7e-2a39-4d3c-9a77-1f1d2a3b4c5d", claims.Subject)
	assert.Equal(t, "Alice", claims.Name)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, now.Add(time.Hour), claims.ExpiresTime(), time.Second)

	parsed, err := ValidateSessionToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, claims.ID, parsed.ID)
	assert.Equal(t, claims.Subject, parsed.UserID())
	assert.Equal(t, "alice@example.com", parsed.Email)
}

func TestGenerateSessionToken_NameFallsBackToUsername(t *testing.T) {
	u := testUser()
	u.Name = ""
	_, claims, err := GenerateSessionToken(u, testSecret, time.Hour, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Name)

	_, _, err = GenerateSessionToken(u, nil, time.Hour, time.Now())
	assert.Error(t, err)
}

func TestValidateSessionToken_Rejects(t *testing.T) {
	valid, _, err := GenerateSessionToken(testUser(), testSecret, time.Hour, time.Now())
	require.NoError(t, err)

	expired, _, err := GenerateSessionToken(testUser(), testSecret, time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	noneToken := jwt.NewWithClaims(jwt.SigningMethodNone, &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "attacker",
			ID:        "x",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	unsigned, err := noneToken.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noJTI := jwt.NewWithClaims(jwt.SigningMethodHS256, &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	withoutID, err := noJTI.SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret []byte
	}{
		{"wrong secret", valid, []byte("other-secret")},
		{"expired", expired, testSecret},
		{"alg none", unsigned, testSecret},
		{"missing session id", withoutID, testSecret},
		{"garbage", "not-a-jwt", testSecret},
		{"empty", "", testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateSessionToken(tt.token, tt.secret)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestSessionClaimsUserID(t *testing.T) {
	c := &SessionClaims{Email: "bob@example.com"}
	assert.Equal(t, "bob@example.com", c.UserID())

	c.Subject = "bob-id"
	assert.Equal(t, "bob-id", c.UserID())

	assert.True(t, (&SessionClaims{}).ExpiresTime().IsZero())
}
