package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Phannhothinh/chatbot-op/internal/auth"
	"github.com/Phannhothinh/chatbot-op/internal/middleware"
	"github.com/Phannhothinh/chatbot-op/internal/models"
	"github.com/Phannhothinh/chatbot-op/internal/utils"
)

// SessionService is the part of auth.SessionAuthority used by the HTTP layer
type SessionService interface {
	middleware.SessionVerifier
	SignIn(ctx context.Context, username, password string) (string, *auth.SessionClaims, *models.User, error)
	SignOut(ctx context.Context, claims *auth.SessionClaims) error
}

// AuthHandler handles sign-in, sign-out and session lookup
type AuthHandler struct {
	sessions     SessionService
	cookieName   string
	cookieSecure bool
	logger       *utils.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions SessionService, cookieName string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		cookieName:   cookieName,
		cookieSecure: cookieSecure,
		logger:       utils.NewLogger("auth-handler"),
	}
}

// SignInRequest represents the sign-in request body
type SignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionUser is the public view of the signed-in user
type SessionUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SignInResponse represents the sign-in response
type SignInResponse struct {
	Token string      `json:"token"`
	Exp   int64       `json:"exp"`
	User  SessionUser `json:"user"`
}

// SessionResponse represents the current session
type SessionResponse struct {
	User    SessionUser `json:"user"`
	Expires string      `json:"expires"`
}

// SignIn handles POST /api/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	token, claims, user, err := h.sessions.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		h.logger.Error("Sign-in failed", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	expires := claims.ExpiresTime()
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	utils.RespondWithJSON(w, http.StatusOK, SignInResponse{
		Token: token,
		Exp:   expires.Unix(),
		User: SessionUser{
			ID:    user.ID.String(),
			Name:  claims.Name,
			Email: user.Email,
		},
	})
}

// SignOut handles POST /api/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.sessions.SignOut(r.Context(), claims); err != nil {
		h.logger.Error("Sign-out failed", "session_id", claims.ID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to sign out")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	utils.RespondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Session handles GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, SessionResponse{
		User: SessionUser{
			ID:    claims.UserID(),
			Name:  claims.Name,
			Email: claims.Email,
		},
		Expires: claims.ExpiresTime().UTC().Format(time.RFC3339),
	})
}
