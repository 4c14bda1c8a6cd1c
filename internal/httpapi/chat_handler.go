package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/Phannhothinh/chatbot-op/internal/chat"
	"github.com/Phannhothinh/chatbot-op/internal/middleware"
	"github.com/Phannhothinh/chatbot-op/internal/models"
	"github.com/Phannhothinh/chatbot-op/internal/utils"
)

// ChatService is the dispatch engine as seen by the HTTP layer
type ChatService interface {
	SendMessage(ctx context.Context, id chat.Identity, message string) (string, error)
	ListMessages(ctx context.Context, userID string) ([]*models.Turn, error)
}

// ChatHandler handles the conversation endpoints
type ChatHandler struct {
	service ChatService
	logger  *utils.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(service ChatService) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  utils.NewLogger("chat-handler"),
	}
}

// ChatRequest represents the send-message request body
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the assistant reply
type ChatResponse struct {
	Response string `json:"response"`
}

// MessagesResponse lists the conversation, oldest first
type MessagesResponse struct {
	Messages []*models.Turn `json:"messages"`
}

// sessionIdentity resolves the caller or writes the error response
func sessionIdentity(w http.ResponseWriter, r *http.Request) (chat.Identity, bool) {
	claims, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return chat.Identity{}, false
	}

	id := chat.Identity{
		UserID: claims.UserID(),
		Name:   claims.Name,
		Email:  claims.Email,
	}
	if id.UserID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "User ID not found in session")
		return chat.Identity{}, false
	}
	return id, true
}

// SendMessage handles POST /api/chat
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIdentity(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	reply, err := h.service.SendMessage(r.Context(), id, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			utils.RespondWithError(w, http.StatusBadRequest, "Message is required")
		case errors.Is(err, chat.ErrMissingUserID):
			utils.RespondWithError(w, http.StatusBadRequest, "User ID not found in session")
		default:
			h.logger.Error("Chat request failed", "error", err)
			utils.RespondWithErrorDetail(w, http.StatusInternalServerError, "Failed to process chat request", err.Error())
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, ChatResponse{Response: reply})
}

// ListMessages handles GET /api/messages
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIdentity(w, r)
	if !ok {
		return
	}

	turns, err := h.service.ListMessages(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("Failed to list messages", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	if turns == nil {
		turns = []*models.Turn{}
	}

	utils.RespondWithJSON(w, http.StatusOK, MessagesResponse{Messages: turns})
}
