package httpapi

import (
	"context"
	"net/http"

	"github.com/Phannhothinh/chatbot-op/internal/models"
	"github.com/Phannhothinh/chatbot-op/internal/providers"
	"github.com/Phannhothinh/chatbot-op/internal/storage"
	"github.com/Phannhothinh/chatbot-op/internal/utils"
)

// CredentialService reads and writes a user's provider configuration
type CredentialService interface {
	Get(ctx context.Context, userID string) (*models.CredentialRecord, error)
	Save(ctx context.Context, userID, provider, model, apiKey string) error
}

// SettingsHandler handles provider configuration and the provider catalog
type SettingsHandler struct {
	credentials CredentialService
	logger      *utils.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(credentials CredentialService) *SettingsHandler {
	return &SettingsHandler{
		credentials: credentials,
		logger:      utils.NewLogger("settings-handler"),
	}
}

// SaveAPIKeyRequest represents the save-configuration request body
type SaveAPIKeyRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"apiKey"`
}

// ProviderConfigView is a saved provider config without its key
type ProviderConfigView struct {
	Model string `json:"model"`
}

// APIKeyStatusResponse describes the caller's configuration. API keys are never returned.
type APIKeyStatusResponse struct {
	HasAPIKey      bool                          `json:"hasApiKey"`
	ActiveProvider *string                       `json:"activeProvider"`
	Configs        map[string]ProviderConfigView `json:"configs"`
}

// ProvidersResponse lists the provider catalog
type ProvidersResponse struct {
	Providers []providers.Descriptor `json:"providers"`
}

// GetAPIKey handles GET /api/settings/api-key
func (h *SettingsHandler) GetAPIKey(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIdentity(w, r)
	if !ok {
		return
	}

	record, err := h.credentials.Get(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("Failed to read provider configuration", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch API keys")
		return
	}

	resp := APIKeyStatusResponse{Configs: make(map[string]ProviderConfigView, len(record.Configs))}
	for providerID, c := range record.Configs {
		resp.Configs[providerID] = ProviderConfigView{Model: c.Model}
	}
	if record.IsConfigured() {
		active := record.ActiveProvider
		resp.ActiveProvider = &active
		creds, _ := record.ActiveCredentials()
		resp.HasAPIKey = creds.APIKey != ""
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// SaveAPIKey handles POST /api/settings/api-key
func (h *SettingsHandler) SaveAPIKey(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIdentity(w, r)
	if !ok {
		return
	}

	var req SaveAPIKeyRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.credentials.Save(r.Context(), id.UserID, req.Provider, req.Model, req.APIKey); err != nil {
		if storage.IsInvalidInput(err) {
			utils.RespondWithError(w, http.StatusBadRequest, "Provider, model, and API key are required")
			return
		}
		h.logger.Error("Failed to save provider configuration", "provider", req.Provider, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save API key")
		return
	}

	h.logger.Info("Provider configuration saved", "user", utils.HashString(id.UserID), "provider", req.Provider, "model", req.Model)
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key saved successfully",
	})
}

// ListProviders handles GET /api/providers
func (h *SettingsHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, ProvidersResponse{Providers: providers.ListProviders()})
}
