package models

import "time"

// ProviderCredentials is the API key and model a user saved for one provider.
type ProviderCredentials struct {
	APIKey string `json:"apiKey"`
	Model  string `json:"model"`
}

// Complete reports whether both the key and the model are present
func (c ProviderCredentials) Complete() bool {
	return c.APIKey != "" && c.Model != ""
}

// CredentialRecord holds a user's provider credentials, keyed by provider id,
// and the provider currently selected for dispatch.
type CredentialRecord struct {
	UserID         string
	ActiveProvider string
	Configs        map[string]ProviderCredentials
	UpdatedAt      time.Time
}

// NewCredentialRecord returns an empty "not configured" record
func NewCredentialRecord(userID string) *CredentialRecord {
	return &CredentialRecord{
		UserID:  userID,
		Configs: make(map[string]ProviderCredentials),
	}
}

// IsConfigured reports whether a provider has been selected and any config exists
func (r *CredentialRecord) IsConfigured() bool {
	return r != nil && r.ActiveProvider != "" && len(r.Configs) > 0
}

// ActiveCredentials returns the entry for the active provider
func (r *CredentialRecord) ActiveCredentials() (ProviderCredentials, bool) {
	if r == nil || r.ActiveProvider == "" {
		return ProviderCredentials{}, false
	}
	c, ok := r.Configs[r.ActiveProvider]
	return c, ok
}

// CredentialRecordRow is the credential_records table row
type CredentialRecordRow struct {
	UserID         string    `db:"user_id"`
	ActiveProvider string    `db:"active_provider"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// ProviderConfigRow is the provider_configs table row. The API key is stored encrypted.
type ProviderConfigRow struct {
	UserID          string    `db:"user_id"`
	Provider        string    `db:"provider"`
	EncryptedAPIKey string    `db:"encrypted_api_key"`
	Model           string    `db:"model"`
	UpdatedAt       time.Time `db:"updated_at"`
}
