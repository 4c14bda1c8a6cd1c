package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Phannhothinh/chatbot-op/internal/models"
)

// CredentialRepository is the credential store. Each user has one record
// naming the active provider plus one encrypted config row per provider.
type CredentialRepository struct {
	db         *DB
	encryption *Encryption
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *DB, encryption *Encryption) *CredentialRepository {
	return &CredentialRepository{
		db:         db,
		encryption: encryption,
	}
}

// Get returns the user's credential record with API keys decrypted.
// A user who never saved anything gets an empty "not configured" record.
func (r *CredentialRepository) Get(ctx context.Context, userID string) (*models.CredentialRecord, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	record := models.NewCredentialRecord(userID)

	var header models.CredentialRecordRow
	query := r.db.rebind(`
		SELECT user_id, active_provider, created_at, updated_at
		FROM credential_records
		WHERE user_id = ?
	`)
	if err := r.db.conn.GetContext(ctx, &header, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return record, nil
		}
		return nil, fmt.Errorf("failed to get credential record: %w", err)
	}

	var rows []models.ProviderConfigRow
	query = r.db.rebind(`
		SELECT user_id, provider, encrypted_api_key, model, updated_at
		FROM provider_configs
		WHERE user_id = ?
		ORDER BY provider
	`)
	if err := r.db.conn.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get provider configs: %w", err)
	}

	for _, row := range rows {
		apiKey, err := r.encryption.Decrypt(row.EncryptedAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt API key for provider %s: %w", row.Provider, err)
		}
		record.Configs[row.Provider] = models.ProviderCredentials{
			APIKey: string(apiKey),
			Model:  row.Model,
		}
	}

	// An active provider with nothing behind it is still "not configured".
	if len(record.Configs) > 0 {
		record.ActiveProvider = header.ActiveProvider
	}
	record.UpdatedAt = header.UpdatedAt

	return record, nil
}

// Save upserts the user's record, makes provider active and merges the
// provider's config. Configs saved for other providers are left untouched.
func (r *CredentialRepository) Save(ctx context.Context, userID, provider, model, apiKey string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	provider = strings.TrimSpace(provider)
	model = strings.TrimSpace(model)
	apiKey = strings.TrimSpace(apiKey)
	if provider == "" || model == "" || apiKey == "" {
		return ErrInvalidCredentialInput
	}

	encrypted, err := r.encryption.Encrypt([]byte(apiKey))
	if err != nil {
		return fmt.Errorf("failed to encrypt API key: %w", err)
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if err := r.upsertRecord(ctx, tx, userID, provider, now); err != nil {
		return err
	}
	if err := r.mergeProviderConfig(ctx, tx, models.ProviderConfigRow{
		UserID:          userID,
		Provider:        provider,
		EncryptedAPIKey: encrypted,
		Model:           model,
		UpdatedAt:       now,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credential update: %w", err)
	}
	return nil
}

func (r *CredentialRepository) upsertRecord(ctx context.Context, tx *sqlx.Tx, userID, provider string, now time.Time) error {
	query := r.db.rebind(`
		INSERT INTO credential_records (user_id, active_provider, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET active_provider = excluded.active_provider, updated_at = excluded.updated_at
	`)
	if _, err := tx.ExecContext(ctx, query, userID, provider, now, now); err != nil {
		return fmt.Errorf("failed to upsert credential record: %w", err)
	}
	return nil
}

// mergeProviderConfig replaces the single (user, provider) entry
func (r *CredentialRepository) mergeProviderConfig(ctx context.Context, tx *sqlx.Tx, row models.ProviderConfigRow) error {
	query := r.db.rebind(`
		INSERT INTO provider_configs (user_id, provider, encrypted_api_key, model, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE
		SET encrypted_api_key = excluded.encrypted_api_key, model = excluded.model, updated_at = excluded.updated_at
	`)
	_, err := tx.ExecContext(ctx, query, row.UserID, row.Provider, row.EncryptedAPIKey, row.Model, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to merge provider config: %w", err)
	}
	return nil
}

// IsInvalidInput reports whether err is a credential validation failure
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidCredentialInput) || errors.Is(err, ErrMissingUserID)
}
