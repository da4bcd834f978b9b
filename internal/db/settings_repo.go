package db

import (
	"context"
	"time"

	"relaunch/internal/security"
	"relaunch/internal/types"
)

// SettingsRepository stores each user's email provider and API key in the
// user_settings table. Keys are sealed at rest when a Sealer is configured.
type SettingsRepository struct {
	db     DBTX
	sealer *security.Sealer
}

// NewSettingsRepository creates a SettingsRepository. sealer may be nil, in
// which case keys are stored as provided.
func NewSettingsRepository(db DBTX, sealer *security.Sealer) *SettingsRepository {
	return &SettingsRepository{db: db, sealer: sealer}
}

// GetCredential returns the user's credential, or nil, nil when the user has
// never saved one.
func (r *SettingsRepository) GetCredential(ctx context.Context, userID string) (*types.EmailCredential, error) {
	var (
		provider  string
		storedKey *string
		updatedAt time.Time
	)
	err := r.db.QueryRow(ctx,
		`SELECT email_provider, email_api_key, updated_at
		 FROM user_settings
		 WHERE user_id = $1`,
		userID,
	).Scan(&provider, &storedKey, &updatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load email settings", err)
	}

	key, err := r.sealer.Open(userID, derefString(storedKey))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalSealing, "stored API key cannot be decrypted", err)
	}

	return &types.EmailCredential{
		UserID:    userID,
		Provider:  types.EmailProvider(provider),
		APIKey:    types.SecretString(key),
		UpdatedAt: updatedAt,
	}, nil
}

// SaveCredential upserts the user's provider and API key. It is the only
// write path for credentials.
func (r *SettingsRepository) SaveCredential(ctx context.Context, cred *types.EmailCredential) error {
	sealed, err := r.sealer.Seal(cred.UserID, cred.APIKey.Unmask())
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalSealing, "failed to encrypt API key", err)
	}

	err = r.db.QueryRow(ctx,
		`INSERT INTO user_settings (user_id, email_provider, email_api_key, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET email_provider = EXCLUDED.email_provider,
		     email_api_key = EXCLUDED.email_api_key,
		     updated_at = NOW()
		 RETURNING updated_at`,
		cred.UserID,
		string(cred.Provider),
		nilIfEmpty(sealed),
	).Scan(&cred.UpdatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save email settings", err)
	}
	return nil
}
