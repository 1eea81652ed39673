package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Record is the single app_settings row
type Record struct {
	ModelBaseURL   string         `db:"model_base_url"`
	ModelName      string         `db:"model_name"`
	ModelAPIKeyEnc sql.NullString `db:"model_api_key_enc"`
	BraveAPIKeyEnc sql.NullString `db:"brave_api_key_enc"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// Store reads and writes the app_settings row
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new settings store
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Get returns the stored settings, or nil when the row does not exist
func (s *Store) Get(ctx context.Context) (*Record, error) {
	query := `
		SELECT model_base_url, model_name, model_api_key_enc, brave_api_key_enc, updated_at
		FROM app_settings
		WHERE id = 1
	`

	var rec Record
	if err := s.db.GetContext(ctx, &rec, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	return &rec, nil
}

// Update is a settings change; nil key fields leave the stored key untouched
type Update struct {
	ModelBaseURL   string
	ModelName      string
	ModelAPIKeyEnc *string
	BraveAPIKeyEnc *string
}

// Save upserts the settings row
func (s *Store) Save(ctx context.Context, u Update) error {
	query := `
		INSERT INTO app_settings (id, model_base_url, model_name, model_api_key_enc, brave_api_key_enc, updated_at)
		VALUES (1, $1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE
		SET model_base_url = EXCLUDED.model_base_url,
		    model_name = EXCLUDED.model_name,
		    model_api_key_enc = COALESCE(EXCLUDED.model_api_key_enc, app_settings.model_api_key_enc),
		    brave_api_key_enc = COALESCE(EXCLUDED.brave_api_key_enc, app_settings.brave_api_key_enc),
		    updated_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, u.ModelBaseURL, u.ModelName, u.ModelAPIKeyEnc, u.BraveAPIKeyEnc); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}
