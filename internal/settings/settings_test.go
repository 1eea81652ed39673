package settings

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher(testKey)
	require.NoError(t, err)
	return c
}

func TestCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	payload, err := c.Encrypt("sk-secret")
	require.NoError(t, err)
	assert.Len(t, strings.Split(payload, ":"), 3)

	plain, err := c.Decrypt(payload)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", plain)

	again, err := c.Encrypt("sk-secret")
	require.NoError(t, err)
	assert.NotEqual(t, payload, again, "nonce must differ per encryption")
}

func TestCipher_Decrypt_Invalid(t *testing.T) {
	c := newTestCipher(t)

	for _, payload := range []string{"", "abc", "a:b", "!!:!!:!!"} {
		_, err := c.Decrypt(payload)
		assert.ErrorIs(t, err, ErrInvalidPayload, payload)
	}

	other, err := NewCipher(base64.StdEncoding.EncodeToString([]byte("abcdef0123456789abcdef0123456789")))
	require.NoError(t, err)
	payload, err := other.Encrypt("value")
	require.NoError(t, err)

	_, err = c.Decrypt(payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decrypt payload")
}

func TestNewCipher_InvalidKey(t *testing.T) {
	_, err := NewCipher("")
	assert.Error(t, err)

	_, err = NewCipher("not base64!")
	assert.Error(t, err)

	_, err = NewCipher(base64.StdEncoding.EncodeToString([]byte("short")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be 32 bytes")
}

type fakeRecordSource struct {
	rec *Record
	err error
}

func (f *fakeRecordSource) Get(context.Context) (*Record, error) {
	return f.rec, f.err
}

func TestStoreProvider_Resolve(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := newTestCipher(t)
	defaults := Credentials{
		Completion:   Completion{BaseURL: "https://default.example/v1", Model: "default-model", APIKey: "env-model-key"},
		SearchAPIKey: "env-brave-key",
	}

	t.Run("no row falls back to defaults", func(t *testing.T) {
		p := NewStoreProvider(&fakeRecordSource{}, c, defaults, logger)
		creds, err := p.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, defaults, *creds)
	})

	t.Run("stored values override defaults", func(t *testing.T) {
		modelKey, err := c.Encrypt("stored-model-key")
		require.NoError(t, err)
		braveKey, err := c.Encrypt("stored-brave-key")
		require.NoError(t, err)

		p := NewStoreProvider(&fakeRecordSource{rec: &Record{
			ModelBaseURL:   "https://openrouter.ai/api/v1/",
			ModelName:      "openai/gpt-4o-mini",
			ModelAPIKeyEnc: sql.NullString{String: modelKey, Valid: true},
			BraveAPIKeyEnc: sql.NullString{String: braveKey, Valid: true},
		}}, c, defaults, logger)

		creds, err := p.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "https://openrouter.ai/api/v1", creds.Completion.BaseURL)
		assert.Equal(t, "openai/gpt-4o-mini", creds.Completion.Model)
		assert.Equal(t, "stored-model-key", creds.Completion.APIKey)
		assert.Equal(t, "stored-brave-key", creds.SearchAPIKey)
	})

	t.Run("undecryptable key is treated as absent", func(t *testing.T) {
		p := NewStoreProvider(&fakeRecordSource{rec: &Record{
			ModelName:      "m",
			ModelAPIKeyEnc: sql.NullString{String: "garbage", Valid: true},
		}}, c, Credentials{}, logger)

		creds, err := p.Resolve(context.Background())
		require.NoError(t, err)
		assert.Empty(t, creds.Completion.APIKey)
	})

	t.Run("store failure is a persistence error", func(t *testing.T) {
		p := NewStoreProvider(&fakeRecordSource{err: errors.New("connection refused")}, c, defaults, logger)
		_, err := p.Resolve(context.Background())
		assert.ErrorIs(t, err, domain.ErrPersistence)
	})
}

func TestStaticProvider_Resolve(t *testing.T) {
	p := &StaticProvider{Credentials: Credentials{SearchAPIKey: "k"}}
	creds, err := p.Resolve(context.Background())
	require.NoError(t, err)

	creds.SearchAPIKey = "mutated"
	again, _ := p.Resolve(context.Background())
	assert.Equal(t, "k", again.SearchAPIKey)
}

func TestStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(sqlx.NewDb(db, "postgres"))
	ctx := context.Background()

	t.Run("get", func(t *testing.T) {
		mock.ExpectQuery("SELECT model_base_url, model_name").
			WillReturnRows(sqlmock.NewRows([]string{"model_base_url", "model_name", "model_api_key_enc", "brave_api_key_enc", "updated_at"}).
				AddRow("https://openrouter.ai/api/v1", "m", nil, "enc", time.Now()))

		rec, err := store.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "m", rec.ModelName)
		assert.False(t, rec.ModelAPIKeyEnc.Valid)
		assert.Equal(t, "enc", rec.BraveAPIKeyEnc.String)
	})

	t.Run("get missing row", func(t *testing.T) {
		mock.ExpectQuery("SELECT model_base_url, model_name").WillReturnError(sql.ErrNoRows)

		rec, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("save keeps unspecified keys", func(t *testing.T) {
		enc := "iv:tag:ct"
		mock.ExpectExec("INSERT INTO app_settings").
			WithArgs("https://api.example/v1", "model", &enc, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.Save(ctx, Update{ModelBaseURL: "https://api.example/v1", ModelName: "model", ModelAPIKeyEnc: &enc})
		require.NoError(t, err)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
