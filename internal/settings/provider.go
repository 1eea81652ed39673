// Package settings resolves completion-engine and search credentials.
//
// Credentials are resolved once per invocation through a Provider and passed
// down explicitly. Stored keys are encrypted with AES-256-GCM; keys from the
// service config act as the fallback when nothing is stored.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/cron-agent/internal/domain"
)

// Completion holds the completion-engine endpoint and credentials
type Completion struct {
	BaseURL string
	Model   string
	APIKey  string
}

// Credentials is everything an invocation needs to call external services
type Credentials struct {
	Completion   Completion
	SearchAPIKey string
}

// Provider resolves credentials for one invocation
type Provider interface {
	Resolve(ctx context.Context) (*Credentials, error)
}

// StaticProvider always returns the same credentials
type StaticProvider struct {
	Credentials Credentials
}

// Resolve returns a copy of the static credentials
func (p *StaticProvider) Resolve(context.Context) (*Credentials, error) {
	creds := p.Credentials
	return &creds, nil
}

// recordSource is the read side of Store
type recordSource interface {
	Get(ctx context.Context) (*Record, error)
}

// StoreProvider reads credentials from app_settings, decrypting stored keys.
// Values missing from the store fall back to Defaults.
type StoreProvider struct {
	store    recordSource
	cipher   *Cipher
	defaults Credentials
	logger   *slog.Logger
}

// NewStoreProvider creates a provider backed by the settings store.
// cipher may be nil, in which case stored keys are ignored.
func NewStoreProvider(store recordSource, cipher *Cipher, defaults Credentials, logger *slog.Logger) *StoreProvider {
	return &StoreProvider{
		store:    store,
		cipher:   cipher,
		defaults: defaults,
		logger:   logger,
	}
}

// Resolve loads and decrypts the current credentials.
// A store failure is a persistence error; an undecryptable key is logged and
// treated as absent so the job fails on its own stage instead of the batch.
func (p *StoreProvider) Resolve(ctx context.Context) (*Credentials, error) {
	creds := p.defaults

	rec, err := p.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if rec == nil {
		return &creds, nil
	}

	if rec.ModelBaseURL != "" {
		creds.Completion.BaseURL = strings.TrimRight(rec.ModelBaseURL, "/")
	}
	if rec.ModelName != "" {
		creds.Completion.Model = rec.ModelName
	}

	if key := p.decrypt("model_api_key", rec.ModelAPIKeyEnc.String); key != "" {
		creds.Completion.APIKey = key
	}
	if key := p.decrypt("brave_api_key", rec.BraveAPIKeyEnc.String); key != "" {
		creds.SearchAPIKey = key
	}

	return &creds, nil
}

func (p *StoreProvider) decrypt(name, payload string) string {
	if payload == "" || p.cipher == nil {
		return ""
	}

	value, err := p.cipher.Decrypt(payload)
	if err != nil {
		p.logger.Warn("Failed to decrypt stored credential",
			slog.String("credential", name),
			slog.String("error", err.Error()),
		)
		return ""
	}

	return value
}
