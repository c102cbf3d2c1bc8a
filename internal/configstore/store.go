// Package configstore persists the credential record used to call the generation
// provider.
package configstore

import (
	"context"
	"encoding/json"
	"strings"

	"promptlab/internal/failure"
)

// StorageKey is the well-known name the record is stored under.
const StorageKey = "promptlab_config"

// Configuration is the persisted credential record. The JSON field names are part of
// the stored format.
type Configuration struct {
	APIKey            string `json:"googleApiKey"`
	AuxiliaryEndpoint string `json:"supabaseUrl,omitempty"`
	AuxiliaryKey      string `json:"supabaseKey,omitempty"`
}

// Configured reports whether the record carries an API key.
func (c Configuration) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// HasAuxiliary reports whether the optional auxiliary endpoint credentials are set.
func (c Configuration) HasAuxiliary() bool {
	return strings.TrimSpace(c.AuxiliaryEndpoint) != "" && strings.TrimSpace(c.AuxiliaryKey) != ""
}

// Validate checks the record before it is saved.
func (c Configuration) Validate() error {
	if !c.Configured() {
		return failure.Validation("Google API key is required")
	}
	return nil
}

// Source reads the current configuration. Load returns false when no usable record
// exists.
type Source interface {
	Load(ctx context.Context) (Configuration, bool)
}

// Store is a Source that can also replace the record.
type Store interface {
	Source
	Save(ctx context.Context, cfg Configuration) error
}

func decode(data []byte) (Configuration, error) {
	var cfg Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

type ctxKey string

const requestAPIKeyContext = ctxKey("request_api_key")

// WithRequestAPIKey returns a context carrying an API key supplied with a single
// request.
func WithRequestAPIKey(ctx context.Context, apiKey string) context.Context {
	return context.WithValue(ctx, requestAPIKeyContext, strings.TrimSpace(apiKey))
}

// RequestAPIKeyFromContext returns the per-request API key, or "".
func RequestAPIKeyFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestAPIKeyContext).(string)
	return value
}

type overrideSource struct {
	next Source
}

// WithRequestOverride wraps src so that a per-request API key replaces the stored one.
// Auxiliary credentials still come from src.
func WithRequestOverride(src Source) Source {
	return overrideSource{next: src}
}

func (o overrideSource) Load(ctx context.Context) (Configuration, bool) {
	cfg, ok := o.next.Load(ctx)
	if key := RequestAPIKeyFromContext(ctx); key != "" {
		cfg.APIKey = key
		return cfg, true
	}
	return cfg, ok
}
