// Package history records completed optimizations in the auxiliary Supabase project
// named by the stored configuration.
package history

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"promptlab/internal/configstore"
)

// Table is the Supabase table holding history records.
const Table = "prompt_history"

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Record struct {
	ID              uuid.UUID `json:"id"`
	OriginalPrompt  string    `json:"original_prompt"`
	OptimizedPrompt string    `json:"optimized_prompt"`
	Mode            string    `json:"mode"`
	Instruction     string    `json:"instruction"`
	CreatedAt       time.Time `json:"created_at"`
}

// Service reads and writes history. Without auxiliary credentials it records nothing
// and lists nothing.
type Service struct {
	configs    configstore.Source
	httpClient *http.Client
	now        func() time.Time
}

func New(configs configstore.Source, httpClient *http.Client) *Service {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Service{configs: configs, httpClient: httpClient, now: time.Now}
}

func (s *Service) repo(ctx context.Context) (supabaseRepo, bool) {
	cfg, ok := s.configs.Load(ctx)
	if !ok || !cfg.HasAuxiliary() {
		return supabaseRepo{}, false
	}
	return newSupabaseRepo(cfg.AuxiliaryEndpoint, cfg.AuxiliaryKey, s.httpClient), true
}

// Enabled reports whether records are currently being kept.
func (s *Service) Enabled(ctx context.Context) bool {
	_, ok := s.repo(ctx)
	return ok
}

// Record stores rec, assigning an id and timestamp when they are unset.
func (s *Service) Record(ctx context.Context, rec Record) error {
	repo, ok := s.repo(ctx)
	if !ok {
		return nil
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	rec.Mode = strings.TrimSpace(rec.Mode)
	return repo.insert(ctx, rec)
}

// List returns up to limit records, newest first. limit is clamped to
// [1, MaxLimit]; zero selects DefaultLimit.
func (s *Service) List(ctx context.Context, limit int) ([]Record, error) {
	repo, ok := s.repo(ctx)
	if !ok {
		return []Record{}, nil
	}
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 1:
		limit = 1
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return repo.list(ctx, limit)
}
