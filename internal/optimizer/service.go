// Package optimizer rewrites a prompt according to a mode or custom style and
// releases the result as a paced character stream.
package optimizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"promptlab/internal/configstore"
	"promptlab/internal/failure"
	"promptlab/internal/modes"
	"promptlab/internal/upstream/gemini"
)

const (
	Temperature     = 0.7
	MaxOutputTokens = 2048

	// DefaultStreamDelay is the pause between two emitted characters.
	DefaultStreamDelay = 20 * time.Millisecond

	// FallbackMessage is shown in place of a result the provider failed to return.
	FallbackMessage = "Failed to optimize prompt"

	// CustomModeID labels requests driven by a custom style with no mode selected.
	CustomModeID = "custom"
)

type Generator interface {
	GenerateContent(ctx context.Context, apiKey string, req gemini.GenerateContentRequest) (gemini.GenerateContentResponse, error)
}

type Input struct {
	Prompt      string
	Mode        string
	CustomStyle string
}

// Request is the resolved form of an Input, as sent upstream.
type Request struct {
	OriginalPrompt       string
	EffectiveInstruction string
	ModeID               string
}

type Result struct {
	Text string
}

type Option func(*Service)

// WithStreamDelay overrides DefaultStreamDelay. A zero delay emits as fast as the
// consumer allows.
func WithStreamDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.streamDelay = d
		}
	}
}

type Service struct {
	client      Generator
	configs     configstore.Source
	catalog     *modes.Catalog
	streamDelay time.Duration
}

func New(client Generator, configs configstore.Source, catalog *modes.Catalog, opts ...Option) *Service {
	if catalog == nil {
		catalog = modes.Builtin()
	}
	s := &Service{
		client:      client,
		configs:     configs,
		catalog:     catalog,
		streamDelay: DefaultStreamDelay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// ResolveInstruction picks the instruction text for a request: a non-empty custom
// style wins, then the catalog entry for mode, then the catalog default. The second
// return value is the mode id recorded for the request; it is always a catalog id
// or CustomModeID.
func (s *Service) ResolveInstruction(customStyle, mode string) (string, string) {
	mode = strings.TrimSpace(mode)
	if style := strings.TrimSpace(customStyle); style != "" {
		if _, ok := s.catalog.InstructionFor(mode); !ok {
			mode = CustomModeID
		}
		return style, mode
	}
	if instruction, ok := s.catalog.InstructionFor(mode); ok {
		return instruction, mode
	}
	defaultMode := s.catalog.Default()
	instruction, _ := s.catalog.InstructionFor(defaultMode)
	return instruction, defaultMode
}

// Optimize performs the generation call and returns a stream over the full result.
// Nothing is sent upstream when the prompt is blank or no API key is configured.
func (s *Service) Optimize(ctx context.Context, in Input) (*Stream, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, failure.Validation("prompt required")
	}

	instruction, modeID := s.ResolveInstruction(in.CustomStyle, in.Mode)
	req := Request{
		OriginalPrompt:       in.Prompt,
		EffectiveInstruction: instruction,
		ModeID:               modeID,
	}

	cfg, ok := s.configs.Load(ctx)
	if !ok || !cfg.Configured() {
		return nil, failure.NotConfiguredError()
	}

	resp, err := s.client.GenerateContent(ctx, cfg.APIKey, gemini.TextRequest(
		BuildPrompt(req.EffectiveInstruction, req.OriginalPrompt),
		gemini.GenerationConfig{Temperature: Temperature, MaxOutputTokens: MaxOutputTokens},
	))
	if err != nil {
		return nil, gemini.AsFailure(err, FallbackMessage)
	}

	return newStream(ctx, req, resp.Text, s.streamDelay), nil
}

// BuildPrompt assembles the single text part sent to the provider.
func BuildPrompt(instruction, originalPrompt string) string {
	return fmt.Sprintf("%s\n\nOriginal prompt to optimize: \"%s\"\n\nPlease provide only the optimized prompt without any additional explanation or formatting.", instruction, originalPrompt)
}
