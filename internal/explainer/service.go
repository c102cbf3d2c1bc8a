// Package explainer critiques a prompt rewrite.
package explainer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"promptlab/internal/configstore"
	"promptlab/internal/failure"
	"promptlab/internal/modes"
	"promptlab/internal/upstream/gemini"
)

const (
	Temperature     = 0.4
	MaxOutputTokens = 1024

	FallbackMessage = "Failed to explain prompt"
)

const instructionTemplate = `You are reviewing a prompt rewrite.

The rewrite was produced with this instruction:
%s

ORIGINAL_PROMPT: %q

OPTIMIZED_PROMPT: %q

Compare the two prompts and respond with a single JSON object with exactly these keys:
- "strengths": what the optimized prompt does better than the original
- "weaknesses": what is still weak or was lost in the rewrite
- "improvements": concrete changes the rewrite made
- "tips": advice for writing similar prompts

Each value is an array of short strings. Return only the JSON object.`

type Generator interface {
	GenerateContent(ctx context.Context, apiKey string, req gemini.GenerateContentRequest) (gemini.GenerateContentResponse, error)
}

type Input struct {
	OriginalPrompt  string
	OptimizedPrompt string
	Mode            string
}

type Result struct {
	Strengths    []string
	Weaknesses   []string
	Improvements []string
	Tips         []string
}

type Service struct {
	client  Generator
	configs configstore.Source
	catalog *modes.Catalog
	timeout time.Duration
}

// New builds the service. A non-positive timeout leaves the caller's deadline as is.
func New(client Generator, configs configstore.Source, catalog *modes.Catalog, timeout time.Duration) *Service {
	if catalog == nil {
		catalog = modes.Builtin()
	}
	return &Service{
		client:  client,
		configs: configs,
		catalog: catalog,
		timeout: timeout,
	}
}

func (s *Service) Explain(ctx context.Context, in Input) (Result, error) {
	if strings.TrimSpace(in.OriginalPrompt) == "" {
		return Result{}, failure.Validation("original prompt required")
	}
	if strings.TrimSpace(in.OptimizedPrompt) == "" {
		return Result{}, failure.Validation("optimized prompt required")
	}

	cfg, ok := s.configs.Load(ctx)
	if !ok || !cfg.Configured() {
		return Result{}, failure.NotConfiguredError()
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.client.GenerateContent(ctx, cfg.APIKey, gemini.TextRequest(
		s.buildPrompt(in),
		gemini.GenerationConfig{
			Temperature:      Temperature,
			MaxOutputTokens:  MaxOutputTokens,
			ResponseMIMEType: "application/json",
		},
	))
	if err != nil {
		return Result{}, gemini.AsFailure(err, FallbackMessage)
	}

	result, err := parseExplanation(resp.Text)
	if err != nil {
		return Result{}, failure.Malformed(FallbackMessage, err)
	}
	return result, nil
}

func (s *Service) buildPrompt(in Input) string {
	instruction, ok := s.catalog.InstructionFor(in.Mode)
	if !ok {
		instruction = "a custom style supplied by the user"
	}
	return fmt.Sprintf(instructionTemplate, instruction, in.OriginalPrompt, in.OptimizedPrompt)
}

// parseExplanation decodes the model's JSON answer. All four arrays must be present;
// an empty array is accepted. A surrounding markdown code fence is tolerated.
func parseExplanation(text string) (Result, error) {
	var parsed struct {
		Strengths    *[]string `json:"strengths"`
		Weaknesses   *[]string `json:"weaknesses"`
		Improvements *[]string `json:"improvements"`
		Tips         *[]string `json:"tips"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &parsed); err != nil {
		return Result{}, fmt.Errorf("invalid explanation JSON: %w", err)
	}

	fields := []struct {
		name  string
		value *[]string
	}{
		{"strengths", parsed.Strengths},
		{"weaknesses", parsed.Weaknesses},
		{"improvements", parsed.Improvements},
		{"tips", parsed.Tips},
	}
	for _, f := range fields {
		if f.value == nil {
			return Result{}, fmt.Errorf("missing %s", f.name)
		}
	}

	return Result{
		Strengths:    cleanItems(*parsed.Strengths),
		Weaknesses:   cleanItems(*parsed.Weaknesses),
		Improvements: cleanItems(*parsed.Improvements),
		Tips:         cleanItems(*parsed.Tips),
	}, nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

func cleanItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
