package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrMalformedResponse is returned when a success response does not carry the
// expected candidate text.
var ErrMalformedResponse = errors.New("malformed generateContent response")

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

type ObserverFunc func(endpoint string, status int, duration time.Duration)

type Option func(*Client)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	observer   ObserverFunc
}

type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream request failed with status %d", e.StatusCode)
}

type TokenUsage struct {
	PromptTokens    int
	CandidateTokens int
	TotalTokens     int
}

type Part struct {
	Text string `json:"text"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type GenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type GenerateContentRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

// TextRequest builds a request holding a single user text part.
func TextRequest(text string, cfg GenerationConfig) GenerateContentRequest {
	return GenerateContentRequest{
		Contents:         []Content{{Parts: []Part{{Text: text}}}},
		GenerationConfig: cfg,
	}
}

type GenerateContentResponse struct {
	Text         string
	FinishReason string
	Usage        *TokenUsage
}

func WithObserver(observer ObserverFunc) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

func New(baseURL, model string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      strings.TrimSpace(model),
		httpClient: httpClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Model returns the model every request is sent to.
func (c *Client) Model() string {
	return c.model
}

// GenerateContent sends one generateContent call. The API key travels as the key
// query parameter.
func (c *Client) GenerateContent(ctx context.Context, apiKey string, reqPayload GenerateContentRequest) (GenerateContentResponse, error) {
	started := time.Now()
	statusCode := 0
	defer func() { c.observe("generate_content", statusCode, time.Since(started)) }()

	payload, err := json.Marshal(reqPayload)
	if err != nil {
		return GenerateContentResponse{}, err
	}

	endpoint := c.baseURL + "/models/" + url.PathEscape(c.model) + ":generateContent?key=" + url.QueryEscape(strings.TrimSpace(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return GenerateContentResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return GenerateContentResponse{}, redactKey(err)
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return GenerateContentResponse{}, err
	}
	if len(respBody) > maxResponseBytes {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return GenerateContentResponse{}, &Error{StatusCode: resp.StatusCode, Body: truncateBody(string(respBody))}
		}
		return GenerateContentResponse{}, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedResponse, maxResponseBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return GenerateContentResponse{}, &Error{StatusCode: resp.StatusCode, Body: truncateBody(string(respBody))}
	}

	return parseGenerateContent(respBody)
}

// ListModels checks that the API key is accepted.
func (c *Client) ListModels(ctx context.Context, apiKey string) error {
	started := time.Now()
	statusCode := 0
	defer func() { c.observe("models", statusCode, time.Since(started)) }()

	endpoint := c.baseURL + "/models?pageSize=1&key=" + url.QueryEscape(strings.TrimSpace(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return redactKey(err)
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return &Error{StatusCode: resp.StatusCode, Body: truncateBody(string(body))}
	}
	return nil
}

func (c *Client) observe(endpoint string, status int, duration time.Duration) {
	if c.observer != nil {
		c.observer(endpoint, status, duration)
	}
}

// parseGenerateContent reads candidates[0].content.parts[0].text. Every level must be
// present; nothing is defaulted.
func parseGenerateContent(data []byte) (GenerateContentResponse, error) {
	var parsed struct {
		Candidates []struct {
			Content *struct {
				Parts []struct {
					Text *string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		UsageMetadata *struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
			TotalTokenCount      int `json:"totalTokenCount"`
		} `json:"usageMetadata,omitempty"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return GenerateContentResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Candidates) == 0 {
		return GenerateContentResponse{}, fmt.Errorf("%w: missing candidates", ErrMalformedResponse)
	}
	candidate := parsed.Candidates[0]
	if candidate.Content == nil {
		return GenerateContentResponse{}, fmt.Errorf("%w: missing candidates[0].content", ErrMalformedResponse)
	}
	if len(candidate.Content.Parts) == 0 {
		return GenerateContentResponse{}, fmt.Errorf("%w: missing candidates[0].content.parts", ErrMalformedResponse)
	}
	text := candidate.Content.Parts[0].Text
	if text == nil || *text == "" {
		return GenerateContentResponse{}, fmt.Errorf("%w: missing candidates[0].content.parts[0].text", ErrMalformedResponse)
	}

	resp := GenerateContentResponse{Text: *text, FinishReason: candidate.FinishReason}
	if parsed.UsageMetadata != nil {
		resp.Usage = &TokenUsage{
			PromptTokens:    parsed.UsageMetadata.PromptTokenCount,
			CandidateTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:     parsed.UsageMetadata.TotalTokenCount,
		}
	}
	return resp, nil
}

// redactKey drops the query string, which carries the API key, from transport errors.
func redactKey(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if i := strings.IndexByte(urlErr.URL, '?'); i >= 0 {
			urlErr.URL = urlErr.URL[:i]
		}
	}
	return err
}

func truncateBody(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4096 {
		return s
	}
	return s[:4096] + "..."
}
