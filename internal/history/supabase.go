package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"promptlab/internal/failure"
)

// supabaseRepo talks to the PostgREST interface of a Supabase project.
type supabaseRepo struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type reqConfig struct {
	Method   string
	URL      string
	Body     []byte
	Prefer   string
	Expected int
}

func newSupabaseRepo(baseURL, apiKey string, httpClient *http.Client) supabaseRepo {
	return supabaseRepo{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: httpClient,
	}
}

func (r supabaseRepo) tableURL() string {
	return r.baseURL + "/rest/v1/" + Table
}

func (r supabaseRepo) insert(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = request[[]Record](ctx, r, reqConfig{
		Method:   http.MethodPost,
		URL:      r.tableURL(),
		Body:     body,
		Prefer:   "return=minimal",
		Expected: http.StatusCreated,
	})
	return err
}

func (r supabaseRepo) list(ctx context.Context, limit int) ([]Record, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("order", "created_at.desc")
	query.Set("limit", strconv.Itoa(limit))

	records, err := request[[]Record](ctx, r, reqConfig{
		Method:   http.MethodGet,
		URL:      r.tableURL() + "?" + query.Encode(),
		Expected: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}
	if records == nil {
		return []Record{}, nil
	}
	return *records, nil
}

func request[T any](ctx context.Context, r supabaseRepo, cfg reqConfig) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, bytes.NewReader(cfg.Body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Accept", "application/json")
	if cfg.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cfg.Prefer != "" {
		req.Header.Set("Prefer", cfg.Prefer)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, failure.Wrap(failure.UpstreamError, "history request failed", "Check the Supabase URL", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != cfg.Expected {
		return nil, failure.Upstream(resp.StatusCode, fmt.Errorf("history: %s", strings.TrimSpace(string(body))))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var t T
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, failure.Malformed("unexpected history response", err)
	}
	return &t, nil
}
