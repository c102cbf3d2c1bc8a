package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptlab/internal/configstore"
	"promptlab/internal/failure"
)

func setupEnv(t *testing.T, upstreamURL string) string {
	t.Helper()
	t.Setenv("CONFIG_STORE", "file")
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("MODES_FILE", "")
	t.Setenv("STREAM_DELAY_MS", "0")
	if upstreamURL != "" {
		t.Setenv("UPSTREAM_BASE_URL", upstreamURL)
	}
	return filepath.Join(t.TempDir(), "promptlab_config.json")
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func saveConfig(t *testing.T, path string, cfg configstore.Configuration) {
	t.Helper()
	store := configstore.NewFileStore(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, store.Save(context.Background(), cfg))
}

func geminiServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	require.NoError(t, err)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRootCmdHasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"configure", "optimize", "explain", "modes", "history", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestConfigureSavesRecord(t *testing.T) {
	path := setupEnv(t, "")

	stdout, _, err := runCLI(t, "--config", path, "configure", "--api-key", "  test-key  ", "--aux-url", "https://x.supabase.co", "--aux-key", "anon")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration saved")

	store := configstore.NewFileStore(path, nil)
	cfg, ok := store.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, "test-key", cfg.APIKey)
	assert.True(t, cfg.HasAuxiliary())
}

func TestConfigureRejectsBlankKey(t *testing.T) {
	path := setupEnv(t, "")

	_, _, err := runCLI(t, "--config", path, "configure", "--api-key", "   ")

	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.ValidationError))
}

func TestConfigureWithoutKeyPrintsStatus(t *testing.T) {
	path := setupEnv(t, "")

	stdout, _, err := runCLI(t, "--config", path, "configure")

	require.NoError(t, err)
	assert.Contains(t, stdout, path)
	assert.Contains(t, stdout, "API key")
}

func TestOptimizePrintsRewrite(t *testing.T) {
	ts := geminiServer(t, "A better prompt")
	path := setupEnv(t, ts.URL)
	saveConfig(t, path, configstore.Configuration{APIKey: "test-key"})

	stdout, stderr, err := runCLI(t, "--config", path, "optimize", "--mode", "deep_research", "Tell", "me", "about", "cats")

	require.NoError(t, err)
	assert.Equal(t, "A better prompt\n", stdout)
	assert.Contains(t, stderr, "Deep Research")
}

func TestOptimizeCancelledBeforeResponseIsNotAnError(t *testing.T) {
	ts := geminiServer(t, "A better prompt")
	path := setupEnv(t, ts.URL)
	saveConfig(t, path, configstore.Configuration{APIKey: "test-key"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--config", path, "optimize", "hi"})
	err := cmd.ExecuteContext(ctx)

	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "Cancelled")
	assert.Empty(t, stdout.String())
}

func TestOptimizeNotConfigured(t *testing.T) {
	path := setupEnv(t, "http://127.0.0.1:1")

	_, _, err := runCLI(t, "--config", path, "optimize", "hi")

	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.NotConfigured))
}

func TestOptimizeRequiresPrompt(t *testing.T) {
	path := setupEnv(t, "")

	_, _, err := runCLI(t, "--config", path, "optimize")

	assert.Error(t, err)
}

func TestExplainPrintsSections(t *testing.T) {
	ts := geminiServer(t, `{"strengths":["clear goal"],"weaknesses":[],"improvements":["added length"],"tips":["name the audience"]}`)
	path := setupEnv(t, ts.URL)
	saveConfig(t, path, configstore.Configuration{APIKey: "test-key"})

	stdout, _, err := runCLI(t, "--config", path, "explain", "--original", "a", "--optimized", "b", "--mode", "clarity")

	require.NoError(t, err)
	for _, want := range []string{"Strengths", "clear goal", "Weaknesses", "(none)", "added length", "name the audience"} {
		assert.Contains(t, stdout, want)
	}
}

func TestModesListsCatalog(t *testing.T) {
	path := setupEnv(t, "")

	stdout, _, err := runCLI(t, "--config", path, "modes")

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.Len(t, lines, 22)
	assert.Contains(t, stdout, "deep_research")
	assert.Contains(t, stdout, "Deep Research")
	assert.Contains(t, stdout, "(default)")
}

func TestModesPopularOnly(t *testing.T) {
	path := setupEnv(t, "")

	stdout, _, err := runCLI(t, "--config", path, "modes", "--popular")

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "clarity")
	assert.Contains(t, lines[1], "controversial")
	assert.Contains(t, lines[2], "deep_research")
}

func TestHistoryDisabledWithoutAuxiliary(t *testing.T) {
	path := setupEnv(t, "")
	saveConfig(t, path, configstore.Configuration{APIKey: "test-key"})

	stdout, _, err := runCLI(t, "--config", path, "history")

	require.NoError(t, err)
	assert.Contains(t, stdout, "History is disabled")
}
