package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"promptlab/internal/config"
	"promptlab/internal/configstore"
	"promptlab/internal/explainer"
	"promptlab/internal/failure"
	"promptlab/internal/history"
	"promptlab/internal/model"
	"promptlab/internal/modes"
	"promptlab/internal/optimizer"
	"promptlab/internal/upstream/gemini"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Optimizer interface {
	Optimize(ctx context.Context, in optimizer.Input) (*optimizer.Stream, error)
}

type Explainer interface {
	Explain(ctx context.Context, in explainer.Input) (explainer.Result, error)
}

type HistoryService interface {
	Record(ctx context.Context, rec history.Record) error
	List(ctx context.Context, limit int) ([]history.Record, error)
}

type ReadinessChecker interface {
	ListModels(ctx context.Context, apiKey string) error
}

type MetricsObserver interface {
	ObserveHTTP(route, method string, status int, duration time.Duration)
	IncOptimization(mode string)
	IncStreamCancelled()
	IncHistoryFailure()
}

type Dependencies struct {
	Optimizer Optimizer
	Explainer Explainer
	History   HistoryService
	// Store is the persisted record behind GET and PUT /config.
	Store configstore.Store
	// Configs is the source pipelines read from. Defaults to Store with the
	// per-request key override applied.
	Configs        configstore.Source
	Catalog        *modes.Catalog
	Upstream       ReadinessChecker
	Metrics        MetricsObserver
	MetricsHandler http.Handler
}

type server struct {
	cfg          config.Config
	logger       *slog.Logger
	optimizer    Optimizer
	explainer    Explainer
	history      HistoryService
	store        configstore.Store
	configs      configstore.Source
	catalog      *modes.Catalog
	upstream     ReadinessChecker
	metrics      MetricsObserver
	metricsRoute http.Handler
}

type ctxKey string

const (
	requestIDHeader     = "X-Request-Id"
	requestIDContext    = ctxKey("request_id")
	maxJSONBodyBytes    = 1 << 20
	historyWriteTimeout = 10 * time.Second
	statusClientClosed  = 499
)

func NewServer(cfg config.Config, logger *slog.Logger, deps Dependencies) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Optimizer == nil || deps.Explainer == nil || deps.History == nil || deps.Store == nil || deps.Upstream == nil {
		panic("httpapi: all dependencies are required")
	}
	if deps.Configs == nil {
		deps.Configs = configstore.WithRequestOverride(deps.Store)
	}
	if deps.Catalog == nil {
		deps.Catalog = modes.Builtin()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		optimizer:    deps.Optimizer,
		explainer:    deps.Explainer,
		history:      deps.History,
		store:        deps.Store,
		configs:      deps.Configs,
		catalog:      deps.Catalog,
		upstream:     deps.Upstream,
		metrics:      deps.Metrics,
		metricsRoute: deps.MetricsHandler,
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.authMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.metricsRoute != nil {
		r.Handle("/metrics", s.metricsRoute)
	}

	r.Post("/optimize-prompt", s.handleOptimize)
	r.Post("/explain-prompt", s.handleExplain)
	r.Get("/prompt-history", s.handleHistory)
	r.Get("/modes", s.handleModes)
	r.Get("/config", s.handleGetConfig)
	r.Put("/config", s.handlePutConfig)

	return r
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{OK: true})
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.configs.Load(r.Context())
	if !ok || !cfg.Configured() {
		writeJSON(w, http.StatusOK, model.ReadyResponse{OK: true, ServiceName: "PromptLab"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.upstream.ListModels(ctx, cfg.APIKey); err != nil {
		s.writeError(w, r, http.StatusServiceUnavailable, "not_ready", "upstream check failed", detailsForError(err))
		return
	}
	writeJSON(w, http.StatusOK, model.ReadyResponse{OK: true, ServiceName: "PromptLab"})
}

func (s *server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req model.OptimizeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	stream, err := s.optimizer.Optimize(r.Context(), optimizer.Input{
		Prompt:      req.Prompt,
		Mode:        req.Mode,
		CustomStyle: req.CustomStyle,
	})
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	defer stream.Cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	for chunk := range stream.Chunks() {
		if _, err := io.WriteString(w, chunk); err != nil {
			stream.Cancel()
			break
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			stream.Cancel()
			break
		}
	}

	result, err := stream.Wait()
	resolved := stream.Request()
	if err != nil {
		s.metrics.IncStreamCancelled()
		s.logger.Info("optimization_stream_cancelled",
			"request_id", requestIDFromContext(r.Context()),
			"mode", resolved.ModeID,
			"error", err,
		)
		return
	}
	s.metrics.IncOptimization(resolved.ModeID)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), historyWriteTimeout)
	defer cancel()
	if err := s.history.Record(ctx, history.Record{
		OriginalPrompt:  resolved.OriginalPrompt,
		OptimizedPrompt: result.Text,
		Mode:            resolved.ModeID,
		Instruction:     resolved.EffectiveInstruction,
	}); err != nil {
		s.metrics.IncHistoryFailure()
		s.logger.Warn("history_write_failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
	}
}

func (s *server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req model.ExplainRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.explainer.Explain(r.Context(), explainer.Input{
		OriginalPrompt:  req.OriginalPrompt,
		OptimizedPrompt: req.OptimizedPrompt,
		Mode:            req.Mode,
	})
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ExplainResponse{
		Strengths:    nonNil(result.Strengths),
		Weaknesses:   nonNil(result.Weaknesses),
		Improvements: nonNil(result.Improvements),
		Tips:         nonNil(result.Tips),
	})
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.HistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid_request", "limit must be an integer", nil)
			return
		}
		limit = parsed
	}

	records, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	out := make([]model.HistoryRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, model.HistoryRecord{
			ID:              rec.ID.String(),
			OriginalPrompt:  rec.OriginalPrompt,
			OptimizedPrompt: rec.OptimizedPrompt,
			Mode:            rec.Mode,
			Instruction:     rec.Instruction,
			CreatedAt:       rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleModes(w http.ResponseWriter, r *http.Request) {
	all := s.catalog.Modes()
	infos := make([]model.ModeInfo, 0, len(all))
	for _, m := range all {
		infos = append(infos, model.ModeInfo{
			ID:          m.ID,
			Label:       modes.Label(m.ID),
			Instruction: m.Instruction,
			Popular:     m.Popular,
		})
	}
	writeJSON(w, http.StatusOK, model.ModesResponse{
		Default: s.catalog.Default(),
		Popular: s.catalog.ListPopular(),
		Modes:   infos,
	})
}

func (s *server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.store.Load(r.Context())
	writeJSON(w, http.StatusOK, model.ConfigStatus{
		Configured: ok && cfg.Configured(),
		Auxiliary:  ok && cfg.HasAuxiliary(),
	})
}

func (s *server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var req model.SaveConfigRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	cfg := configstore.Configuration{
		APIKey:            strings.TrimSpace(req.GoogleAPIKey),
		AuxiliaryEndpoint: strings.TrimSpace(req.SupabaseURL),
		AuxiliaryKey:      strings.TrimSpace(req.SupabaseKey),
	}
	if err := cfg.Validate(); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	if err := s.store.Save(r.Context(), cfg); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() { _ = r.Body.Close() }()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		s.handleJSONDecodeError(w, r, err)
		return false
	}
	if err := ensureBodyFullyConsumed(decoder); err != nil {
		s.handleJSONDecodeError(w, r, err)
		return false
	}
	return true
}

func (s *server) handleJSONDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "request_too_large", "JSON body too large", nil)
		return
	}
	s.writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
}

func (s *server) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := "request failed"
	details := detailsForError(err)

	var fe *failure.Error
	if errors.As(err, &fe) {
		message = fe.Message
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		code = "timeout"
		message = "request timed out"
	case errors.Is(err, context.Canceled):
		status = statusClientClosed
		code = "canceled"
		message = "request canceled"
	default:
		switch failure.KindOf(err) {
		case failure.ValidationError:
			status = http.StatusBadRequest
			code = "invalid_request"
		case failure.NotConfigured:
			status = http.StatusPreconditionRequired
			code = "not_configured"
		case failure.UpstreamError:
			status = http.StatusBadGateway
			code = "upstream_request_failed"
		case failure.UpstreamMalformed:
			status = http.StatusBadGateway
			code = "upstream_malformed"
		case failure.PersistenceError:
			status = http.StatusInternalServerError
			code = "persistence_error"
		}
	}

	if rid := requestIDFromContext(r.Context()); rid != "" {
		w.Header().Set(requestIDHeader, rid)
	}
	writeJSON(w, status, model.ErrorResponse{
		Error: model.APIError{
			Code:    code,
			Message: message,
			Hint:    failure.HintOf(err),
			Details: details,
		},
		RequestID: requestIDFromContext(r.Context()),
	})
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	if rid := requestIDFromContext(r.Context()); rid != "" {
		w.Header().Set(requestIDHeader, rid)
	}
	writeJSON(w, status, model.ErrorResponse{
		Error:     model.APIError{Code: code, Message: message, Details: details},
		RequestID: requestIDFromContext(r.Context()),
	})
}

func (s *server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = newRequestID()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDContext, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		duration := time.Since(started)
		s.metrics.ObserveHTTP(route, r.Method, status, duration)

		s.logger.Info("http_request",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds(),
		)
	})
}

func (s *server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "request_id", requestIDFromContext(r.Context()), "panic", rec)
				s.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware accepts an optional bearer Gemini key that replaces the stored one
// for the duration of the request.
func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, hasHeader, ok := extractBearerToken(r.Header.Get("Authorization"))
		if hasHeader && !ok {
			s.writeError(w, r, http.StatusUnauthorized, "unauthorized", "Authorization must be Bearer <google_api_key>", nil)
			return
		}
		if token != "" {
			r = r.WithContext(configstore.WithRequestAPIKey(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func ensureBodyFullyConsumed(decoder *json.Decoder) error {
	var extra any
	if err := decoder.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("multiple JSON values")
		}
		return err
	}
	return nil
}

func requestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDContext).(string)
	return value
}

func extractBearerToken(header string) (token string, hasHeader bool, ok bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false, true
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", true, false
	}
	token = strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", true, false
	}
	return token, true, true
}

func newRequestID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func detailsForError(err error) map[string]any {
	if err == nil {
		return nil
	}
	details := map[string]any{"error": err.Error()}
	if status := failure.StatusCode(err); status != 0 {
		details["upstream_status"] = status
	}
	var upstreamErr *gemini.Error
	if errors.As(err, &upstreamErr) {
		details["upstream_status"] = upstreamErr.StatusCode
		if upstreamErr.Body != "" {
			details["upstream_body"] = upstreamErr.Body
		}
	}
	return details
}

type noopMetrics struct{}

func (noopMetrics) ObserveHTTP(string, string, int, time.Duration) {}
func (noopMetrics) IncOptimization(string)                         {}
func (noopMetrics) IncStreamCancelled()                            {}
func (noopMetrics) IncHistoryFailure()                             {}
