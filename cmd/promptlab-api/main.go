package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"promptlab/internal/config"
	"promptlab/internal/configstore"
	"promptlab/internal/explainer"
	"promptlab/internal/history"
	"promptlab/internal/httpapi"
	"promptlab/internal/modes"
	"promptlab/internal/observability"
	"promptlab/internal/optimizer"
	"promptlab/internal/upstream/gemini"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(os.Stdout, cfg.LogLevel)
	metrics := observability.NewMetrics()

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("config store unavailable", "store", cfg.ConfigStore, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	catalog := modes.Builtin()
	if cfg.ModesFile != "" {
		catalog, err = modes.LoadFile(cfg.ModesFile)
		if err != nil {
			logger.Error("mode catalog invalid", "path", cfg.ModesFile, "error", err)
			os.Exit(1)
		}
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	upstreamHTTPClient := &http.Client{Timeout: cfg.RequestTimeout, Transport: transport}
	upstreamClient := gemini.New(cfg.UpstreamBaseURL, cfg.Model, upstreamHTTPClient, gemini.WithObserver(metrics.ObserveUpstream))

	configs := configstore.WithRequestOverride(store)
	optimizerService := optimizer.New(upstreamClient, configs, catalog, optimizer.WithStreamDelay(cfg.StreamDelay))
	explainerService := explainer.New(upstreamClient, configs, catalog, cfg.ExplainTimeout)
	historyService := history.New(store, upstreamHTTPClient)

	handler := httpapi.NewServer(cfg, logger, httpapi.Dependencies{
		Optimizer:      optimizerService,
		Explainer:      explainerService,
		History:        historyService,
		Store:          store,
		Configs:        configs,
		Catalog:        catalog,
		Upstream:       upstreamClient,
		Metrics:        metrics,
		MetricsHandler: metrics.Handler(),
	})

	// No WriteTimeout: optimization responses stream for as long as the text takes.
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.ListenAddr, "model", cfg.Model, "store", cfg.ConfigStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func openStore(cfg config.Config, logger *slog.Logger) (configstore.Store, func(), error) {
	if cfg.ConfigStore == config.StoreRedis {
		rdb, err := configstore.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return configstore.NewRedisStore(rdb, logger), func() { _ = rdb.Close() }, nil
	}

	path := cfg.ConfigPath
	if path == "" {
		var err error
		path, err = configstore.DefaultPath()
		if err != nil {
			return nil, nil, err
		}
	}
	logger.Info("using file config store", "path", path)
	return configstore.NewFileStore(path, logger), func() {}, nil
}
