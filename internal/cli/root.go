// Package cli implements the promptlab command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"promptlab/internal/config"
	"promptlab/internal/configstore"
	"promptlab/internal/explainer"
	"promptlab/internal/failure"
	"promptlab/internal/history"
	"promptlab/internal/modes"
	"promptlab/internal/observability"
	"promptlab/internal/optimizer"
	"promptlab/internal/upstream/gemini"
)

var (
	// Version is set at build time.
	Version = "dev"

	successIcon = color.New(color.FgGreen).Sprint("✓")
	warningIcon = color.New(color.FgYellow).Sprint("⚠")
	errorIcon   = color.New(color.FgRed).Sprint("✗")

	success = color.New(color.FgGreen).SprintFunc()
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
	info    = color.New(color.FgCyan).SprintFunc()
	dim     = color.New(color.Faint).SprintFunc()
)

type globalOptions struct {
	configPath string
	logLevel   string
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "promptlab",
		Short: "Rewrite prompts with Gemini",
		Long: `PromptLab rewrites a prompt according to a named mode or a custom style
using the Google Gemini API, and explains what the rewrite changed.

The Google API key is stored locally with 'promptlab configure'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the stored configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(NewConfigureCmd(opts))
	rootCmd.AddCommand(NewOptimizeCmd(opts))
	rootCmd.AddCommand(NewExplainCmd(opts))
	rootCmd.AddCommand(NewModesCmd(opts))
	rootCmd.AddCommand(NewHistoryCmd(opts))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "promptlab %s\n", Version)
		},
	}
}

// Execute runs the CLI.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		return err
	}
	return nil
}

// printError prints err and, when it carries one, its hint.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %s\n", errorIcon, err.Error())
	if hint := failure.HintOf(err); hint != "" {
		fmt.Fprintf(w, "  %s\n", dim(hint))
	}
}

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", successIcon, fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", warningIcon, fmt.Sprintf(format, args...))
}

func printInfo(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s: %s\n", dim(label), value)
}

// app holds the services a command runs against.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     configstore.Store
	location  string
	closers   []func() error
	catalog   *modes.Catalog
	optimizer *optimizer.Service
	explainer *explainer.Service
	history   *history.Service
}

func newApp(ctx context.Context, opts *globalOptions, stderr io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	a := &app{
		cfg:    cfg,
		logger: observability.NewLogger(stderr, opts.logLevel),
	}

	switch cfg.ConfigStore {
	case config.StoreRedis:
		rdb, err := configstore.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.store = configstore.NewRedisStore(rdb, a.logger)
		a.location = "redis key " + configstore.StorageKey
		a.closers = append(a.closers, rdb.Close)
	default:
		path := opts.configPath
		if path == "" {
			path = cfg.ConfigPath
		}
		if path == "" {
			path, err = configstore.DefaultPath()
			if err != nil {
				return nil, fmt.Errorf("resolve config path: %w", err)
			}
		}
		fs := configstore.NewFileStore(path, a.logger)
		a.store = fs
		a.location = fs.Path()
	}

	a.catalog = modes.Builtin()
	if cfg.ModesFile != "" {
		a.catalog, err = modes.LoadFile(cfg.ModesFile)
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	client := gemini.New(cfg.UpstreamBaseURL, cfg.Model, httpClient)
	a.optimizer = optimizer.New(client, a.store, a.catalog, optimizer.WithStreamDelay(cfg.StreamDelay))
	a.explainer = explainer.New(client, a.store, a.catalog, cfg.ExplainTimeout)
	a.history = history.New(a.store, httpClient)
	return a, nil
}

func (a *app) Close() {
	for _, closeFn := range a.closers {
		_ = closeFn()
	}
}
