package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hubenschmidt/go-orchestra"
	"github.com/hubenschmidt/go-orchestra/cache"
	"github.com/hubenschmidt/go-orchestra/config"
	"github.com/hubenschmidt/go-orchestra/logging"
	"github.com/hubenschmidt/go-orchestra/server"
)

var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "orchestra-server",
		Short: "Tool-calling chat and multi-agent routing gateway",
		Long: `orchestra-server answers chat turns with an OpenAI-compatible model that can
call tools, and routes messages between a smart-agent backend and a supreme
orchestrator. Conversations are stored in SQLite or PostgreSQL.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default ./config.yaml if present)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "tools",
		Short: "Print the tool declarations offered to the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			registry := orchestra.NewRegistry(cfg, cache.NewMemory(1, time.Minute), zerolog.Nop())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(server.ListTools(registry))
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "orchestra-server %s\n", version)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	app, err := orchestra.Build(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn().Err(err).Msg("close failed")
		}
	}()

	if cfg.LLM.APIKey == "" {
		logger.Warn().Msg("ASI1_API_KEY not set, chat completions will fail")
	}
	if cfg.Agentverse.APIKey == "" {
		logger.Warn().Msg("AGENTVERSE_API_KEY not set, agent search will report not configured")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("version", version).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
