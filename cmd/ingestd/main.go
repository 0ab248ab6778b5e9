// Command ingestd runs the Ingest Service (spec §2 "Ingest Service (I)"):
// it connects to the upstream game relay, maintains the in-memory World,
// and serves the I->T event channel for the Tile Service to dial into.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/voxelmap/pipeline/internal/config"
	"github.com/voxelmap/pipeline/internal/ingest/downstream"
	"github.com/voxelmap/pipeline/internal/ingest/relay"
	"github.com/voxelmap/pipeline/internal/ingest/session"
	"github.com/voxelmap/pipeline/internal/ingest/world"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ingestd",
		Short: "Ingest Service: decodes upstream world packets and serves the I->T event channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to an ingestd config file (koanf-compatible)")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadIngest(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logLevel := zerolog.InfoLevel
	if cfg.DebugLogging {
		logLevel = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(logLevel).
		With().Timestamp().Str("service", "ingestd").Logger()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := world.New()
	ds := downstream.New(log.With().Str("component", "downstream").Logger())

	relayURL := fmt.Sprintf("ws://%s:%d/relay", cfg.MinecraftServerHost, cfg.MinecraftServerPort)
	if cfg.RelayEnabled {
		relayURL = fmt.Sprintf("ws://%s:%d/relay", cfg.RelayHost, cfg.RelayPort)
	}
	rel := relay.New(relayURL)

	sess := session.New(w, rel, ds, session.Config{
		AutoReconnect:     cfg.AutoReconnect,
		ReconnectInterval: cfg.ReconnectInterval,
	}, log.With().Str("component", "session").Logger())

	httpSrv := &http.Server{
		Addr:    cfg.DownstreamListen,
		Handler: ds.Router(),
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.DownstreamListen).Msg("downstream server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("downstream server: %w", err)
		}
	}()
	go func() {
		errCh <- sess.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("fatal error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
	return nil
}
