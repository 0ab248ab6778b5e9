// Command tiled runs the Tile Service (spec §2 "Tile Service (T)"): it
// consumes the I->T event channel, maintains the TileCache and
// UpdateBatcher, and fans batches out to connected viewer websockets.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/voxelmap/pipeline/internal/config"
	"github.com/voxelmap/pipeline/internal/tile/batcher"
	"github.com/voxelmap/pipeline/internal/tile/blocks"
	"github.com/voxelmap/pipeline/internal/tile/cache"
	"github.com/voxelmap/pipeline/internal/tile/clients"
	"github.com/voxelmap/pipeline/internal/tile/dashboard"
	"github.com/voxelmap/pipeline/internal/tile/fanout"
	"github.com/voxelmap/pipeline/internal/tile/ingestlink"
	"github.com/voxelmap/pipeline/internal/tile/ingestsource"
	"github.com/voxelmap/pipeline/internal/tile/metrics"
	"github.com/voxelmap/pipeline/internal/tile/processor"
	"github.com/voxelmap/pipeline/internal/tile/server"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var useDashboard bool

	cmd := &cobra.Command{
		Use:   "tiled",
		Short: "Tile Service: caches and fans out minimap tiles to viewer clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, useDashboard)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a tiled config file (koanf-compatible)")
	cmd.Flags().BoolVar(&useDashboard, "dashboard", false, "run an interactive stats dashboard instead of plain console logs")
	return cmd
}

// statsSource adapts the live cache/batcher/clients into dashboard.Source.
type statsSource struct {
	cache   *cache.Cache
	batcher *batcher.Batcher
	clients *clients.Manager
	start   time.Time
}

func (s *statsSource) Snapshot() dashboard.Snapshot {
	return dashboard.Snapshot{
		Cache:            s.cache.Stats(),
		BatcherPending:   s.batcher.PendingCount(),
		ConnectedViewers: len(s.clients.ConnIDs()),
		Uptime:           time.Since(s.start),
	}
}

func run(ctx context.Context, configPath string, useDashboard bool) error {
	cfg, err := config.LoadTile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logLevel, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	c := cache.New(cfg.CacheSize)
	b := batcher.New()
	cm := clients.New()
	proc := processor.New(blocks.DefaultRegistry())

	start := time.Now()
	stats := &statsSource{cache: c, batcher: b, clients: cm, start: start}

	var dashProgram *tea.Program
	var logWriter io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	if useDashboard {
		var dashWriter io.Writer
		dashProgram, dashWriter = dashboard.Start(stats, time.Second)
		logWriter = dashWriter
	}
	log := zerolog.New(logWriter).Level(logLevel).With().Timestamp().Str("service", "tiled").Logger()

	outbox := server.NewOutbox()
	loop := fanout.New(c, b, cm, outbox, m, fanout.Config{
		TickInterval:  cfg.TickInterval,
		MaxBatchSize:  cfg.BatchSize,
		HighWaterMark: fanout.DefaultConfig().HighWaterMark,
	}, log.With().Str("component", "fanout").Logger())

	srv := server.New(cm, c, loop, outbox, log.With().Str("component", "server").Logger(), server.WithCORSOrigins(cfg.CORSOrigins))

	link := ingestlink.New(proc, c, b, loop, outbox, m, log.With().Str("component", "ingestlink").Logger())
	source := ingestsource.New(cfg.IngestURL, log.With().Str("component", "ingestsource").Logger())

	mux := http.NewServeMux()
	mux.Handle("/", srv.Router())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	errCh := make(chan error, 3)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("tile service listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("tile http server: %w", err)
		}
	}()
	go func() {
		errCh <- link.Run(ctx, source)
	}()
	go func() {
		stop := make(chan struct{})
		go func() {
			<-ctx.Done()
			close(stop)
		}()
		loop.Run(stop)
		errCh <- nil
	}()
	go gcLoop(ctx, cm)

	if dashProgram != nil {
		go func() {
			<-ctx.Done()
			dashProgram.Quit()
		}()
		go func() {
			if _, err := dashProgram.Run(); err != nil {
				errCh <- fmt.Errorf("dashboard: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("fatal error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
	return nil
}

// gcLoop periodically drops sent-state entries older than the reconnect
// grace period (spec §4.5 "gc_old_sent", §5 "grace period expires (default
// 5 minutes)").
func gcLoop(ctx context.Context, cm *clients.Manager) {
	const gracePeriod = 5 * time.Minute
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cm.GCOldSent(gracePeriod)
		}
	}
}

