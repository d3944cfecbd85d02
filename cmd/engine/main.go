// Package main is the entry point for the odds ingestion engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oddsbridge/engine/internal/config"
	"github.com/oddsbridge/engine/internal/detector"
	"github.com/oddsbridge/engine/internal/ingest"
	"github.com/oddsbridge/engine/internal/markets"
	"github.com/oddsbridge/engine/internal/matching"
	"github.com/oddsbridge/engine/internal/metrics"
	"github.com/oddsbridge/engine/internal/pipeline"
	"github.com/oddsbridge/engine/internal/status"
	"github.com/oddsbridge/engine/internal/store"
	"github.com/oddsbridge/engine/internal/ui"
)

// cleanupInterval is how often the metrics tracker drops stale coverage.
const cleanupInterval = 5 * time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	// Initialize structured logger
	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("oddsbridge starting",
		"version", "1.0.0",
	)

	// Secrets are only ever logged masked
	slog.Info("config_loaded",
		"feed_ws_url", cfg.FeedWSURL,
		"api_key", cfg.MaskedAPIKey(),
		"bookmaker_ids", cfg.BookmakerIDs,
		"sport_ids", cfg.SportIDs,
		"league_filter", cfg.LeagueFilter,
		"store_backend", cfg.StoreBackend,
		"odds_table", cfg.OddsTable,
		"service_key", cfg.MaskedServiceKey(),
		"write_batch_size", cfg.WriteBatchSize,
		"write_retry_schedule", cfg.WriteRetrySchedule,
		"change_ttl", cfg.ChangeTTL,
		"time_bucket", cfg.TimeBucket,
		"port", cfg.Port,
		"enable_tui", cfg.EnableTUI,
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Team matching
	var aliasFile *matching.AliasFile
	if cfg.TeamAliasesPath != "" {
		aliasFile, err = matching.LoadAliasFile(cfg.TeamAliasesPath)
		if err != nil {
			slog.Error("failed to load team aliases", "path", cfg.TeamAliasesPath, "error", err)
			return 1
		}
	}
	normalizer := matching.NewNormalizer(aliasFile)
	keys := matching.NewKeyBuilder(normalizer, cfg.TimeBucket)
	slog.Info("team_aliases_loaded", "aliases", normalizer.AliasCount())

	// Diagnostics recorders
	tracker := metrics.NewMetricsTracker()
	unmappedTeams := metrics.NewFirstSeen("unmapped_team", metrics.DefaultFirstSeenBuffer)
	unmappedCodes := metrics.NewFirstSeen("unmapped_market", metrics.DefaultFirstSeenBuffer)
	go unmappedTeams.Run(ctx, cfg.UnmappedReportEvery)
	go unmappedCodes.Run(ctx, cfg.UnmappedReportEvery)

	// Start periodic cleanup
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tracker.Cleanup()
			}
		}
	}()

	// Persistence
	upserter, err := openUpserter(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		return 1
	}
	defer upserter.Close()

	changes := detector.NewChangeDetector(cfg.ChangeTTL)
	go changes.RunSweeper(ctx)

	queue := store.NewWriteQueue(ctx, upserter, store.QueueOptions{
		BatchSize:     cfg.WriteBatchSize,
		BatchDelay:    cfg.WriteBatchDelay,
		RetrySchedule: cfg.WriteRetrySchedule,
		OnWritten:     tracker.RecordWritten,
		OnDrop: func(batch []store.OddsRecord) {
			// The next identical quote must be written again.
			changes.Forget(batch)
			tracker.RecordDropped(batch)
		},
	})

	// Normalization pipeline
	leagues := pipeline.NewLeagueFilter(cfg.LeagueFilter)
	sportID := 0
	if len(cfg.SportIDs) > 0 {
		sportID = cfg.SportIDs[0]
	}
	pipe := pipeline.New(pipeline.Options{
		SportID:         sportID,
		DefaultLeague:   cfg.DefaultLeague,
		EventCacheSize:  cfg.EventCacheSize,
		EventCacheEvict: cfg.EventCacheEvict,
		PendingSize:     cfg.PendingSize,
		Leagues:         leagues,
	}, pipeline.Deps{
		Mapper:  markets.NewMapper(unmappedCodes),
		Keys:    keys,
		Changes: changes,
		Queue:   queue,
		Metrics: tracker,
		Teams:   unmappedTeams,
	})

	tracker.RegisterGauge(metrics.GaugeWriteQueue, queue.Len)
	tracker.RegisterGauge(metrics.GaugeEventsCache, func() int { return pipe.Stats().EventsCached })
	tracker.RegisterGauge(metrics.GaugePending, func() int { return pipe.Stats().Pending })
	tracker.RegisterGauge(metrics.GaugeChangeKeys, changes.Len)

	// Status server
	server := status.NewServer(status.Options{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		AllowedOrigins: cfg.CORSOrigins,
	}, tracker, unmappedTeams, unmappedCodes)
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		if err := server.Run(ctx); err != nil {
			slog.Error("status_server_error", "error", err)
		}
	}()

	// Feed listener
	listener := ingest.NewListener(ingest.ListenerConfig{
		URL:                  cfg.FeedWSURL,
		APIKey:               cfg.APIKey,
		BookmakerIDs:         cfg.BookmakerIDs,
		SportIDs:             cfg.SportIDs,
		PingInterval:         cfg.PingInterval,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, pipe, tracker)

	listenerErr := make(chan error, 1)
	go func() {
		listenerErr <- listener.Run(ctx)
	}()

	slog.Info("engine_started",
		"status", "listening for odds",
		"bookmakers", len(cfg.BookmakerIDs),
		"league_filter_disabled", leagues.Disabled(),
		"tui_enabled", cfg.EnableTUI,
	)

	exitCode := 0

	var app *ui.App
	tuiDone := make(chan struct{})
	if cfg.EnableTUI {
		slog.Info("starting_tui")
		app = ui.NewApp(tracker, unmappedTeams, unmappedCodes, cfg.UIRefreshRate)

		// Start TUI in goroutine so we can still handle signals
		go func() {
			defer close(tuiDone)
			if err := app.Run(); err != nil {
				slog.Error("tui_error", "error", err)
			}
		}()
	}

	select {
	case sig := <-sigChan:
		slog.Info("shutdown_signal_received", "signal", sig.String())
	case err := <-listenerErr:
		if errors.Is(err, ingest.ErrReconnectsExhausted) {
			slog.Error("feed_unavailable", "error", err)
			exitCode = 1
		} else if err != nil {
			slog.Error("listener_stopped", "error", err)
			exitCode = 1
		}
	case <-tuiDone:
		slog.Info("tui_closed")
	}

	if app != nil {
		app.Stop()
	}

	// Graceful shutdown
	cancel()

	slog.Info("shutting_down", "status", "stopping write queue")
	queue.Stop()
	<-serverDone

	stats := queue.Stats()
	slog.Info("shutdown_complete",
		"records_written", stats.RecordsWritten,
		"records_dropped", stats.RecordsDropped,
	)
	return exitCode
}

// openUpserter connects the configured store backend.
func openUpserter(ctx context.Context, cfg *config.Config) (store.Upserter, error) {
	var (
		upserter store.Upserter
		err      error
	)
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		upserter, err = store.NewPostgresUpserter(ctx, cfg.DatabaseURL, cfg.OddsTable)
	case config.BackendREST:
		upserter, err = store.NewRESTUpserter(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.OddsTable)
	case config.BackendRedis:
		upserter, err = store.NewRedisUpserter(ctx, cfg.RedisURL, cfg.OddsTable)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}
	return upserter, nil
}

// setupLogger creates a structured logger with the specified level.
// Format: 2025-01-04 14:32:01 [INFO]  message key=value
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05"))
				}
			}
			return a
		},
	}

	// The TUI owns stdout when enabled
	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler)
}
