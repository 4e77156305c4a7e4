package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arbiter/internal/config"
	"arbiter/internal/dataset"
	"arbiter/internal/feed"
	"arbiter/internal/metrics"
	"arbiter/internal/pipeline"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg.Logging)
	log.Info().Msg("Starting Arbiter - Cycle Arbitrage Pipeline")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	stats, err := run(ctx, cfg)
	if err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("Application error")
	}

	if stats != nil {
		logSummary(stats)
	}

	log.Info().Msg("Arbiter shutdown complete")
}

func run(ctx context.Context, cfg *config.Config) (*pipeline.Stats, error) {
	m := metrics.New()
	if cfg.Metrics.Enabled {
		if err := m.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			return nil, err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			m.Shutdown(shutdownCtx)
		}()
		log.Info().Int("port", cfg.Metrics.Port).Msg("Metrics server started")
	}

	ds, err := dataset.Load(cfg.Pipeline.DatasetPath)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.Pipeline.DatasetPath).
		Int("tokens", len(ds.Tokens)).Int("edges", len(ds.Edges)).
		Msg("Dataset loaded")

	pipelineCfg := cfg.ToPipelineConfig()
	if cfg.Metrics.Enabled {
		pipelineCfg.Metrics = m
	}

	if cfg.Feed.Enabled {
		pools := make([]feed.PoolMapping, 0, len(cfg.Feed.Pools))
		for _, p := range cfg.Feed.Pools {
			pools = append(pools, feed.PoolMapping{
				Address:              p.Address,
				EdgeIndex:            p.EdgeIndex,
				ReserveOutIsReserve1: p.ReserveOutIsReserve1,
			})
		}
		svc := feed.NewService(cfg.Feed.WSURL, pools)
		pipelineCfg.ExtraSource = svc.Run
		log.Info().Str("ws_url", cfg.Feed.WSURL).Int("pools", len(pools)).Msg("Live feed enabled")
	}

	stats, err := pipeline.Run(ctx, ds, pipelineCfg)
	if err != nil {
		return nil, err
	}

	m.RecordGraphStats(len(ds.Tokens), len(ds.Edges))
	m.RecordWriterOutcome(stats.UpdatesProcessed, stats.UniqueUpdatesApplied, stats.InvalidIndexUpdates, stats.InvalidRateUpdates)
	m.RecordSearchOutcome(stats.SearchesRun, cycleProfit(stats), stats.LastCycle != nil)

	return stats, nil
}

func cycleProfit(stats *pipeline.Stats) float64 {
	if stats.LastCycle == nil {
		return 0
	}
	return stats.LastCycle.Profit
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func logSummary(stats *pipeline.Stats) {
	event := log.Info().
		Int("updates_processed", stats.UpdatesProcessed).
		Int("unique_updates_applied", stats.UniqueUpdatesApplied).
		Int("searches_run", stats.SearchesRun).
		Int("invalid_index_updates", stats.InvalidIndexUpdates).
		Int("invalid_rate_updates", stats.InvalidRateUpdates)

	if stats.LastCycle != nil {
		event.Float64("cycle_profit", stats.LastCycle.Profit).
			Ints("cycle_vertices", stats.LastCycle.Vertices).
			Msg("pipeline run complete: profitable cycle found")
	} else {
		event.Msg("pipeline run complete: no profitable cycle found")
	}
}
