package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/facubara/alphaboard/internal/agent"
	"github.com/facubara/alphaboard/internal/alerts"
	"github.com/facubara/alphaboard/internal/config"
	"github.com/facubara/alphaboard/internal/db"
	"github.com/facubara/alphaboard/internal/exchange"
	"github.com/facubara/alphaboard/internal/market"
	"github.com/facubara/alphaboard/internal/metrics"
	"github.com/facubara/alphaboard/internal/pipeline"
	"github.com/facubara/alphaboard/internal/portfolio"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	log.Info().
		Str("environment", cfg.App.Environment).
		Msg("Starting alphaboard pipeline daemon")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := db.New(ctx, cfg.Database)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	client := exchange.NewClient(cfg.Exchange)
	cache := market.NewRankingsCache(cfg.Redis, cfg.Pipeline.Cadences)
	defer cache.Close()

	var sinks []alerts.Notifier
	if cfg.Telegram.Enabled {
		telegram, err := alerts.NewTelegramNotifier(cfg.Telegram)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram notifier disabled")
		} else {
			sinks = append(sinks, telegram)
		}
	}
	notifier := alerts.NewManager(sinks...)

	manager := portfolio.NewManager(store, cfg.Trading)
	orchestrator := agent.NewOrchestrator(store, manager, cache, notifier,
		nil, nil, cfg.Trading, cfg.Pipeline.TopRankings)

	classifier := pipeline.NewClassifier(store, cfg.Regime)
	runner := pipeline.NewRunner(store, client, cache, classifier, cfg.Pipeline)
	scheduler := pipeline.NewScheduler(runner, cfg.Pipeline.Cadences, orchestrator.RunCycle)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// Hourly reconciliation pass over every active agent.
	reconciler := cron.New()
	if _, err := reconciler.AddFunc("@hourly", func() {
		rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer rcancel()
		orchestrator.ReconcileAll(rctx)
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule reconciler")
	}
	reconciler.Start()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			log.Info().Int("port", cfg.Metrics.Port).Msg("Metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("Shutting down")

	reconciler.Stop()
	<-scheduler.Stop().Done()
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	log.Info().Msg("Shutdown complete")
}
