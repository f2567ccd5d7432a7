package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/speedwagon-io/sensorwatch/internal/config"
	"github.com/speedwagon-io/sensorwatch/internal/health"
	"github.com/speedwagon-io/sensorwatch/internal/history"
	"github.com/speedwagon-io/sensorwatch/internal/httpapi"
	"github.com/speedwagon-io/sensorwatch/internal/lib/logger/sl"
	"github.com/speedwagon-io/sensorwatch/internal/poller"
	"github.com/speedwagon-io/sensorwatch/internal/state"
	"github.com/speedwagon-io/sensorwatch/internal/upstream"
	"github.com/speedwagon-io/sensorwatch/internal/views"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	log.Info("starting sensorwatch",
		slog.String("env", cfg.Env),
		slog.String("upstream", cfg.Upstream.BaseURL),
		slog.String("failure_policy", cfg.Polling.FailurePolicy),
		slog.Bool("history", cfg.History.Enabled),
	)

	if err := views.LoadTemplates(); err != nil {
		log.Error("failed to load templates", sl.Err(err))
		os.Exit(1)
	}

	store := state.New(state.Policy(cfg.Polling.FailurePolicy))

	client := upstream.New(log, cfg.Upstream.BaseURL, cfg.Upstream.Timeout, cfg.Polling.SummaryLimit)

	checkers := []health.Checker{
		health.NewUpstreamChecker(client.Health),
		health.NewStreamChecker(store.Snapshot),
	}
	serverOpts := []httpapi.Option{httpapi.WithRefresh(cfg.Polling.FastInterval)}

	var (
		hist     *history.SQLiteStore
		recorder poller.Recorder
	)
	if cfg.History.Enabled {
		var err error
		hist, err = history.NewSQLiteStore(log, cfg.History.Path)
		if err != nil {
			log.Error("failed to open history", sl.Err(err))
			os.Exit(1)
		}
		recorder = hist
		checkers = append(checkers, health.NewHistoryChecker(hist.Count))
		serverOpts = append(serverOpts, httpapi.WithHistory(hist))
		log.Info("history enabled", slog.String("path", cfg.History.Path))

		restoreCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		latest, err := hist.LatestReadings(restoreCtx)
		cancel()
		if err != nil {
			log.Error("failed to restore readings", sl.Err(err))
		} else if store.Restore(latest) {
			log.Info("restored readings from history", slog.Int("count", len(latest)))
		}
	}

	serverOpts = append(serverOpts, httpapi.WithCheckers(checkers...))
	server := httpapi.NewServer(log, cfg.HTTP.Address, store, serverOpts...)
	if err := server.Start(); err != nil {
		log.Error("failed to start http server", sl.Err(err))
		os.Exit(1)
	}

	p := poller.New(log, cfg, client, store, recorder)

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
	}()

	p.Start(ctx)
	p.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop http server", sl.Err(err))
	}

	if err := client.Close(); err != nil {
		log.Error("failed to close upstream client", sl.Err(err))
	}

	if hist != nil {
		if err := hist.Close(); err != nil {
			log.Error("failed to close history", sl.Err(err))
		}
	}

	log.Info("sensorwatch stopped")
}
