package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/AdamBeresnev/bracket-mesh/internal/config"
	"github.com/AdamBeresnev/bracket-mesh/internal/db"
	"github.com/AdamBeresnev/bracket-mesh/internal/metrics"
	"github.com/AdamBeresnev/bracket-mesh/internal/relay"
	"github.com/AdamBeresnev/bracket-mesh/internal/storage"
	"github.com/AdamBeresnev/bracket-mesh/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("node stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(database.DB); err != nil {
		return err
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = 30 * 24 * time.Hour
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	sessionManager.Store = sqlite3store.New(database.DB)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	snapshots := store.NewSnapshotStore(database)
	n := newNode(snapshots, m, logger, cfg.HistoryTopN)

	if cfg.S3.Enabled() {
		exporter, err := storage.NewS3HistoryExporter(ctx, cfg.S3)
		if err != nil {
			return err
		}
		n.exporter = exporter
		logger.Info("history export enabled", "bucket", cfg.S3.Bucket)
	}

	hub := relay.NewHub(n,
		relay.WithLogger(logger),
		relay.WithRecorder(m),
		relay.WithRateLimit(rate.Limit(cfg.Relay.Rate), cfg.Relay.Burst),
		relay.WithCheckOrigin(originChecker(cfg.AllowedOrigins)),
	)
	n.publisher = hub

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newRouter(n, hub, sessionManager, reg, cfg.AllowedOrigins),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		return prune(ctx, n, cfg.Retention, cfg.PruneInterval, logger)
	})
	g.Go(func() error {
		logger.Info("starting server", "address", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// prune drops expired rooms once at startup and then every interval.
func prune(ctx context.Context, n *node, retention, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		removed, err := n.snapshots.PruneExpired(ctx, retention)
		if err != nil {
			logger.Error("prune failed", "error", err)
		} else if removed > 0 {
			logger.Info("pruned expired rooms", "removed", removed)
			if err := n.forget(ctx); err != nil {
				logger.Error("failed to drop pruned rooms from cache", "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func originChecker(origins []string) func(r *http.Request) bool {
	if slices.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}
