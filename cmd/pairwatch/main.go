package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"pairwatch/internal/alert"
	"pairwatch/internal/analytics"
	"pairwatch/internal/api"
	"pairwatch/internal/backtest"
	"pairwatch/internal/config"
	"pairwatch/internal/export"
	"pairwatch/internal/feed"
	"pairwatch/internal/metrics"
	"pairwatch/internal/resample"
	"pairwatch/internal/store"
	"pairwatch/internal/util"
)

func main() {
	_ = godotenv.Load() // best-effort

	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	flag.Parse()

	log := util.NewLogger("info")

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("load config")
		}
		cfg = loaded
	}
	log = util.NewLogger(cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	// Durable tick storage is optional. A missing or unreachable Postgres
	// degrades the process to memory-only rather than failing startup.
	dsn := cfg.Storage.PostgresDSN
	if env := os.Getenv("POSTGRES_DSN"); env != "" {
		dsn = env
	}
	var repo store.TickRepository
	if dsn != "" {
		pg, err := store.NewPostgresTickRepository(dsn)
		if err != nil {
			log.Warn().Err(err).Msg("postgres unavailable, running memory-only")
		} else {
			repo = pg
		}
	}

	st := store.NewTickStore(cfg.Storage.MaxTicksPerSymbol, repo, util.Component(log, "store"))
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("store close")
		}
	}()

	an := analytics.NewEngine(st, cfg.Analytics, util.Component(log, "analytics"))
	mx := analytics.NewMatrixEngine(st)
	alerts := alert.NewEngine(an, cfg.Cooldown(), util.Component(log, "alert"))
	runner := backtest.NewRunner(an, util.Component(log, "backtest"))
	exporter := export.NewExporter(st, an)

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fd := feed.NewFeed(cfg.Feed.Provider, cfg.Feed.Symbols, st, util.Component(log, "feed"))
	go func() {
		if err := fd.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("feed stopped")
			cancel()
		}
	}()

	agg := resample.NewAggregator(st, cfg.Resample, util.Component(log, "resample"))
	go agg.Run(ctx, time.Duration(cfg.Resample.LoopMs)*time.Millisecond)

	go alerts.Run(ctx, time.Duration(cfg.Alerts.CheckMs)*time.Millisecond)

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.EvictExpired(cfg.Retention())
			}
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(st, an, mx, alerts, runner, exporter, cfg, util.Component(log, "api"))
	srv := &http.Server{Addr: cfg.App.APIAddr, Handler: handler.Router()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("api server stopped")
			cancel()
		}
	}()
	log.Info().Str("addr", cfg.App.APIAddr).Msg("api up")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api shutdown")
	}
}
