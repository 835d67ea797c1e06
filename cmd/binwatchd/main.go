package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"smartbin-dashboard/config"
	"smartbin-dashboard/internal/api"
	"smartbin-dashboard/internal/dashboard"
	"smartbin-dashboard/internal/db"
	"smartbin-dashboard/internal/metrics"
	"smartbin-dashboard/internal/model"
	"smartbin-dashboard/internal/mw"
	"smartbin-dashboard/internal/notification"
	"smartbin-dashboard/internal/render"
	"smartbin-dashboard/internal/source"
	"smartbin-dashboard/internal/store"
	"smartbin-dashboard/internal/ws"
)

// limiterIdle is how long a client IP keeps its rate limit bucket without requests.
const limiterIdle = 10 * time.Minute

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Failed to read .env file")
	}

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	setupLogger(cfg.Log)
	log.Infof("configuration loaded successfully from %s", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		router  *gin.Engine
		cleanup func()
	)
	src, err := source.New(ctx, cfg.Source)
	if err != nil {
		log.WithError(err).Error("Data source unavailable, serving errors only")
		router = api.NewUnavailableRouter(err)
		cleanup = func() {}
	} else {
		router, cleanup = setupDashboard(ctx, cfg, src)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Infof("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Info("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server Shutdown: %v", err)
	}
	cleanup()
	cancel()

	log.Info("Server gracefully stopped")
}

// setupDashboard wires the live dashboard around src and returns its router and
// a function releasing everything it started.
func setupDashboard(ctx context.Context, cfg *config.Config, src source.Source) (*gin.Engine, func()) {
	m := metrics.New(prometheus.DefaultRegisterer)

	var appStore store.Store
	if cfg.Database.DSN != "" {
		gormDB, err := db.Init(&cfg.Database)
		if err != nil {
			log.Fatalf("failed to initialize database: %v", err)
		}
		appStore = store.NewGormStore(gormDB)
		log.Info("Data store initialized")
	}

	deps := dashboard.Deps{Metrics: m}
	if cfg.Database.Archive && appStore != nil {
		deps.Archiver = appStore
	}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		if appStore == nil {
			log.Warn("Push keys configured without a database; fill alerts are disabled")
		} else {
			pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions)
			pool.Start(ctx)
			deps.Alerter = pool
		}
	}

	opts := dashboard.OptionsFromConfig(cfg)
	svc := dashboard.NewService(src, opts, deps)

	charts := render.NewCharts(opts.History.Location)
	hub := ws.NewHub()
	go hub.Run(ctx)
	cache := mw.NewResponseCache(time.Duration(cfg.Server.CacheTTLSeconds) * time.Second)

	svc.AddListener(charts.Apply)
	svc.AddListener(func(model.Update) { cache.Flush() })
	svc.AddListener(hub.Publish)

	if err := svc.Start(); err != nil {
		log.Fatalf("failed to start dashboard: %v", err)
	}

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	go limiter.PruneEvery(ctx, time.Minute, limiterIdle)

	handler := api.NewHandler(svc, charts, appStore, webpushOptions)
	router := api.NewRouter(handler, api.RouterOptions{
		Limiter:  limiter,
		Cache:    cache,
		Live:     hub.Handler(),
		Gatherer: prometheus.DefaultGatherer,
	})

	return router, func() {
		svc.Stop()
		svc.Wait()
		charts.Close()
		if err := src.Close(); err != nil {
			log.WithError(err).Warn("Failed to close data source")
		}
	}
}

func setupLogger(cfg config.LogConfig) {
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	lvl, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("unknown log level %q, using info", cfg.Level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
