// Package main is the entry point for the TripTales API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pkordes/triptales/internal/config"
	"github.com/pkordes/triptales/internal/handler"
	"github.com/pkordes/triptales/internal/logger"
	"github.com/pkordes/triptales/internal/middleware"
	"github.com/pkordes/triptales/internal/repo"
	"github.com/pkordes/triptales/internal/service"
	"github.com/pkordes/triptales/internal/story"
	"github.com/pkordes/triptales/internal/upload"
	"github.com/pkordes/triptales/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use the default logger before ours is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	log, flush, err := logger.New(os.Stdout, logger.Options{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		SentryDSN: cfg.SentryDSN,
	})
	if err != nil {
		slog.Error("logger setup failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		flush()
		os.Exit(1)
	}
	flush()
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	// --- Database ---------------------------------------------------------
	// New() does not open connections immediately; the first query does.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	log.Info("database connection established")

	if cfg.RunMigrations {
		// goose needs database/sql; borrow a *sql.DB view of the pool.
		sqlDB := stdlib.OpenDBFromPool(pool)
		err := migrations.Up(ctx, sqlDB, log)
		_ = sqlDB.Close()
		if err != nil {
			return err
		}
	}

	// --- Services ---------------------------------------------------------
	backend, err := newUploadBackend(cfg)
	if err != nil {
		return fmt.Errorf("upload backend: %w", err)
	}
	var uploadOpts []upload.Option
	if cfg.UploadFileRoot != "" {
		uploadOpts = append(uploadOpts, upload.WithFileRoot(cfg.UploadFileRoot))
	}
	trips := repo.NewTripRepo(pool)
	tripSvc := service.NewTripService(trips, upload.NewPipeline(backend, log, uploadOpts...), story.NewGenerator(nil), log)
	exportSvc := service.NewExportService(trips)

	// --- Metrics ----------------------------------------------------------
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "triptales_sessions",
			Help: "Accounts with a live trip cache",
		}, func() float64 { return float64(tripSvc.Sessions()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "triptales_cached_trips",
			Help: "Trips held across every account cache",
		}, func() float64 { return float64(tripSvc.CachedTrips()) }),
	)

	// --- Session eviction ---------------------------------------------------
	evictCtx, stopEviction := context.WithCancel(ctx)
	defer stopEviction()
	if cfg.SessionIdleTimeout > 0 {
		go tripSvc.RunEviction(evictCtx, min(cfg.SessionIdleTimeout, time.Minute), cfg.SessionIdleTimeout)
	}

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer
	// → Metrics → CORS → body limit. Auth runs inside the API router so
	// /healthz, /openapi.yaml and /metrics stay public.
	auth := middleware.NewAuthenticator(cfg.JWTSecret, log)
	srv := handler.NewServer(tripSvc, exportSvc, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Handler)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Mount("/", srv.Routes(auth.Middleware))

	// --- HTTP Server ------------------------------------------------------
	// WriteTimeout covers the photo upload a create or update may wait on.
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", httpSrv.Addr, "upload_backend", cfg.UploadBackend)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-stop:
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// newUploadBackend builds the image host selected by UPLOAD_BACKEND.
func newUploadBackend(cfg config.Config) (upload.Backend, error) {
	switch cfg.UploadBackend {
	case config.UploadS3:
		return upload.NewS3Backend(upload.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PublicURL: cfg.S3.PublicURL,
		})
	default:
		return upload.NewCloudinaryBackend(upload.CloudinaryConfig{
			CloudName:    cfg.Cloudinary.CloudName,
			UploadPreset: cfg.Cloudinary.UploadPreset,
			Endpoint:     cfg.Cloudinary.Endpoint,
		})
	}
}
