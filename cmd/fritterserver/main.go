// Package main runs the fritter API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	app "github.com/fritterhq/fritter/internal/app"
	"github.com/fritterhq/fritter/internal/app/httpapi"
	"github.com/fritterhq/fritter/internal/app/storage/postgres"
	"github.com/fritterhq/fritter/internal/config"
	"github.com/fritterhq/fritter/internal/middleware"
	"github.com/fritterhq/fritter/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.NewDefault("fritterserver").WithError(err).Fatal("failed to load configuration")
	}

	log := logger.New(os.Stderr, "fritterserver", cfg.LogLevel)

	// Without a database URL everything runs in memory; handy for local
	// development and tests.
	stores := app.Stores{}
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("failed to open database")
		}
		defer db.Close()
		db.SetMaxOpenConns(25)
		db.SetConnMaxIdleTime(5 * time.Minute)

		if err := postgres.Migrate(db); err != nil {
			log.WithError(err).Fatal("failed to apply migrations")
		}

		pg := postgres.New(db)
		stores = app.Stores{
			Users:        pg,
			Sessions:     pg,
			Freets:       pg,
			Drafts:       pg,
			Interactions: pg,
			Nests:        pg,
		}
		log.Info("using postgres storage")
	} else {
		log.Warn("FRITTER_DATABASE_URL not set; using in-memory storage")
	}

	application, err := app.New(stores, app.Options{SessionTTL: cfg.SessionTTL}, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build application")
	}

	router := httpapi.NewHandler(application)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggingMiddleware(log))

	auth := middleware.NewAuthMiddleware(application.Users, log)
	cors := middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	limiter.StartCleanup(10 * time.Minute)

	// Auth runs before the limiter so authenticated traffic is keyed by
	// user id rather than address.
	handler := cors.Handler(auth.Handler(limiter.Handler(router)))

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("fritter server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
