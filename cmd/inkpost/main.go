// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the inkpost API server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkpost/internal/cache"
	"inkpost/internal/config"
	"inkpost/internal/database"
	"inkpost/internal/handlers"
	"inkpost/internal/logging"
	"inkpost/internal/metrics"
	"inkpost/internal/middleware"
	"inkpost/internal/models"
	"inkpost/internal/router"
	"inkpost/internal/session"
	"inkpost/internal/storage"
	"inkpost/internal/store"
	"inkpost/internal/token"
)

func main() {
	// Load configuration from the environment and optional config file.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	zl, err := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	defer zl.Sync()

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"disk", cfg.StorageDisk,
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(context.Background(), db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey (credential ledger and listing cache).
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword, cfg.ValkeyDB)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	m, metricsHandler, err := metrics.Setup("inkpost")
	if err != nil {
		slog.Error("failed to set up metrics", "error", err)
		os.Exit(1)
	}

	disks, err := buildDisks(cfg)
	if err != nil {
		slog.Error("failed to initialize media storage", "error", err)
		os.Exit(1)
	}

	// Initialize data stores.
	userStore := store.NewUserStore(db)
	postStore := store.NewPostStore(db)
	commentStore := store.NewCommentStore(db)
	categoryStore := store.NewCategoryStore(db)
	tagStore := store.NewTagStore(db)
	mediaStore := store.NewMediaStore(db)

	ledger := session.NewStore(valkeyClient)
	issuer := token.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	listings := cache.NewListingCache(valkeyClient, cfg.ListingCacheTTL)

	loginLimiter := middleware.NewRateLimiter(cfg.RateLimitLogin, time.Minute)
	defer loginLimiter.Stop()

	deps := router.Deps{
		Tokens:         issuer,
		Ledger:         ledger,
		Users:          userStore,
		Metrics:        m,
		MetricsHandler: metricsHandler,
		LoginLimiter:   loginLimiter,
		AllowedOrigins: cfg.CORSAllowedOrigins,

		Auth:       handlers.NewAuth(userStore, ledger, issuer, m),
		Posts:      handlers.NewPosts(postStore, categoryStore, tagStore, mediaStore, disks, listings, m),
		Comments:   handlers.NewComments(commentStore, postStore, disks),
		Media:      handlers.NewMedia(mediaStore, postStore, disks, m, cfg.MaxUploadBytes),
		Categories: handlers.NewCategories(categoryStore),
		Tags:       handlers.NewTags(tagStore),
		Dashboard:  handlers.NewDashboard(postStore, commentStore, userStore, mediaStore),
		UserAdmin:  handlers.NewUsers(userStore, ledger, disks),
	}
	if cfg.StorageDisk == string(models.DiskLocal) {
		deps.MediaDir = cfg.MediaDir
		deps.MediaPrefix = cfg.MediaBaseURL
	}

	// Create the HTTP server with sensible timeouts. Uploads get a longer
	// read window than plain JSON requests would need.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.New(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests up to 30 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

// buildDisks registers the local disk always and S3 when it is configured.
// Media records remember their disk, so both stay readable after the
// default changes.
func buildDisks(cfg *config.Config) (*storage.Disks, error) {
	local, err := storage.NewLocal(cfg.MediaDir, cfg.MediaBaseURL)
	if err != nil {
		return nil, err
	}
	backends := map[models.Disk]storage.Backend{models.DiskLocal: local}

	if cfg.S3Endpoint != "" && cfg.S3Bucket != "" {
		s3, err := storage.NewS3(storage.S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, err
		}
		backends[models.DiskS3] = s3
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	}

	return storage.NewDisks(models.Disk(cfg.StorageDisk), backends)
}
