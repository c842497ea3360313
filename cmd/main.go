/*
Package main is the entry point for the mentorlink API server.

It is responsible for loading configuration, initializing the global logging system,
connecting the Postgres repository and S3 attachment storage, setting up the HTTP server,
and gracefully handling operating system interrupt signals (SIGINT, SIGTERM)
to ensure a smooth server shutdown.
*/
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

	"github.com/jackc/pgx/v5/pgxpool"

	"mentorlink/internal/app/db"
	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/app/storage"
	"mentorlink/internal/configs"
	"mentorlink/internal/handler"
	"mentorlink/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("attachments", cfg.AttachmentsEnabled()).
		Bool("postgres", cfg.DatabaseDSN != "").
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Repository: Postgres when configured, otherwise the in-memory development store.
	var (
		repo mentorship.Repository
		pool *pgxpool.Pool
	)
	if cfg.DatabaseDSN != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			logx.Fatal(err, "Database initialization failed")
		}
		defer pool.Close()
		repo = db.NewStore(pool)
	} else {
		logx.Warn("DATABASE_URL not set; using the in-memory store, data is lost on restart")
		repo = mentorship.NewMemoryRepository()
	}

	// Attachment storage
	var (
		files mentorship.FileStore
		store storage.StorageService
	)
	if cfg.AttachmentsEnabled() {
		store, err = storage.NewStorageService(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3Region:          cfg.S3Region,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Storage initialization failed")
		}
		files = store
	} else {
		logx.Warn("S3_BUCKET_NAME not set; attachments are disabled")
	}

	deps := &handler.AppDeps{
		Config:  cfg,
		Service: mentorship.NewService(repo, files),
		Ready: func(ctx context.Context) error {
			if pool != nil {
				if err := pool.Ping(ctx); err != nil {
					return fmt.Errorf("database: %w", err)
				}
			}
			if store != nil {
				if err := store.Ping(ctx); err != nil {
					return fmt.Errorf("storage: %w", err)
				}
			}
			return nil
		},
	}

	// Setup HTTP server and routes
	router := handler.Router(ctx, deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("mentorlink server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}
