package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"planpoint/api/internal/app"
	"planpoint/api/internal/config"
	"planpoint/api/internal/export"
	"planpoint/api/internal/history"
	"planpoint/api/internal/store"
	"planpoint/api/internal/workspace"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	var kv store.KV
	switch {
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		log.Printf("Using PostgreSQL for workspace storage")
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		kv = pg
	case strings.TrimSpace(cfg.RedisURL) != "":
		log.Printf("Using Redis for workspace storage")
		rd, err := store.OpenRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		kv = rd
	default:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			log.Fatalf("failed to create data dir: %v", err)
		}
		path := filepath.Join(cfg.DataDir, "planpoint.db")
		log.Printf("Using SQLite for workspace storage at %s", path)
		sq, err := store.OpenSQLite(ctx, path)
		if err != nil {
			log.Fatalf("sqlite open failed: %v", err)
		}
		kv = sq
	}
	defer kv.Close()

	var hist *history.Service
	if strings.TrimSpace(cfg.HistoryDir) != "" {
		if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
			log.Fatalf("failed to create history dir: %v", err)
		}
		hist = history.New(cfg.HistoryDir)
	}

	var uploader *export.Uploader
	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		up, err := export.NewUploader(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
		if err != nil {
			log.Fatalf("object storage client failed: %v", err)
		}
		uploader = up
		log.Printf("Archive upload enabled to %s/%s", cfg.S3Endpoint, cfg.S3Bucket)
	}

	flattener := &export.ChromeFlattener{Timeout: 60 * time.Second}

	service := app.NewService(cfg, workspace.NewStore(kv), hist, nil, flattener, uploader)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("PlanPoint API listening on %s (session %s)", cfg.Addr, service.SessionID())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
