package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/liamcoop/autodiscounts/catalog"
	"github.com/liamcoop/autodiscounts/discount"
	"github.com/liamcoop/autodiscounts/internal/logger"
	"github.com/liamcoop/autodiscounts/settings"
)

type config struct {
	DatabaseURL  string
	Port         string
	BatchSize    int
	PassInterval time.Duration
	RulesFile    string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		Port:         os.Getenv("PORT"),
		BatchSize:    discount.DefaultBatchSize,
		PassInterval: 24 * time.Hour,
		RulesFile:    os.Getenv("RULES_FILE"),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchSize = n
		}
	}
	if v := os.Getenv("PASS_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PassInterval = d
		}
	}
	return cfg
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

func run() error {
	ctx := context.Background()
	cfg := loadConfig()

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := settings.NewStore(ctx, settings.NewPostgresOptions(db))
	if err != nil {
		return fmt.Errorf("failed to create settings store: %w", err)
	}
	cache := settings.NewCache(store, settings.DefaultCacheConfig())
	engine := discount.New(catalog.NewPostgresCatalog(db), cache,
		discount.WithBatchSize(cfg.BatchSize))

	if cfg.RulesFile != "" {
		if err := bootstrapRules(ctx, store, cache, cfg.RulesFile); err != nil {
			return err
		}
	}

	server := newServer(db, engine, store, cache)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // a triggered pass runs inside the request
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	stopScheduler := startScheduler(engine, cfg.PassInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(shutdownCtx); err != nil {
		log.Printf("Logger shutdown error: %v", err)
	}

	logger.Info("server stopped")
	return nil
}

// bootstrapRules imports a YAML rule pack into an empty settings store.
// A store that already holds rules is left alone.
func bootstrapRules(ctx context.Context, store *settings.Store, cache *settings.Cache, path string) error {
	existing, err := store.Rules(ctx)
	if err != nil {
		return fmt.Errorf("failed to read rules: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	rules, excluded, err := settings.LoadRulesFile(path)
	if err != nil {
		return err
	}
	if err := store.SaveRules(ctx, rules); err != nil {
		return fmt.Errorf("failed to save bootstrap rules: %w", err)
	}
	if len(excluded) > 0 {
		if err := store.SaveExcludedCategories(ctx, excluded); err != nil {
			return fmt.Errorf("failed to save bootstrap exclusions: %w", err)
		}
	}
	cache.Invalidate()
	logger.Info("bootstrapped rules from file", "path", path, "rules", len(rules))
	return nil
}

// startScheduler fires the periodic full pass. Returns a stop function.
func startScheduler(engine *discount.Engine, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := engine.OnScheduledTick(context.Background()); err != nil {
					logger.Error("scheduled pass failed", "error", err)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}
