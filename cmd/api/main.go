package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/kurihiro0119/hitbatch/internal/aggregator"
	"github.com/kurihiro0119/hitbatch/internal/api"
	"github.com/kurihiro0119/hitbatch/internal/config"
	"github.com/kurihiro0119/hitbatch/internal/qual"
	"github.com/kurihiro0119/hitbatch/internal/storage"
	"github.com/kurihiro0119/hitbatch/internal/storage/file"
	"github.com/kurihiro0119/hitbatch/internal/storage/postgres"
	"github.com/kurihiro0119/hitbatch/internal/storage/redis"
	"github.com/kurihiro0119/hitbatch/internal/storage/sqlite"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Initialize storage
	var store storage.Repository
	switch cfg.StorageType {
	case "postgres":
		store, err = postgres.NewPostgresStorage(cfg.PostgresURL)
	case "sqlite":
		store, err = sqlite.NewSQLiteStorage(cfg.SQLitePath)
	case "redis":
		store, err = redis.NewRedisStorage(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB)
	default:
		store = file.NewFileStorage(cfg.StatePath)
	}
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.String("storage_type", cfg.StorageType), zap.Error(err))
	}
	defer store.Close()

	catalog, err := loadCatalog(cfg.PremiumCatalogPath)
	if err != nil {
		logger.Fatal("failed to load premium catalog", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize handler
	handler := api.NewHandler(aggregator.NewAggregator(store), catalog, logger)

	// Setup routes
	router := api.SetupRoutes(handler, reg)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	logger.Info("starting API server", zap.String("addr", addr), zap.String("storage_type", cfg.StorageType))

	if err := router.Run(addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl
	return cfg.Build()
}

func loadCatalog(path string) (*qual.Catalog, error) {
	if path == "" {
		return qual.DefaultCatalog()
	}
	return qual.LoadCatalog(context.Background(), path)
}
