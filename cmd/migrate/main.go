// Package main is a standalone schema migration runner for deployments that
// do not ship encounterctl.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/config"
	"github.com/cory-johannsen/encounter/internal/observability"
	"github.com/cory-johannsen/encounter/migrations"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps (0 = all)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	dir := migrations.Direction(*direction)
	if dir != migrations.Up && dir != migrations.Down {
		logger.Fatal("invalid direction", zap.String("direction", *direction))
	}

	res, err := migrations.Run(cfg.Database.DSN(), dir, *steps)
	if err != nil {
		logger.Error("migration failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("migration complete",
		zap.String("direction", *direction),
		zap.Uint("version", res.Version),
		zap.Bool("dirty", res.Dirty),
		zap.Bool("no_change", res.NoChange),
		zap.Duration("elapsed", time.Since(start)),
	)
}
