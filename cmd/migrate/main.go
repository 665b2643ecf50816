package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/motorline/backend/internal/infrastructure/config"
	"github.com/motorline/backend/internal/infrastructure/logger"
	"github.com/motorline/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

// migrate applies the GORM schema to the configured database. Run once per
// deploy; the server also migrates on startup so this exists for pipelines
// that separate schema changes from rollout.
func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:  logLevel,
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	if err := persistence.AutoMigrate(db.DB); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}

	log.Info("Migration completed",
		zap.String("database", cfg.Database.DBName),
		zap.String("host", cfg.Database.Host),
	)
}
