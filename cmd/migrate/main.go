package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/asset-inventory-api/pkg/config"
	"github.com/noah-isme/asset-inventory-api/pkg/database"
	"github.com/noah-isme/asset-inventory-api/pkg/logger"
	"github.com/noah-isme/asset-inventory-api/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|validate")
	dir := flag.String("dir", "", "goose migrations directory (empty uses the embedded set)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *dir == "" {
		*dir = cfg.Migration.Dir
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	logr = logr.With(zap.String("cmd", *cmd), zap.String("dir", *dir))

	if *cmd == "validate" {
		if err := migrate.ValidateDir(*dir); err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migration validation passed")
		return
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	ctx := context.Background()
	logr.Info("migrate ready")

	switch *cmd {
	case "up", "down", "status":
		err = migrate.Run(ctx, db.DB, *dir, *cmd)
	case "version":
		if *version == "" {
			fmt.Fprintln(os.Stderr, "missing -version for version command")
			os.Exit(1)
		}
		err = migrate.MigrateToVersion(ctx, db.DB, *dir, *version)
	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
	if err != nil {
		logr.Error("migration failed", zap.Error(err))
		os.Exit(1)
	}
	logr.Info("migration finished")
}
