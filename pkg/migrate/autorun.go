package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/asset-inventory-api/pkg/config"
)

// MaybeRunDev applies pending migrations at startup outside production when AUTO_MIGRATE is set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *sql.DB) error {
	if cfg.Env == config.EnvProduction || !cfg.Migration.AutoRun {
		return nil
	}

	source := cfg.Migration.Dir
	if source == "" {
		source = "embedded"
	}
	logger.Info("running goose migrations", zap.String("env", cfg.Env), zap.String("source", source))
	if err := Run(ctx, db, cfg.Migration.Dir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	logger.Info("goose migrations completed")
	return nil
}
