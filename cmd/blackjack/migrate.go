package main

import (
	"context"
	"fmt"
	"time"

	"github.com/lox/blackjack/internal/server"
	"github.com/lox/blackjack/internal/store"
)

// MigrateCmd creates the records table. It is safe to run repeatedly.
type MigrateCmd struct {
	DSN     string        `help:"PostgreSQL DSN (overrides config store.postgres_dsn)"`
	Timeout time.Duration `default:"30s" help:"Give up after this long"`
}

func (c *MigrateCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config, func(cfg *server.Config) {
		if c.DSN != "" {
			cfg.Store.Backend = "postgres"
			cfg.Store.PostgresDSN = c.DSN
		}
	})
	if err != nil {
		return err
	}
	if cfg.Store.Backend != "postgres" {
		return fmt.Errorf("migrate needs the postgres store backend, config has %q", cfg.Store.Backend)
	}

	logger := setupLogger(cfg.Server.LogLevel)
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	pg, err := store.OpenPostgres(ctx, cfg.Store.PostgresDSN)
	if err != nil {
		return err
	}
	defer func() { _ = pg.Close() }()

	if err := pg.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("Schema is up to date")
	return nil
}
