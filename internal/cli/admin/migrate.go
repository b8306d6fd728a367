package admin

import (
	"errors"
	"fmt"

	"github.com/cloo-solutions/ticketassist/internal/config"
	"github.com/cloo-solutions/ticketassist/internal/logging"
	"github.com/cloo-solutions/ticketassist/internal/migrations"
	"github.com/spf13/cobra"
)

var errNoDatabase = errors.New("TICKETASSIST_DATABASE_URL is not set")

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  "Apply or roll back the embedded PostgreSQL migrations",
	}

	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateDownCmd())

	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadDatabaseConfig()
			if err != nil {
				return err
			}
			return migrations.Up(cfg.DatabaseURL, logging.New(cfg.LogLevel, cfg.Debug))
		},
	}
}

func migrateDownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1, got %d", steps)
			}
			cfg, err := loadDatabaseConfig()
			if err != nil {
				return err
			}
			return migrations.Down(cfg.DatabaseURL, steps, logging.New(cfg.LogLevel, cfg.Debug))
		},
	}

	cmd.Flags().Int("steps", 1, "Number of migrations to roll back")

	return cmd
}

func loadDatabaseConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasDatabase() {
		return nil, errNoDatabase
	}
	return cfg, nil
}
