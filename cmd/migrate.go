package cmd

import (
	"context"
	"fmt"

	"dgsync/internal/application/common/slogger"
	"dgsync/internal/config"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Create the tables, constraints and indexes of every entity kind in the
built-in catalog, plus the sync task table. Statements are idempotent, so
running migrate against an up-to-date database changes nothing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runMigrate(cmd.Context(), cfg)
		},
	}
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	factory := NewServiceFactory(cfg)
	defer factory.Close()

	store, err := factory.OpenStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	if err := store.migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slogger.Info(ctx, "Database schema is up to date", slogger.Field("driver", cfg.Database.Driver))
	return nil
}

func init() { //nolint:gochecknoinits // cobra command registration
	rootCmd.AddCommand(newMigrateCmd())
}
