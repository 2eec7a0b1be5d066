package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/migrations"
	"github.com/garyjia/legal-docgen/pkg/database"
)

// MigrateCommand creates the migrate command
func MigrateCommand(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply the embedded SQL migrations to the configured database.

Examples:
  # Show what would be applied
  docgenctl migrate --dry-run

  # Apply everything pending
  docgenctl migrate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.New(database.Config{
				Path:            cfg.Database.Path,
				MaxOpenConns:    cfg.Database.MaxOpenConns,
				MaxIdleConns:    cfg.Database.MaxIdleConns,
				ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
				BusyTimeout:     cfg.Database.BusyTimeout,
			}, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			migrator := database.NewMigrator(db, logger)
			out := cmd.OutOrStdout()

			if dryRun {
				pending, err := migrator.Pending(migrations.FS)
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Fprintln(out, "No pending migrations")
					return nil
				}
				for _, m := range pending {
					fmt.Fprintf(out, "%03d %s\n", m.Version, m.Name)
				}
				return nil
			}

			applied, err := migrator.RunMigrations(migrations.FS)
			if err != nil {
				return err
			}
			logger.Info("Migrations applied", zap.Int("count", applied))
			fmt.Fprintf(out, "Applied %d migration(s)\n", applied)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending migrations without applying them")

	return cmd
}
