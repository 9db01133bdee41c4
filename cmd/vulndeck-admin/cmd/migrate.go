package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulndeck/api/internal/config"
	"github.com/vulndeck/api/internal/infra/postgres"
	"github.com/vulndeck/api/pkg/migrations"
)

// Migrate talks to the database directly, not through the API. Connection
// settings come from the usual environment variables (DB_HOST, DB_USER, ...).

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var flagMigrationsDir string

func init() {
	migrateCmd.PersistentFlags().StringVar(&flagMigrationsDir, "dir", "migrations", "Directory containing migration files")

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(ctx context.Context, r *migrations.Runner) error {
				pending, err := r.GetPendingMigrations(ctx)
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Println("No pending migrations.")
					return nil
				}
				if err := r.Up(ctx); err != nil {
					return err
				}
				fmt.Printf("Applied %d migration(s).\n", len(pending))
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(ctx context.Context, r *migrations.Runner) error {
				if err := r.Down(ctx); err != nil {
					return err
				}
				fmt.Println("Rolled back one migration.")
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(ctx context.Context, r *migrations.Runner) error {
				if err := r.EnsureMigrationTable(ctx); err != nil {
					return err
				}
				applied, err := r.GetAppliedMigrations(ctx)
				if err != nil {
					return err
				}
				pending, err := r.GetPendingMigrations(ctx)
				if err != nil {
					return err
				}

				t := newTable("VERSION", "STATUS", "APPLIED-AT")
				for _, rec := range applied {
					t.AddRow(rec.Version, "applied", rec.AppliedAt.Format("2006-01-02 15:04:05"))
				}
				for _, v := range pending {
					t.AddRow(v, "pending", "-")
				}
				t.Flush()
				return nil
			})
		},
	}

	migrateCmd.AddCommand(upCmd, downCmd, statusCmd)
}

func withRunner(fn func(context.Context, *migrations.Runner) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	return fn(context.Background(), migrations.NewRunner(db.DB, flagMigrationsDir))
}
