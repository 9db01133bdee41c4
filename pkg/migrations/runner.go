// Package migrations runs plain SQL schema migrations from a directory.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Runner executes database migrations.
type Runner struct {
	db            *sql.DB
	migrationsDir string
}

// NewRunner creates a new migration runner.
func NewRunner(db *sql.DB, migrationsDir string) *Runner {
	return &Runner{
		db:            db,
		migrationsDir: migrationsDir,
	}
}

// Record represents a migration in the schema_migrations table.
type Record struct {
	Version   string
	AppliedAt time.Time
}

// EnsureMigrationTable creates the schema_migrations table if it doesn't exist.
func (r *Runner) EnsureMigrationTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(14) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// GetAppliedMigrations returns all applied migration versions.
func (r *Runner) GetAppliedMigrations(ctx context.Context) ([]Record, error) {
	query := `SELECT version, applied_at FROM schema_migrations ORDER BY version`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Version, &rec.AppliedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetPendingMigrations returns migration versions that need to be applied.
func (r *Runner) GetPendingMigrations(ctx context.Context) ([]string, error) {
	available, err := r.scanMigrationFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	applied, err := r.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	appliedSet := make(map[string]bool)
	for _, rec := range applied {
		appliedSet[rec.Version] = true
	}

	var pending []string
	for _, v := range available {
		if !appliedSet[v] {
			pending = append(pending, v)
		}
	}

	sort.Strings(pending)
	return pending, nil
}

// Up runs all pending migrations.
func (r *Runner) Up(ctx context.Context) error {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to ensure migration table: %w", err)
	}

	pending, err := r.GetPendingMigrations(ctx)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		fmt.Println("No pending migrations")
		return nil
	}

	fmt.Printf("Running %d migrations...\n", len(pending))

	for _, version := range pending {
		if err := r.runMigration(ctx, version, "up"); err != nil {
			return fmt.Errorf("migration %s failed: %w", version, err)
		}
		fmt.Printf("  Applied: %s\n", version)
	}

	return nil
}

// Down rolls back the last applied migration.
func (r *Runner) Down(ctx context.Context) error {
	applied, err := r.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	if len(applied) == 0 {
		fmt.Println("No migrations to rollback")
		return nil
	}

	last := applied[len(applied)-1]
	if err := r.runMigration(ctx, last.Version, "down"); err != nil {
		return fmt.Errorf("rollback %s failed: %w", last.Version, err)
	}

	fmt.Printf("Rolled back: %s\n", last.Version)
	return nil
}

// scanMigrationFiles returns the versions of all up migrations in the dir.
func (r *Runner) scanMigrationFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.migrationsDir, "*_*.up.sql"))
	if err != nil {
		return nil, err
	}

	var versions []string
	for _, m := range matches {
		base := filepath.Base(m)
		version, _, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}
		versions = append(versions, version)
	}

	sort.Strings(versions)
	return versions, nil
}

// runMigration executes a single migration file and records it.
func (r *Runner) runMigration(ctx context.Context, version, direction string) error {
	pattern := filepath.Join(r.migrationsDir, fmt.Sprintf("%s_*.%s.sql", version, direction))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("migration file not found: %s", pattern)
	}

	content, err := os.ReadFile(matches[0])
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return err
	}

	switch direction {
	case "up":
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, version,
		); err != nil {
			return err
		}
	case "down":
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM schema_migrations WHERE version = $1`, version,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}
