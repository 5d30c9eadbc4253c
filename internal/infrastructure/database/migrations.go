package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
)

// MigrationsFS holds the *.up.sql files applied by Migrate, at its root.
// The migrations package sets it from its embedded files.
var MigrationsFS fs.FS

// ErrBadMigrationName is returned for an .up.sql file whose name is not
// YYYYMMDD_HHMMSS_description.up.sql.
var ErrBadMigrationName = errors.New("bad migration file name")

const upSuffix = ".up.sql"

// Migration is one additive schema change.
type Migration struct {
	// Version is the YYYYMMDD_HHMMSS file name prefix. Versions apply in
	// lexical order.
	Version string

	// Name is the description part of the file name, e.g. "nobo_entities".
	Name string

	SQL string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   string    `json:"version"`
	Name      string    `json:"name"`
	AppliedAt time.Time `json:"applied_at"`
}

// SchemaStatus reports which migrations the database carries.
type SchemaStatus struct {
	// Version is the newest applied version, empty before the first Migrate.
	Version string `json:"version"`

	Applied []AppliedMigration `json:"applied"`

	// Pending lists versions present in MigrationsFS but not applied.
	Pending []string `json:"pending,omitempty"`
}

// Migrate applies every pending migration in version order, each in its own
// transaction. A failed migration is rolled back and stops the run; the ones
// before it stay applied, so calling Migrate again resumes from the failure.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If a migration cannot be read or applied
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	migrations, err := loadMigrations(MigrationsFS)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, m := range pendingMigrations(migrations, applied) {
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// SchemaStatus reports the applied and pending migrations. The API shows
// it in /metrics.
func (db *DB) SchemaStatus(ctx context.Context) (SchemaStatus, error) {
	if err := db.createMigrationsTable(ctx); err != nil {
		return SchemaStatus{}, fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return SchemaStatus{}, err
	}
	migrations, err := loadMigrations(MigrationsFS)
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("loading migrations: %w", err)
	}

	status := SchemaStatus{Applied: applied}
	if len(applied) > 0 {
		status.Version = applied[len(applied)-1].Version
	}
	for _, m := range pendingMigrations(migrations, applied) {
		status.Pending = append(status.Pending, m.Version)
	}
	return status, nil
}

func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

// appliedMigrations returns the schema_migrations rows, oldest first.
func (db *DB) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT version, name, applied_at FROM schema_migrations ORDER BY version",
	)
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			m         AppliedMigration
			appliedAt string
		)
		if err := rows.Scan(&m.Version, &m.Name, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		m.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // Written by applyMigration
		applied = append(applied, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return applied, nil
}

func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Name, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

// pendingMigrations returns the migrations whose version is not applied,
// keeping their order.
func pendingMigrations(all []Migration, applied []AppliedMigration) []Migration {
	done := make(map[string]struct{}, len(applied))
	for _, a := range applied {
		done[a.Version] = struct{}{}
	}
	var pending []Migration
	for _, m := range all {
		if _, ok := done[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return pending
}

// loadMigrations reads every *.up.sql file at the root of fsys in version
// order. Other files are ignored. A nil fsys has no migrations.
func loadMigrations(fsys fs.FS) ([]Migration, error) {
	if fsys == nil {
		return nil, nil
	}

	// Glob returns names sorted, which is version order.
	names, err := fs.Glob(fsys, "*"+upSuffix)
	if err != nil {
		return nil, err
	}

	migrations := make([]Migration, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		m, err := parseMigrationName(name)
		if err != nil {
			return nil, err
		}
		if other, ok := seen[m.Version]; ok {
			return nil, fmt.Errorf("%s and %s share version %s", other, name, m.Version)
		}
		seen[m.Version] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		m.SQL = string(body)
		migrations = append(migrations, m)
	}
	return migrations, nil
}

// parseMigrationName splits "20260301_120000_nobo_entities.up.sql" into
// version "20260301_120000" and name "nobo_entities".
func parseMigrationName(file string) (Migration, error) {
	parts := strings.SplitN(strings.TrimSuffix(file, upSuffix), "_", 3)
	if len(parts) != 3 || len(parts[0]) != 8 || len(parts[1]) != 6 ||
		!allDigits(parts[0]) || !allDigits(parts[1]) || parts[2] == "" {
		return Migration{}, fmt.Errorf("%w: %s", ErrBadMigrationName, file)
	}
	return Migration{Version: parts[0] + "_" + parts[1], Name: parts[2]}, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
