package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// MigrationsFS holds the embedded migration files. The migrations package
// registers its embed.FS here from an init func so the SQL ships inside the
// binary.
var MigrationsFS embed.FS

// MigrationsDir is the directory inside MigrationsFS holding the .sql files.
var MigrationsDir = "migrations"

// Migration is one schema change, parsed from a pair of
// <version>_<name>.up.sql / .down.sql files. Version is the
// YYYYMMDD_HHMMSS filename prefix; ordering is lexical.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// AppliedMigration is a row of the schema_migrations bookkeeping table.
type AppliedMigration struct {
	Version   string
	AppliedAt time.Time
}

// Migrate brings the schema up to date, applying pending migrations oldest
// first. Each migration commits in its own transaction: a failure leaves
// earlier migrations applied, rolls back the failing one, and skips the
// rest, so a fixed Migrate call resumes where it stopped.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.ensureVersionTable(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	available, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	if len(available) == 0 {
		return nil
	}

	done, err := db.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}
	seen := make(map[string]bool, len(done))
	for _, rec := range done {
		seen[rec.Version] = true
	}

	for _, m := range available {
		if seen[m.Version] {
			continue
		}
		if err := db.runMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration. Development
// and test helper; the daemon never calls it.
func (db *DB) MigrateDown(ctx context.Context) error {
	done, err := db.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}
	if len(done) == 0 {
		return nil
	}
	latest := done[len(done)-1]

	available, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	var target *Migration
	for i := range available {
		if available[i].Version == latest.Version {
			target = &available[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration %s not found in filesystem", latest.Version)
	}
	if target.DownSQL == "" {
		return fmt.Errorf("migration %s has no down SQL", latest.Version)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	if _, err := tx.ExecContext(ctx, target.DownSQL); err != nil {
		return fmt.Errorf("executing down SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM schema_migrations WHERE version = ?", target.Version,
	); err != nil {
		return fmt.Errorf("removing migration record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rollback: %w", err)
	}
	return nil
}

// MigrationStatus reports which migrations have been applied and which are
// still pending.
func (db *DB) MigrationStatus(ctx context.Context) (applied []AppliedMigration, pending []Migration, err error) {
	applied, err = db.appliedVersions(ctx)
	if err != nil {
		return nil, nil, err
	}

	available, err := loadMigrations()
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool, len(applied))
	for _, rec := range applied {
		seen[rec.Version] = true
	}
	for _, m := range available {
		if !seen[m.Version] {
			pending = append(pending, m)
		}
	}
	return applied, pending, nil
}

func (db *DB) ensureVersionTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func (db *DB) appliedVersions(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT version, applied_at FROM schema_migrations ORDER BY version",
	)
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var records []AppliedMigration
	for rows.Next() {
		var rec AppliedMigration
		var stamp string
		if err := rows.Scan(&rec.Version, &stamp); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		// We wrote the stamp ourselves in RFC 3339.
		rec.AppliedAt, _ = time.Parse(time.RFC3339, stamp)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return records, nil
}

// runMigration applies one migration and records it, atomically.
func (db *DB) runMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}

// loadMigrations reads every migration pair out of MigrationsFS, sorted by
// version. Files that do not match the naming scheme are skipped.
func loadMigrations() ([]Migration, error) {
	var unset embed.FS
	if MigrationsFS == unset {
		return nil, nil
	}

	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		// An absent directory just means no migrations shipped.
		return nil, nil
	}

	byVersion := make(map[string]*Migration)
	order := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, up, ok := parseMigrationName(entry.Name())
		if !ok {
			continue
		}

		sqlText, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
			order = append(order, version)
		}
		if up {
			m.UpSQL = string(sqlText)
		} else {
			m.DownSQL = string(sqlText)
		}
	}

	sort.Strings(order)
	migrations := make([]Migration, 0, len(order))
	for _, version := range order {
		migrations = append(migrations, *byVersion[version])
	}
	return migrations, nil
}

// parseMigrationName splits "20260815_120000_device_journal.up.sql" into
// version "20260815_120000", name "device_journal", and direction.
func parseMigrationName(filename string) (version, name string, up, ok bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return "", "", false, false
	}

	switch {
	case strings.HasSuffix(base, ".up"):
		up = true
		base = strings.TrimSuffix(base, ".up")
	case strings.HasSuffix(base, ".down"):
		base = strings.TrimSuffix(base, ".down")
	default:
		return "", "", false, false
	}

	// version is the first two underscore-separated fields
	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 2 {
		return "", "", false, false
	}
	version = parts[0] + "_" + parts[1]
	if len(parts) == 3 {
		name = parts[2]
	} else {
		name = base
	}
	return version, name, true, true
}
