package sqlplugin

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MigrationKind says which direction a migration runs
type MigrationKind int

const (
	MigrationKindUp MigrationKind = iota
	MigrationKindDown
)

// Migration is one versioned schema change
type Migration struct {
	Version     int64
	Description string
	SQL         string
	Kind        MigrationKind
}

// migrationsTable records applied versions
const migrationsTable = "_migrations"

var (
	ErrMigrationModified  = errors.New("applied migration was modified")
	ErrDuplicateMigration = errors.New("duplicate migration version")
)

func (m Migration) checksum() string {
	sum := sha256.Sum256([]byte(m.SQL))
	return hex.EncodeToString(sum[:])
}

// applyMigrations runs every pending up migration in version order, each in its own transaction.
// It returns how many were applied.
func applyMigrations(ctx context.Context, db *sql.DB, d dialect, migrations []Migration) (int, error) {
	var ups []Migration
	seen := make(map[int64]bool)
	for _, m := range migrations {
		if m.Kind != MigrationKindUp {
			continue
		}
		if seen[m.Version] {
			return 0, fmt.Errorf("%w: %d", ErrDuplicateMigration, m.Version)
		}
		seen[m.Version] = true
		ups = append(ups, m)
	}
	sort.Slice(ups, func(i, j int) bool { return ups[i].Version < ups[j].Version })

	if _, err := db.ExecContext(ctx, createMigrationsTableSQL(d)); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range ups {
		if sum, ok := applied[m.Version]; ok {
			if sum != m.checksum() {
				return count, fmt.Errorf("%w: version %d", ErrMigrationModified, m.Version)
			}
			continue
		}
		if err := runMigration(ctx, db, d, m); err != nil {
			return count, fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		count++
	}
	return count, nil
}

func createMigrationsTableSQL(d dialect) string {
	installedType := "TIMESTAMP"
	if d == dialectSQLite {
		installedType = "DATETIME"
	}
	return `CREATE TABLE IF NOT EXISTS ` + migrationsTable + ` (
		version BIGINT PRIMARY KEY,
		description TEXT NOT NULL,
		installed_on ` + installedType + ` NOT NULL DEFAULT CURRENT_TIMESTAMP,
		success BOOLEAN NOT NULL,
		checksum VARCHAR(64) NOT NULL,
		execution_time BIGINT NOT NULL
	)`
}

func appliedMigrations(ctx context.Context, db *sql.DB) (map[int64]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, checksum FROM "+migrationsTable+" WHERE success = TRUE")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]string)
	for rows.Next() {
		var version int64
		var sum string
		if err := rows.Scan(&version, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = sum
	}
	return applied, rows.Err()
}

func runMigration(ctx context.Context, db *sql.DB, d dialect, m Migration) error {
	start := time.Now()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (version, description, success, checksum, execution_time) VALUES (%s)",
		migrationsTable, placeholders(d, 5),
	)
	if _, err := tx.ExecContext(ctx, insert,
		m.Version, m.Description, true, m.checksum(), time.Since(start).Nanoseconds(),
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// placeholders returns n bind parameters in the dialect's syntax
func placeholders(d dialect, n int) string {
	ps := make([]string, n)
	for i := range ps {
		if d == dialectPostgres {
			ps[i] = "$" + strconv.Itoa(i+1)
		} else {
			ps[i] = "?"
		}
	}
	return strings.Join(ps, ", ")
}
