package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	stdfs "io/fs"
	"regexp"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Open opens (or creates) the shared SQLite store and applies pending migrations.
// Migrations are versioned .sql files under internal/db/migrations:
//
//	0001_name.up.sql / 0001_name.down.sql
//
// Every process (HQ console, each driver agent) opens the same file. Within a
// process all statements go through one connection; across processes writers
// serialise on the SQLite file lock, waiting up to the busy timeout.
func Open(path string) (*sqlx.DB, error) {
	if path == "" {
		path = "dispatch.db"
	}
	d, err := sqlx.Open("sqlite3", withDefaultParams(path))
	if err != nil {
		return nil, err
	}
	d.SetMaxOpenConns(1)
	if err := d.Ping(); err != nil {
		_ = d.Close()
		return nil, err
	}
	// journal_mode=WAL is not available for in-memory databases.
	_, _ = d.Exec(`PRAGMA journal_mode=WAL`)
	for _, pragma := range []string{`PRAGMA busy_timeout=5000`, `PRAGMA foreign_keys=ON`} {
		if _, err := d.Exec(pragma); err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := applyMigrations(d.DB); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// withDefaultParams makes transactions take the write lock up front so two
// processes never deadlock upgrading a read lock.
func withDefaultParams(path string) string {
	if strings.Contains(path, "_txlock=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate"
}

// Version returns the highest applied migration version, or 0.
func Version(d *sqlx.DB) (int, error) {
	if err := ensureMigrationsTable(d.DB); err != nil {
		return 0, err
	}
	var v sql.NullInt64
	if err := d.Get(&v, `SELECT MAX(version) FROM schema_migrations`); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

// RollbackLast rolls back the most recently applied migration, if its down script exists.
func RollbackLast(d *sqlx.DB) error {
	if d == nil {
		return errors.New("nil db")
	}
	if err := ensureMigrationsTable(d.DB); err != nil {
		return err
	}
	var version int
	err := d.QueryRow(`SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	} else if err != nil {
		return err
	}
	migs, err := loadMigrations()
	if err != nil {
		return err
	}
	m, ok := migs[version]
	if !ok || m.downFile == "" {
		return fmt.Errorf("no down migration found for version %d", version)
	}
	return runScript(d.DB, m.downFile, `DELETE FROM schema_migrations WHERE version = ?`, version)
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version  int
	name     string
	upFile   string
	downFile string
}

var migFileRe = regexp.MustCompile(`^([0-9]{4})_(.+)\.(up|down)\.sql$`)

func loadMigrations() (map[int]migration, error) {
	entries := map[int]migration{}
	list, err := stdfs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return entries, nil
	}
	for _, de := range list {
		if de.IsDir() {
			continue
		}
		m := migFileRe.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		var ver int
		if _, err := fmt.Sscanf(m[1], "%04d", &ver); err != nil {
			continue
		}
		item := entries[ver]
		item.version = ver
		item.name = m[2]
		if m[3] == "up" {
			item.upFile = "migrations/" + de.Name()
		} else {
			item.downFile = "migrations/" + de.Name()
		}
		entries[ver] = item
	}
	return entries, nil
}

func ensureMigrationsTable(d *sql.DB) error {
	_, err := d.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        applied_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
    )`)
	return err
}

func appliedVersions(d *sql.DB) (map[int]bool, error) {
	if err := ensureMigrationsTable(d); err != nil {
		return nil, err
	}
	rows, err := d.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	got := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		got[v] = true
	}
	return got, rows.Err()
}

// runScript executes an embedded script followed by the bookkeeping statement.
// Scripts starting with "-- NO_TX" run outside a transaction.
func runScript(d *sql.DB, file, bookkeeping string, version int) error {
	raw, err := migrationsFS.ReadFile(file)
	if err != nil {
		return err
	}
	text := string(raw)
	if strings.HasPrefix(strings.TrimSpace(text), "-- NO_TX") {
		if _, err := d.Exec(text); err != nil {
			return fmt.Errorf("migration %04d failed: %w", version, err)
		}
		_, err := d.Exec(bookkeeping, version)
		return err
	}
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(text); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %04d failed: %w", version, err)
	}
	if _, err := tx.Exec(bookkeeping, version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func applyMigrations(d *sql.DB) error {
	migs, err := loadMigrations()
	if err != nil || len(migs) == 0 {
		return err
	}
	applied, err := appliedVersions(d)
	if err != nil {
		return err
	}
	versions := make([]int, 0, len(migs))
	for v := range migs {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	for _, v := range versions {
		if applied[v] {
			continue
		}
		m := migs[v]
		if strings.TrimSpace(m.upFile) == "" {
			return fmt.Errorf("missing up migration for version %04d", v)
		}
		if err := runScript(d, m.upFile, `INSERT INTO schema_migrations(version) VALUES(?)`, v); err != nil {
			return err
		}
	}
	return nil
}
