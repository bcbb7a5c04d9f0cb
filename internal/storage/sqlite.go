package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryDSN opens an in-memory database (used by tests and dry runs).
const MemoryDSN = ":memory:"

// SQLiteBackend keeps thread fields and logs in a local SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) docroute.db in dataDir and runs pending
// migrations. Pass MemoryDSN as dataDir for an in-memory database.
func OpenSQLite(dataDir string) (*SQLiteBackend, error) {
	var dsn string
	if dataDir == MemoryDSN {
		dsn = MemoryDSN
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating data directory")
		}
		dsn = filepath.Join(dataDir, "docroute.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Mark(errors.Wrap(err, "pinging database"), ErrStoreUnavailable)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "setting busy timeout")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "setting journal mode")
	}

	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "running migrations")
	}
	return b, nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func (b *SQLiteBackend) Ping(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return errors.Mark(errors.Wrap(err, "sqlite ping"), ErrStoreUnavailable)
	}
	return nil
}

// migrate applies embedded SQL migrations that haven't been run yet.
func (b *SQLiteBackend) migrate() error {
	if _, err := b.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return errors.Wrap(err, "creating schema_version table")
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "reading migrations directory")
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := b.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return errors.Wrapf(err, "checking migration %d", version)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return errors.Wrapf(err, "reading migration %s", entry.Name())
		}

		tx, err := b.db.Begin()
		if err != nil {
			return errors.Wrapf(err, "beginning transaction for migration %d", version)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "applying migration %d", version)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "recording migration %d", version)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "committing migration %d", version)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, errors.Wrapf(err, "parsing migration version from %q", filename)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (b *SQLiteBackend) AppliedMigrations() ([]int, error) {
	rows, err := b.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// SetFields upserts all fields in a single transaction.
func (b *SQLiteBackend) SetFields(ctx context.Context, threadID string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	for k, v := range fields {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO thread_fields (thread_id, key, value) VALUES (?, ?, ?)
			ON CONFLICT(thread_id, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			threadID, k, v,
		); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "writing field %s", k)
		}
	}
	return tx.Commit()
}

func (b *SQLiteBackend) GetField(ctx context.Context, threadID, key string) (string, bool, error) {
	var v string
	err := b.db.QueryRowContext(ctx,
		"SELECT value FROM thread_fields WHERE thread_id = ? AND key = ?", threadID, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (b *SQLiteBackend) GetFields(ctx context.Context, threadID string) (map[string]string, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT key, value FROM thread_fields WHERE thread_id = ?", threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) AppendLog(ctx context.Context, threadID, entry string) error {
	_, err := b.db.ExecContext(ctx, "INSERT INTO thread_logs (thread_id, entry) VALUES (?, ?)", threadID, entry)
	return err
}

func (b *SQLiteBackend) Logs(ctx context.Context, threadID string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT entry FROM thread_logs WHERE thread_id = ? ORDER BY id ASC", threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) Delete(ctx context.Context, threadID string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM thread_fields WHERE thread_id = ?", threadID); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM thread_logs WHERE thread_id = ?", threadID); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
