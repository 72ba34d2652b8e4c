package dedup

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const cacheSchemaVersion = 1

const cacheSchema = `
CREATE TABLE IF NOT EXISTS hashes (
    path        TEXT PRIMARY KEY,
    size        INTEGER NOT NULL,
    mtime       INTEGER NOT NULL,
    quick_hash  TEXT NOT NULL DEFAULT '',
    full_hash   TEXT NOT NULL DEFAULT '',
    algo        TEXT NOT NULL,
    last_access INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_hashes_last_access ON hashes(last_access);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// openCacheDB opens (or creates) the hash cache database at the given path.
// The parent directory is created if needed. A failure here is fatal to the
// scan: the caller surfaces it as a single top-level error.
func openCacheDB(dbPath string) (*sql.DB, error) {
	l := sub("cachedb")
	l.Info("opening hash cache", "path", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrateCacheDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func migrateCacheDB(db *sql.DB) error {
	l := sub("cachedb")
	var version int
	err := db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		// meta table missing or empty — fresh database
		if _, execErr := db.Exec(cacheSchema); execErr != nil {
			return fmt.Errorf("create schema: %w", execErr)
		}
		if _, execErr := db.Exec("INSERT INTO meta (key, value) VALUES ('schema_version', ?)", cacheSchemaVersion); execErr != nil {
			return fmt.Errorf("set schema version: %w", execErr)
		}
		l.Info("schema created", "version", cacheSchemaVersion)
		return nil
	}

	if version != cacheSchemaVersion {
		// Future versions rebuild here. A newer-than-known schema is treated
		// as corrupt: drop and recreate rather than guess.
		l.Warn("unexpected schema version, rebuilding", "found", version, "want", cacheSchemaVersion)
		if _, err := db.Exec("DROP TABLE IF EXISTS hashes; DROP TABLE IF EXISTS meta"); err != nil {
			return fmt.Errorf("drop old schema: %w", err)
		}
		return migrateCacheDB(db)
	}
	return nil
}
