package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/painvault/internal/config"
	_ "modernc.org/sqlite"
)

const (
	// FileName is the vault database inside the base directory.
	FileName = "painvault.db"

	// ExportsDir is the default export destination inside the base directory.
	ExportsDir = "exports"
)

// migration moves the schema from version-1 to version.
type migration struct {
	version int
	name    string
	stmt    string
}

var migrations = []migration{
	{
		version: 1,
		name:    "settings, day stats, delivery log",
		stmt: `
CREATE TABLE IF NOT EXISTS settings (
  key        TEXT PRIMARY KEY,
  value_json TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS stats_totals (
  date_key TEXT NOT NULL,
  domain   TEXT NOT NULL,
  total    INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (date_key, domain)
);

CREATE TABLE IF NOT EXISTS stats_campaigns (
  date_key    TEXT NOT NULL,
  domain      TEXT NOT NULL,
  campaign_id TEXT NOT NULL,
  count       INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (date_key, domain, campaign_id)
);

CREATE TABLE IF NOT EXISTS deliveries (
  id            TEXT PRIMARY KEY,
  created_at    INTEGER NOT NULL,
  domain        TEXT NOT NULL,
  source        TEXT NOT NULL,
  campaign_id   TEXT NOT NULL,
  page_url      TEXT,
  page_title    TEXT,
  selected_text TEXT NOT NULL,
  ok            INTEGER NOT NULL,
  http_status   INTEGER,
  error_code    TEXT,
  error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_deliveries_created ON deliveries(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_deliveries_failed ON deliveries(created_at DESC) WHERE ok = 0;
`,
	},
}

// CurrentSchemaVersion is the version the last migration leaves behind.
var CurrentSchemaVersion = migrations[len(migrations)-1].version

// Init opens (creating if needed) baseDir/painvault.db and brings its schema
// up to date. Tests pass t.TempDir() as baseDir.
func Init(baseDir string) (*sql.DB, error) {
	for _, dir := range []string{baseDir, filepath.Join(baseDir, ExportsDir)} {
		if err := ensurePrivateDir(dir); err != nil {
			return nil, err
		}
	}

	path := filepath.Join(baseDir, FileName)
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", FileName, err)
	}

	if err := checkJournalMode(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// The settings row holds the webhook auth token.
	_ = os.Chmod(path, 0600)
	return db, nil
}

// ensurePrivateDir creates dir with owner-only permissions. The chmod is
// best-effort for directories that already existed with wider modes.
func ensurePrivateDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	_ = os.Chmod(dir, 0700)
	return nil
}

// ConfigurePool applies the pool limits set in cfg. Zero values leave the
// database/sql defaults alone.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

func migrate(db *sql.DB) error {
	current, err := GetUserVersion(db)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if current >= m.version {
			continue
		}
		if _, err := db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if err := SetUserVersion(db, m.version); err != nil {
			return err
		}
		current = m.version
	}
	return nil
}

// checkJournalMode confirms the DSN pragma actually switched the file to WAL.
func checkJournalMode(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		return fmt.Errorf("read journal_mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("journal_mode is %q, want wal", mode)
	}
	return nil
}

// GetUserVersion reads the schema version from the user_version pragma.
func GetUserVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

// SetUserVersion writes the user_version pragma.
func SetUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("write user_version: %w", err)
	}
	return nil
}
