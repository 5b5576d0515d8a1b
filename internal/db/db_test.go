package db

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/painvault/internal/config"
)

func sqliteObjects(t *testing.T, dir, kind string) map[string]bool {
	t.Helper()
	database, err := Init(dir)
	require.NoError(t, err)
	defer database.Close()

	rows, err := database.Query("SELECT name FROM sqlite_master WHERE type = ?", kind)
	require.NoError(t, err)
	defer rows.Close()

	names := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names[name] = true
	}
	require.NoError(t, rows.Err())
	return names
}

func TestInit_LaysOutVaultDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "home", ".painvault")

	database, err := Init(base)
	require.NoError(t, err)
	defer database.Close()

	info, err := os.Stat(filepath.Join(base, FileName))
	require.NoError(t, err)
	require.False(t, info.IsDir())

	info, err = os.Stat(filepath.Join(base, ExportsDir))
	require.NoError(t, err)
	require.True(t, info.IsDir())

	if runtime.GOOS != "windows" {
		info, err = os.Stat(filepath.Join(base, FileName))
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestInit_UsesWAL(t *testing.T) {
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	var mode string
	require.NoError(t, database.QueryRow("PRAGMA journal_mode;").Scan(&mode))
	require.Equal(t, "wal", mode)
}

func TestInit_Schema(t *testing.T) {
	dir := t.TempDir()

	tables := sqliteObjects(t, dir, "table")
	for _, want := range []string{"settings", "stats_totals", "stats_campaigns", "deliveries"} {
		require.True(t, tables[want], "missing table %s", want)
	}

	indexes := sqliteObjects(t, dir, "index")
	require.True(t, indexes["idx_deliveries_created"])
	require.True(t, indexes["idx_deliveries_failed"])
}

func TestInit_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()

	first, err := Init(dir)
	require.NoError(t, err)
	_, err = IncrementStats(context.Background(), first, "2026-03-14", "reddit.com", "unspecified")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Init(dir)
	require.NoError(t, err)
	defer second.Close()

	v, err := GetUserVersion(second)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, v)

	var total int
	require.NoError(t, second.QueryRow(
		"SELECT total FROM stats_totals WHERE date_key = ? AND domain = ?", "2026-03-14", "reddit.com",
	).Scan(&total))
	require.Equal(t, 1, total)
}

func TestMigrate_SkipsAppliedVersions(t *testing.T) {
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	// A version ahead of every migration must not rerun anything.
	require.NoError(t, SetUserVersion(database, CurrentSchemaVersion+5))
	require.NoError(t, migrate(database))

	v, err := GetUserVersion(database)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion+5, v)
}

func TestMigrations_Ordered(t *testing.T) {
	for i, m := range migrations {
		require.Equal(t, i+1, m.version, "migration %q out of order", m.name)
	}
}

func TestConfigurePool(t *testing.T) {
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	ConfigurePool(database, nil)
	ConfigurePool(database, &config.Config{})
	require.Equal(t, 0, database.Stats().MaxOpenConnections)

	ConfigurePool(database, &config.Config{DBMaxOpenConns: 2, DBMaxIdleConns: 1})
	require.Equal(t, 2, database.Stats().MaxOpenConnections)
}
