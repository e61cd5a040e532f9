package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadMigrations(t *testing.T) {
	source := fstest.MapFS{
		"010_later.sql":   {Data: []byte("SELECT 2;")},
		"002_second.sql":  {Data: []byte("SELECT 1;")},
		"notes.txt":       {Data: []byte("ignored")},
		"sub/001_sub.sql": {Data: []byte("SELECT 0;")},
	}

	migrations, err := LoadMigrations(source)
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{migrations[0].Version, migrations[1].Version, migrations[2].Version})
	assert.Equal(t, "second", migrations[1].Name)
}

func TestLoadMigrations_Errors(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{"initial.sql": {Data: []byte("SELECT 1;")}})
	assert.Error(t, err)

	_, err = LoadMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 1;")},
	})
	assert.ErrorContains(t, err, "duplicate migration version 1")
}

func TestRunMigrations_EmbeddedIsIdempotent(t *testing.T) {
	logger := zap.NewNop()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "m.db"), MaxOpenConns: 1, MaxIdleConns: 1}, logger)
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrator(db, logger)
	require.NoError(t, m.RunMigrations(""))
	require.NoError(t, m.RunMigrations(""))

	var applied int
	require.NoError(t, db.QueryRow("SELECT COUNT(1) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)

	var tables int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name IN ('approvals', 'approval_steps')`).Scan(&tables))
	assert.Equal(t, 2, tables)
}

func TestRunMigrations_RejectsBadStatus(t *testing.T) {
	logger := zap.NewNop()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "c.db"), MaxOpenConns: 1, MaxIdleConns: 1}, logger)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, NewMigrator(db, logger).RunMigrations(""))

	_, err = db.Exec(`INSERT INTO approvals (id, scope_id, kind, reference_id, status, created_by, created_at, updated_at)
		VALUES ('a1', 's', 'k', 'r', 'archived', 'u', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	assert.Error(t, err)
}
