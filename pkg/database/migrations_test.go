package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/migrations"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_add_index.sql":  {Data: []byte("CREATE INDEX idx_a ON a(id);")},
		"001_create_a.sql":   {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"README.md":          {Data: []byte("ignored")},
		"sub/003_create.sql": {Data: []byte("CREATE TABLE b (id INTEGER);")},
	}

	got, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, 1, got[0].Version)
	assert.Equal(t, "create_a", got[0].Name)
	assert.Equal(t, 2, got[1].Version)
	assert.Equal(t, 3, got[2].Version)
}

func TestLoadMigrations_Invalid(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{"initial.sql": {Data: []byte("")}})
	assert.Error(t, err)

	_, err = LoadMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("")},
		"001_b.sql": {Data: []byte("")},
	})
	assert.Error(t, err)
}

func TestMigrator_RunMigrations(t *testing.T) {
	db := openTestDB(t)
	migrator := NewMigrator(db, zap.NewNop())

	applied, err := migrator.RunMigrations(migrations.FS)
	require.NoError(t, err)
	assert.Greater(t, applied, 0)

	// second run is a no-op
	applied, err = migrator.RunMigrations(migrations.FS)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	pending, err := migrator.Pending(migrations.FS)
	require.NoError(t, err)
	assert.Empty(t, pending)

	for _, table := range []string{"templates", "template_tags", "active_templates", "generations", "legal_counters", "generation_deliveries", "compliance_reports"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestMigrator_FailedMigrationRollsBack(t *testing.T) {
	db := openTestDB(t)
	migrator := NewMigrator(db, zap.NewNop())

	fsys := fstest.MapFS{
		"001_ok.sql":     {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"002_broken.sql": {Data: []byte("CREATE TABLE broken (id INTEGER); INSERT INTO missing VALUES (1);")},
	}

	applied, err := migrator.RunMigrations(fsys)
	assert.Error(t, err)
	assert.Equal(t, 1, applied)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'broken'").Scan(&count))
	assert.Equal(t, 0, count)

	pending, err := migrator.Pending(fsys)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
}
