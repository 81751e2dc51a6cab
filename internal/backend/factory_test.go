package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsdesk/internal/config"
	"opsdesk/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	cfg, exp, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", ExportBackend: "memory"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, MemoryExport, exp.Type)

	_, _, err = FromAppConfig(&config.Config{DataBackend: "sheets", ExportBackend: "memory"})
	assert.ErrorContains(t, err, "invalid backend type")

	_, _, err = FromAppConfig(&config.Config{DataBackend: "memory", ExportBackend: "sheets"})
	assert.ErrorContains(t, err, "Spreadsheet ID")

	_, _, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Type: PostgresBackend}.Validate())
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
	assert.Len(t, GetBackendTypes(), 3)
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)
	_, ok := res.KV.(*storage.MemoryKV)
	assert.True(t, ok)
	assert.NoError(t, res.Ping(context.Background()))
	assert.NoError(t, res.Cleanup())
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "opsdesk.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	defer res.Cleanup()

	ctx := context.Background()
	require.NoError(t, res.Ping(ctx))
	require.NoError(t, res.KV.Put(ctx, storage.KeyBudgets, []byte(`[]`)))
	v, ok, err := res.KV.Get(ctx, storage.KeyBudgets)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, string(v))
}

func TestCreateMemoryExport(t *testing.T) {
	res, err := NewFactory(nil).CreateExport(context.Background(), ExportConfig{Type: MemoryExport})
	require.NoError(t, err)
	assert.NotNil(t, res.Expenses)
	assert.NotNil(t, res.Alerts)
}
