package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	tmp := t.TempDir()
	wd, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmp))
	defer os.Chdir(wd)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.Database)
	assert.Equal(t, "polyrepo", cfg.Redis.Prefix)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, int64(1), cfg.IDs.WorkerID)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polyrepo.yaml")
	content := `
backend: postgres
database:
  driver: pgx
  database: postgres://localhost/adverts
  max_open_conns: 8
cache:
  max_size: 100
  ttl: 30s
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("POLYREPO_LOG_DEVELOPMENT", "true")
	t.Setenv("POLYREPO_IDS_WORKER_ID", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Backend)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, 8, cfg.Database.MaxOpenConns)
	assert.Equal(t, 100, cfg.Cache.MaxSize)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, int64(7), cfg.IDs.WorkerID)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("POLYREPO_BACKEND", "mongo")
	_, err := Load("")
	assert.ErrorContains(t, err, "backend must be one of")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "explicit path must exist")
}

func TestValidate(t *testing.T) {
	cfg := &Config{Backend: BackendRedis}
	assert.Error(t, cfg.Validate())
	cfg.Redis.Addr = "localhost:6379"
	assert.NoError(t, cfg.Validate())
	cfg.Cache.MaxSize = -1
	assert.Error(t, cfg.Validate())
}
