package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyrepo/config"
	core "polyrepo/data/db"
	"polyrepo/logging"
)

func testConfig(backend string) *config.Config {
	return &config.Config{
		Backend:  backend,
		Database: core.DBConfig{Driver: "sqlite", Database: ":memory:"},
		IDs:      config.IDConfig{DatacenterID: 1, WorkerID: 1},
		Log:      config.LogConfig{Level: "error"},
	}
}

func TestRunDemo_Memory(t *testing.T) {
	var out bytes.Buffer
	err := runDemo(context.Background(), testConfig(config.BackendMemory), logging.NewNoopLogger(), &out)
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "saved advert 1 owned by User 1")
	assert.Contains(t, got, `advert "bike for sale" -> User 1 (alice)`)
	assert.Contains(t, got, "merchant 1 has 1 advert(s)")
	assert.Contains(t, got, "  - giant magnet")
	assert.NotContains(t, got, "anvil")
	assert.Contains(t, got, "2 advert(s) in total")
	assert.Contains(t, got, "giant magnet -> Merchant 1 (acme)")
	assert.NotContains(t, got, "page ", "paging is only offered by SQL backends")
}

func TestRunDemo_SQLite(t *testing.T) {
	var out bytes.Buffer
	err := runDemo(context.Background(), testConfig(config.BackendSQLite), logging.NewNoopLogger(), &out)
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, `advert "bike for sale" -> User 1 (alice)`)
	assert.Contains(t, got, "has 1 advert(s)")
	assert.NotContains(t, got, "rocket")
	assert.Contains(t, got, "2 advert(s) in total")
	assert.Contains(t, got, "page 1/2 (2 total)\n  - bike for sale\n")
}

func TestRunDemo_RedisWithCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(config.BackendRedis)
	cfg.Redis = config.RedisConfig{Addr: mr.Addr(), Prefix: "demo"}
	cfg.Cache = config.CacheConfig{MaxSize: 64}

	var out bytes.Buffer
	err := runDemo(context.Background(), cfg, logging.NewNoopLogger(), &out)
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "(alice)")
	assert.Contains(t, got, "has 1 advert(s)")
	assert.Contains(t, got, "2 advert(s) in total")
	assert.NotEmpty(t, mr.Keys())
}

func TestOpenBackend_RejectsUnknown(t *testing.T) {
	_, err := openBackend(context.Background(), testConfig("mongo"), logging.NewNoopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported backend")
}

func TestModelsCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"models"})
	require.NoError(t, root.Execute())

	got := out.String()
	assert.Contains(t, got, "Advert (key id, columns id, title, entityId, entityType)")
	assert.Contains(t, got, "owner")
	assert.Contains(t, got, "User|Merchant")
	assert.Contains(t, got, "delete-before-update")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("Advert")), bytes.Index(out.Bytes(), []byte("Merchant (")))
}
