package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "stockcount-api", cfg.App.Name)
	assert.Equal(t, 20, cfg.Count.RecentLimit)
	assert.Equal(t, 5432, cfg.DB.Port)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("COUNT_RECENT_LIMIT", "50")
	t.Setenv("REPLICA_DATABASE_URL", "postgres://ro@replica:5432/stockcount")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, "0.0.0.0:9090", cfg.HTTP.Addr())
	assert.Equal(t, 50, cfg.Count.RecentLimit)
	assert.Equal(t, 20, cfg.Count.LowStockLimit)
	assert.Equal(t, "postgres://ro@replica:5432/stockcount", cfg.DB.ReplicaURL)
	assert.Equal(t, "debug", cfg.App.LogLevel)
}

func TestLoad_InvalidNumbersFallBackToDefault(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("COUNT_LOW_STOCK_LIMIT", "muchos")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Count.LowStockLimit)
}

func TestDBConfig_DSNEscapesPassword(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss", DBName: "stockcount", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss@db:5432/stockcount?sslmode=disable", c.DSN())
	assert.Equal(t, c.DSN(), c.ConnectionString())

	c.DatabaseURL = "postgres://x@y/z"
	assert.Equal(t, "postgres://x@y/z", c.ConnectionString())
}
