package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:8080", cfg.ServerAddr)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, LockLocal, cfg.Lock.Driver)
	require.Equal(t, 2*time.Second, cfg.Lock.WaitTimeout)
	require.Equal(t, 3, cfg.RetryMaxAttempts)
	require.Equal(t, "10", cfg.RaiseIncrement.String())
	require.False(t, cfg.SeedDemoData)
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := Load([]string{
		"--store-driver=sqlite",
		"--sqlite-path=/tmp/ledger.db",
		"--raise-increment=2.50",
		"--sweep-interval=5s",
		"--seed-demo-data",
	})
	require.NoError(t, err)

	require.Equal(t, StoreSQLite, cfg.StoreDriver)
	require.Equal(t, "/tmp/ledger.db", cfg.SQLitePath)
	require.Equal(t, "2.5", cfg.RaiseIncrement.String())
	require.Equal(t, 5*time.Second, cfg.SweepInterval)
	require.True(t, cfg.SeedDemoData)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("AUCTION_LOCK_DRIVER", "redis")
	t.Setenv("AUCTION_REDIS_ADDR", "redis:6379")
	t.Setenv("AUCTION_REDIS_KEY_PREFIX", "test:")
	t.Setenv("AUCTION_RETRY_MAX_ATTEMPTS", "5")

	cfg, err := Load(nil)
	require.NoError(t, err)

	require.Equal(t, LockRedis, cfg.Lock.Driver)
	require.Equal(t, "redis:6379", cfg.Redis.Addr)
	require.Equal(t, "test:", cfg.Redis.KeyPrefix)
	require.Equal(t, 5, cfg.RetryMaxAttempts)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown_store", args: []string{"--store-driver=mongo"}},
		{name: "unknown_lock", args: []string{"--lock-driver=zookeeper"}},
		{name: "zero_sweep", args: []string{"--sweep-interval=0s"}},
		{name: "negative_increment", args: []string{"--raise-increment=-1"}},
		{name: "bad_increment", args: []string{"--raise-increment=ten"}},
		{name: "no_attempts", args: []string{"--retry-max-attempts=0"}},
		{name: "unknown_flag", args: []string{"--nope"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.args)
			require.Error(t, err)
		})
	}
}

func TestDBConfig_DSN(t *testing.T) {
	db := DBConfig{User: "app", Password: "p@ss", Host: "db", Port: 5432, Database: "auctions"}
	require.Equal(t, "postgres://app:p%40ss@db:5432/auctions?sslmode=disable", db.DSN())
}
