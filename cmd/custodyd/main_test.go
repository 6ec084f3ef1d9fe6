package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onda-protocol/onda-program-library-sub000/core/ledger"
	"github.com/onda-protocol/onda-program-library-sub000/gateway/config"
	"github.com/onda-protocol/onda-program-library-sub000/gateway/routes"
	"github.com/onda-protocol/onda-program-library-sub000/storage"
)

func TestRateLimitsDefaultsAndOverrides(t *testing.T) {
	defaults := rateLimits(nil)
	require.Contains(t, defaults, routes.BucketLoans)
	require.Contains(t, defaults, routes.BucketStream)

	custom := rateLimits([]config.RateLimitConfig{{ID: "loans", RequestsPerMinute: 120, Burst: 3}, {ID: ""}})
	require.Len(t, custom, 1)
	require.Equal(t, 120.0, custom["loans"].RequestsPerMinute)
	require.Equal(t, 3, custom["loans"].Burst)
}

func TestOpenStorageSelectsBackend(t *testing.T) {
	mem, err := openStorage(config.StorageConfig{})
	require.NoError(t, err)
	require.IsType(t, &storage.MemDB{}, mem)

	disk, err := openStorage(config.StorageConfig{DataDir: filepath.Join(t.TempDir(), "state")})
	require.NoError(t, err)
	defer disk.Close()
	require.IsType(t, &storage.LevelDB{}, disk)
}

func TestSeedGenesisOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.toml")
	owner := "0x0101010101010101010101010101010101010101"
	require.NoError(t, os.WriteFile(path, []byte(`
[alloc]
"`+owner+`" = 500

[[assets]]
label = "genesis-asset"
owner = "`+owner+`"
sellerFeeBps = 250
`), 0o600))

	l, err := ledger.New(storage.NewMemDB(), ledger.WithMetrics(nil))
	require.NoError(t, err)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	require.NoError(t, seedGenesis(ctx, l, path, logger))
	require.NoError(t, seedGenesis(ctx, l, path, logger))
	require.NoError(t, seedGenesis(ctx, l, "", logger))
}

func TestBuildTLSConfigRequiresPair(t *testing.T) {
	cfg, err := buildTLSConfig(config.SecurityConfig{})
	require.NoError(t, err)
	require.Nil(t, cfg)

	_, err = buildTLSConfig(config.SecurityConfig{TLSCertFile: "missing.pem", TLSKeyFile: "missing.key"})
	require.Error(t, err)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
