package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Clamps(t *testing.T) {
	t.Setenv("VALUE_SIZE", "0")
	t.Setenv("WORKERS", "-2")
	t.Setenv("SHARDS", "0")
	t.Setenv("BACKEND", "redis")

	cfg, err := loadConfig()
	require.NoError(t, err)
	require.Equal(t, 1, cfg.ValueSize)
	require.Equal(t, 1, cfg.Workers)
	require.Equal(t, 1, cfg.Shards)
	require.Equal(t, "lrukv:loadtest:", cfg.Location)
}

func TestBackendOpener(t *testing.T) {
	lt := &loadtestT{ctx: context.Background(), log: slog.Default()}

	for _, backend := range []string{"s3", "mem", "leveldb"} {
		_, err := backendOpener(config{Backend: backend, Container: true}, lt)
		require.ErrorContains(t, err, "cannot run in a container", backend)
	}

	_, err := backendOpener(config{Backend: "nope"}, lt)
	require.ErrorContains(t, err, "unknown backend")

	open, err := opener(config{Backend: "mem", Compress: 3}, lt)
	require.NoError(t, err)
	st, err := open(t.Context(), "", true)
	require.NoError(t, err)
	require.NoError(t, st.Put(t.Context(), "k", []byte("v")))
}
