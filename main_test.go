package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/abdusco/shortreg/internal"
	"github.com/abdusco/shortreg/internal/config"
	"github.com/abdusco/shortreg/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want any
	}{
		{name: "memory", cfg: config.Config{Store: config.StoreMemory}, want: &repo.MemoryRepo{}},
		{name: "sqlite", cfg: config.Config{Store: config.StoreSQLite, DBPath: filepath.Join(t.TempDir(), "links.db")}, want: &repo.LinksRepo{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, closeStore, err := openStore(ctx, tt.cfg)
			require.NoError(t, err)
			defer closeStore()

			assert.IsType(t, tt.want, store)

			created, err := store.Insert(ctx, internal.ShortLink{Slug: "smoke", TargetURL: "https://example.com"})
			require.NoError(t, err)
			assert.Equal(t, "smoke", created.Slug)
		})
	}
}

func TestOpenStore_BadRedisURL(t *testing.T) {
	_, _, err := openStore(context.Background(), config.Config{Store: config.StoreRedis, RedisURL: "not a url"})
	assert.Error(t, err)
}
