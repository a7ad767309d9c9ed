package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdusco/shortreg/internal"
	"github.com/abdusco/shortreg/internal/db"
	"github.com/abdusco/shortreg/internal/repo"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) repo.Store

func storeFactories() map[string]storeFactory {
	factories := map[string]storeFactory{
		"memory": func(t *testing.T) repo.Store {
			return repo.NewMemoryRepo()
		},
		"sqlite": func(t *testing.T) repo.Store {
			instance, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "links.db"))
			require.NoError(t, err)
			t.Cleanup(func() { instance.Close() })
			return repo.NewLinksRepo(instance, db.DialectSQLite)
		},
		"redis": func(t *testing.T) repo.Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { client.Close() })
			return repo.NewRedisRepo(client)
		},
	}

	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		factories["postgres"] = func(t *testing.T) repo.Store {
			instance, err := db.OpenPostgres(context.Background(), dsn)
			require.NoError(t, err)
			t.Cleanup(func() { instance.Close() })
			truncate(t, instance)
			return repo.NewLinksRepo(instance, db.DialectPostgres)
		}
	}
	return factories
}

func truncate(t *testing.T, instance *sql.DB) {
	_, err := instance.Exec("TRUNCATE short_links")
	require.NoError(t, err)
}

func TestStores(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Run("insert and find", func(t *testing.T) { testInsertAndFind(t, newStore(t)) })
			t.Run("duplicate insert", func(t *testing.T) { testDuplicateInsert(t, newStore(t)) })
			t.Run("concurrent duplicate insert", func(t *testing.T) { testConcurrentDuplicateInsert(t, newStore(t)) })
			t.Run("exists", func(t *testing.T) { testExists(t, newStore(t)) })
			t.Run("find missing", func(t *testing.T) { testFindMissing(t, newStore(t)) })
			t.Run("increment", func(t *testing.T) { testIncrement(t, newStore(t)) })
			t.Run("concurrent increment", func(t *testing.T) { testConcurrentIncrement(t, newStore(t)) })
			t.Run("delete", func(t *testing.T) { testDelete(t, newStore(t)) })
			t.Run("list newest first", func(t *testing.T) { testListNewestFirst(t, newStore(t)) })
		})
	}
}

func testInsertAndFind(t *testing.T, store repo.Store) {
	ctx := context.Background()
	before := time.Now().UTC().Add(-time.Second)

	created, err := store.Insert(ctx, internal.ShortLink{Slug: "Ab12Cd", TargetURL: "https://example.com"})
	require.NoError(t, err)

	assert.Equal(t, "Ab12Cd", created.Slug)
	assert.Equal(t, "https://example.com", created.TargetURL)
	assert.Equal(t, int64(0), created.Clicks)
	assert.True(t, created.CreatedAt.After(before))
	assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))

	found, err := store.Find(ctx, "Ab12Cd")
	require.NoError(t, err)
	assert.Equal(t, created.Slug, found.Slug)
	assert.Equal(t, created.TargetURL, found.TargetURL)
	assert.Equal(t, created.Clicks, found.Clicks)
	assert.True(t, created.CreatedAt.Equal(found.CreatedAt), "created %s, found %s", created.CreatedAt, found.CreatedAt)
	assert.True(t, created.UpdatedAt.Equal(found.UpdatedAt))
}

func testDuplicateInsert(t *testing.T, store repo.Store) {
	ctx := context.Background()

	_, err := store.Insert(ctx, internal.ShortLink{Slug: "taken", TargetURL: "https://first.com"})
	require.NoError(t, err)

	_, err = store.Insert(ctx, internal.ShortLink{Slug: "taken", TargetURL: "https://second.com"})
	assert.ErrorIs(t, err, internal.ErrSlugExists)

	found, err := store.Find(ctx, "taken")
	require.NoError(t, err)
	assert.Equal(t, "https://first.com", found.TargetURL)
}

func testConcurrentDuplicateInsert(t *testing.T, store repo.Store) {
	ctx := context.Background()
	const workers = 20

	var successes, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Insert(ctx, internal.ShortLink{
				Slug:      "race",
				TargetURL: fmt.Sprintf("https://example.com/%d", i),
			})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, internal.ErrSlugExists):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), conflicts.Load())
}

func testExists(t *testing.T, store repo.Store) {
	ctx := context.Background()

	ok, err := store.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Insert(ctx, internal.ShortLink{Slug: "abc", TargetURL: "https://example.com"})
	require.NoError(t, err)

	ok, err = store.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	// slugs are case sensitive
	ok, err = store.Exists(ctx, "ABC")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testFindMissing(t *testing.T, store repo.Store) {
	_, err := store.Find(context.Background(), "nope")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)
}

func testIncrement(t *testing.T, store repo.Store) {
	ctx := context.Background()

	created, err := store.Insert(ctx, internal.ShortLink{Slug: "clicky", TargetURL: "https://example.com"})
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	updated, err := store.IncrementClicks(ctx, "clicky")
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Clicks)
	assert.Equal(t, "https://example.com", updated.TargetURL)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	found, err := store.Find(ctx, "clicky")
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.Clicks)

	_, err = store.IncrementClicks(ctx, "missing")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)
}

func testConcurrentIncrement(t *testing.T, store repo.Store) {
	ctx := context.Background()
	const clicks = 50

	_, err := store.Insert(ctx, internal.ShortLink{Slug: "hot", TargetURL: "https://example.com"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range clicks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.IncrementClicks(ctx, "hot")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	found, err := store.Find(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, int64(clicks), found.Clicks)
}

func testDelete(t *testing.T, store repo.Store) {
	ctx := context.Background()

	_, err := store.Insert(ctx, internal.ShortLink{Slug: "gone", TargetURL: "https://example.com"})
	require.NoError(t, err)

	removed, err := store.Delete(ctx, "gone")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Delete(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = store.Find(ctx, "gone")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)

	_, err = store.IncrementClicks(ctx, "gone")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)

	links, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, links)

	// a deleted slug is free again
	_, err = store.Insert(ctx, internal.ShortLink{Slug: "gone", TargetURL: "https://again.com"})
	assert.NoError(t, err)
}

func testListNewestFirst(t *testing.T, store repo.Store) {
	ctx := context.Background()

	links, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, links)

	for _, slug := range []string{"first", "second", "third"} {
		_, err := store.Insert(ctx, internal.ShortLink{Slug: slug, TargetURL: "https://example.com/" + slug})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	links, err = store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, "third", links[0].Slug)
	assert.Equal(t, "second", links[1].Slug)
	assert.Equal(t, "first", links[2].Slug)
}
