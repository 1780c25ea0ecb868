package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/core/internal/domain/entities"
	"github.com/storefront/core/internal/infrastructure/logger"
	"github.com/storefront/core/internal/ports"
)

func newRedisRepo(t *testing.T, mr *miniredis.Miniredis) ports.CartRepository {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCartRepository(client, "test", logger.NewNop())
}

func TestRedisLoadEmpty(t *testing.T) {
	repo := newRedisRepo(t, miniredis.RunT(t))

	store, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestRedisPersistReloadRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	repo := newRedisRepo(t, mr)
	ctx := context.Background()

	store := entities.NewCartStore()
	require.NoError(t, store.Insert("42", entities.Counts{Computers: 1, Phones: 2}))
	require.NoError(t, store.Insert("100000", entities.Counts{Printers: 9}))
	require.NoError(t, store.Insert("7", entities.Counts{}))
	require.NoError(t, repo.Persist(ctx, store))

	reloaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Records(), reloaded.Records())

	assert.Equal(t, "1,2,0", mr.HGet("test:visitors:counts", "42"))

	// Persisting a smaller store replaces the old one
	small := entities.NewCartStore()
	require.NoError(t, small.Insert("9", entities.Counts{Phones: 1}))
	require.NoError(t, repo.Persist(ctx, small))

	reloaded, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"9"}, reloaded.IDs())
}

func TestRedisUpdateAppendsInOrder(t *testing.T) {
	repo := newRedisRepo(t, miniredis.RunT(t))
	ctx := context.Background()

	for _, id := range []string{"42", "100000", "7"} {
		id := id
		require.NoError(t, repo.Update(ctx, func(store *entities.CartStore) error {
			return store.Insert(id, entities.Counts{Computers: 1})
		}))
	}
	require.NoError(t, repo.Update(ctx, func(store *entities.CartStore) error {
		return store.ApplyDelta("100000", entities.ItemPhone, 4).Err
	}))

	store, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"42", "100000", "7"}, store.IDs())
	c, _ := store.Get("100000")
	assert.Equal(t, entities.Counts{Computers: 1, Phones: 4}, c)
}

func TestRedisUpdateDoesNotPersistOnError(t *testing.T) {
	mr := miniredis.RunT(t)
	repo := newRedisRepo(t, mr)
	boom := errors.New("boom")

	err := repo.Update(context.Background(), func(store *entities.CartStore) error {
		require.NoError(t, store.Insert("42", entities.Counts{Computers: 1}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("test:visitors:order"))
	assert.False(t, mr.Exists("test:visitors:counts"))
}

func TestRedisConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	seed := newRedisRepo(t, mr)
	require.NoError(t, seed.Update(ctx, func(store *entities.CartStore) error {
		return store.Insert("42", entities.Counts{})
	}))

	// Each writer has its own client, like separate CGI processes.
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		repo := newRedisRepo(t, mr)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Update(ctx, func(store *entities.CartStore) error {
				return store.ApplyDelta("42", entities.ItemPrinter, 1).Err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	store, err := seed.Load(ctx)
	require.NoError(t, err)
	c, _ := store.Get("42")
	assert.Equal(t, writers, c.Printers)
}

func TestRedisLoadRejectsCorruptStore(t *testing.T) {
	cases := map[string]func(mr *miniredis.Miniredis){
		"missing counts": func(mr *miniredis.Miniredis) {
			mr.RPush("test:visitors:order", "42")
		},
		"non integer": func(mr *miniredis.Miniredis) {
			mr.RPush("test:visitors:order", "42")
			mr.HSet("test:visitors:counts", "42", "1,two,0")
		},
		"unordered id": func(mr *miniredis.Miniredis) {
			mr.HSet("test:visitors:counts", "42", "1,0,0")
		},
	}

	for name, seed := range cases {
		t.Run(name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			seed(mr)
			_, err := newRedisRepo(t, mr).Load(context.Background())
			assert.ErrorIs(t, err, entities.ErrCorruptStore)
		})
	}
}

func TestRedisHealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	repo := newRedisRepo(t, mr)
	require.NoError(t, repo.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, repo.HealthCheck(context.Background()))
}
