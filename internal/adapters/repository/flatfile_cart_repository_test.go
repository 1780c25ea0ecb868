package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/core/internal/domain/entities"
	"github.com/storefront/core/internal/infrastructure/logger"
)

func newTestRepo(t *testing.T, content string) (*FlatFileCartRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shoppingcart.txt")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	repo := NewFlatFileCartRepository(path, logger.NewNop()).(*FlatFileCartRepository)
	return repo, path
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	repo, _ := newTestRepo(t, "")

	store, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestLoadParsesRecordsInOrder(t *testing.T) {
	repo, _ := newTestRepo(t, "42,1,0,0\n\n100000,3,2,1\n")

	store, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"42", "100000"}, store.IDs())

	c, ok := store.Get("100000")
	require.True(t, ok)
	assert.Equal(t, entities.Counts{Computers: 3, Phones: 2, Printers: 1}, c)
}

func TestLoadRejectsMalformedLines(t *testing.T) {
	cases := map[string]string{
		"too few fields":  "42,1,0\n",
		"too many fields": "42,1,0,0,0\n",
		"non integer":     "42,one,0,0\n",
		"negative":        "42,1,-1,0\n",
		"empty id":        ",1,0,0\n",
		"duplicate id":    "42,1,0,0\n42,0,0,0\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			repo, _ := newTestRepo(t, content)
			_, err := repo.Load(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, entities.ErrCorruptStore), "got %v", err)
		})
	}
}

func TestPersistReloadRoundTrip(t *testing.T) {
	repo, path := newTestRepo(t, "")
	ctx := context.Background()

	store := entities.NewCartStore()
	require.NoError(t, store.Insert("500000", entities.Counts{Computers: 5}))
	require.NoError(t, store.Insert("42", entities.Counts{Computers: 1, Phones: 2}))
	require.NoError(t, store.Insert("123456", entities.Counts{Printers: 9}))

	require.NoError(t, repo.Persist(ctx, store))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "500000,5,0,0\n42,1,2,0\n123456,0,0,9\n", string(raw))

	reloaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Records(), reloaded.Records())
}

func TestPersistLeavesNoTempFiles(t *testing.T) {
	repo, path := newTestRepo(t, "")
	store := entities.NewCartStore()
	require.NoError(t, store.Insert("1", entities.Counts{}))
	require.NoError(t, repo.Persist(context.Background(), store))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "shoppingcart.txt", entries[0].Name())
}

func TestUpdateDoesNotPersistOnError(t *testing.T) {
	repo, path := newTestRepo(t, "42,1,0,0\n")
	boom := errors.New("boom")

	err := repo.Update(context.Background(), func(store *entities.CartStore) error {
		store.ApplyDelta("42", entities.ItemPhone, 5)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "42,1,0,0\n", string(raw))
}

func TestConcurrentUpdatesAreSerialised(t *testing.T) {
	repo, _ := newTestRepo(t, "42,0,0,0\n")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Update(ctx, func(store *entities.CartStore) error {
				store.ApplyDelta("42", entities.ItemPrinter, 1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	store, err := repo.Load(ctx)
	require.NoError(t, err)
	c, _ := store.Get("42")
	assert.Equal(t, 20, c.Printers)
}

func TestEncodeDecodeCartStore(t *testing.T) {
	store, err := DecodeCartStore(strings.NewReader("7,1,2,3\n8,0,0,0"))
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, EncodeCartStore(&sb, store))
	assert.Equal(t, "7,1,2,3\n8,0,0,0\n", sb.String())
}

func TestHealthCheck(t *testing.T) {
	repo, _ := newTestRepo(t, "")
	assert.NoError(t, repo.HealthCheck(context.Background()))

	missing := NewFlatFileCartRepository(filepath.Join(t.TempDir(), "nope", "cart.txt"), logger.NewNop())
	assert.Error(t, missing.HealthCheck(context.Background()))
}
