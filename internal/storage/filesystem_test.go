package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/pictor/internal/domain"
)

func newTestStore(t *testing.T) (*FileStore, PathConfig) {
	t.Helper()
	cfg := PathConfig{DataDir: t.TempDir()}
	return NewFileStore(cfg, zerolog.Nop()), cfg
}

func TestFileStore_Put(t *testing.T) {
	store, cfg := newTestStore(t)
	data := []byte("some image bytes")

	res, err := store.Put(context.Background(), data)
	require.NoError(t, err)
	assert.False(t, res.Existed)
	assert.Equal(t, ComputeHash(data), res.Hash)

	wantPath, err := ObjectPath(cfg, res.Hash)
	require.NoError(t, err)
	assert.Equal(t, wantPath, res.Path)

	stored, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, data, stored)
}

func TestFileStore_Put_Dedup(t *testing.T) {
	store, _ := newTestStore(t)
	data := []byte("same bytes twice")

	first, err := store.Put(context.Background(), data)
	require.NoError(t, err)
	assert.False(t, first.Existed)

	second, err := store.Put(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, second.Existed)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.Path, second.Path)
}

func TestFileStore_Put_Concurrent(t *testing.T) {
	store, _ := newTestStore(t)
	data := []byte("raced bytes")

	const writers = 16
	var wg sync.WaitGroup
	results := make([]PutResult, writers)
	errs := make([]error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.Put(context.Background(), data)
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Hash, results[i].Hash)
	}

	stored, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(results[0].Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_Put_CancelledContext(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Put(ctx, []byte("never stored"))
	require.Error(t, err)
}

func TestFileStore_ExistsAndOpen(t *testing.T) {
	store, _ := newTestStore(t)
	data := []byte("readable")

	res, err := store.Put(context.Background(), data)
	require.NoError(t, err)

	ok, err := store.Exists(context.Background(), res.Hash)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := store.Open(context.Background(), res.Hash)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFileStore_Open_NotFound(t *testing.T) {
	store, _ := newTestStore(t)
	missing := ComputeHash([]byte("never put"))

	ok, err := store.Exists(context.Background(), missing)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Open(context.Background(), missing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestFileStore_MalformedHash(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Open(context.Background(), "../../../etc/passwd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMalformedHash))
}

func TestObjectPath_Sharding(t *testing.T) {
	cfg := PathConfig{DataDir: "/data"}
	path, err := ObjectPath(cfg, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "de", "adbeefdeadbeefdeadbeefdeadbeefdeadbeef"), path)
}

func TestShardDir(t *testing.T) {
	cfg := PathConfig{DataDir: "/data"}
	dir, err := ShardDir(cfg, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "de"), dir)

	_, err = ShardDir(cfg, "nothex")
	require.Error(t, err)
}

func TestDerivedPNGPath(t *testing.T) {
	assert.Equal(t, "/data/de/adbeef.png", DerivedPNGPath("/data/de/adbeef"))
}
