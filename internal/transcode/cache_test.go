package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/pictor/internal/domain"
	"github.com/prn-tf/pictor/internal/lock"
	"github.com/prn-tf/pictor/internal/storage"
)

// fakeConverter writes a marker file instead of invoking dwebp.
type fakeConverter struct {
	mu    sync.Mutex
	calls int
	fail  bool
	delay time.Duration
}

func (f *fakeConverter) WebPToPNG(ctx context.Context, src, dst string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail {
		return domain.ErrTranscodeFailed
	}
	return os.WriteFile(dst, []byte("png bytes"), 0o640)
}

func (f *fakeConverter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestCache(t *testing.T, conv Converter) (*Cache, string) {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "adbeef")
	require.NoError(t, os.WriteFile(src, []byte("webp bytes"), 0o640))

	opts := Options{LockTTL: time.Second, LockRetries: 20, RetryDelay: 10 * time.Millisecond}
	return NewCache(conv, lock.NewMemoryLocker(), opts, zerolog.Nop()), src
}

func TestCache_EnsurePNG(t *testing.T) {
	conv := &fakeConverter{}
	cache, src := newTestCache(t, conv)

	pngPath, err := cache.EnsurePNG(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, storage.DerivedPNGPath(src), pngPath)
	assert.FileExists(t, pngPath)
	assert.Equal(t, 1, conv.callCount())
}

func TestCache_EnsurePNG_Cached(t *testing.T) {
	conv := &fakeConverter{}
	cache, src := newTestCache(t, conv)

	first, err := cache.EnsurePNG(context.Background(), src)
	require.NoError(t, err)
	second, err := cache.EnsurePNG(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, conv.callCount())
}

func TestCache_EnsurePNG_Failure(t *testing.T) {
	conv := &fakeConverter{fail: true}
	cache, src := newTestCache(t, conv)

	_, err := cache.EnsurePNG(context.Background(), src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTranscodeFailed))
	assert.NoFileExists(t, storage.DerivedPNGPath(src))
}

func TestCache_EnsurePNG_Concurrent(t *testing.T) {
	conv := &fakeConverter{delay: 20 * time.Millisecond}
	cache, src := newTestCache(t, conv)

	const waiters = 8
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.EnsurePNG(context.Background(), src)
		}(i)
	}
	wg.Wait()

	for i := 0; i < waiters; i++ {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, 1, conv.callCount())
	assert.FileExists(t, storage.DerivedPNGPath(src))
}
