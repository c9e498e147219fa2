package transcode

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/pictor/internal/lock"
	"github.com/prn-tf/pictor/internal/storage"
)

// Options tune the per-source conversion lock.
type Options struct {
	// LockTTL bounds how long a conversion may hold its lock.
	LockTTL time.Duration

	// LockRetries is how many times a waiter re-attempts acquisition.
	LockRetries int

	// RetryDelay is the pause between acquisition attempts.
	RetryDelay time.Duration
}

// DefaultOptions returns conversion lock settings suitable for typical images.
func DefaultOptions() Options {
	return Options{
		LockTTL:     30 * time.Second,
		LockRetries: 60,
		RetryDelay:  500 * time.Millisecond,
	}
}

// Cache materializes PNG siblings of WebP blobs on first demand and reuses
// them afterwards. Derived files are trusted once present and never re-derived.
type Cache struct {
	converter Converter
	locker    lock.Locker
	opts      Options
	logger    zerolog.Logger
}

// NewCache creates a transcode cache. The locker serializes conversion per
// source blob so concurrent first requests spawn at most one subprocess.
func NewCache(converter Converter, locker lock.Locker, opts Options, logger zerolog.Logger) *Cache {
	return &Cache{
		converter: converter,
		locker:    locker,
		opts:      opts,
		logger:    logger.With().Str("component", "transcode").Logger(),
	}
}

// EnsurePNG returns the path of the PNG rendering of the WebP blob at
// sourcePath, converting it first if no cached copy exists. The caller's
// request suspends until conversion completes.
func (c *Cache) EnsurePNG(ctx context.Context, sourcePath string) (string, error) {
	pngPath := storage.DerivedPNGPath(sourcePath)
	if fileExists(pngPath) {
		return pngPath, nil
	}

	key := lock.Keys.Transcode(sourcePath)
	acquired, err := c.locker.AcquireWithRetry(ctx, key, c.opts.LockTTL, c.opts.LockRetries, c.opts.RetryDelay)
	if err != nil {
		return "", err
	}
	if acquired {
		defer c.locker.Release(context.WithoutCancel(ctx), key)
	}

	// Whoever held the lock may have finished the conversion while we waited.
	if fileExists(pngPath) {
		return pngPath, nil
	}

	// If the lock could not be acquired within the retry budget, convert
	// anyway: the converter writes through a temp name, so a duplicate run
	// is wasted work but never a torn file.
	if err := c.converter.WebPToPNG(ctx, sourcePath, pngPath); err != nil {
		c.logger.Error().Err(err).Str("src", sourcePath).Msg("conversion failed")
		return "", err
	}
	return pngPath, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
