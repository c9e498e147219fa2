package sniff

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/pictor/internal/repository"
)

// webpDescription is the marker file(1) prints for WebP images it cannot
// classify by MIME type. Older releases of file predate WebP and report
// application/octet-stream instead of image/webp.
const webpDescription = "Web/P image"

// Result is the sniffed type of a stored blob.
type Result struct {
	// MIME is the detected media type, e.g. "image/webp".
	MIME string

	// Encoding is the transport encoding, "gzip" or empty.
	// Encodings other than gzip are discarded.
	Encoding string
}

// Sniffer resolves the MIME type of stored files through an Inspector,
// memoizing results per path. Stored content is immutable once written, so
// cached results never go stale.
type Sniffer struct {
	inspector Inspector
	cache     repository.Cache
	logger    zerolog.Logger
}

// NewSniffer creates a Sniffer. The cache may be the in-memory or Redis
// implementation; callers needing a bounded cache inject their own.
func NewSniffer(inspector Inspector, cache repository.Cache, logger zerolog.Logger) *Sniffer {
	return &Sniffer{
		inspector: inspector,
		cache:     cache,
		logger:    logger.With().Str("component", "sniffer").Logger(),
	}
}

// Sniff returns the MIME type and encoding of the file at path.
func (s *Sniffer) Sniff(ctx context.Context, path string) (Result, error) {
	key := cacheKey(path)
	if b, err := s.cache.Get(ctx, key); err == nil {
		return decodeResult(string(b)), nil
	} else if !errors.Is(err, repository.ErrCacheMiss) {
		s.logger.Warn().Err(err).Str("path", path).Msg("sniff cache unavailable")
	}

	mimeType, encoding, err := s.inspector.MIME(ctx, path)
	if err != nil {
		return Result{}, err
	}

	if mimeType == "application/octet-stream" {
		desc, err := s.inspector.Describe(ctx, path)
		if err != nil {
			return Result{}, err
		}
		if strings.Contains(desc, webpDescription) {
			mimeType, encoding = "image/webp", ""
		}
	}

	if encoding != "gzip" {
		encoding = ""
	}

	res := Result{MIME: mimeType, Encoding: encoding}
	if err := s.cache.Set(ctx, key, []byte(encodeResult(res)), 0); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("failed to cache sniff result")
	}
	return res, nil
}

func cacheKey(path string) string {
	return "sniff:" + path
}

func encodeResult(r Result) string {
	return r.MIME + "|" + r.Encoding
}

func decodeResult(s string) Result {
	mimeType, encoding, _ := strings.Cut(s, "|")
	return Result{MIME: mimeType, Encoding: encoding}
}
