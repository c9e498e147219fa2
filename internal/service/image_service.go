package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"

	"github.com/prn-tf/pictor/internal/domain"
	"github.com/prn-tf/pictor/internal/metrics"
	"github.com/prn-tf/pictor/internal/negotiate"
	"github.com/prn-tf/pictor/internal/sniff"
	"github.com/prn-tf/pictor/internal/storage"
	"github.com/prn-tf/pictor/internal/transcode"
)

// ImageService resolves retrieval requests to the physical file to serve,
// applying content negotiation and the transcode cache.
type ImageService struct {
	paths      storage.PathConfig
	sniffer    *sniff.Sniffer
	transcoder *transcode.Cache
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewImageService creates a new ImageService.
func NewImageService(
	paths storage.PathConfig,
	sniffer *sniff.Sniffer,
	transcoder *transcode.Cache,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ImageService {
	return &ImageService{
		paths:      paths,
		sniffer:    sniffer,
		transcoder: transcoder,
		metrics:    m,
		logger:     logger.With().Str("service", "image").Logger(),
	}
}

// ResolveInput identifies one retrieval request.
type ResolveInput struct {
	// Prefix and Suffix are the sharded hash segments from the URL.
	Prefix string
	Suffix string

	// Ext is the explicit URL extension including the leading dot, or "".
	Ext string

	// Method, Accept and UserAgent come from the HTTP request.
	Method    string
	Accept    string
	UserAgent string
}

// ResolveOutput says what to serve and with which headers.
type ResolveOutput struct {
	// Path is the physical file to serve (original blob or PNG sibling).
	Path string

	// ContentType is the media type of the served bytes.
	ContentType string

	// ContentEncoding is "gzip" or empty.
	ContentEncoding string

	// Vary is the Vary header value, or "" when negotiation did not apply.
	Vary string
}

// Resolve validates the requested hash, sniffs the stored object, and decides
// between the original bytes and the transcoded PNG.
func (s *ImageService) Resolve(ctx context.Context, in ResolveInput) (*ResolveOutput, error) {
	hash := in.Prefix + in.Suffix
	path, err := storage.ObjectPath(s.paths, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	sniffed, err := s.sniffer.Sniff(ctx, path)
	if err != nil {
		return nil, err
	}

	decision := negotiate.Decide(negotiate.Request{
		MIME:         sniffed.MIME,
		PhysicalPath: path,
		Method:       in.Method,
		Accept:       in.Accept,
		UserAgent:    in.UserAgent,
		Ext:          in.Ext,
	})

	out := &ResolveOutput{
		Path:            path,
		ContentType:     sniffed.MIME,
		ContentEncoding: sniffed.Encoding,
		Vary:            decision.Vary,
	}

	if decision.Variant == negotiate.PNG {
		cached := fileExists(storage.DerivedPNGPath(path))
		pngPath, err := s.transcoder.EnsurePNG(ctx, path)
		if err != nil {
			s.metrics.TranscodesTotal.WithLabelValues(metrics.ResultError).Inc()
			return nil, err
		}
		if cached {
			s.metrics.TranscodesTotal.WithLabelValues(metrics.ResultCacheHit).Inc()
		} else {
			s.metrics.TranscodesTotal.WithLabelValues(metrics.ResultOK).Inc()
		}
		out.Path = pngPath
		out.ContentType = "image/png"
		out.ContentEncoding = ""
	}

	return out, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
