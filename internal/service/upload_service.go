// Package service provides the business logic of the Pictor store.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/pictor/internal/domain"
	"github.com/prn-tf/pictor/internal/metrics"
	"github.com/prn-tf/pictor/internal/repository"
	"github.com/prn-tf/pictor/internal/sniff"
	"github.com/prn-tf/pictor/internal/storage"
)

// UploadService accepts image uploads, deduplicates them by content hash,
// and tracks who uploaded what.
type UploadService struct {
	users   repository.UserRepository
	store   storage.Backend
	sniffer *sniff.Sniffer
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewUploadService creates a new UploadService.
func NewUploadService(
	users repository.UserRepository,
	store storage.Backend,
	sniffer *sniff.Sniffer,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *UploadService {
	return &UploadService{
		users:   users,
		store:   store,
		sniffer: sniffer,
		metrics: m,
		logger:  logger.With().Str("service", "upload").Logger(),
	}
}

// FileUpload is one file part of a multipart upload request.
type FileUpload struct {
	// Filename is the name the client supplied. Never trusted for anything
	// beyond labeling the per-file result line.
	Filename string

	// Data is the raw uploaded bytes.
	Data []byte
}

// FileResult is the per-file outcome of an upload batch.
type FileResult struct {
	// Filename echoes the client-supplied name.
	Filename string

	// Path is the public path fragment "prefix/suffix[.ext]" on success.
	Path string

	// Failed marks a storage write failure for this file only.
	Failed bool
}

// Upload processes one upload request from the given client address.
// Results preserve submission order; a write failure for one file never
// aborts its siblings. The caller record is consulted first, so a blocked
// caller is rejected even for a file-less request, and a first contact is
// tracked regardless of whether any files were sent.
func (s *UploadService) Upload(ctx context.Context, remoteAddr string, files []FileUpload) ([]FileResult, error) {
	user, err := s.lookupOrCreateUser(ctx, remoteAddr)
	if err != nil {
		return nil, err
	}
	if !user.CanUpload() {
		s.logger.Warn().Str("address", remoteAddr).Msg("blocked user attempted upload")
		return nil, domain.ErrAccessDenied
	}

	if len(files) == 0 {
		return nil, domain.ErrNoFiles
	}

	results := make([]FileResult, 0, len(files))
	for _, file := range files {
		results = append(results, s.uploadOne(ctx, user, file))
	}
	return results, nil
}

// uploadOne stores a single file and resolves its public path.
func (s *UploadService) uploadOne(ctx context.Context, user *domain.User, file FileUpload) FileResult {
	hash := storage.ComputeHash(file.Data)

	if err := s.users.RecordUpload(ctx, user.ID, hash); err != nil {
		s.logger.Error().Err(err).Str("hash", hash).Msg("failed to record upload")
	}

	res, err := s.store.Put(ctx, file.Data)
	if err != nil {
		s.logger.Error().Err(err).Str("hash", hash).Str("filename", file.Filename).Msg("failed to store file")
		s.metrics.UploadFailures.Inc()
		return FileResult{Filename: file.Filename, Failed: true}
	}

	s.metrics.UploadsTotal.Inc()
	s.metrics.UploadBytesTotal.Add(float64(len(file.Data)))
	if res.Existed {
		s.metrics.DedupHitsTotal.Inc()
	}

	prefix, suffix, err := storage.SplitShard(res.Hash)
	if err != nil {
		// Unreachable for a hash we just computed.
		s.logger.Error().Err(err).Str("hash", res.Hash).Msg("stored under malformed hash")
		return FileResult{Filename: file.Filename, Failed: true}
	}

	// The extension is a serving convenience; an unknown type simply
	// yields a bare hash URL.
	ext := ""
	if sniffed, err := s.sniffer.Sniff(ctx, res.Path); err != nil {
		s.logger.Warn().Err(err).Str("hash", res.Hash).Msg("sniff failed, omitting extension")
	} else {
		ext = sniff.ExtensionFor(sniffed.MIME)
	}

	return FileResult{
		Filename: file.Filename,
		Path:     fmt.Sprintf("%s/%s%s", prefix, suffix, ext),
	}
}

// lookupOrCreateUser fetches the tracking record for an address, creating it
// on first contact.
func (s *UploadService) lookupOrCreateUser(ctx context.Context, address string) (*domain.User, error) {
	user, err := s.users.GetByAddress(ctx, address)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("user lookup: %w", err)
	}

	user = domain.NewUser(address)
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent first upload from the same address may have won.
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return s.users.GetByAddress(ctx, address)
		}
		return nil, fmt.Errorf("user create: %w", err)
	}
	return user, nil
}
