package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/pictor/internal/domain"
)

const (
	// shardDirMode restricts shard directories to owner and group.
	shardDirMode = 0o750

	// objectFileMode restricts stored blobs to owner and group.
	objectFileMode = 0o640
)

// FileStore is the filesystem Backend. All mutation is append-only: new files
// are created via an exclusive temp name and rename, existing files are never
// rewritten or removed.
type FileStore struct {
	cfg    PathConfig
	logger zerolog.Logger
}

// NewFileStore creates a FileStore rooted at cfg.DataDir.
func NewFileStore(cfg PathConfig, logger zerolog.Logger) *FileStore {
	return &FileStore{
		cfg:    cfg,
		logger: logger.With().Str("component", "filestore").Logger(),
	}
}

// Put stores a blob under its content address.
// A concurrent Put of identical bytes is harmless: whichever rename lands
// first wins and the other observes the file as already present.
func (s *FileStore) Put(ctx context.Context, data []byte) (PutResult, error) {
	if err := ctx.Err(); err != nil {
		return PutResult{}, err
	}

	hash := ComputeHash(data)
	path, err := ObjectPath(s.cfg, hash)
	if err != nil {
		return PutResult{}, err
	}

	if _, err := os.Stat(path); err == nil {
		s.logger.Debug().Str("hash", hash).Msg("dedup hit")
		return PutResult{Hash: hash, Path: path, Existed: true}, nil
	}

	dir, err := ShardDir(s.cfg, hash)
	if err != nil {
		return PutResult{}, err
	}
	if err := os.MkdirAll(dir, shardDirMode); err != nil {
		return PutResult{}, fmt.Errorf("%w: create shard dir: %v", domain.ErrStorageWrite, err)
	}

	// Write to a unique temp name in the shard dir, then rename over the
	// final path. Readers never observe a partially written blob, and a
	// lost rename race just replaces identical bytes.
	tmp := filepath.Join(dir, ".tmp-"+uuid.NewString())
	if err := writeFile(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return PutResult{}, fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return PutResult{}, fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
	}

	s.logger.Info().Str("hash", hash).Int("size", len(data)).Msg("blob stored")
	return PutResult{Hash: hash, Path: path}, nil
}

// Exists checks whether a blob with the given hash is stored.
func (s *FileStore) Exists(ctx context.Context, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := ObjectPath(s.cfg, hash)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Open opens a stored blob for reading.
func (s *FileStore) Open(ctx context.Context, hash string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := ObjectPath(s.cfg, hash)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Path returns the physical path for a content hash.
func (s *FileStore) Path(hash string) (string, error) {
	return ObjectPath(s.cfg, hash)
}

func writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, objectFileMode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Ensure FileStore implements Backend.
var _ Backend = (*FileStore)(nil)
