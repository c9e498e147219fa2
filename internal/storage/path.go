// Package storage owns the on-disk content-addressed layout.
// Blobs are stored write-once under <data_dir>/<2-hex>/<38-hex>, sharded by
// hash prefix to bound directory fan-out.
package storage

import (
	"path/filepath"
)

// PathConfig holds configuration for storage path generation.
type PathConfig struct {
	// DataDir is the root directory for blob storage.
	DataDir string
}

// ObjectPath returns the physical path for a content hash.
//
// Example:
//
//	hash: "deadbeef..."
//	dataDir: "/data"
//	result: "/data/de/adbeef..."
func ObjectPath(cfg PathConfig, hash string) (string, error) {
	prefix, suffix, err := SplitShard(hash)
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.DataDir, prefix, suffix), nil
}

// ShardDir returns the shard directory for a content hash (without the filename).
// Useful for creating the directory structure before storing.
func ShardDir(cfg PathConfig, hash string) (string, error) {
	prefix, _, err := SplitShard(hash)
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.DataDir, prefix), nil
}

// DerivedPNGPath returns the path of the cached PNG rendering of a stored blob.
// Derived artifacts live next to their source as "<suffix>.png" siblings.
func DerivedPNGPath(objectPath string) string {
	return objectPath + ".png"
}
