package storage

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/prn-tf/pictor/internal/domain"
)

const (
	// HashLength is the length of a hex-encoded content hash.
	HashLength = 40

	// shardWidth is the number of leading hash characters used as the shard directory.
	shardWidth = 2
)

// ComputeHash returns the content address of a blob: a SHA-1 digest,
// hex-encoded in lowercase, always exactly HashLength characters.
func ComputeHash(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// ValidateHash checks that a string is a well-formed content hash.
// Anything that is not exactly HashLength hex characters is rejected
// before it can be used in a filesystem path.
func ValidateHash(hash string) error {
	if len(hash) != HashLength {
		return fmt.Errorf("%w: length %d", domain.ErrMalformedHash, len(hash))
	}
	for i := 0; i < len(hash); i++ {
		c := hash[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return fmt.Errorf("%w: invalid character %q", domain.ErrMalformedHash, c)
		}
	}
	return nil
}

// SplitShard splits a validated hash into its shard prefix (first 2 characters)
// and remainder (38 characters). Concatenating the two reconstructs the hash.
func SplitShard(hash string) (prefix, suffix string, err error) {
	if err := ValidateHash(hash); err != nil {
		return "", "", err
	}
	return hash[:shardWidth], hash[shardWidth:], nil
}
