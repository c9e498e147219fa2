// Package repository defines data access interfaces for Pictor.
package repository

import (
	"context"

	"github.com/prn-tf/pictor/internal/domain"
)

// UserRepository tracks upload callers by client address.
// It is consulted before accepting an upload and updated after each one.
type UserRepository interface {
	// GetByAddress retrieves the user record for a client address.
	// Returns domain.ErrUserNotFound if no record exists.
	GetByAddress(ctx context.Context, address string) (*domain.User, error)

	// Create creates a new user record and fills in its ID.
	// Returns domain.ErrUserAlreadyExists if the address is already tracked.
	Create(ctx context.Context, user *domain.User) error

	// SetBlocked flips the blocked flag for a user.
	// Returns domain.ErrUserNotFound if the user does not exist.
	SetBlocked(ctx context.Context, id int64, blocked bool) error

	// RecordUpload associates a content hash with a user.
	RecordUpload(ctx context.Context, userID int64, hash string) error

	// ListUploads returns the most recent uploads of a user, newest first.
	ListUploads(ctx context.Context, userID int64, limit int) ([]*domain.Upload, error)

	// List returns user records ordered by creation time, newest first.
	List(ctx context.Context, limit, offset int) ([]*domain.User, error)
}
