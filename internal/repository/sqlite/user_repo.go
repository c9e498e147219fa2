package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/pictor/internal/domain"
	"github.com/prn-tf/pictor/internal/repository"
)

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user record.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (address, blocked, created_at)
		VALUES (?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Address,
		boolToInt(user.Blocked),
		user.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrUserAlreadyExists, user.Address)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	user.ID = id

	return nil
}

// GetByAddress retrieves a user by client address.
func (r *userRepository) GetByAddress(ctx context.Context, address string) (*domain.User, error) {
	query := `
		SELECT id, address, blocked, created_at
		FROM users
		WHERE address = ?
	`

	user := &domain.User{}
	var blocked int
	var createdAt string

	err := r.db.QueryRowContext(ctx, query, address).Scan(
		&user.ID,
		&user.Address,
		&blocked,
		&createdAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by address: %w", err)
	}

	user.Blocked = blocked != 0
	user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return user, nil
}

// SetBlocked flips the blocked flag for a user.
func (r *userRepository) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	query := `UPDATE users SET blocked = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, boolToInt(blocked), id)
	if err != nil {
		return fmt.Errorf("failed to update blocked flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// RecordUpload associates a content hash with a user.
func (r *userRepository) RecordUpload(ctx context.Context, userID int64, hash string) error {
	query := `
		INSERT INTO uploads (user_id, hash, created_at)
		VALUES (?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, userID, hash, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
	}

	return nil
}

// ListUploads returns the most recent uploads of a user, newest first.
func (r *userRepository) ListUploads(ctx context.Context, userID int64, limit int) ([]*domain.Upload, error) {
	query := `
		SELECT id, user_id, hash, created_at
		FROM uploads
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*domain.Upload
	for rows.Next() {
		upload := &domain.Upload{}
		var createdAt string
		if err := rows.Scan(&upload.ID, &upload.UserID, &upload.Hash, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		upload.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		uploads = append(uploads, upload)
	}

	return uploads, rows.Err()
}

// List returns user records ordered by creation time, newest first.
func (r *userRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	query := `
		SELECT id, address, blocked, created_at
		FROM users
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user := &domain.User{}
		var blocked int
		var createdAt string
		if err := rows.Scan(&user.ID, &user.Address, &blocked, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.Blocked = blocked != 0
		user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		users = append(users, user)
	}

	return users, rows.Err()
}

// boolToInt converts a bool to the 0/1 SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
