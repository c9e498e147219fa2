package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prn-tf/pictor/internal/domain"
	"github.com/prn-tf/pictor/internal/repository"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// userRepository implements repository.UserRepository for PostgreSQL.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user record.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (address, blocked, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query, user.Address, user.Blocked, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", domain.ErrUserAlreadyExists, user.Address)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByAddress retrieves a user by client address.
func (r *userRepository) GetByAddress(ctx context.Context, address string) (*domain.User, error) {
	query := `
		SELECT id, address, blocked, created_at
		FROM users
		WHERE address = $1
	`

	user := &domain.User{}
	err := r.db.Pool.QueryRow(ctx, query, address).Scan(
		&user.ID,
		&user.Address,
		&user.Blocked,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by address: %w", err)
	}

	return user, nil
}

// SetBlocked flips the blocked flag for a user.
func (r *userRepository) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	query := `UPDATE users SET blocked = $1 WHERE id = $2`

	tag, err := r.db.Pool.Exec(ctx, query, blocked, id)
	if err != nil {
		return fmt.Errorf("failed to update blocked flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// RecordUpload associates a content hash with a user.
func (r *userRepository) RecordUpload(ctx context.Context, userID int64, hash string) error {
	query := `
		INSERT INTO uploads (user_id, hash, created_at)
		VALUES ($1, $2, $3)
	`

	if _, err := r.db.Pool.Exec(ctx, query, userID, hash, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
	}

	return nil
}

// ListUploads returns the most recent uploads of a user, newest first.
func (r *userRepository) ListUploads(ctx context.Context, userID int64, limit int) ([]*domain.Upload, error) {
	query := `
		SELECT id, user_id, hash, created_at
		FROM uploads
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*domain.Upload
	for rows.Next() {
		upload := &domain.Upload{}
		if err := rows.Scan(&upload.ID, &upload.UserID, &upload.Hash, &upload.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
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
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user := &domain.User{}
		if err := rows.Scan(&user.ID, &user.Address, &user.Blocked, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}
