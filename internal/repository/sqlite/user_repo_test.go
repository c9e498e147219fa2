package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/pictor/internal/domain"
	"github.com/prn-tf/pictor/internal/repository"
)

func newTestRepo(t *testing.T) repository.UserRepository {
	t.Helper()
	ctx := context.Background()

	db, err := NewDB(ctx, DefaultConfig(":memory:"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(ctx))
	return NewUserRepository(db)
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := domain.NewUser("203.0.113.7")
	require.NoError(t, repo.Create(ctx, user))
	assert.NotZero(t, user.ID)

	got, err := repo.GetByAddress(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "203.0.113.7", got.Address)
	assert.False(t, got.Blocked)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestUserRepository_Create_DuplicateAddress(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.NewUser("203.0.113.7")))

	err := repo.Create(ctx, domain.NewUser("203.0.113.7"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUserAlreadyExists))
}

func TestUserRepository_GetByAddress_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByAddress(context.Background(), "198.51.100.1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUserNotFound))
}

func TestUserRepository_SetBlocked(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := domain.NewUser("203.0.113.7")
	require.NoError(t, repo.Create(ctx, user))

	require.NoError(t, repo.SetBlocked(ctx, user.ID, true))
	got, err := repo.GetByAddress(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, got.Blocked)
	assert.False(t, got.CanUpload())

	require.NoError(t, repo.SetBlocked(ctx, user.ID, false))
	got, err = repo.GetByAddress(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, got.Blocked)
}

func TestUserRepository_SetBlocked_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.SetBlocked(context.Background(), 9999, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUserNotFound))
}

func TestUserRepository_RecordAndListUploads(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := domain.NewUser("203.0.113.7")
	require.NoError(t, repo.Create(ctx, user))

	hashes := []string{
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		"cccccccccccccccccccccccccccccccccccccccc",
	}
	for _, h := range hashes {
		require.NoError(t, repo.RecordUpload(ctx, user.ID, h))
	}

	uploads, err := repo.ListUploads(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, uploads, 3)

	// Newest first.
	assert.Equal(t, hashes[2], uploads[0].Hash)
	assert.Equal(t, hashes[0], uploads[2].Hash)

	limited, err := repo.ListUploads(ctx, user.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestUserRepository_List(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	addresses := []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"}
	for _, addr := range addresses {
		require.NoError(t, repo.Create(ctx, domain.NewUser(addr)))
	}

	users, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "203.0.113.3", users[0].Address)

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "203.0.113.2", page[0].Address)
}

func TestDB_MigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB(ctx, DefaultConfig(":memory:"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx))
}
