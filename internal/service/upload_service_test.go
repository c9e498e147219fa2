package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/pictor/internal/cache/memory"
	"github.com/prn-tf/pictor/internal/domain"
	"github.com/prn-tf/pictor/internal/metrics"
	"github.com/prn-tf/pictor/internal/sniff"
	"github.com/prn-tf/pictor/internal/storage"
)

// =============================================================================
// Mocks
// =============================================================================

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) GetByAddress(ctx context.Context, address string) (*domain.User, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	args := m.Called(ctx, id, blocked)
	return args.Error(0)
}

func (m *mockUserRepository) RecordUpload(ctx context.Context, userID int64, hash string) error {
	args := m.Called(ctx, userID, hash)
	return args.Error(0)
}

func (m *mockUserRepository) ListUploads(ctx context.Context, userID int64, limit int) ([]*domain.Upload, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Upload), args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Put(ctx context.Context, data []byte) (storage.PutResult, error) {
	args := m.Called(ctx, data)
	return args.Get(0).(storage.PutResult), args.Error(1)
}

func (m *mockBackend) Exists(ctx context.Context, hash string) (bool, error) {
	args := m.Called(ctx, hash)
	return args.Bool(0), args.Error(1)
}

func (m *mockBackend) Open(ctx context.Context, hash string) (io.ReadCloser, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *mockBackend) Path(hash string) (string, error) {
	args := m.Called(hash)
	return args.String(0), args.Error(1)
}

type stubInspector struct {
	mimeType string
}

func (s stubInspector) MIME(ctx context.Context, path string) (string, string, error) {
	return s.mimeType, "", nil
}

func (s stubInspector) Describe(ctx context.Context, path string) (string, error) {
	return "", nil
}

// =============================================================================
// Helpers
// =============================================================================

func newTestUploadService(t *testing.T, users *mockUserRepository, store storage.Backend, mimeType string) *UploadService {
	t.Helper()
	cache := memory.NewCache()
	t.Cleanup(cache.Stop)
	sniffer := sniff.NewSniffer(stubInspector{mimeType: mimeType}, cache, zerolog.Nop())
	return NewUploadService(users, store, sniffer, metrics.NewUnregistered(), zerolog.Nop())
}

func putResultFor(data []byte, existed bool) storage.PutResult {
	hash := storage.ComputeHash(data)
	return storage.PutResult{Hash: hash, Path: "/data/" + hash[:2] + "/" + hash[2:], Existed: existed}
}

// =============================================================================
// Tests
// =============================================================================

func TestUploadService_Upload_NoFiles(t *testing.T) {
	users := new(mockUserRepository)
	store := new(mockBackend)
	svc := newTestUploadService(t, users, store, "image/png")

	user := &domain.User{ID: 4, Address: "203.0.113.7"}
	users.On("GetByAddress", mock.Anything, "203.0.113.7").Return(user, nil)

	_, err := svc.Upload(context.Background(), "203.0.113.7", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoFiles))
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestUploadService_Upload_NoFilesStillTracksFirstContact(t *testing.T) {
	users := new(mockUserRepository)
	store := new(mockBackend)
	svc := newTestUploadService(t, users, store, "image/png")

	users.On("GetByAddress", mock.Anything, "198.51.100.9").Return(nil, domain.ErrUserNotFound)
	users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Address == "198.51.100.9"
	})).Return(nil)

	_, err := svc.Upload(context.Background(), "198.51.100.9", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoFiles))
	users.AssertExpectations(t)
}

func TestUploadService_Upload_BlockedUserWithNoFiles(t *testing.T) {
	users := new(mockUserRepository)
	store := new(mockBackend)
	svc := newTestUploadService(t, users, store, "image/png")

	blocked := &domain.User{ID: 7, Address: "203.0.113.7", Blocked: true}
	users.On("GetByAddress", mock.Anything, "203.0.113.7").Return(blocked, nil)

	// The caller record wins over the empty-request check.
	_, err := svc.Upload(context.Background(), "203.0.113.7", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAccessDenied))
}

func TestUploadService_Upload_BlockedUser(t *testing.T) {
	users := new(mockUserRepository)
	store := new(mockBackend)
	svc := newTestUploadService(t, users, store, "image/png")

	blocked := &domain.User{ID: 7, Address: "203.0.113.7", Blocked: true}
	users.On("GetByAddress", mock.Anything, "203.0.113.7").Return(blocked, nil)

	_, err := svc.Upload(context.Background(), "203.0.113.7", []FileUpload{
		{Filename: "a.png", Data: []byte("bytes")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAccessDenied))
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	users.AssertNotCalled(t, "RecordUpload", mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadService_Upload_SingleFile(t *testing.T) {
	users := new(mockUserRepository)
	store := new(mockBackend)
	svc := newTestUploadService(t, users, store, "image/png")

	data := []byte("png bytes")
	hash := storage.ComputeHash(data)
	user := &domain.User{ID: 3, Address: "203.0.113.7"}

	users.On("GetByAddress", mock.Anything, "203.0.113.7").Return(user, nil)
	users.On("RecordUpload", mock.Anything, int64(3), hash).Return(nil)
	store.On("Put", mock.Anything, data).Return(putResultFor(data, false), nil)

	results, err := svc.Upload(context.Background(), "203.0.113.7", []FileUpload{
		{Filename: "a.png", Data: data},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Failed)
	assert.Equal(t, hash[:2]+"/"+hash[2:]+".png", results[0].Path)

	users.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestUploadService_Upload_FirstContactCreatesUser(t *testing.T) {
	users := new(mockUserRepository)
	store := new(mockBackend)
	svc := newTestUploadService(t, users, store, "image/png")

	data := []byte("fresh")
	users.On("GetByAddress", mock.Anything, "198.51.100.4").Return(nil, domain.ErrUserNotFound)
	users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Address == "198.51.100.4" && !u.Blocked
	})).Return(nil)
	users.On("RecordUpload", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("Put", mock.Anything, data).Return(putResultFor(data, false), nil)

	results, err := svc.Upload(context.Background(), "198.51.100.4", []FileUpload{
		{Filename: "f", Data: data},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	users.AssertExpectations(t)
}

func TestUploadService_Upload_CreateRace(t *testing.T) {
	users := new(mockUserRepository)
	store := new(mockBackend)
	svc := newTestUploadService(t, users, store, "image/png")

	data := []byte("raced")
	winner := &domain.User{ID: 11, Address: "198.51.100.4"}

	users.On("GetByAddress", mock.Anything, "198.51.100.4").Return(nil, domain.ErrUserNotFound).Once()
	users.On("Create", mock.Anything, mock.Anything).Return(domain.ErrUserAlreadyExists)
	users.On("GetByAddress", mock.Anything, "198.51.100.4").Return(winner, nil).Once()
	users.On("RecordUpload", mock.Anything, int64(11), mock.Anything).Return(nil)
	store.On("Put", mock.Anything, data).Return(putResultFor(data, false), nil)

	results, err := svc.Upload(context.Background(), "198.51.100.4", []FileUpload{
		{Filename: "f", Data: data},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	users.AssertExpectations(t)
}

func TestUploadService_Upload_MiddleFileFailureIsIsolated(t *testing.T) {
	users := new(mockUserRepository)
	store := new(mockBackend)
	svc := newTestUploadService(t, users, store, "image/png")

	first := []byte("first")
	second := []byte("second")
	third := []byte("third")

	user := &domain.User{ID: 5, Address: "203.0.113.7"}
	users.On("GetByAddress", mock.Anything, "203.0.113.7").Return(user, nil)
	users.On("RecordUpload", mock.Anything, int64(5), mock.Anything).Return(nil)

	store.On("Put", mock.Anything, first).Return(putResultFor(first, false), nil)
	store.On("Put", mock.Anything, second).Return(storage.PutResult{}, domain.ErrStorageWrite)
	store.On("Put", mock.Anything, third).Return(putResultFor(third, false), nil)

	results, err := svc.Upload(context.Background(), "203.0.113.7", []FileUpload{
		{Filename: "one", Data: first},
		{Filename: "two", Data: second},
		{Filename: "three", Data: third},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "one", results[0].Filename)
	assert.False(t, results[0].Failed)
	assert.Equal(t, "two", results[1].Filename)
	assert.True(t, results[1].Failed)
	assert.Empty(t, results[1].Path)
	assert.Equal(t, "three", results[2].Filename)
	assert.False(t, results[2].Failed)
}

func TestUploadService_Upload_DuplicateContent(t *testing.T) {
	users := new(mockUserRepository)
	store := new(mockBackend)
	svc := newTestUploadService(t, users, store, "image/jpeg")

	data := []byte("same picture")
	hash := storage.ComputeHash(data)
	user := &domain.User{ID: 2, Address: "203.0.113.9"}

	users.On("GetByAddress", mock.Anything, "203.0.113.9").Return(user, nil)
	users.On("RecordUpload", mock.Anything, int64(2), hash).Return(nil).Twice()
	store.On("Put", mock.Anything, data).Return(putResultFor(data, false), nil).Once()
	store.On("Put", mock.Anything, data).Return(putResultFor(data, true), nil).Once()

	results, err := svc.Upload(context.Background(), "203.0.113.9", []FileUpload{
		{Filename: "a.jpg", Data: data},
		{Filename: "b.jpg", Data: data},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, results[0].Path, results[1].Path)
	assert.Equal(t, hash[:2]+"/"+hash[2:]+".jpg", results[0].Path)
	users.AssertExpectations(t)
}
