package backup

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Moshfiqmoon/Championyourpicks/internal/config"
	"github.com/Moshfiqmoon/Championyourpicks/internal/models"
	"github.com/Moshfiqmoon/Championyourpicks/internal/storage/blob"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) ListUsers(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}
func (m *RepoMock) CountUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
func (m *RepoMock) UpsertUsers(ctx context.Context, users []*models.User, fillMissingOnly bool) error {
	return m.Called(ctx, users, fillMissingOnly).Error(0)
}

type BlobMock struct{ mock.Mock }

func (m *BlobMock) Put(ctx context.Context, key string, data []byte) error {
	return m.Called(ctx, key, data).Error(0)
}
func (m *BlobMock) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func newService(repo *RepoMock, blobStore *BlobMock) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	return New(repo, blobStore, log, "users_backup.json")
}

func TestService_Snapshot_RoundTrip(t *testing.T) {
	repo := new(RepoMock)
	blobStore := new(BlobMock)
	svc := newService(repo, blobStore)

	end := time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)
	code := "REF42ABCD"
	repo.On("ListUsers", mock.Anything).Return([]*models.User{
		{UserID: 42, SubscriptionEnd: &end, PaymentStatus: models.PaymentStatusActive, ReferralCode: &code},
		{UserID: 7, PaymentStatus: models.PaymentStatusNone},
	}, nil)

	var written []byte
	blobStore.On("Put", mock.Anything, "users_backup.json", mock.Anything).
		Run(func(args mock.Arguments) { written = args.Get(2).([]byte) }).
		Return(nil)

	n, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var records []models.BackupUser
	require.NoError(t, json.Unmarshal(written, &records))
	require.Len(t, records, 2)
	assert.Equal(t, int64(42), records[0].UserID)
	require.NotNil(t, records[0].SubscriptionEnd)
	assert.Equal(t, "2025-03-08T12:00:00Z", *records[0].SubscriptionEnd)
	assert.Nil(t, records[1].SubscriptionEnd)
}

func TestService_Restore_OnEmptySkipsPopulatedStore(t *testing.T) {
	repo := new(RepoMock)
	blobStore := new(BlobMock)
	svc := newService(repo, blobStore)

	repo.On("CountUsers", mock.Anything).Return(int64(5), nil)

	n, err := svc.Restore(context.Background(), config.RestorePolicyOnEmpty)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	blobStore.AssertNotCalled(t, "Get")
	repo.AssertNotCalled(t, "UpsertUsers")
}

func TestService_Restore_OnEmptyAppliesToEmptyStore(t *testing.T) {
	repo := new(RepoMock)
	blobStore := new(BlobMock)
	svc := newService(repo, blobStore)

	endStr := "2025-03-08T12:00:00Z"
	data, err := json.Marshal([]models.BackupUser{
		{UserID: 42, SubscriptionEnd: &endStr, PaymentStatus: models.PaymentStatusActive},
	})
	require.NoError(t, err)

	repo.On("CountUsers", mock.Anything).Return(int64(0), nil)
	blobStore.On("Get", mock.Anything, "users_backup.json").Return(data, nil)
	repo.On("UpsertUsers", mock.Anything, mock.MatchedBy(func(users []*models.User) bool {
		return len(users) == 1 && users[0].UserID == 42 &&
			users[0].SubscriptionEnd != nil &&
			users[0].SubscriptionEnd.Equal(time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC))
	}), false).Return(nil)

	n, err := svc.Restore(context.Background(), config.RestorePolicyOnEmpty)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	repo.AssertExpectations(t)
}

func TestService_Restore_FillMissing(t *testing.T) {
	repo := new(RepoMock)
	blobStore := new(BlobMock)
	svc := newService(repo, blobStore)

	data, err := json.Marshal([]models.BackupUser{{UserID: 1, PaymentStatus: models.PaymentStatusExpired}})
	require.NoError(t, err)

	blobStore.On("Get", mock.Anything, "users_backup.json").Return(data, nil)
	repo.On("UpsertUsers", mock.Anything, mock.Anything, true).Return(nil)

	_, err = svc.Restore(context.Background(), config.RestorePolicyFillMissing)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestService_Restore_MissingSnapshot(t *testing.T) {
	repo := new(RepoMock)
	blobStore := new(BlobMock)
	svc := newService(repo, blobStore)

	blobStore.On("Get", mock.Anything, "users_backup.json").Return(nil, blob.ErrNotFound)

	_, err := svc.Restore(context.Background(), config.RestorePolicyAlways)
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestService_Restore_SkipsMalformedRecords(t *testing.T) {
	repo := new(RepoMock)
	blobStore := new(BlobMock)
	svc := newService(repo, blobStore)

	bad := "not-a-date"
	data, err := json.Marshal([]models.BackupUser{
		{UserID: 1, SubscriptionEnd: &bad},
		{UserID: 2, PaymentStatus: models.PaymentStatusNone},
	})
	require.NoError(t, err)

	blobStore.On("Get", mock.Anything, "users_backup.json").Return(data, nil)
	repo.On("UpsertUsers", mock.Anything, mock.MatchedBy(func(users []*models.User) bool {
		return len(users) == 1 && users[0].UserID == 2
	}), false).Return(nil)

	n, err := svc.Restore(context.Background(), config.RestorePolicyAlways)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
