package entitlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Moshfiqmoon/Championyourpicks/internal/config"
	"github.com/Moshfiqmoon/Championyourpicks/internal/models"
	"github.com/Moshfiqmoon/Championyourpicks/internal/storage/repository"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *RepoMock) UpsertGrant(ctx context.Context, userID int64, end time.Time, paymentLink string, sessionID string) error {
	return m.Called(ctx, userID, end, paymentLink, sessionID).Error(0)
}
func (m *RepoMock) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}
func (m *RepoMock) RemoveUser(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// fakeRepo хранит записи в памяти и повторяет семантику SQL-запросов хранилища.
type fakeRepo struct {
	mu    sync.Mutex
	users map[int64]*models.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[int64]*models.User)}
}

func (f *fakeRepo) GetUser(_ context.Context, userID int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeRepo) UpsertGrant(_ context.Context, userID int64, end time.Time, paymentLink string, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		u = &models.User{UserID: userID}
		f.users[userID] = u
	}
	endCopy := end
	u.SubscriptionEnd = &endCopy
	u.PaymentStatus = models.PaymentStatusActive
	u.PaymentLink = paymentLink
	if sessionID != "" {
		u.PaymentSessionID = &sessionID
	} else {
		u.PaymentSessionID = nil
	}
	return nil
}

func (f *fakeRepo) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var affected int64
	for _, u := range f.users {
		if u.PaymentStatus == models.PaymentStatusActive &&
			u.SubscriptionEnd != nil && u.SubscriptionEnd.Before(now) {
			u.PaymentStatus = models.PaymentStatusExpired
			affected++
		}
	}
	return affected, nil
}

func (f *fakeRepo) RemoveUser(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return 0, nil
	}
	delete(f.users, userID)
	return 1, nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestEngine_Grant_WindowMath(t *testing.T) {
	repo := newFakeRepo()
	engine := New(repo, newNoopLogger(), config.StackingFromNow, nil)

	before := time.Now().UTC()
	end, err := engine.Grant(context.Background(), 1001, 7, SourceManual, models.PaymentLinkManual, "")
	require.NoError(t, err)

	want := before.Add(7 * 24 * time.Hour)
	assert.WithinDuration(t, want, end, time.Second)

	got, err := repo.GetUser(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusActive, got.PaymentStatus)
}

func TestEngine_Grant_NonPositiveDays(t *testing.T) {
	repo := new(RepoMock)
	engine := New(repo, newNoopLogger(), "", nil)

	for _, days := range []int{0, -3} {
		_, err := engine.Grant(context.Background(), 1, days, SourceManual, "", "")
		require.ErrorIs(t, err, ErrValidation)
	}
	repo.AssertNotCalled(t, "UpsertGrant")
}

func TestEngine_Grant_IdempotentForSameSession(t *testing.T) {
	repo := newFakeRepo()
	engine := New(repo, newNoopLogger(), config.StackingFromNow, nil)

	first, err := engine.Grant(context.Background(), 2002, 7, SourceGateway, "https://checkout.example/x", "cs_test_1")
	require.NoError(t, err)

	// повторная доставка того же события не должна продлить период
	second, err := engine.Grant(context.Background(), 2002, 7, SourceGateway, "https://checkout.example/x", "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEngine_Grant_DistinctSessionsExtend(t *testing.T) {
	repo := newFakeRepo()
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	engine := New(repo, newNoopLogger(), config.StackingFromNow, func() time.Time { return clock })

	first, err := engine.Grant(context.Background(), 3, 7, SourceGateway, "", "cs_a")
	require.NoError(t, err)

	clock = clock.Add(3 * 24 * time.Hour)
	second, err := engine.Grant(context.Background(), 3, 7, SourceGateway, "", "cs_b")
	require.NoError(t, err)

	// последняя легитимная выдача побеждает: окно считается от текущего момента
	assert.Equal(t, clock.Add(7*24*time.Hour), second)
	assert.True(t, second.After(first))
}

func TestEngine_Grant_StackingFromExpiry(t *testing.T) {
	repo := newFakeRepo()
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	engine := New(repo, newNoopLogger(), config.StackingFromExpiry, func() time.Time { return clock })

	first, err := engine.Grant(context.Background(), 4, 7, SourceGateway, "", "cs_a")
	require.NoError(t, err)

	clock = clock.Add(2 * 24 * time.Hour)
	second, err := engine.Grant(context.Background(), 4, 7, SourceGateway, "", "cs_b")
	require.NoError(t, err)

	assert.Equal(t, first.Add(7*24*time.Hour), second)
}

func TestEngine_IsEntitled_FailClosedOnStoreError(t *testing.T) {
	repo := new(RepoMock)
	repo.On("SweepExpired", mock.Anything, mock.Anything).Return(int64(0), errors.New("store unavailable"))

	engine := New(repo, newNoopLogger(), "", nil)
	entitled, err := engine.IsEntitled(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, entitled)
}

func TestEngine_IsEntitled_UnknownUser(t *testing.T) {
	repo := newFakeRepo()
	engine := New(repo, newNoopLogger(), "", nil)

	entitled, err := engine.IsEntitled(context.Background(), 404)
	require.NoError(t, err)
	assert.False(t, entitled)
}

func TestEngine_Lifecycle_ActivateThenExpire(t *testing.T) {
	repo := newFakeRepo()
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	engine := New(repo, newNoopLogger(), config.StackingFromNow, func() time.Time { return clock })

	_, err := engine.Grant(context.Background(), 1001, 7, SourceManual, models.PaymentLinkManual, "")
	require.NoError(t, err)

	entitled, err := engine.IsEntitled(context.Background(), 1001)
	require.NoError(t, err)
	assert.True(t, entitled)

	// через 8 дней подписка истекла
	clock = clock.Add(8 * 24 * time.Hour)

	affected, err := engine.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	entitled, err = engine.IsEntitled(context.Background(), 1001)
	require.NoError(t, err)
	assert.False(t, entitled)

	status, err := engine.Status(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusExpired, status.PaymentStatus)
}

func TestEngine_Remove(t *testing.T) {
	repo := newFakeRepo()
	engine := New(repo, newNoopLogger(), "", nil)

	_, err := engine.Grant(context.Background(), 9, 7, SourceManual, models.PaymentLinkManual, "")
	require.NoError(t, err)

	require.NoError(t, engine.Remove(context.Background(), 9))

	entitled, err := engine.IsEntitled(context.Background(), 9)
	require.NoError(t, err)
	assert.False(t, entitled)
}
