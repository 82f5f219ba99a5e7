package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Moshfiqmoon/Championyourpicks/internal/models"
)

const adminID = int64(100500)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) ListUsers(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}
func (m *RepoMock) ListActiveUsers(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

type EntitlementsMock struct{ mock.Mock }

func (m *EntitlementsMock) Grant(ctx context.Context, userID int64, days int, source, paymentLink, sessionID string) (time.Time, error) {
	args := m.Called(ctx, userID, days, source, paymentLink, sessionID)
	return args.Get(0).(time.Time), args.Error(1)
}
func (m *EntitlementsMock) Remove(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *EntitlementsMock) SweepExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(message any) error {
	return m.Called(message).Error(0)
}

func newService(repo *RepoMock, ent *EntitlementsMock, pub *PublisherMock) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	return New(repo, ent, pub, log, adminID)
}

func TestService_ManualActivate(t *testing.T) {
	ent := new(EntitlementsMock)
	svc := newService(new(RepoMock), ent, new(PublisherMock))

	end := time.Now().Add(7 * 24 * time.Hour)
	ent.On("Grant", mock.Anything, int64(42), 7, "manual", models.PaymentLinkManual, "").
		Return(end, nil)

	got, err := svc.ManualActivate(context.Background(), adminID, 42, 7)
	require.NoError(t, err)
	assert.Equal(t, end, got)
	ent.AssertExpectations(t)
}

func TestService_ManualActivate_Unauthorized(t *testing.T) {
	ent := new(EntitlementsMock)
	svc := newService(new(RepoMock), ent, new(PublisherMock))

	_, err := svc.ManualActivate(context.Background(), 999, 42, 7)
	require.ErrorIs(t, err, ErrUnauthorized)
	ent.AssertNotCalled(t, "Grant")
}

func TestService_ManualRemove(t *testing.T) {
	ent := new(EntitlementsMock)
	svc := newService(new(RepoMock), ent, new(PublisherMock))

	ent.On("Remove", mock.Anything, int64(42)).Return(nil)

	require.NoError(t, svc.ManualRemove(context.Background(), adminID, 42))
	ent.AssertExpectations(t)
}

func TestService_ManualRemove_Unauthorized(t *testing.T) {
	ent := new(EntitlementsMock)
	svc := newService(new(RepoMock), ent, new(PublisherMock))

	err := svc.ManualRemove(context.Background(), 999, 42)
	require.ErrorIs(t, err, ErrUnauthorized)
	ent.AssertNotCalled(t, "Remove")
}

func TestService_ListSubscribers_SweepsFirst(t *testing.T) {
	repo := new(RepoMock)
	ent := new(EntitlementsMock)
	svc := newService(repo, ent, new(PublisherMock))

	ent.On("SweepExpired", mock.Anything).Return(int64(1), nil)
	repo.On("ListUsers", mock.Anything).Return([]*models.User{
		{UserID: 1, PaymentStatus: models.PaymentStatusActive},
		{UserID: 2, PaymentStatus: models.PaymentStatusExpired},
	}, nil)

	users, err := svc.ListSubscribers(context.Background(), adminID)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	ent.AssertExpectations(t)
}

func TestService_BroadcastPicks(t *testing.T) {
	repo := new(RepoMock)
	ent := new(EntitlementsMock)
	pub := new(PublisherMock)
	svc := newService(repo, ent, pub)

	ent.On("SweepExpired", mock.Anything).Return(int64(0), nil)
	repo.On("ListActiveUsers", mock.Anything).Return([]int64{1, 2, 3}, nil)
	pub.On("Publish", models.BroadcastMessage{UserID: 1, Text: "today's picks"}).Return(nil)
	pub.On("Publish", models.BroadcastMessage{UserID: 2, Text: "today's picks"}).
		Return(errors.New("channel closed"))
	pub.On("Publish", models.BroadcastMessage{UserID: 3, Text: "today's picks"}).Return(nil)

	queued, err := svc.BroadcastPicks(context.Background(), adminID, "today's picks")
	require.NoError(t, err)
	// ошибка публикации для одного подписчика не прерывает рассылку
	assert.Equal(t, 2, queued)
	pub.AssertExpectations(t)
}

func TestService_BroadcastPicks_EmptyText(t *testing.T) {
	svc := newService(new(RepoMock), new(EntitlementsMock), new(PublisherMock))

	_, err := svc.BroadcastPicks(context.Background(), adminID, "")
	require.Error(t, err)
}

func TestService_BroadcastPicks_Unauthorized(t *testing.T) {
	pub := new(PublisherMock)
	svc := newService(new(RepoMock), new(EntitlementsMock), pub)

	_, err := svc.BroadcastPicks(context.Background(), 999, "picks")
	require.ErrorIs(t, err, ErrUnauthorized)
	pub.AssertNotCalled(t, "Publish")
}
