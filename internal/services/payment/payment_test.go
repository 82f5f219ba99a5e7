package payment

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
	"github.com/Moshfiqmoon/Championyourpicks/internal/paymentprovider"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) SetPendingPayment(ctx context.Context, userID int64, paymentLink string, sessionID string) error {
	return m.Called(ctx, userID, paymentLink, sessionID).Error(0)
}
func (m *RepoMock) FindUserBySessionID(ctx context.Context, sessionID string) (*models.User, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type EntitlementsMock struct{ mock.Mock }

func (m *EntitlementsMock) IsEntitled(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}
func (m *EntitlementsMock) Grant(ctx context.Context, userID int64, days int, source, paymentLink, sessionID string) (time.Time, error) {
	args := m.Called(ctx, userID, days, source, paymentLink, sessionID)
	return args.Get(0).(time.Time), args.Error(1)
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateCheckoutSession(ctx context.Context, params paymentprovider.CreateSessionParams) (*paymentprovider.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.CheckoutSession), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newService(repo *RepoMock, ent *EntitlementsMock, gw *GatewayMock) *Service {
	return New(repo, ent, gw, newNoopLogger(), models.DefaultPlans(),
		"https://t.me/picks_bot?start=success_{CHECKOUT_SESSION_ID}",
		"https://t.me/picks_bot?start=cancel")
}

func TestService_CreateSession_Success(t *testing.T) {
	repo := new(RepoMock)
	ent := new(EntitlementsMock)
	gw := new(GatewayMock)
	svc := newService(repo, ent, gw)

	ent.On("IsEntitled", mock.Anything, int64(42)).Return(false, nil)
	gw.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p paymentprovider.CreateSessionParams) bool {
		return p.AmountCents == 5000 &&
			p.Metadata["user_id"] == "42" &&
			p.Metadata["days"] == "7"
	})).Return(&paymentprovider.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil)
	repo.On("SetPendingPayment", mock.Anything, int64(42), "https://checkout.example/cs_1", "cs_1").Return(nil)

	session, err := svc.CreateSession(context.Background(), 42, "week")
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	repo.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestService_CreateSession_UnknownPlan(t *testing.T) {
	svc := newService(new(RepoMock), new(EntitlementsMock), new(GatewayMock))

	_, err := svc.CreateSession(context.Background(), 42, "lifetime")
	require.ErrorIs(t, err, ErrUnknownPlan)
}

func TestService_CreateSession_AlreadyActive(t *testing.T) {
	repo := new(RepoMock)
	ent := new(EntitlementsMock)
	gw := new(GatewayMock)
	svc := newService(repo, ent, gw)

	ent.On("IsEntitled", mock.Anything, int64(42)).Return(true, nil)

	_, err := svc.CreateSession(context.Background(), 42, "week")
	require.ErrorIs(t, err, ErrAlreadyActive)
	gw.AssertNotCalled(t, "CreateCheckoutSession")
	repo.AssertNotCalled(t, "SetPendingPayment")
}

func TestService_CreateSession_GatewayDown(t *testing.T) {
	repo := new(RepoMock)
	ent := new(EntitlementsMock)
	gw := new(GatewayMock)
	svc := newService(repo, ent, gw)

	ent.On("IsEntitled", mock.Anything, int64(42)).Return(false, nil)
	gw.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := svc.CreateSession(context.Background(), 42, "biweekly")
	require.ErrorIs(t, err, ErrGateway)
	// при ошибке шлюза состояние пользователя не меняется
	repo.AssertNotCalled(t, "SetPendingPayment")
}

func TestService_HandleEvent_Applies(t *testing.T) {
	repo := new(RepoMock)
	ent := new(EntitlementsMock)
	svc := newService(repo, ent, new(GatewayMock))

	end := time.Now().Add(7 * 24 * time.Hour)
	// активация помечает payment_link маркером webhook, а не затирает его
	ent.On("Grant", mock.Anything, int64(42), 7, "gateway",
		models.PaymentLinkGateway, "cs_1").Return(end, nil)

	event := &paymentprovider.Event{Type: paymentprovider.EventCheckoutCompleted}
	event.Data.Object.ID = "cs_1"
	event.Data.Object.PaymentStatus = paymentprovider.PaymentStatusPaid
	event.Data.Object.Metadata = map[string]string{"user_id": "42", "days": "7"}

	require.NoError(t, svc.HandleEvent(context.Background(), event))
	ent.AssertExpectations(t)
}

func TestService_HandleEvent_IgnoresOtherTypes(t *testing.T) {
	ent := new(EntitlementsMock)
	svc := newService(new(RepoMock), ent, new(GatewayMock))

	event := &paymentprovider.Event{Type: "invoice.paid"}
	err := svc.HandleEvent(context.Background(), event)
	require.ErrorIs(t, err, ErrEventIgnored)
	ent.AssertNotCalled(t, "Grant")
}

func TestService_HandleEvent_IgnoresUnpaid(t *testing.T) {
	ent := new(EntitlementsMock)
	svc := newService(new(RepoMock), ent, new(GatewayMock))

	event := &paymentprovider.Event{Type: paymentprovider.EventCheckoutCompleted}
	event.Data.Object.PaymentStatus = "unpaid"

	err := svc.HandleEvent(context.Background(), event)
	require.ErrorIs(t, err, ErrEventIgnored)
	ent.AssertNotCalled(t, "Grant")
}

func TestService_HandleEvent_MalformedMetadata(t *testing.T) {
	cases := []struct {
		name     string
		metadata map[string]string
	}{
		{name: "no metadata", metadata: nil},
		{name: "missing user_id", metadata: map[string]string{"days": "7"}},
		{name: "missing days", metadata: map[string]string{"user_id": "42"}},
		{name: "non-numeric user_id", metadata: map[string]string{"user_id": "abc", "days": "7"}},
		{name: "non-positive days", metadata: map[string]string{"user_id": "42", "days": "0"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ent := new(EntitlementsMock)
			svc := newService(new(RepoMock), ent, new(GatewayMock))

			event := &paymentprovider.Event{Type: paymentprovider.EventCheckoutCompleted}
			event.Data.Object.PaymentStatus = paymentprovider.PaymentStatusPaid
			event.Data.Object.Metadata = tc.metadata

			err := svc.HandleEvent(context.Background(), event)
			require.ErrorIs(t, err, ErrMalformedEvent)
			ent.AssertNotCalled(t, "Grant")
		})
	}
}

func TestService_ResolveUserBySession(t *testing.T) {
	repo := new(RepoMock)
	svc := newService(repo, new(EntitlementsMock), new(GatewayMock))

	repo.On("FindUserBySessionID", mock.Anything, "cs_1").
		Return(&models.User{UserID: 42}, nil)

	user, err := svc.ResolveUserBySession(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.UserID)
}
