package sender

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Moshfiqmoon/Championyourpicks/internal/models"
)

type TransportMock struct{ mock.Mock }

func (m *TransportMock) SendText(ctx context.Context, userID int64, text string) error {
	return m.Called(ctx, userID, text).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestService_Handle_Delivers(t *testing.T) {
	transport := new(TransportMock)
	svc := New(transport, newNoopLogger())

	transport.On("SendText", mock.Anything, int64(42), "today's picks").Return(nil)

	body, err := json.Marshal(models.BroadcastMessage{UserID: 42, Text: "today's picks"})
	require.NoError(t, err)

	require.NoError(t, svc.Handle(context.Background(), body))
	transport.AssertExpectations(t)
}

func TestService_Handle_DeliveryErrorReported(t *testing.T) {
	transport := new(TransportMock)
	svc := New(transport, newNoopLogger())

	transport.On("SendText", mock.Anything, int64(42), "picks").
		Return(errors.New("chat not found"))

	body, err := json.Marshal(models.BroadcastMessage{UserID: 42, Text: "picks"})
	require.NoError(t, err)

	require.Error(t, svc.Handle(context.Background(), body))
}

func TestService_Handle_MalformedBodyAcked(t *testing.T) {
	transport := new(TransportMock)
	svc := New(transport, newNoopLogger())

	// битое сообщение подтверждается, чтобы не зациклить очередь
	require.NoError(t, svc.Handle(context.Background(), []byte("{not json")))
	transport.AssertNotCalled(t, "SendText")
}
