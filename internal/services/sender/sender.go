// Package sender доставляет задания рассылки подписчикам из очереди.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/Moshfiqmoon/Championyourpicks/internal/lib/sl"
	"github.com/Moshfiqmoon/Championyourpicks/internal/metrics"
	"github.com/Moshfiqmoon/Championyourpicks/internal/models"
	"github.com/Moshfiqmoon/Championyourpicks/internal/rabbitmq"
)

// Transport доставляет текст пользователю в чат.
type Transport interface {
	SendText(ctx context.Context, userID int64, text string) error
}

// Service потребитель очереди рассылки.
type Service struct {
	transport Transport
	log       *slog.Logger
}

// New создает отправителя рассылки.
func New(transport Transport, log *slog.Logger) *Service {
	return &Service{transport: transport, log: log}
}

// Handle обрабатывает одно задание рассылки. Ошибка доставки возвращается
// потребителю, который отклоняет сообщение без повторной постановки.
func (s *Service) Handle(ctx context.Context, body []byte) error {
	const op = "sender.Handle"

	var msg models.BroadcastMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		metrics.BroadcastSendsTotal.WithLabelValues("malformed").Inc()
		s.log.Error("malformed broadcast message", sl.Err(err))
		// повторная доставка не поможет, подтверждаем
		return nil
	}

	if err := s.transport.SendText(ctx, msg.UserID, msg.Text); err != nil {
		metrics.BroadcastSendsTotal.WithLabelValues("failed").Inc()
		s.log.Error("broadcast delivery failed",
			slog.Int64("user_id", msg.UserID), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.BroadcastSendsTotal.WithLabelValues("sent").Inc()
	s.log.Info("broadcast delivered", slog.Int64("user_id", msg.UserID))
	return nil
}

// Run подписывается на очередь рассылки и обрабатывает задания до отмены
// контекста.
func (s *Service) Run(ctx context.Context, ch *amqp.Channel) error {
	const op = "sender.Run"

	err := rabbitmq.ConsumerMessage(ctx, ch, rabbitmq.BroadcastQueue, func(body []byte) error {
		return s.Handle(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
