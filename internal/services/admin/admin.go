// Package admin выполняет привилегированные операции: ручная активация
// и удаление подписок, просмотр подписчиков, рассылка пиков.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Moshfiqmoon/Championyourpicks/internal/lib/sl"
	"github.com/Moshfiqmoon/Championyourpicks/internal/models"
	"github.com/Moshfiqmoon/Championyourpicks/internal/services/entitlement"
)

// ErrUnauthorized операцию запросил не администратор.
var ErrUnauthorized = errors.New("unauthorized")

// Repository операции хранилища, нужные административному сервису.
type Repository interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	ListActiveUsers(ctx context.Context) ([]int64, error)
}

// Entitlements операции движка подписок.
type Entitlements interface {
	Grant(ctx context.Context, userID int64, days int, source, paymentLink, sessionID string) (time.Time, error)
	Remove(ctx context.Context, userID int64) error
	SweepExpired(ctx context.Context) (int64, error)
}

// Publisher публикует задания на рассылку в очередь.
type Publisher interface {
	Publish(message any) error
}

// Service административный сервис. Все операции требуют совпадения
// идентификатора вызывающего с настроенным администратором.
type Service struct {
	repo         Repository
	entitlements Entitlements
	publisher    Publisher
	log          *slog.Logger
	adminID      int64
}

// New создает административный сервис.
func New(repo Repository, entitlements Entitlements, publisher Publisher,
	log *slog.Logger, adminID int64) *Service {
	return &Service{
		repo:         repo,
		entitlements: entitlements,
		publisher:    publisher,
		log:          log,
		adminID:      adminID,
	}
}

// IsAdmin сообщает, является ли пользователь администратором.
func (s *Service) IsAdmin(userID int64) bool {
	return userID == s.adminID
}

func (s *Service) authorize(op string, callerID int64) error {
	if !s.IsAdmin(callerID) {
		s.log.Warn("unauthorized admin operation",
			slog.String("op", op), slog.Int64("caller_id", callerID))
		return fmt.Errorf("%s: caller %d: %w", op, callerID, ErrUnauthorized)
	}
	return nil
}

// ManualActivate выдает подписку вручную, минуя оплату.
func (s *Service) ManualActivate(ctx context.Context, callerID, targetID int64, days int) (time.Time, error) {
	const op = "admin.ManualActivate"

	if err := s.authorize(op, callerID); err != nil {
		return time.Time{}, err
	}

	end, err := s.entitlements.Grant(ctx, targetID, days,
		entitlement.SourceManual, models.PaymentLinkManual, "")
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("subscription manually activated",
		slog.Int64("target_id", targetID),
		slog.Int("days", days),
		slog.Time("subscription_end", end))
	return end, nil
}

// ManualRemove удаляет запись пользователя целиком.
func (s *Service) ManualRemove(ctx context.Context, callerID, targetID int64) error {
	const op = "admin.ManualRemove"

	if err := s.authorize(op, callerID); err != nil {
		return err
	}

	if err := s.entitlements.Remove(ctx, targetID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("subscription manually removed", slog.Int64("target_id", targetID))
	return nil
}

// ListSubscribers возвращает все записи пользователей. Перед чтением
// выполняется sweep, чтобы статусы отражали текущий момент.
func (s *Service) ListSubscribers(ctx context.Context, callerID int64) ([]*models.User, error) {
	const op = "admin.ListSubscribers"

	if err := s.authorize(op, callerID); err != nil {
		return nil, err
	}

	if _, err := s.entitlements.SweepExpired(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// BroadcastPicks ставит текст рассылки в очередь для каждого активного
// подписчика и возвращает число заданий. Подписчики, для которых
// публикация не удалась, пропускаются.
func (s *Service) BroadcastPicks(ctx context.Context, callerID int64, text string) (int, error) {
	const op = "admin.BroadcastPicks"

	if err := s.authorize(op, callerID); err != nil {
		return 0, err
	}
	if text == "" {
		return 0, fmt.Errorf("%s: empty broadcast text: %w", op, entitlement.ErrValidation)
	}

	if _, err := s.entitlements.SweepExpired(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	subscribers, err := s.repo.ListActiveUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	queued := 0
	for _, userID := range subscribers {
		msg := models.BroadcastMessage{UserID: userID, Text: text}
		if err := s.publisher.Publish(msg); err != nil {
			s.log.Error("failed to queue broadcast",
				slog.Int64("user_id", userID), sl.Err(err))
			continue
		}
		queued++
	}

	s.log.Info("broadcast queued",
		slog.Int("subscribers", len(subscribers)), slog.Int("queued", queued))
	return queued, nil
}
