// Package entitlement содержит движок прав доступа: решает, действует ли
// подписка пользователя, выдаёт и продлевает подписки, переводит истёкшие
// записи в expired. Все мутации идут через атомарный upsert хранилища.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Moshfiqmoon/Championyourpicks/internal/config"
	"github.com/Moshfiqmoon/Championyourpicks/internal/lib/sl"
	"github.com/Moshfiqmoon/Championyourpicks/internal/metrics"
	"github.com/Moshfiqmoon/Championyourpicks/internal/models"
	"github.com/Moshfiqmoon/Championyourpicks/internal/storage/repository"
)

// Источники выдачи подписки.
const (
	SourceGateway = "gateway"
	SourceManual  = "manual"
)

// ErrValidation недопустимые параметры операции.
var ErrValidation = errors.New("validation error")

// Repository определяет методы хранилища, нужные движку прав доступа.
type Repository interface {
	// GetUser возвращает запись пользователя.
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	// UpsertGrant атомарно выдаёт подписку.
	UpsertGrant(ctx context.Context, userID int64, end time.Time, paymentLink string, sessionID string) error
	// SweepExpired переводит истёкшие записи в expired.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	// RemoveUser удаляет запись пользователя.
	RemoveUser(ctx context.Context, userID int64) (int64, error)
}

// Engine реализует движок прав доступа.
type Engine struct {
	repo           Repository
	log            *slog.Logger
	stackingPolicy string
	now            func() time.Time
}

// New создает новый Engine. nowFn позволяет подменить часы в тестах;
// nil означает time.Now.
func New(repo Repository, log *slog.Logger, stackingPolicy string, nowFn func() time.Time) *Engine {
	if nowFn == nil {
		nowFn = time.Now
	}
	if stackingPolicy == "" {
		stackingPolicy = config.StackingFromNow
	}
	return &Engine{
		repo:           repo,
		log:            log,
		stackingPolicy: stackingPolicy,
		now:            nowFn,
	}
}

// IsEntitled сообщает, действует ли подписка пользователя прямо сейчас.
// Перед чтением выполняется ленивый sweep. Ошибка хранилища трактуется
// как отсутствие прав (fail closed).
func (e *Engine) IsEntitled(ctx context.Context, userID int64) (bool, error) {
	const op = "entitlement.IsEntitled"

	if _, err := e.repo.SweepExpired(ctx, e.now().UTC()); err != nil {
		e.log.Error("sweep before entitlement check failed", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	user, err := e.repo.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return user.IsEntitledAt(e.now().UTC()), nil
}

// Grant выдаёт пользователю подписку на days дней и возвращает дату окончания.
// Повторный вызов с тем же непустым sessionID не продлевает период ещё раз:
// подтверждение платежа доставляется минимум один раз и должно быть идемпотентным.
func (e *Engine) Grant(ctx context.Context, userID int64, days int, source, paymentLink, sessionID string) (time.Time, error) {
	const op = "entitlement.Grant"

	if days <= 0 {
		return time.Time{}, fmt.Errorf("%s: days must be positive: %w", op, ErrValidation)
	}

	now := e.now().UTC()

	existing, err := e.repo.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	if sessionID != "" && existing != nil &&
		existing.PaymentSessionID != nil && *existing.PaymentSessionID == sessionID &&
		existing.PaymentStatus == models.PaymentStatusActive && existing.SubscriptionEnd != nil {
		e.log.Info("grant replay ignored, session already applied",
			slog.Int64("user_id", userID), slog.String("session_id", sessionID))
		return *existing.SubscriptionEnd, nil
	}

	base := now
	if e.stackingPolicy == config.StackingFromExpiry &&
		existing != nil && existing.SubscriptionEnd != nil && existing.SubscriptionEnd.After(now) {
		base = *existing.SubscriptionEnd
	}
	end := base.Add(time.Duration(days) * 24 * time.Hour)

	if err := e.repo.UpsertGrant(ctx, userID, end, paymentLink, sessionID); err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.GrantsTotal.WithLabelValues(source).Inc()
	e.log.Info("subscription granted",
		slog.Int64("user_id", userID),
		slog.Int("days", days),
		slog.String("source", source),
		slog.Time("subscription_end", end))
	return end, nil
}

// SweepExpired переводит все истёкшие активные записи в expired.
func (e *Engine) SweepExpired(ctx context.Context) (int64, error) {
	const op = "entitlement.SweepExpired"

	affected, err := e.repo.SweepExpired(ctx, e.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if affected > 0 {
		e.log.Info("expired subscriptions cleaned", slog.Int64("count", affected))
	}
	return affected, nil
}

// Remove удаляет запись пользователя. Авторизация вызывающего проверяется
// выше, в административном канале.
func (e *Engine) Remove(ctx context.Context, userID int64) error {
	const op = "entitlement.Remove"

	if _, err := e.repo.RemoveUser(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Status возвращает запись пользователя для отображения состояния подписки.
// Перед чтением выполняется ленивый sweep, чтобы статус не был устаревшим.
func (e *Engine) Status(ctx context.Context, userID int64) (*models.User, error) {
	const op = "entitlement.Status"

	if _, err := e.repo.SweepExpired(ctx, e.now().UTC()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := e.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}
