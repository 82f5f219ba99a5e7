// Package referral ведёт учёт реферальных кодов и привязок.
package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Moshfiqmoon/Championyourpicks/internal/lib/refcode"
	"github.com/Moshfiqmoon/Championyourpicks/internal/lib/sl"
	"github.com/Moshfiqmoon/Championyourpicks/internal/models"
	"github.com/Moshfiqmoon/Championyourpicks/internal/storage/repository"
)

var (
	// ErrUnknownCode код не принадлежит ни одному пользователю.
	ErrUnknownCode = errors.New("unknown referral code")
	// ErrSelfReferral попытка применить собственный код.
	ErrSelfReferral = errors.New("self referral")
	// ErrAlreadyReferred пользователь уже привязан к рефереру.
	ErrAlreadyReferred = errors.New("already referred")
)

// Repository операции хранилища, нужные реферальному сервису.
type Repository interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	SetReferralCode(ctx context.Context, userID int64, code string) error
	SetReferredBy(ctx context.Context, userID, referrerID int64) error
	FindUserByReferralCode(ctx context.Context, code string) (*models.User, error)
}

// Notifier доставляет уведомления участникам реферальной связки.
type Notifier interface {
	SendText(ctx context.Context, userID int64, text string) error
}

// Service реферальный сервис.
type Service struct {
	repo     Repository
	notifier Notifier
	log      *slog.Logger
}

// New создает реферальный сервис. notifier может быть nil, тогда
// уведомления не отправляются.
func New(repo Repository, notifier Notifier, log *slog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, log: log}
}

// IssueCode генерирует и сохраняет свежий реферальный код пользователя.
// Повторный вызов заменяет прежний код, старый код перестает действовать.
func (s *Service) IssueCode(ctx context.Context, userID int64) (string, error) {
	const op = "referral.IssueCode"

	code := refcode.Generate(userID)
	if err := s.repo.SetReferralCode(ctx, userID, code); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("referral code issued",
		slog.Int64("user_id", userID), slog.String("code", code))
	return code, nil
}

// Redeem привязывает пользователя к владельцу кода. Привязка разрешена
// один раз и действует по принципу first-write-wins; собственный код
// применить нельзя. При отказе состояние не меняется.
func (s *Service) Redeem(ctx context.Context, userID int64, code string) (int64, error) {
	const op = "referral.Redeem"

	referrer, err := s.repo.FindUserByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, fmt.Errorf("%s: %q: %w", op, code, ErrUnknownCode)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if referrer.UserID == userID {
		return 0, fmt.Errorf("%s: %w", op, ErrSelfReferral)
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if user != nil && user.ReferredBy != nil {
		return 0, fmt.Errorf("%s: %w", op, ErrAlreadyReferred)
	}

	if err := s.repo.SetReferredBy(ctx, userID, referrer.UserID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("referral redeemed",
		slog.Int64("user_id", userID),
		slog.Int64("referrer_id", referrer.UserID),
		slog.String("code", code))

	s.notify(ctx, userID, "Referral code accepted! Welcome aboard.")
	s.notify(ctx, referrer.UserID,
		fmt.Sprintf("Your referral code was used by user %d.", userID))

	return referrer.UserID, nil
}

func (s *Service) notify(ctx context.Context, userID int64, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendText(ctx, userID, text); err != nil {
		// доставка уведомления не влияет на результат привязки
		s.log.Warn("referral notification failed",
			slog.Int64("user_id", userID), sl.Err(err))
	}
}
