// Package payment управляет жизненным циклом оплаты: создание hosted
// checkout-сессии и применение подтверждённых webhook-событий.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Moshfiqmoon/Championyourpicks/internal/lib/sl"
	"github.com/Moshfiqmoon/Championyourpicks/internal/metrics"
	"github.com/Moshfiqmoon/Championyourpicks/internal/models"
	"github.com/Moshfiqmoon/Championyourpicks/internal/paymentprovider"
	"github.com/Moshfiqmoon/Championyourpicks/internal/services/entitlement"
)

var (
	// ErrAlreadyActive подписка пользователя ещё действует.
	ErrAlreadyActive = errors.New("subscription already active")
	// ErrUnknownPlan запрошенный тариф не настроен.
	ErrUnknownPlan = errors.New("unknown plan")
	// ErrGateway платёжный шлюз недоступен или ответил ошибкой.
	ErrGateway = errors.New("payment gateway error")
	// ErrMalformedEvent событие не проходит структурную проверку.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrEventIgnored событие не относится к подтверждённой оплате.
	ErrEventIgnored = errors.New("event ignored")
)

// Repository операции хранилища, нужные платёжному сервису.
type Repository interface {
	SetPendingPayment(ctx context.Context, userID int64, paymentLink string, sessionID string) error
	FindUserBySessionID(ctx context.Context, sessionID string) (*models.User, error)
}

// Entitlements операции движка подписок.
type Entitlements interface {
	IsEntitled(ctx context.Context, userID int64) (bool, error)
	Grant(ctx context.Context, userID int64, days int, source, paymentLink, sessionID string) (time.Time, error)
}

// Gateway клиент платёжного шлюза.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params paymentprovider.CreateSessionParams) (*paymentprovider.CheckoutSession, error)
}

// Service платёжный сервис.
type Service struct {
	repo         Repository
	entitlements Entitlements
	gateway      Gateway
	log          *slog.Logger
	plans        []models.Plan
	successURL   string
	cancelURL    string
}

// New создает платёжный сервис. successURL должен содержать плейсхолдер
// {CHECKOUT_SESSION_ID}, который шлюз заменит идентификатором сессии.
func New(repo Repository, entitlements Entitlements, gateway Gateway,
	log *slog.Logger, plans []models.Plan, successURL, cancelURL string) *Service {
	return &Service{
		repo:         repo,
		entitlements: entitlements,
		gateway:      gateway,
		log:          log,
		plans:        plans,
		successURL:   successURL,
		cancelURL:    cancelURL,
	}
}

// CreateSession создает checkout-сессию для выбранного тарифа и помечает
// пользователя как ожидающего оплаты. Если подписка ещё действует,
// возвращает ErrAlreadyActive без обращения к шлюзу.
func (s *Service) CreateSession(ctx context.Context, userID int64, planName string) (*paymentprovider.CheckoutSession, error) {
	const op = "payment.CreateSession"

	plan, ok := models.FindPlan(s.plans, planName)
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", op, planName, ErrUnknownPlan)
	}

	entitled, err := s.entitlements.IsEntitled(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if entitled {
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadyActive)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, paymentprovider.CreateSessionParams{
		AmountCents: plan.AmountCents,
		Currency:    "usd",
		ProductName: fmt.Sprintf("Picks subscription (%s)", plan.Name),
		SuccessURL:  s.successURL,
		CancelURL:   s.cancelURL,
		Metadata: map[string]string{
			"user_id": strconv.FormatInt(userID, 10),
			"days":    strconv.Itoa(plan.Days),
		},
	})
	if err != nil {
		s.log.Error("checkout session creation failed",
			slog.Int64("user_id", userID), sl.Err(err))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrGateway, err)
	}

	if err := s.repo.SetPendingPayment(ctx, userID, session.URL, session.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("checkout session created",
		slog.Int64("user_id", userID),
		slog.String("plan", plan.Name),
		slog.String("session_id", session.ID))
	return session, nil
}

// HandleEvent применяет webhook-событие шлюза. Активирует подписку только
// для завершённой и полностью оплаченной checkout-сессии; остальные типы
// событий подтверждаются без изменений (ErrEventIgnored).
func (s *Service) HandleEvent(ctx context.Context, event *paymentprovider.Event) error {
	const op = "payment.HandleEvent"

	if event.Type != paymentprovider.EventCheckoutCompleted {
		metrics.WebhookEventsTotal.WithLabelValues("ignored").Inc()
		return fmt.Errorf("%s: type %q: %w", op, event.Type, ErrEventIgnored)
	}
	if event.Data.Object.PaymentStatus != paymentprovider.PaymentStatusPaid {
		metrics.WebhookEventsTotal.WithLabelValues("ignored").Inc()
		return fmt.Errorf("%s: payment_status %q: %w", op, event.Data.Object.PaymentStatus, ErrEventIgnored)
	}

	userID, days, err := parseGrantMetadata(event.Data.Object.Metadata)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("malformed").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}

	end, err := s.entitlements.Grant(ctx, userID, days,
		entitlement.SourceGateway, models.PaymentLinkGateway, event.Data.Object.ID)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.WebhookEventsTotal.WithLabelValues("applied").Inc()
	s.log.Info("payment confirmed",
		slog.Int64("user_id", userID),
		slog.Int("days", days),
		slog.String("session_id", event.Data.Object.ID),
		slog.Time("subscription_end", end))
	return nil
}

// ResolveUserBySession возвращает пользователя по идентификатору
// checkout-сессии. Используется deep-link'ом success_<session_id>.
func (s *Service) ResolveUserBySession(ctx context.Context, sessionID string) (*models.User, error) {
	const op = "payment.ResolveUserBySession"

	user, err := s.repo.FindUserBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func parseGrantMetadata(metadata map[string]string) (int64, int, error) {
	rawUser, ok := metadata["user_id"]
	if !ok || rawUser == "" {
		return 0, 0, fmt.Errorf("missing user_id metadata: %w", ErrMalformedEvent)
	}
	userID, err := strconv.ParseInt(rawUser, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid user_id %q: %w", rawUser, ErrMalformedEvent)
	}

	rawDays, ok := metadata["days"]
	if !ok || rawDays == "" {
		return 0, 0, fmt.Errorf("missing days metadata: %w", ErrMalformedEvent)
	}
	days, err := strconv.Atoi(rawDays)
	if err != nil || days <= 0 {
		return 0, 0, fmt.Errorf("invalid days %q: %w", rawDays, ErrMalformedEvent)
	}
	return userID, days, nil
}
