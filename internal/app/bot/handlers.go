package botapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Moshfiqmoon/Championyourpicks/internal/bot/conversation"
	"github.com/Moshfiqmoon/Championyourpicks/internal/bot/telegram"
	"github.com/Moshfiqmoon/Championyourpicks/internal/bot/ui"
	"github.com/Moshfiqmoon/Championyourpicks/internal/lib/sl"
	"github.com/Moshfiqmoon/Championyourpicks/internal/models"
	"github.com/Moshfiqmoon/Championyourpicks/internal/paymentprovider"
	paymentservice "github.com/Moshfiqmoon/Championyourpicks/internal/services/payment"
	referralservice "github.com/Moshfiqmoon/Championyourpicks/internal/services/referral"
	"github.com/Moshfiqmoon/Championyourpicks/internal/storage/repository"
)

// Transport отправляет сообщения в чат.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendKeyboard(ctx context.Context, chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Entitlements операции движка подписок, нужные обработчикам.
type Entitlements interface {
	IsEntitled(ctx context.Context, userID int64) (bool, error)
	Status(ctx context.Context, userID int64) (*models.User, error)
}

// Payments операции платёжного сервиса.
type Payments interface {
	CreateSession(ctx context.Context, userID int64, planName string) (*paymentprovider.CheckoutSession, error)
	ResolveUserBySession(ctx context.Context, sessionID string) (*models.User, error)
}

// Referrals операции реферального сервиса.
type Referrals interface {
	IssueCode(ctx context.Context, userID int64) (string, error)
	Redeem(ctx context.Context, userID int64, code string) (int64, error)
}

// Admins привилегированные операции.
type Admins interface {
	IsAdmin(userID int64) bool
	ManualActivate(ctx context.Context, callerID, targetID int64, days int) (time.Time, error)
	ManualRemove(ctx context.Context, callerID, targetID int64) error
	ListSubscribers(ctx context.Context, callerID int64) ([]*models.User, error)
	BroadcastPicks(ctx context.Context, callerID int64, text string) (int, error)
}

// Conversations хранилище шагов диалогов.
type Conversations interface {
	Set(userID int64, step string) error
	Get(userID int64) (string, error)
	Clear(userID int64) error
}

// Handler маршрутизирует обновления Telegram к сервисам.
type Handler struct {
	transport    Transport
	conversation Conversations
	entitlements Entitlements
	payments     Payments
	referrals    Referrals
	admins       Admins
	plans        []models.Plan
	log          *slog.Logger
	now          func() time.Time
}

// NewHandler создает маршрутизатор обновлений. nowFn nil означает time.Now.
func NewHandler(transport Transport, conv Conversations, entitlements Entitlements,
	payments Payments, referrals Referrals, admins Admins,
	plans []models.Plan, log *slog.Logger, nowFn func() time.Time) *Handler {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Handler{
		transport:    transport,
		conversation: conv,
		entitlements: entitlements,
		payments:     payments,
		referrals:    referrals,
		admins:       admins,
		plans:        plans,
		log:          log,
		now:          nowFn,
	}
}

// HandleCommand обрабатывает команды. Любая команда закрывает незавершенный
// диалог.
func (h *Handler) HandleCommand(ctx context.Context, update telegram.CommandUpdate) error {
	const op = "botapp.HandleCommand"

	if err := h.conversation.Clear(update.UserID); err != nil {
		h.log.Warn("failed to clear conversation", sl.Err(err))
	}

	switch strings.ToLower(update.Command) {
	case "start":
		return h.handleStart(ctx, update)
	case "help":
		isAdmin := h.admins.IsAdmin(update.UserID)
		return h.transport.SendKeyboard(ctx, update.ChatID, ui.HelpText, ui.BackButton(isAdmin))
	default:
		h.log.Info("unknown command ignored",
			slog.String("op", op), slog.String("command", update.Command))
		return nil
	}
}

func (h *Handler) handleStart(ctx context.Context, update telegram.CommandUpdate) error {
	const op = "botapp.handleStart"

	arg := strings.TrimSpace(update.Args)
	switch {
	case strings.HasPrefix(arg, "success_"):
		return h.handlePaymentReturn(ctx, update, strings.TrimPrefix(arg, "success_"))
	case arg == "cancel":
		entitled := h.isEntitled(ctx, update.UserID)
		return h.transport.SendKeyboard(ctx, update.ChatID,
			ui.PaymentCancelledText, ui.UserMenu(entitled))
	}

	if h.admins.IsAdmin(update.UserID) {
		return h.transport.SendKeyboard(ctx, update.ChatID, ui.AdminWelcomeText, ui.AdminMenu())
	}

	entitled := h.isEntitled(ctx, update.UserID)
	h.log.Info("user started bot",
		slog.String("op", op),
		slog.Int64("user_id", update.UserID),
		slog.Bool("entitled", entitled))
	return h.transport.SendKeyboard(ctx, update.ChatID, ui.WelcomeText, ui.UserMenu(entitled))
}

// handlePaymentReturn обрабатывает возврат из checkout по deep-link.
// Сессия должна принадлежать вернувшемуся пользователю.
func (h *Handler) handlePaymentReturn(ctx context.Context, update telegram.CommandUpdate, sessionID string) error {
	const op = "botapp.handlePaymentReturn"

	user, err := h.payments.ResolveUserBySession(ctx, sessionID)
	if err != nil || user.UserID != update.UserID {
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			h.log.Error("failed to resolve checkout session",
				slog.String("op", op), sl.Err(err))
		}
		return h.transport.SendText(ctx, update.ChatID, ui.PaymentMismatchText)
	}

	// webhook мог ещё не дойти: уведомляем по фактическому состоянию
	if h.isEntitled(ctx, update.UserID) {
		return h.transport.SendKeyboard(ctx, update.ChatID,
			ui.PaymentSuccessText, ui.UserMenu(true))
	}
	return h.transport.SendKeyboard(ctx, update.ChatID,
		ui.PaymentReceivedText, ui.UserMenu(false))
}

// HandleCallback обрабатывает нажатия inline-кнопок.
func (h *Handler) HandleCallback(ctx context.Context, update telegram.CallbackUpdate) error {
	isAdmin := h.admins.IsAdmin(update.UserID)

	switch {
	case update.Data == ui.CallbackSubWeekly:
		return h.offerPayment(ctx, update, "week")
	case update.Data == ui.CallbackSubBiweekly:
		return h.offerPayment(ctx, update, "biweekly")
	case update.Data == ui.CallbackPicks:
		if !h.isEntitled(ctx, update.UserID) {
			return h.transport.AnswerCallback(ctx, update.CallbackID, ui.SubscribeToUnlockText)
		}
		return h.transport.SendKeyboard(ctx, update.ChatID, ui.ChooseSportText, ui.SportsMenu())
	case strings.HasPrefix(update.Data, ui.SportCallbackPrefix):
		if !h.isEntitled(ctx, update.UserID) {
			return h.transport.AnswerCallback(ctx, update.CallbackID, ui.SubscribeToUnlockText)
		}
		return h.transport.SendKeyboard(ctx, update.ChatID,
			ui.FormatDailyPicks(h.now()), ui.BackButton(false))
	case update.Data == ui.CallbackNews:
		if !h.isEntitled(ctx, update.UserID) {
			return h.transport.AnswerCallback(ctx, update.CallbackID, ui.SubscribeToUnlockText)
		}
		return h.transport.SendKeyboard(ctx, update.ChatID, ui.NewsText, ui.BackButton(false))
	case update.Data == ui.CallbackStatus:
		return h.sendStatus(ctx, update)
	case update.Data == ui.CallbackReferral:
		return h.sendReferralCode(ctx, update)
	case update.Data == ui.CallbackUseReferral:
		if err := h.conversation.Set(update.UserID, conversation.StepAwaitingReferralCode); err != nil {
			return err
		}
		return h.transport.SendKeyboard(ctx, update.ChatID, ui.EnterReferralText, ui.BackButton(false))
	case update.Data == ui.CallbackHelp:
		return h.transport.SendKeyboard(ctx, update.ChatID, ui.HelpText, ui.BackButton(isAdmin))
	case update.Data == ui.CallbackBackToMain:
		if err := h.conversation.Clear(update.UserID); err != nil {
			h.log.Warn("failed to clear conversation", sl.Err(err))
		}
		return h.transport.SendKeyboard(ctx, update.ChatID,
			ui.BackToMainText, ui.UserMenu(h.isEntitled(ctx, update.UserID)))
	case update.Data == ui.CallbackAdminBackToMain && isAdmin:
		if err := h.conversation.Clear(update.UserID); err != nil {
			h.log.Warn("failed to clear conversation", sl.Err(err))
		}
		return h.transport.SendKeyboard(ctx, update.ChatID, ui.BackToAdminText, ui.AdminMenu())
	case update.Data == ui.CallbackAdminSendPicks && isAdmin:
		if err := h.conversation.Set(update.UserID, conversation.StepAwaitingBroadcastText); err != nil {
			return err
		}
		return h.transport.SendKeyboard(ctx, update.ChatID, ui.EnterPicksText, ui.BackButton(true))
	case update.Data == ui.CallbackAdminViewSubs && isAdmin:
		users, err := h.admins.ListSubscribers(ctx, update.UserID)
		if err != nil {
			return err
		}
		return h.transport.SendKeyboard(ctx, update.ChatID,
			ui.FormatSubscribers(users), ui.BackButton(true))
	case update.Data == ui.CallbackAdminRemoveSub && isAdmin:
		if err := h.conversation.Set(update.UserID, conversation.StepAwaitingRemovalTarget); err != nil {
			return err
		}
		return h.transport.SendKeyboard(ctx, update.ChatID, ui.EnterRemovalTargetText, ui.BackButton(true))
	case update.Data == ui.CallbackAdminActivate && isAdmin:
		if err := h.conversation.Set(update.UserID, conversation.StepAwaitingActivationParams); err != nil {
			return err
		}
		return h.transport.SendKeyboard(ctx, update.ChatID, ui.EnterActivationText, ui.BackButton(true))
	default:
		return h.transport.AnswerCallback(ctx, update.CallbackID, ui.UnauthorizedText)
	}
}

// HandleText обрабатывает свободный текст как ввод для текущего шага диалога.
func (h *Handler) HandleText(ctx context.Context, update telegram.TextUpdate) error {
	const op = "botapp.HandleText"

	step, err := h.conversation.Get(update.UserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if step == "" {
		return nil
	}

	switch step {
	case conversation.StepAwaitingReferralCode:
		return h.applyReferralCode(ctx, update)
	case conversation.StepAwaitingBroadcastText:
		return h.broadcastPicks(ctx, update)
	case conversation.StepAwaitingRemovalTarget:
		return h.removeSubscriber(ctx, update)
	case conversation.StepAwaitingActivationParams:
		return h.activateSubscription(ctx, update)
	default:
		h.log.Warn("unknown conversation step",
			slog.String("op", op), slog.String("step", step))
		return h.conversation.Clear(update.UserID)
	}
}

func (h *Handler) offerPayment(ctx context.Context, update telegram.CallbackUpdate, planName string) error {
	const op = "botapp.offerPayment"

	plan, ok := models.FindPlan(h.plans, planName)
	if !ok {
		return fmt.Errorf("%s: plan %q not configured", op, planName)
	}

	session, err := h.payments.CreateSession(ctx, update.UserID, planName)
	if err != nil {
		switch {
		case errors.Is(err, paymentservice.ErrAlreadyActive):
			return h.transport.AnswerCallback(ctx, update.CallbackID,
				"✅ Your subscription is already active!")
		case errors.Is(err, paymentservice.ErrGateway):
			h.log.Error("payment gateway unavailable", sl.Err(err))
			return h.transport.SendText(ctx, update.ChatID,
				"❌ Payment service is temporarily unavailable. Please try again later.")
		default:
			// пользователь не должен остаться без ответа из-за сбоя хранилища
			if sendErr := h.transport.SendText(ctx, update.ChatID, ui.TemporaryErrorText); sendErr != nil {
				h.log.Warn("failed to report error to user", sl.Err(sendErr))
			}
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	text, markup := ui.PaymentOffer(plan, session.URL)
	return h.transport.SendKeyboard(ctx, update.ChatID, text, markup)
}

func (h *Handler) sendStatus(ctx context.Context, update telegram.CallbackUpdate) error {
	user, err := h.entitlements.Status(ctx, update.UserID)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		if sendErr := h.transport.SendText(ctx, update.ChatID, ui.TemporaryErrorText); sendErr != nil {
			h.log.Warn("failed to report error to user", sl.Err(sendErr))
		}
		return err
	}
	if user == nil || user.PaymentStatus != models.PaymentStatusActive {
		return h.transport.SendKeyboard(ctx, update.ChatID,
			ui.NoSubscriptionText, ui.UserMenu(false))
	}
	return h.transport.SendKeyboard(ctx, update.ChatID,
		ui.FormatStatus(user), ui.BackButton(false))
}

func (h *Handler) sendReferralCode(ctx context.Context, update telegram.CallbackUpdate) error {
	if !h.isEntitled(ctx, update.UserID) {
		return h.transport.AnswerCallback(ctx, update.CallbackID,
			"🔒 Subscribe to get your referral code!")
	}
	code, err := h.referrals.IssueCode(ctx, update.UserID)
	if err != nil {
		if sendErr := h.transport.SendText(ctx, update.ChatID, ui.TemporaryErrorText); sendErr != nil {
			h.log.Warn("failed to report error to user", sl.Err(sendErr))
		}
		return err
	}
	return h.transport.SendKeyboard(ctx, update.ChatID,
		ui.FormatReferralCode(code), ui.BackButton(false))
}

func (h *Handler) applyReferralCode(ctx context.Context, update telegram.TextUpdate) error {
	code := strings.TrimSpace(update.Text)

	_, err := h.referrals.Redeem(ctx, update.UserID, code)
	switch {
	case err == nil:
		if clearErr := h.conversation.Clear(update.UserID); clearErr != nil {
			h.log.Warn("failed to clear conversation", sl.Err(clearErr))
		}
		return h.transport.SendKeyboard(ctx, update.ChatID,
			ui.ReferralAppliedText, ui.BackButton(false))
	case errors.Is(err, referralservice.ErrUnknownCode),
		errors.Is(err, referralservice.ErrSelfReferral),
		errors.Is(err, referralservice.ErrAlreadyReferred):
		// состояние диалога сохраняется, пользователь может повторить ввод
		return h.transport.SendKeyboard(ctx, update.ChatID,
			ui.ReferralInvalidText, ui.BackButton(false))
	default:
		return err
	}
}

func (h *Handler) broadcastPicks(ctx context.Context, update telegram.TextUpdate) error {
	if !h.admins.IsAdmin(update.UserID) {
		return nil
	}

	picks := strings.TrimSpace(update.Text)
	if picks == "" {
		return h.transport.SendKeyboard(ctx, update.ChatID,
			"❌ Please enter at least one pick!", ui.BackButton(true))
	}

	formatted := ui.FormatBroadcast(picks, h.now())
	queued, err := h.admins.BroadcastPicks(ctx, update.UserID, formatted)
	if err != nil {
		return err
	}
	if clearErr := h.conversation.Clear(update.UserID); clearErr != nil {
		h.log.Warn("failed to clear conversation", sl.Err(clearErr))
	}

	if queued == 0 {
		return h.transport.SendKeyboard(ctx, update.ChatID,
			"❌ No active subscribers found!", ui.BackButton(true))
	}
	return h.transport.SendKeyboard(ctx, update.ChatID,
		fmt.Sprintf("📤 Picks queued for %d active subscribers!", queued), ui.BackButton(true))
}

func (h *Handler) removeSubscriber(ctx context.Context, update telegram.TextUpdate) error {
	if !h.admins.IsAdmin(update.UserID) {
		return nil
	}

	targetID, err := strconv.ParseInt(strings.TrimSpace(update.Text), 10, 64)
	if err != nil {
		return h.transport.SendKeyboard(ctx, update.ChatID,
			"❌ Invalid user ID. Please enter a number.", ui.BackButton(true))
	}

	if err := h.admins.ManualRemove(ctx, update.UserID, targetID); err != nil {
		return err
	}
	if clearErr := h.conversation.Clear(update.UserID); clearErr != nil {
		h.log.Warn("failed to clear conversation", sl.Err(clearErr))
	}
	return h.transport.SendKeyboard(ctx, update.ChatID,
		fmt.Sprintf("🗑️ User %d removed from subscribers!", targetID), ui.BackButton(true))
}

func (h *Handler) activateSubscription(ctx context.Context, update telegram.TextUpdate) error {
	if !h.admins.IsAdmin(update.UserID) {
		return nil
	}

	fields := strings.Fields(strings.TrimSpace(update.Text))
	if len(fields) != 2 {
		return h.transport.SendKeyboard(ctx, update.ChatID,
			"❌ Invalid format. Use: 'user_id days' (e.g., '123456789 7')", ui.BackButton(true))
	}
	targetID, errID := strconv.ParseInt(fields[0], 10, 64)
	days, errDays := strconv.Atoi(fields[1])
	if errID != nil || errDays != nil {
		return h.transport.SendKeyboard(ctx, update.ChatID,
			"❌ Invalid format. Use: 'user_id days' (e.g., '123456789 7')", ui.BackButton(true))
	}
	if days <= 0 {
		return h.transport.SendKeyboard(ctx, update.ChatID,
			"❌ Days must be a positive number!", ui.BackButton(true))
	}

	end, err := h.admins.ManualActivate(ctx, update.UserID, targetID, days)
	if err != nil {
		return err
	}
	if clearErr := h.conversation.Clear(update.UserID); clearErr != nil {
		h.log.Warn("failed to clear conversation", sl.Err(clearErr))
	}
	return h.transport.SendKeyboard(ctx, update.ChatID,
		fmt.Sprintf("✅ Subscription activated for user %d until %s",
			targetID, end.Format("2006-01-02")), ui.BackButton(true))
}

// isEntitled обертка для мест, где ошибка хранилища равносильна отсутствию
// подписки.
func (h *Handler) isEntitled(ctx context.Context, userID int64) bool {
	entitled, err := h.entitlements.IsEntitled(ctx, userID)
	if err != nil {
		h.log.Error("entitlement check failed",
			slog.Int64("user_id", userID), sl.Err(err))
		return false
	}
	return entitled
}
