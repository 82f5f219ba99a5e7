// Package telegram оборачивает Bot API: длинный поллинг обновлений
// и отправка сообщений с inline-клавиатурами.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Moshfiqmoon/Championyourpicks/internal/lib/sl"
)

// Bot подключение к Telegram Bot API.
type Bot struct {
	api *tgbotapi.BotAPI
	log *slog.Logger
}

// CommandUpdate входящая команда вида /start.
type CommandUpdate struct {
	ChatID   int64
	UserID   int64
	Username string
	Command  string
	Args     string
}

// TextUpdate входящее текстовое сообщение без команды.
type TextUpdate struct {
	ChatID   int64
	UserID   int64
	Username string
	Text     string
}

// CallbackUpdate нажатие inline-кнопки.
type CallbackUpdate struct {
	CallbackID string
	ChatID     int64
	UserID     int64
	Data       string
}

// Handlers обработчики типов обновлений. nil-обработчик пропускает
// обновления своего типа.
type Handlers struct {
	OnCommand  func(context.Context, CommandUpdate) error
	OnText     func(context.Context, TextUpdate) error
	OnCallback func(context.Context, CallbackUpdate) error
}

// New создает подключение к Bot API.
func New(token string, log *slog.Logger) (*Bot, error) {
	const op = "telegram.New"

	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%s: bot token is empty", op)
	}
	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Bot{api: api, log: log}, nil
}

// Username возвращает имя бота, под которым он зарегистрирован.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Listen получает обновления длинным поллингом до отмены контекста.
// Ошибка обработчика логируется, поллинг продолжается.
func (b *Bot) Listen(ctx context.Context, handlers Handlers) error {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			if err := b.dispatch(ctx, update, handlers); err != nil {
				b.log.Error("update handler failed", sl.Err(err))
			}
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update, handlers Handlers) error {
	if update.Message != nil && update.Message.From != nil {
		if update.Message.IsCommand() && handlers.OnCommand != nil {
			return handlers.OnCommand(ctx, CommandUpdate{
				ChatID:   update.Message.Chat.ID,
				UserID:   update.Message.From.ID,
				Username: update.Message.From.UserName,
				Command:  update.Message.Command(),
				Args:     update.Message.CommandArguments(),
			})
		}
		text := strings.TrimSpace(update.Message.Text)
		if text != "" && handlers.OnText != nil {
			return handlers.OnText(ctx, TextUpdate{
				ChatID:   update.Message.Chat.ID,
				UserID:   update.Message.From.ID,
				Username: update.Message.From.UserName,
				Text:     text,
			})
		}
		return nil
	}

	if update.CallbackQuery != nil && update.CallbackQuery.From != nil && handlers.OnCallback != nil {
		var chatID int64
		if update.CallbackQuery.Message != nil {
			chatID = update.CallbackQuery.Message.Chat.ID
		}
		return handlers.OnCallback(ctx, CallbackUpdate{
			CallbackID: update.CallbackQuery.ID,
			ChatID:     chatID,
			UserID:     update.CallbackQuery.From.ID,
			Data:       update.CallbackQuery.Data,
		})
	}
	return nil
}

// SendText отправляет текст в чат.
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	const op = "telegram.SendText"

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("%s: chat %d: %w", op, chatID, err)
	}
	return nil
}

// SendKeyboard отправляет текст с inline-клавиатурой.
func (b *Bot) SendKeyboard(ctx context.Context, chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	const op = "telegram.SendKeyboard"

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("%s: chat %d: %w", op, chatID, err)
	}
	return nil
}

// AnswerCallback подтверждает нажатие inline-кнопки.
func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	const op = "telegram.AnswerCallback"

	if strings.TrimSpace(callbackID) == "" {
		return nil
	}
	cfg := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
