// Package botapp собирает процесс Telegram-бота: диалоги с пользователями,
// админские операции, доставка рассылок и резервное копирование.
package botapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/Moshfiqmoon/Championyourpicks/internal/bot/conversation"
	"github.com/Moshfiqmoon/Championyourpicks/internal/bot/telegram"
	"github.com/Moshfiqmoon/Championyourpicks/internal/cache"
	"github.com/Moshfiqmoon/Championyourpicks/internal/config"
	"github.com/Moshfiqmoon/Championyourpicks/internal/lib/sl"
	"github.com/Moshfiqmoon/Championyourpicks/internal/migrations"
	"github.com/Moshfiqmoon/Championyourpicks/internal/paymentprovider"
	"github.com/Moshfiqmoon/Championyourpicks/internal/rabbitmq"
	adminservice "github.com/Moshfiqmoon/Championyourpicks/internal/services/admin"
	backupservice "github.com/Moshfiqmoon/Championyourpicks/internal/services/backup"
	"github.com/Moshfiqmoon/Championyourpicks/internal/services/entitlement"
	paymentservice "github.com/Moshfiqmoon/Championyourpicks/internal/services/payment"
	referralservice "github.com/Moshfiqmoon/Championyourpicks/internal/services/referral"
	senderservice "github.com/Moshfiqmoon/Championyourpicks/internal/services/sender"
	"github.com/Moshfiqmoon/Championyourpicks/internal/storage/blob"
	"github.com/Moshfiqmoon/Championyourpicks/internal/storage/repository"
)

// App процесс Telegram-бота.
type App struct {
	cfg        *config.Config
	log        *slog.Logger
	db         *repository.Storage
	cache      *cache.Cache
	rabbitConn *amqp.Connection
	rabbitCh   *amqp.Channel
	bot        *telegram.Bot
	handler    *Handler
	sender     *senderservice.Service
	backup     *backupservice.Service
}

// broadcastPublisher привязывает публикацию рассылок к каналу RabbitMQ.
type broadcastPublisher struct {
	ch *amqp.Channel
}

func (p *broadcastPublisher) Publish(message any) error {
	return rabbitmq.PublishMessage(p.ch, rabbitmq.BroadcastExchange, rabbitmq.BroadcastRoutingKey, message)
}

// New собирает процесс бота из конфигурации.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	const op = "botapp.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rabbitConn, err := rabbitmq.Connect(cfg.AddressRabbit, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rabbitCh, err := rabbitmq.SetupChannel(rabbitConn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	blobStore, err := blob.New(blob.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		UseSSL:    cfg.S3UseSSL,
		Bucket:    cfg.S3Bucket,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bot, err := telegram.New(cfg.BotToken, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	botUsername := cfg.BotUsername
	if botUsername == "" {
		botUsername = bot.Username()
	}

	gateway := paymentprovider.NewClient(cfg.APIKey, cfg.APIURL, cfg.Stripe.Timeout)

	entitlements := entitlement.New(db, log, cfg.StackingPolicy, nil)
	payments := paymentservice.New(db, entitlements, gateway, log, cfg.Plans,
		fmt.Sprintf("https://t.me/%s?start=success_{CHECKOUT_SESSION_ID}", botUsername),
		fmt.Sprintf("https://t.me/%s?start=cancel", botUsername))
	referrals := referralservice.New(db, bot, log)
	admins := adminservice.New(db, entitlements, &broadcastPublisher{ch: rabbitCh}, log, cfg.AdminID)
	backup := backupservice.New(db, blobStore, log, cfg.SnapshotKey)
	sender := senderservice.New(bot, log)

	conv := conversation.New(cacheRedis, conversation.DefaultTTL)
	handler := NewHandler(bot, conv, entitlements, payments, referrals, admins, cfg.Plans, log, nil)

	return &App{
		cfg:        cfg,
		log:        log,
		db:         db,
		cache:      cacheRedis,
		rabbitConn: rabbitConn,
		rabbitCh:   rabbitCh,
		bot:        bot,
		handler:    handler,
		sender:     sender,
		backup:     backup,
	}, nil
}

// Run восстанавливает данные из снапшота, запускает потребителя рассылок,
// периодическое копирование и поллинг обновлений. Блокируется до отмены
// контекста.
func (a *App) Run(ctx context.Context) error {
	const op = "botapp.Run"

	restored, err := a.backup.Restore(ctx, a.cfg.RestorePolicy)
	if err != nil {
		if errors.Is(err, backupservice.ErrNoSnapshot) {
			a.log.Info("no snapshot to restore from")
		} else {
			// бот работоспособен и без восстановления
			a.log.Error("restore on boot failed", sl.Err(err))
		}
	} else if restored > 0 {
		a.log.Info("restored users from snapshot", slog.Int("users", restored))
	}

	if err := a.sender.Run(ctx, a.rabbitCh); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	go a.backup.RunPeriodic(ctx, a.cfg.Interval)

	a.log.Info("bot started")
	err = a.bot.Listen(ctx, telegram.Handlers{
		OnCommand:  a.handler.HandleCommand,
		OnText:     a.handler.HandleText,
		OnCallback: a.handler.HandleCallback,
	})

	a.shutdown()
	return err
}

func (a *App) shutdown() {
	snapCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := a.backup.Snapshot(snapCtx); err != nil {
		a.log.Error("final snapshot failed", sl.Err(err))
	}

	if err := a.rabbitCh.Close(); err != nil {
		a.log.Warn("failed to close rabbit channel", sl.Err(err))
	}
	if err := a.rabbitConn.Close(); err != nil {
		a.log.Warn("failed to close rabbit connection", sl.Err(err))
	}
	if err := a.cache.Db.Close(); err != nil {
		a.log.Warn("failed to close redis", sl.Err(err))
	}
	if err := a.db.DB.Close(); err != nil {
		a.log.Warn("failed to close database", sl.Err(err))
	}
	a.log.Info("bot stopped")
}
