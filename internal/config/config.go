// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Moshfiqmoon/Championyourpicks/internal/models"
)

// Политики восстановления из резервной копии при старте.
const (
	RestorePolicyOnEmpty     = "on_empty"
	RestorePolicyFillMissing = "fill_missing"
	RestorePolicyAlways      = "always"
)

// Политики продления подписки при повторной оплате.
const (
	StackingFromNow    = "extend_from_now"
	StackingFromExpiry = "extend_from_expiry"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string        `yaml:"env" env-default:"local"`
	StorageConnectionString string        `yaml:"storage_connection_string"`
	MigrationsPath          string        `yaml:"migrations_path" env-default:"./migrations"`
	AdminID                 int64         `yaml:"admin_id"`
	Plans                   []models.Plan `yaml:"plans"`
	StackingPolicy          string        `yaml:"stacking_policy" env-default:"extend_from_now"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	Telegram                `yaml:"telegram"`
	Stripe                  `yaml:"stripe"`
	RabbitConnection        `yaml:"rabbit_connection"`
	Backup                  `yaml:"backup"`
}

// HTTPServer структура для настройки сервера вебхуков
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":4242"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"5s"`
}

// Telegram структура с параметрами чат-транспорта
type Telegram struct {
	BotToken    string `yaml:"bot_token" env:"TELEGRAM_API_TOKEN"`
	BotUsername string `yaml:"bot_username" env:"BOT_USERNAME"`
}

// Stripe структура с параметрами платёжного шлюза
type Stripe struct {
	APIKey        string        `yaml:"api_key" env:"STRIPE_API_KEY"`
	WebhookSecret string        `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	APIURL        string        `yaml:"api_url" env-default:"https://api.stripe.com"`
	Timeout       time.Duration `yaml:"timeout" env-default:"10s"`
}

// RabbitConnection структура для настройки подключения к RabbitMQ
type RabbitConnection struct {
	AddressRabbit string        `yaml:"addressrabbit"`
	Retries       int           `yaml:"retries" env-default:"5"`
	RetryDelay    time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// Backup структура с параметрами резервного копирования в S3-совместимое хранилище
type Backup struct {
	S3Endpoint    string        `yaml:"s3_endpoint"`
	S3AccessKey   string        `yaml:"s3_access_key" env:"AWS_ACCESS_KEY_ID"`
	S3SecretKey   string        `yaml:"s3_secret_key" env:"AWS_SECRET_ACCESS_KEY"`
	S3UseSSL      bool          `yaml:"s3_use_ssl" env-default:"true"`
	S3Bucket      string        `yaml:"s3_bucket" env-default:"championyourpicks-backup"`
	SnapshotKey   string        `yaml:"snapshot_key" env-default:"users_backup.json"`
	Interval      time.Duration `yaml:"interval" env-default:"6h"`
	RestorePolicy string        `yaml:"restore_policy" env-default:"on_empty"`
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	if len(cfg.Plans) == 0 {
		cfg.Plans = models.DefaultPlans()
	}
	return &cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"AdminID: %d\n"+
			"StackingPolicy: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Telegram:\n"+
			"  BotUsername: %s\n"+
			"Stripe:\n"+
			"  APIURL: %s\n"+
			"  Timeout: %s\n"+
			"RabbitConnection:\n"+
			"  Addr: %s\n"+
			"Backup:\n"+
			"  Bucket: %s\n"+
			"  SnapshotKey: %s\n"+
			"  Interval: %s\n"+
			"  RestorePolicy: %s\n",
		c.Env,
		c.StorageConnectionString,
		c.AdminID,
		c.StackingPolicy,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.BotUsername,
		c.APIURL,
		c.Timeout,
		c.AddressRabbit,
		c.S3Bucket,
		c.SnapshotKey,
		c.Interval,
		c.RestorePolicy,
	)
}
