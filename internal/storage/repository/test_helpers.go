package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестовую запись пользователя
func (f *TestDataFactory) CreateUser(t *testing.T, userID int64, subscriptionEnd *time.Time, paymentStatus, paymentLink string) {
	_, err := f.storage.DB.Exec(`INSERT INTO users (user_id, subscription_end, payment_status, payment_link)
		VALUES ($1, $2, $3, $4)`,
		userID, subscriptionEnd, paymentStatus, paymentLink)
	require.NoError(t, err)
}

// CreateUserWithReferral создает пользователя с реферальными полями
func (f *TestDataFactory) CreateUserWithReferral(t *testing.T, userID int64, referralCode *string, referredBy *int64) {
	_, err := f.storage.DB.Exec(`INSERT INTO users (user_id, payment_status, referral_code, referred_by)
		VALUES ($1, 'none', $2, $3)`,
		userID, referralCode, referredBy)
	require.NoError(t, err)
}

// CreateUserWithSession создает пользователя с привязанной checkout-сессией
func (f *TestDataFactory) CreateUserWithSession(t *testing.T, userID int64, paymentStatus, sessionID string) {
	_, err := f.storage.DB.Exec(`INSERT INTO users (user_id, payment_status, payment_session_id)
		VALUES ($1, $2, $3)`,
		userID, paymentStatus, sessionID)
	require.NoError(t, err)
}

// setupTestDatabase создает тестовую БД с контейнером PostgreSQL
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(3*time.Minute)),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			if err = storage.DB.Ping(); err == nil {
				break
			}
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	// Создаем таблицу
	_, err = storage.DB.Exec(`
        DROP TABLE IF EXISTS users CASCADE;

        CREATE TABLE users (
            user_id BIGINT PRIMARY KEY,
            subscription_end TIMESTAMPTZ,
            payment_status TEXT NOT NULL DEFAULT 'none',
            payment_link TEXT NOT NULL DEFAULT '',
            referral_code TEXT,
            referred_by BIGINT,
            payment_session_id TEXT,
            CONSTRAINT users_no_self_referral CHECK (referred_by IS NULL OR referred_by <> user_id)
        );

        CREATE UNIQUE INDEX idx_users_referral_code
            ON users (referral_code) WHERE referral_code IS NOT NULL;
        CREATE UNIQUE INDEX idx_users_payment_session_id
            ON users (payment_session_id) WHERE payment_session_id IS NOT NULL;
        CREATE INDEX idx_users_payment_status ON users (payment_status);
    `)
	require.NoError(t, err, "failed to create schema")

	cleanup := func() {
		_ = storage.DB.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return storage, cleanup
}
