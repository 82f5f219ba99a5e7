// Package conversation хранит состояние многошаговых диалогов бота в Redis.
// Состояние живет ограниченное время: брошенный диалог истекает сам.
package conversation

import (
	"fmt"
	"time"

	"github.com/Moshfiqmoon/Championyourpicks/internal/cache"
)

// Шаги диалогов, в которых бот ждет следующий ввод пользователя.
const (
	StepAwaitingReferralCode     = "awaiting_referral_code"
	StepAwaitingBroadcastText    = "awaiting_broadcast_text"
	StepAwaitingRemovalTarget    = "awaiting_removal_target"
	StepAwaitingActivationParams = "awaiting_activation_params"
)

// DefaultTTL время жизни незавершенного диалога.
const DefaultTTL = 10 * time.Minute

// State текущий шаг диалога пользователя.
type State struct {
	Step string `json:"step"`
}

// Store хранилище состояний диалогов.
type Store struct {
	cache *cache.Cache
	ttl   time.Duration
}

// New создает хранилище состояний. ttl <= 0 заменяется DefaultTTL.
func New(c *cache.Cache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cache: c, ttl: ttl}
}

func key(userID int64) string {
	return fmt.Sprintf("conversation:%d", userID)
}

// Set переводит диалог пользователя на указанный шаг.
func (s *Store) Set(userID int64, step string) error {
	const op = "conversation.Set"

	if err := s.cache.Set(key(userID), State{Step: step}, s.ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get возвращает текущий шаг диалога, пустую строку если диалога нет.
func (s *Store) Get(userID int64) (string, error) {
	const op = "conversation.Get"

	var state State
	found, err := s.cache.Get(key(userID), &state)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return "", nil
	}
	return state.Step, nil
}

// Clear завершает диалог пользователя.
func (s *Store) Clear(userID int64) error {
	const op = "conversation.Clear"

	if err := s.cache.Invalidate(key(userID)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
