// Package models содержит доменные структуры, описывающие пользователя бота
// и его подписку, а также тарифные планы. Структуры используются
// в бизнес‑логике и при работе с хранилищем.
package models

import (
	"fmt"
	"time"
)

// Статусы оплаты подписки.
const (
	PaymentStatusNone    = "none"
	PaymentStatusPending = "pending"
	PaymentStatusActive  = "active"
	PaymentStatusExpired = "expired"
)

// Отметки в payment_link вместо ссылки на оплату.
const (
	// PaymentLinkManual значение payment_link при ручной активации администратором.
	PaymentLinkManual = "Manually Activated"
	// PaymentLinkGateway значение payment_link при активации платежным webhook.
	PaymentLinkGateway = "Stripe Webhook"
)

// User представляет запись пользователя бота. Одна запись на chat id.
// SubscriptionEnd хранится в UTC; nil означает, что подписка никогда не выдавалась.
type User struct {
	UserID           int64      // Идентификатор пользователя в Telegram
	SubscriptionEnd  *time.Time // Окончание оплаченного периода (UTC)
	PaymentStatus    string     // Статус оплаты: none, pending, active, expired
	PaymentLink      string     // Последняя ссылка на оплату или отметка ручной активации
	ReferralCode     *string    // Реферальный код пользователя, уникален среди выданных
	ReferredBy       *int64     // Кто привёл пользователя; самоссылка запрещена
	PaymentSessionID *string    // Идентификатор checkout-сессии платёжного шлюза
}

// IsEntitledAt сообщает, действует ли подписка пользователя в момент now.
func (u *User) IsEntitledAt(now time.Time) bool {
	return u.SubscriptionEnd != nil && u.SubscriptionEnd.After(now)
}

// BackupUser форма записи пользователя в снапшоте резервной копии.
// Даты сериализуются строками RFC 3339.
type BackupUser struct {
	UserID           int64   `json:"user_id"`
	SubscriptionEnd  *string `json:"subscription_end"`
	PaymentStatus    string  `json:"payment_status"`
	PaymentLink      string  `json:"payment_link"`
	ReferralCode     *string `json:"referral_code"`
	ReferredBy       *int64  `json:"referred_by"`
	PaymentSessionID *string `json:"payment_session_id"`
}

// ToBackup переводит запись пользователя в форму снапшота.
func (u *User) ToBackup() BackupUser {
	b := BackupUser{
		UserID:           u.UserID,
		PaymentStatus:    u.PaymentStatus,
		PaymentLink:      u.PaymentLink,
		ReferralCode:     u.ReferralCode,
		ReferredBy:       u.ReferredBy,
		PaymentSessionID: u.PaymentSessionID,
	}
	if u.SubscriptionEnd != nil {
		s := u.SubscriptionEnd.UTC().Format(time.RFC3339)
		b.SubscriptionEnd = &s
	}
	return b
}

// ToUser восстанавливает запись пользователя из формы снапшота.
func (b *BackupUser) ToUser() (*User, error) {
	u := &User{
		UserID:           b.UserID,
		PaymentStatus:    b.PaymentStatus,
		PaymentLink:      b.PaymentLink,
		ReferralCode:     b.ReferralCode,
		ReferredBy:       b.ReferredBy,
		PaymentSessionID: b.PaymentSessionID,
	}
	if u.PaymentStatus == "" {
		u.PaymentStatus = PaymentStatusNone
	}
	if b.SubscriptionEnd != nil && *b.SubscriptionEnd != "" {
		end, err := time.Parse(time.RFC3339, *b.SubscriptionEnd)
		if err != nil {
			return nil, fmt.Errorf("user %d: invalid subscription_end %q: %w", b.UserID, *b.SubscriptionEnd, err)
		}
		end = end.UTC()
		u.SubscriptionEnd = &end
	}
	return u, nil
}
