package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Moshfiqmoon/Championyourpicks/internal/models"
)

// ErrUserNotFound возвращается, когда запись пользователя отсутствует.
var ErrUserNotFound = errors.New("user not found")

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var subscriptionEnd sql.NullTime
	var referralCode, paymentSessionID sql.NullString
	var referredBy sql.NullInt64

	if err := row.Scan(&u.UserID, &subscriptionEnd, &u.PaymentStatus, &u.PaymentLink,
		&referralCode, &referredBy, &paymentSessionID); err != nil {
		return nil, err
	}

	if subscriptionEnd.Valid {
		end := subscriptionEnd.Time.UTC()
		u.SubscriptionEnd = &end
	}
	if referralCode.Valid {
		u.ReferralCode = &referralCode.String
	}
	if referredBy.Valid {
		u.ReferredBy = &referredBy.Int64
	}
	if paymentSessionID.Valid {
		u.PaymentSessionID = &paymentSessionID.String
	}
	return u, nil
}

const userColumns = `user_id, subscription_end, payment_status, payment_link,
			      referral_code, referred_by, payment_session_id`

// GetUser возвращает запись пользователя по его идентификатору.
func (s *Storage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE user_id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpsertGrant атомарно выдаёт подписку: создаёт запись или переводит
// существующую в active с новой датой окончания. Единственная точка
// синхронизации конкурирующих грантов — побеждает последняя запись.
func (s *Storage) UpsertGrant(ctx context.Context, userID int64, end time.Time, paymentLink string, sessionID string) error {
	const op = "storage.UpsertGrant"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var session sql.NullString
	if sessionID != "" {
		session = sql.NullString{String: sessionID, Valid: true}
	}

	query := `INSERT INTO users (user_id, subscription_end, payment_status, payment_link, payment_session_id)
			  VALUES ($1, $2, 'active', $3, $4)
			  ON CONFLICT (user_id) DO UPDATE
			  SET subscription_end = EXCLUDED.subscription_end,
			      payment_status = EXCLUDED.payment_status,
			      payment_link = EXCLUDED.payment_link,
			      payment_session_id = EXCLUDED.payment_session_id`
	if _, err := s.DB.ExecContext(ctx, query, userID, end.UTC(), paymentLink, session); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetPendingPayment атомарно фиксирует незавершённую оплату: ссылку на
// checkout и идентификатор сессии, статус pending. Дата окончания подписки
// не трогается.
func (s *Storage) SetPendingPayment(ctx context.Context, userID int64, paymentLink string, sessionID string) error {
	const op = "storage.SetPendingPayment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (user_id, payment_status, payment_link, payment_session_id)
			  VALUES ($1, 'pending', $2, $3)
			  ON CONFLICT (user_id) DO UPDATE
			  SET payment_status = EXCLUDED.payment_status,
			      payment_link = EXCLUDED.payment_link,
			      payment_session_id = EXCLUDED.payment_session_id`
	if _, err := s.DB.ExecContext(ctx, query, userID, paymentLink, sessionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindUserBySessionID возвращает пользователя по идентификатору
// checkout-сессии платёжного шлюза.
func (s *Storage) FindUserBySessionID(ctx context.Context, sessionID string) (*models.User, error) {
	const op = "storage.FindUserBySessionID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE payment_session_id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// FindUserByReferralCode возвращает владельца реферального кода.
func (s *Storage) FindUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	const op = "storage.FindUserByReferralCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE referral_code = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// SetReferralCode записывает пользователю новый реферальный код,
// перезаписывая прежний. Запись создаётся, если её ещё нет.
func (s *Storage) SetReferralCode(ctx context.Context, userID int64, code string) error {
	const op = "storage.SetReferralCode"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (user_id, payment_status, referral_code)
			  VALUES ($1, 'none', $2)
			  ON CONFLICT (user_id) DO UPDATE
			  SET referral_code = EXCLUDED.referral_code`
	if _, err := s.DB.ExecContext(ctx, query, userID, code); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetReferredBy проставляет пользователю ссылку на пригласившего.
// Уже существующая привязка не перезаписывается: первая запись побеждает
// даже при конкурентных вызовах.
func (s *Storage) SetReferredBy(ctx context.Context, userID, referrerID int64) error {
	const op = "storage.SetReferredBy"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (user_id, payment_status, referred_by)
			  VALUES ($1, 'none', $2)
			  ON CONFLICT (user_id) DO UPDATE
			  SET referred_by = EXCLUDED.referred_by
			  WHERE users.referred_by IS NULL`
	if _, err := s.DB.ExecContext(ctx, query, userID, referrerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SweepExpired переводит в expired все записи, чья подписка истекла
// к моменту now, и возвращает количество затронутых строк.
func (s *Storage) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.SweepExpired"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
		      SET payment_status = 'expired'
			  WHERE subscription_end < $1
			    AND payment_status = 'active'`
	result, err := s.DB.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

// RemoveUser удаляет запись пользователя и возвращает количество удалённых строк.
func (s *Storage) RemoveUser(ctx context.Context, userID int64) (int64, error) {
	const op = "storage.RemoveUser"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM users WHERE user_id = $1`
	result, err := s.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

// ListUsers возвращает все записи пользователей.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.ListUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  ORDER BY user_id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListActiveUsers возвращает идентификаторы пользователей с активной подпиской.
func (s *Storage) ListActiveUsers(ctx context.Context) ([]int64, error) {
	const op = "storage.ListActiveUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id
			  FROM users
			  WHERE payment_status = 'active'
			  ORDER BY user_id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountUsers возвращает общее количество записей.
func (s *Storage) CountUsers(ctx context.Context) (int64, error) {
	const op = "storage.CountUsers"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int64
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// UpsertUsers загружает записи из резервной копии. При fillMissingOnly
// существующие записи не перезаписываются.
func (s *Storage) UpsertUsers(ctx context.Context, users []*models.User, fillMissingOnly bool) error {
	const op = "storage.UpsertUsers"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO users (` + userColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (user_id) DO UPDATE
			  SET subscription_end = EXCLUDED.subscription_end,
			      payment_status = EXCLUDED.payment_status,
			      payment_link = EXCLUDED.payment_link,
			      referral_code = EXCLUDED.referral_code,
			      referred_by = EXCLUDED.referred_by,
			      payment_session_id = EXCLUDED.payment_session_id`
	if fillMissingOnly {
		query = `INSERT INTO users (` + userColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (user_id) DO NOTHING`
	}

	for _, u := range users {
		var end sql.NullTime
		if u.SubscriptionEnd != nil {
			end = sql.NullTime{Time: u.SubscriptionEnd.UTC(), Valid: true}
		}
		var code, session sql.NullString
		if u.ReferralCode != nil {
			code = sql.NullString{String: *u.ReferralCode, Valid: true}
		}
		if u.PaymentSessionID != nil {
			session = sql.NullString{String: *u.PaymentSessionID, Valid: true}
		}
		var referredBy sql.NullInt64
		if u.ReferredBy != nil {
			referredBy = sql.NullInt64{Int64: *u.ReferredBy, Valid: true}
		}

		if _, err := tx.ExecContext(ctx, query,
			u.UserID, end, u.PaymentStatus, u.PaymentLink, code, referredBy, session); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
