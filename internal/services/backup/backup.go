// Package backup снимает и восстанавливает снапшоты пользовательских
// записей через объектное хранилище.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Moshfiqmoon/Championyourpicks/internal/config"
	"github.com/Moshfiqmoon/Championyourpicks/internal/lib/sl"
	"github.com/Moshfiqmoon/Championyourpicks/internal/models"
	"github.com/Moshfiqmoon/Championyourpicks/internal/storage/blob"
)

// ErrNoSnapshot снапшот отсутствует в объектном хранилище.
var ErrNoSnapshot = errors.New("no snapshot")

// Repository операции хранилища, нужные сервису резервных копий.
type Repository interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
	UpsertUsers(ctx context.Context, users []*models.User, fillMissingOnly bool) error
}

// Blob операции объектного хранилища.
type Blob interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Service сервис резервного копирования.
type Service struct {
	repo        Repository
	blob        Blob
	log         *slog.Logger
	snapshotKey string
}

// New создает сервис резервного копирования.
func New(repo Repository, blobStore Blob, log *slog.Logger, snapshotKey string) *Service {
	return &Service{
		repo:        repo,
		blob:        blobStore,
		log:         log,
		snapshotKey: snapshotKey,
	}
}

// Snapshot сериализует все записи пользователей и перезаписывает снапшот
// в объектном хранилище.
func (s *Service) Snapshot(ctx context.Context) (int, error) {
	const op = "backup.Snapshot"

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	records := make([]models.BackupUser, 0, len(users))
	for _, u := range users {
		records = append(records, u.ToBackup())
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.blob.Put(ctx, s.snapshotKey, data); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("snapshot written",
		slog.String("key", s.snapshotKey), slog.Int("users", len(records)))
	return len(records), nil
}

// Restore загружает снапшот и применяет его согласно политике:
// on_empty — только в пустое хранилище, fill_missing — дополняет
// отсутствующие записи, always — безусловно перезаписывает.
// Возвращает число записей снапшота, 0 если восстановление пропущено.
func (s *Service) Restore(ctx context.Context, policy string) (int, error) {
	const op = "backup.Restore"

	if policy == config.RestorePolicyOnEmpty {
		count, err := s.repo.CountUsers(ctx)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		if count > 0 {
			s.log.Info("restore skipped, store is not empty",
				slog.Int64("users", count))
			return 0, nil
		}
	}

	data, err := s.blob.Get(ctx, s.snapshotKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return 0, fmt.Errorf("%s: key %q: %w", op, s.snapshotKey, ErrNoSnapshot)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var records []models.BackupUser
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	users := make([]*models.User, 0, len(records))
	for i := range records {
		u, err := records[i].ToUser()
		if err != nil {
			// битую запись пропускаем, остальное восстанавливаем
			s.log.Warn("skipping malformed snapshot record", sl.Err(err))
			continue
		}
		users = append(users, u)
	}

	fillMissingOnly := policy == config.RestorePolicyFillMissing
	if err := s.repo.UpsertUsers(ctx, users, fillMissingOnly); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("snapshot restored",
		slog.String("policy", policy), slog.Int("users", len(users)))
	return len(users), nil
}

// RunPeriodic снимает снапшот с заданным интервалом до отмены контекста.
func (s *Service) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Snapshot(ctx); err != nil {
				s.log.Error("periodic snapshot failed", sl.Err(err))
			}
		}
	}
}
