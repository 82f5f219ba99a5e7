// Package blob хранит снапшоты пользовательских записей в S3-совместимом
// объектном хранилище.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound объект с указанным ключом отсутствует в хранилище.
var ErrNotFound = errors.New("object not found")

// Config параметры подключения к объектному хранилищу.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// Storage обертка над S3-клиентом для работы со снапшотами.
type Storage struct {
	client *minio.Client
	bucket string

	ensureOnce sync.Once
	ensureErr  error
}

// New создает подключение к объектному хранилищу.
func New(cfg Config) (*Storage, error) {
	const op = "blob.New"

	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%s: endpoint is required", op)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%s: bucket is required", op)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket создает бакет, если его ещё нет. Успешный результат
// кешируется на время жизни процесса.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	const op = "blob.EnsureBucket"

	s.ensureOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.ensureErr = err
			return
		}
		if exists {
			return
		}
		s.ensureErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})
	if s.ensureErr != nil {
		return fmt.Errorf("%s: bucket %q: %w", op, s.bucket, s.ensureErr)
	}
	return nil
}

// Put записывает объект по ключу, перезаписывая существующий.
func (s *Storage) Put(ctx context.Context, key string, data []byte) error {
	const op = "blob.Put"

	if err := s.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("%s: key %q: %w", op, key, err)
	}
	return nil
}

// Get читает объект по ключу. Для отсутствующего объекта или бакета
// возвращает ErrNotFound.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "blob.Get"

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%s: key %q: %w", op, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && (resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket") {
			return nil, fmt.Errorf("%s: key %q: %w", op, key, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: key %q: %w", op, key, err)
	}
	return data, nil
}
