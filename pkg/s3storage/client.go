// Package s3storage зеркалирует артефакты пайплайна (датасет, имя модели) в S3.

package s3storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ilkoid/poncho-tune/pkg/config"
)

// ArtifactStore - хранилище артефактов.
// Используется для мокания в тестах и внедрения зависимостей.
type ArtifactStore interface {
	Upload(ctx context.Context, localPath, name string) (StoredObject, error)
	DownloadToFile(ctx context.Context, name, localPath string) error
	List(ctx context.Context) ([]StoredObject, error)
}

type Client struct {
	api    *minio.Client
	bucket string
	prefix string
}

// Проверка что Client реализует ArtifactStore
var _ ArtifactStore = (*Client)(nil)

// StoredObject - объект в бакете.
type StoredObject struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// New создает клиент, используя наш конфиг.
func New(cfg config.S3Config) (*Client, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	return &Client{
		api:    minioClient,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Key возвращает полный ключ объекта для имени артефакта.
func (c *Client) Key(name string) string {
	name = strings.TrimLeft(name, "/")
	if c.prefix == "" {
		return name
	}
	return path.Join(c.prefix, name)
}

// Upload загружает локальный файл под именем name внутри префикса.
func (c *Client) Upload(ctx context.Context, localPath, name string) (StoredObject, error) {
	if name == "" {
		name = filepath.Base(localPath)
	}
	key := c.Key(name)

	info, err := c.api.FPutObject(ctx, c.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return StoredObject{}, fmt.Errorf("failed to upload %s to %s/%s: %w", localPath, c.bucket, key, err)
	}

	return StoredObject{
		Key:          key,
		Size:         info.Size,
		LastModified: info.LastModified,
	}, nil
}

// DownloadToFile скачивает артефакт name и сохраняет в localPath.
func (c *Client) DownloadToFile(ctx context.Context, name, localPath string) error {
	key := c.Key(name)

	if dir := filepath.Dir(localPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create dir for %s: %w", localPath, err)
		}
	}

	if err := c.api.FGetObject(ctx, c.bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return nil
}

// List возвращает все артефакты под префиксом.
func (c *Client) List(ctx context.Context) ([]StoredObject, error) {
	// Отмена останавливает горутину листинга при раннем выходе
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prefix := c.prefix
	if prefix != "" {
		prefix += "/"
	}

	var objects []StoredObject
	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}

	for obj := range c.api.ListObjects(ctx, c.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s/%s: %w", c.bucket, prefix, obj.Err)
		}
		// Пропускаем саму "папку"
		if obj.Key == prefix {
			continue
		}
		objects = append(objects, StoredObject{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return objects, nil
}

func contentType(localPath string) string {
	switch strings.ToLower(filepath.Ext(localPath)) {
	case ".jsonl":
		return "application/jsonl"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
