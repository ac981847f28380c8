// Package storage keeps uploaded prescription images in an S3-compatible
// object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ObjectStore saves blobs and hands back a durable URL for each
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
}

// ErrNotConfigured is returned by Disabled for every operation
var ErrNotConfigured = errors.New("object storage is not configured")

// Disabled stands in when no object store is configured
type Disabled struct{}

func (Disabled) Put(context.Context, string, io.Reader, int64, string) (string, error) {
	return "", ErrNotConfigured
}

func (Disabled) Remove(context.Context, string) error { return ErrNotConfigured }

// MinioConfig locates the bucket
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Minio is an ObjectStore backed by a MinIO or S3 bucket
type Minio struct {
	client *minio.Client
	cfg    MinioConfig
}

// NewMinio connects to the object store and creates the bucket if needed
func NewMinio(ctx context.Context, cfg MinioConfig, logger *zap.Logger) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("Bucket created", zap.String("bucket", cfg.Bucket))
	}

	logger.Info("Connected to object storage", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return &Minio{client: client, cfg: cfg}, nil
}

func (m *Minio) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.cfg.Bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return ObjectURL(m.cfg, key), nil
}

func (m *Minio) Remove(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// ObjectURL is the public URL of key in the configured bucket
func ObjectURL(cfg MinioConfig, key string) string {
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: cfg.Endpoint, Path: "/" + path.Join(cfg.Bucket, key)}
	return u.String()
}

// SafeName reduces an uploaded file name to characters that are safe in an
// object key
func SafeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	return name
}
