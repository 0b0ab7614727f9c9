package invoice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage defines the interface for original document storage
type Storage interface {
	// Save stores data under key and returns the key to retrieve it with
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get retrieves a stored file
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a stored file
	Delete(ctx context.Context, key string) error
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// path keeps keys inside the base directory
func (l *LocalStorage) path(key string) string {
	return filepath.Join(l.basePath, filepath.Base(key))
}

// Save saves a file to local storage
func (l *LocalStorage) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := os.WriteFile(l.path(key), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filepath.Base(key), nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(l.path(key))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := os.Remove(l.path(key)); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// MinioConfig holds the connection settings for an S3-compatible bucket
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinioStorage implements the Storage interface on an S3-compatible bucket
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage connects to the bucket, creating it when missing
func NewMinioStorage(ctx context.Context, cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	found, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !found {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioStorage{client: client, bucket: cfg.Bucket}, nil
}

// Save uploads a file to the bucket
func (m *MinioStorage) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("uploading object: %w", err)
	}
	return key, nil
}

// Get downloads a file from the bucket
func (m *MinioStorage) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("reading object: %w", err)
	}
	return data, nil
}

// Delete removes a file from the bucket
func (m *MinioStorage) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("removing object: %w", err)
	}
	return nil
}
