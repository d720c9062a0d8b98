package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"dublab/internal/minio"

	miniosdk "github.com/minio/minio-go/v7"
)

// ObjectStorage is the behaviour the pipeline needs from object storage.
type ObjectStorage interface {
	PutObject(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, key string) error
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	DownloadToFile(ctx context.Context, key, path string) error
	UploadFile(ctx context.Context, key, path, contentType string) (int64, error)
}

// Service handles media artifact storage operations on MinIO.
type Service struct {
	client *minio.Client
	bucket string
}

var _ ObjectStorage = (*Service)(nil)

// New creates a new storage service.
func New(client *minio.Client) *Service {
	return &Service{
		client: client,
		bucket: client.Bucket(),
	}
}

// PutObject uploads an object.
func (s *Service) PutObject(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, miniosdk.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// GetObject retrieves an object.
func (s *Service) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, miniosdk.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}

// DeleteObject deletes an object.
func (s *Service) DeleteObject(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, miniosdk.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// PresignedGetURL generates a presigned URL for external access, e.g. for
// handing audio to an asynchronous transcription service.
func (s *Service) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PublicClient().PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u.String(), nil
}

// DownloadToFile copies an object to a local file.
func (s *Service) DownloadToFile(ctx context.Context, key, path string) error {
	reader, err := s.GetObject(ctx, key)
	if err != nil {
		return err
	}
	defer reader.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// UploadFile uploads a local file and returns its size.
func (s *Service) UploadFile(ctx context.Context, key, path, contentType string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}

	if err := s.PutObject(ctx, key, f, stat.Size(), contentType); err != nil {
		return 0, err
	}
	return stat.Size(), nil
}
