package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobStore holds invoice attachments. Store returns an opaque handle that
// is persisted on the invoice row and passed back for download and delete.
type BlobStore interface {
	Store(ctx context.Context, propertyID uint, filename string, r io.Reader, size int64, contentType string) (string, error)
	PresignGet(ctx context.Context, handle string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, handle string) error
}

// MinioStore implements BlobStore for MinIO/S3 compatible storage.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

// Store uploads an attachment under a property-scoped key.
func (m *MinioStore) Store(ctx context.Context, propertyID uint, filename string, r io.Reader, size int64, contentType string) (string, error) {
	key := objectKey(propertyID, filename)
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}

// PresignGet generates a pre-signed GET URL for the attachment.
func (m *MinioStore) PresignGet(ctx context.Context, handle string, expiry time.Duration) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucket, handle, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return url.String(), nil
}

// Delete removes the attachment.
func (m *MinioStore) Delete(ctx context.Context, handle string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, handle, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// objectKey salts the key with a random id so re-uploads of the same
// filename never collide.
func objectKey(propertyID uint, filename string) string {
	return path.Join("invoices", fmt.Sprint(propertyID), uuid.NewString()+"_"+SafeFilename(filename))
}

// SafeFilename strips path separators and falls back to a fixed name.
func SafeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		return "invoice"
	}
	return name
}
