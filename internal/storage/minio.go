package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig contains MinIO connection settings
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	// Prefix is prepended to every object key.
	Prefix string
}

// MinIOMirror copies written artifacts into a bucket
type MinIOMirror struct {
	client     *minio.Client
	bucketName string
	prefix     string
}

// NewMinIOMirror creates a new MinIO mirror
func NewMinIOMirror(cfg MinIOConfig) (*MinIOMirror, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("minio bucket name is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	return &MinIOMirror{
		client:     client,
		bucketName: cfg.BucketName,
		prefix:     cfg.Prefix,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (m *MinIOMirror) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil {
		return fmt.Errorf("checking bucket existence: %w", err)
	}

	if !exists {
		err = m.client.MakeBucket(ctx, m.bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
	}

	return nil
}

// Key returns the object key for an artifact key
func (m *MinIOMirror) Key(key string) string {
	if m.prefix == "" {
		return key
	}
	return path.Join(m.prefix, key)
}

// Put uploads one artifact
func (m *MinIOMirror) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucketName, m.Key(key), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("uploading object: %w", err)
	}
	return nil
}

// URI returns the S3-style URI of an artifact key
func (m *MinIOMirror) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", m.bucketName, m.Key(key))
}
