package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the object-storage connection settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Minio is the production Store backed by a MinIO (or any S3-compatible)
// bucket.
type Minio struct {
	client  *minio.Client
	bucket  string
	workDir string
}

var _ Store = (*Minio)(nil)

// NewMinio connects to the object store and prepares a scratch directory for
// downloads.
func NewMinio(cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	workDir, err := os.MkdirTemp("", "gradepipe-blobs-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	return &Minio{client: client, bucket: cfg.Bucket, workDir: workDir}, nil
}

// Download implements Store via a single FGetObject call.
func (m *Minio) Download(ctx context.Context, key string) (string, error) {
	localPath := filepath.Join(m.workDir, filepath.Base(key))
	if err := m.client.FGetObject(ctx, m.bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	return localPath, nil
}
