// Package archive copies sealed incident clips to S3-compatible storage so
// they outlive gallery eviction.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"helmetguard-client/config"
	"helmetguard-client/internal/incident"
)

// Storage uploads clips into one bucket.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the archive config.
func New(cfg *config.ArchiveConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket creates the bucket when missing.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Upload stores the clip artifact under ObjectKey(it).
func (s *Storage) Upload(ctx context.Context, it incident.Item) error {
	if len(it.Artifact) == 0 {
		return fmt.Errorf("clip %s has no artifact", it.ID)
	}
	meta := map[string]string{
		"incident-id": it.ID,
		"chunks":      strconv.Itoa(it.ChunkCount),
	}
	if it.Gforce != nil {
		meta["gforce"] = strconv.FormatFloat(*it.Gforce, 'f', 2, 64)
	}
	opts := minio.PutObjectOptions{ContentType: it.MimeType, UserMetadata: meta}
	_, err := s.client.PutObject(ctx, s.bucket, ObjectKey(it), bytes.NewReader(it.Artifact), int64(len(it.Artifact)), opts)
	if err != nil {
		return fmt.Errorf("upload clip %s: %w", it.ID, err)
	}
	return nil
}

// ObjectKey places clips under a per-day prefix.
func ObjectKey(it incident.Item) string {
	day := it.CreatedAt.UTC().Format("2006/01/02")
	return path.Join("incidents", day, it.Filename)
}
