// Package minio stores export artifacts (design archives, fabrication
// files) in an S3-compatible object store.
package minio

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/logging"
	"github.com/coilforge/coilforge/pkg/errors"
)

// minioAPI is the subset of the minio client used by the store, extracted
// for mocking.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Store uploads export artifacts into a single bucket.
type Store struct {
	api    minioAPI
	bucket string
	log    logging.Logger
}

// NewStore connects to the configured endpoint and ensures the artifact
// bucket exists.
func NewStore(cfg config.MinIOConfig, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "artifact bucket name is empty")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to create minio client")
	}

	s := &Store{
		api:    client,
		bucket: cfg.Bucket,
		log:    log.Named("artifact_store"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}

	log.Info("Connected to object storage",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
	)
	return s, nil
}

// NewStoreWithAPI builds a Store on an existing API client (for testing).
func NewStoreWithAPI(api minioAPI, bucket string, log logging.Logger) *Store {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Store{api: api, bucket: bucket, log: log}
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to check artifact bucket")
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create artifact bucket")
	}
	return nil
}

// UploadFile pushes a local file into the bucket under objectName and
// returns the object name.
func (s *Store) UploadFile(ctx context.Context, objectName, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "failed to open artifact file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "failed to stat artifact file")
	}

	_, err = s.api.PutObject(ctx, s.bucket, objectName, f, info.Size(), minio.PutObjectOptions{
		ContentType: contentType(filePath),
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "failed to upload artifact").
			WithDetailf("object %s", objectName)
	}

	s.log.Info("artifact uploaded",
		logging.String("object", objectName),
		logging.Int64("size", info.Size()),
	)
	return objectName, nil
}

// UploadBytes stores an in-memory artifact.
func (s *Store) UploadBytes(ctx context.Context, objectName string, data []byte, mediaType string) error {
	_, err := s.api.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mediaType,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to upload artifact").
			WithDetailf("object %s", objectName)
	}
	return nil
}

// Exists reports whether an object is present.
func (s *Store) Exists(ctx context.Context, objectName string) (bool, error) {
	_, err := s.api.StatObject(ctx, s.bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorageError, "failed to stat artifact")
	}
	return true, nil
}

// Remove deletes an object.
func (s *Store) Remove(ctx context.Context, objectName string) error {
	if err := s.api.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to remove artifact")
	}
	return nil
}

func contentType(path string) string {
	switch filepath.Ext(path) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".svg":
		return "image/svg+xml"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
