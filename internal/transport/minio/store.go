// Package minio stores document binaries in an S3-compatible bucket.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
)

// KeyPrefix is the top-level folder for document binaries.
const KeyPrefix = "documents"

// Config holds object store connection settings.
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	Secure        bool
	PublicBaseURL string
	PresignTTL    time.Duration
	Logger        *zap.Logger
}

// Store is the object store gateway.
type Store struct {
	client     *minio.Client
	bucket     string
	region     string
	publicBase string
	presignTTL time.Duration
	logger     *zap.Logger
}

// New creates a Store. It does not contact the server; call EnsureBucket at startup.
func New(cfg *Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}

	endpoint, secure := cfg.Endpoint, cfg.Secure
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = secure || u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	return &Store{
		client:     client,
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
		presignTTL: ttl,
		logger:     logger,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return classify("bucket exists", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return classify("make bucket", err)
	}
	s.logger.Info("bucket created", zap.String("bucket", s.bucket))
	return nil
}

// Ping checks that the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return classify("ping", err)
	}
	return nil
}

// NewKey builds a unique object key for an owner's upload.
func NewKey(ownerID, filename string) string {
	return buildKey(ownerID, filename, ksuid.New().String())
}

// NewKey builds a unique object key for an owner's upload.
func (s *Store) NewKey(ownerID, filename string) string { return NewKey(ownerID, filename) }

func buildKey(ownerID, filename, unique string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" {
		base = "document"
	}
	base = strings.ReplaceAll(base, " ", "_")
	return path.Join(KeyPrefix, ownerID, unique+"_"+base)
}

// FormatOf returns the lowercase extension of key without the dot.
func FormatOf(key string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(key), "."))
}

// Put uploads data under key and returns its descriptor with a durable URL.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (document.Object, error) {
	if key == "" {
		return document.Object{}, fmt.Errorf("%w: object key is required", domain.ErrValidation)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return document.Object{}, classify("put", err)
	}

	u, err := s.URL(ctx, key)
	if err != nil {
		return document.Object{}, err
	}
	return document.Object{Key: key, URL: u, Bytes: info.Size, Format: FormatOf(key)}, nil
}

// Get downloads the object. A missing key is domain.ErrObjectNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify("get", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classify("get", err)
	}
	return data, nil
}

// Stat returns the object descriptor without downloading it.
func (s *Store) Stat(ctx context.Context, key string) (document.Object, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return document.Object{}, classify("stat", err)
	}
	return document.Object{Key: key, Bytes: info.Size, Format: FormatOf(key)}, nil
}

// Delete removes the object. Deleting a missing key succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if errors.Is(classify("delete", err), domain.ErrObjectNotFound) {
			return nil
		}
		return classify("delete", err)
	}
	return nil
}

// Copy duplicates src to dst within the bucket.
func (s *Store) Copy(ctx context.Context, src, dst string) (document.Object, error) {
	info, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dst},
		minio.CopySrcOptions{Bucket: s.bucket, Object: src},
	)
	if err != nil {
		return document.Object{}, classify("copy", err)
	}
	u, err := s.URL(ctx, dst)
	if err != nil {
		return document.Object{}, err
	}
	return document.Object{Key: dst, URL: u, Bytes: info.Size, Format: FormatOf(dst)}, nil
}

// URL returns a durable URL for key: public when a base URL is configured, presigned otherwise.
func (s *Store) URL(ctx context.Context, key string) (string, error) {
	if s.publicBase != "" {
		return publicURL(s.publicBase, s.bucket, key), nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, nil)
	if err != nil {
		return "", classify("presign", err)
	}
	return u.String(), nil
}

func publicURL(base, bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return base + "/" + url.PathEscape(bucket) + "/" + strings.Join(parts, "/")
}

// classify maps minio errors onto domain sentinels.
func classify(op string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("object store %s: %w: %w", op, domain.ErrObjectNotFound, err)
	default:
		return fmt.Errorf("object store %s: %w: %w", op, domain.ErrObjectStore, err)
	}
}
