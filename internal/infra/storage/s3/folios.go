package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultLinkTTL = 15 * time.Minute

// FolioStore keeps rendered folios in a private S3-compatible bucket and
// hands out presigned download links.
type FolioStore struct {
	bucket  string
	linkTTL time.Duration
	client  *minio.Client
	logger  *slog.Logger

	mu          sync.Mutex
	bucketReady bool
}

type Options struct {
	Endpoint  string
	UseSSL    bool
	AccessKey string
	SecretKey string
	Bucket    string
	LinkTTL   time.Duration
	Logger    *slog.Logger
}

func NewFolioStore(opts Options) (*FolioStore, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	client, err := minio.New(parseEndpoint(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(opts.AccessKey), strings.TrimSpace(opts.SecretKey), ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	ttl := opts.LinkTTL
	if ttl <= 0 {
		ttl = defaultLinkTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FolioStore{bucket: bucket, linkTTL: ttl, client: client, logger: logger}, nil
}

// Upload stores the object and returns a presigned GET link to it.
func (s *FolioStore) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if reader == nil {
		return "", errors.New("s3: reader is required")
	}
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, reader, -1, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}
	link, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.linkTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("s3: presign object: %w", err)
	}
	s.logger.InfoContext(ctx, "folio stored", "bucket", s.bucket, "key", key)
	return link.String(), nil
}

// ensureBucket creates the bucket on first use. A failed attempt is retried
// on the next upload.
func (s *FolioStore) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucketReady {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("s3: check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("s3: create bucket: %w", err)
		}
	}
	s.bucketReady = true
	return nil
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}
