package results

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StoreConfig describes an S3-compatible bucket for results archives
type StoreConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// objectStore is the subset of *minio.Client the publisher needs
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher uploads results archives to object storage
type Publisher struct {
	client objectStore
	bucket string
	region string
	logger *zap.Logger

	retryAttempts int
	retryDelay    time.Duration

	mu    sync.Mutex
	ready bool
}

// NewPublisher connects a Publisher to the configured bucket
func NewPublisher(cfg StoreConfig, logger *zap.Logger) (*Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("archive endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("archive access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init archive client: %w", err)
	}
	return newPublisher(client, bucket, region, logger), nil
}

func newPublisher(client objectStore, bucket, region string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:        client,
		bucket:        bucket,
		region:        region,
		logger:        logger,
		retryAttempts: 3,
		retryDelay:    2 * time.Second,
	}
}

// SetRetryConfig configures retry behavior for uploads
func (p *Publisher) SetRetryConfig(attempts int, delay time.Duration) {
	if attempts < 1 {
		attempts = 1
	}
	p.retryAttempts = attempts
	p.retryDelay = delay
}

// PublishRequest identifies one archive upload
type PublishRequest struct {
	RunID       string
	Task        string
	Channel     string
	ArchivePath string
}

// ObjectKey returns <channel>/<task>/<run>/<archive file name>; local runs use "local" as channel
func (r PublishRequest) ObjectKey() string {
	channel := strings.TrimSpace(r.Channel)
	if channel == "" {
		channel = "local"
	}
	return path.Join(channel, r.Task, r.RunID, filepath.Base(r.ArchivePath))
}

// Publish uploads the archive, creating the bucket on first use
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) (string, error) {
	if strings.TrimSpace(req.RunID) == "" {
		return "", fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(req.ArchivePath) == "" {
		return "", fmt.Errorf("archive path is required")
	}
	if err := p.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	key := req.ObjectKey()
	var info minio.UploadInfo
	err := p.retryWithBackoff(ctx, "upload "+key, func() error {
		var putErr error
		info, putErr = p.client.FPutObject(ctx, p.bucket, key, req.ArchivePath, minio.PutObjectOptions{
			ContentType: "application/zip",
		})
		return putErr
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	p.logger.Info("published results archive",
		zap.String("bucket", p.bucket),
		zap.String("key", key),
		zap.Int64("size", info.Size),
	)
	return key, nil
}

// ensureBucket creates the bucket once. A failed attempt is retried on the next publish.
func (p *Publisher) ensureBucket(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		return nil
	}

	err := p.retryWithBackoff(ctx, "ensure bucket "+p.bucket, func() error {
		exists, err := p.client.BucketExists(ctx, p.bucket)
		if err != nil || exists {
			return err
		}
		return p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
	})
	if err != nil {
		return err
	}
	p.ready = true
	return nil
}
