package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/inkwave/commerce-api/internal/config"
	"github.com/inkwave/commerce-api/internal/repository"
)

// StorageService handles object storage operations (S3-compatible). It backs
// the hosted catalog document and nightly ledger snapshot exports.
type StorageService struct {
	client         *s3.Client
	bucket         string
	snapshotPrefix string
	enabled        bool
	logger         *slog.Logger
}

// NewStorageService creates a new storage service.
func NewStorageService(cfg *appconfig.Config, logger *slog.Logger) (*StorageService, error) {
	if !cfg.StorageEnabled {
		logger.Info("storage service disabled - no bucket configured")
		return &StorageService{
			enabled: false,
			logger:  logger,
		}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.StorageRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Custom endpoint + path style for S3-compatible services (Tigris, MinIO)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true
	})

	logger.Info("storage service initialized",
		"bucket", cfg.StorageBucket,
		"endpoint", cfg.StorageEndpoint,
	)

	return &StorageService{
		client:         client,
		bucket:         cfg.StorageBucket,
		snapshotPrefix: cfg.SnapshotPrefix,
		enabled:        true,
		logger:         logger,
	}, nil
}

// IsEnabled returns whether storage is configured and available.
func (s *StorageService) IsEnabled() bool {
	return s.enabled
}

// Client returns the underlying S3 client (nil if storage is disabled).
func (s *StorageService) Client() *s3.Client {
	return s.client
}

// Bucket returns the configured bucket name.
func (s *StorageService) Bucket() string {
	return s.bucket
}

// LedgerSnapshot is the exported aggregate state of the ledger.
type LedgerSnapshot struct {
	TakenAt time.Time               `json:"taken_at"`
	Stats   *repository.LedgerStats `json:"stats"`
}

// ExportLedgerSnapshot writes a ledger snapshot JSON to object storage under
// the snapshot prefix. Returns the object key.
func (s *StorageService) ExportLedgerSnapshot(ctx context.Context, snapshot *LedgerSnapshot) (string, error) {
	if !s.enabled {
		return "", nil
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := fmt.Sprintf("%s%s.json", s.snapshotPrefix, snapshot.TakenAt.UTC().Format("2006-01-02T15-04-05"))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	s.logger.Info("ledger snapshot exported", "key", key, "bytes", len(body))
	return key, nil
}
