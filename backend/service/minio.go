package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/config"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
)

const anonymousOwner = "anonymous"

// ReceiptArchive stores one JSON receipt per finished session in object storage
type ReceiptArchive struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewReceiptArchive(cfg *config.MinioConfig) (*ReceiptArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ReceiptArchive{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// ReceiptObjectName returns where the receipt of a session is stored
func ReceiptObjectName(owner, sessionID string) string {
	if owner == "" {
		owner = anonymousOwner
	}
	return fmt.Sprintf("receipts/%s/%s.json", owner, sessionID)
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *ReceiptArchive) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.config.Region})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Publish uploads the outcome as a receipt. It lets the archive act as an outcome sink.
func (s *ReceiptArchive) Publish(ctx context.Context, out model.Outcome) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}

	objectName := ReceiptObjectName(out.Owner, out.SessionID)
	_, err = s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"session-kind": string(out.Kind),
			"status":       string(out.Status),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload receipt: %w", err)
	}

	return nil
}

// ReceiptURL generates a presigned URL for the receipt with expiration
func (s *ReceiptArchive) ReceiptURL(ctx context.Context, owner, sessionID string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, ReceiptObjectName(owner, sessionID), expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}
