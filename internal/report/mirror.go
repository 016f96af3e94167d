package report

import (
	"bytes"
	"context"
	"fmt"

	"backupd/internal/config"
	s3client "backupd/pkg/s3"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Mirror uploads rendered reports to an S3-compatible bucket.
type S3Mirror struct {
	client *s3.Client
	bucket string
}

// NewS3Mirror builds an S3Mirror from the mirror configuration.
func NewS3Mirror(cfg config.MirrorConfig) (*S3Mirror, error) {
	client, err := s3client.NewClient(cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create mirror client: %w", err)
	}
	return &S3Mirror{client: client, bucket: cfg.Bucket}, nil
}

// Upload puts one report object into the mirror bucket.
func (m *S3Mirror) Upload(ctx context.Context, key string, body []byte) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}
