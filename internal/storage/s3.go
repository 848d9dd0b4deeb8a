package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/maltedev/encarte-scraper/internal/models"
)

type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror copies saved artifacts to a bucket under Prefix/RelPath.
type S3Mirror struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

func NewS3Mirror(client PutObjectAPI, bucket, prefix string, logger *slog.Logger) *S3Mirror {
	return &S3Mirror{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.With("component", "s3_mirror"),
	}
}

// NewS3MirrorFromEnv loads the default AWS credential chain for region.
func NewS3MirrorFromEnv(ctx context.Context, bucket, prefix, region string, logger *slog.Logger) (*S3Mirror, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return NewS3Mirror(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

func (m *S3Mirror) Key(a *models.Artifact) string {
	if m.prefix == "" {
		return a.RelPath
	}
	return path.Join(m.prefix, a.RelPath)
}

func (m *S3Mirror) Record(ctx context.Context, a *models.Artifact) error {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return fmt.Errorf("failed to read artifact for upload: %w", err)
	}

	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := m.Key(a)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}

	m.logger.Debug("artifact mirrored", "bucket", m.bucket, "key", key)
	return nil
}
