// pkg/objectstore/s3.go
package objectstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/pranithapadala/covid-data-pipeline/pkg/config"
)

// S3Store implements ObjectStore on top of an S3 bucket
type S3Store struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
	cfg    *config.S3Config
}

// NewS3Store creates an S3-backed object store for the configured bucket
func NewS3Store(ctx context.Context, cfg *config.S3Config) (*S3Store, error) {
	logger := zap.L().Named("s3-store")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Info("Initialized S3 object store",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region))

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
		cfg:    cfg,
	}, nil
}

// Put overwrites the object at key with body
func (s *S3Store) Put(ctx context.Context, key string, body []byte) error {
	putCtx := ctx
	if s.cfg.UploadTimeout > 0 {
		var cancel context.CancelFunc
		putCtx, cancel = context.WithTimeout(ctx, s.cfg.UploadTimeout)
		defer cancel()
	}

	_, err := s.client.PutObject(putCtx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s/%s: %w", s.bucket, key, err)
	}

	s.logger.Info("Uploaded object",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(body)))

	return nil
}
