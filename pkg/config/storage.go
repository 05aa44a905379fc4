// pkg/config/storage.go
package config

import (
	"errors"
	"os"
	"time"
)

// S3Config holds object storage parameters for the data lake bucket
type S3Config struct {
	Bucket string
	Region string

	// Endpoint overrides the default S3 endpoint (useful for MinIO or localstack)
	Endpoint string

	// Per-request timeout for object writes
	UploadTimeout time.Duration
}

// LoadS3Config loads object storage configuration from environment variables
func LoadS3Config() (*S3Config, error) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		return nil, errors.New("S3_BUCKET environment variable is required")
	}

	cfg := &S3Config{
		Bucket:        bucket,
		Region:        getEnv("S3_REGION", "us-east-1"),
		Endpoint:      getEnv("S3_ENDPOINT", ""),
		UploadTimeout: time.Duration(getEnvAsInt("S3_UPLOAD_TIMEOUT_SECONDS", 60)) * time.Second,
	}

	return cfg, nil
}
