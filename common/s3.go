package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Config contains minimal configuration for creating an S3 client.
// Empty values fall back to the standard AWS config/credential chain.
type S3Config struct {
	Region  string
	Profile string
	// UsePathStyle forces path-style addressing (MinIO and other S3-compatible stores).
	UsePathStyle bool
}

// ObjectStore is the subset of S3 used to publish digests.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

// S3 wraps the AWS SDK v2 client behind ObjectStore.
type S3 struct {
	client *s3.Client
}

// NewS3 creates a new S3 wrapper using the default AWS configuration chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3{client: c}, nil
}

// Put uploads body to bucket/key.
func (s *S3) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Exists reports whether bucket/key is already present.
func (s *S3) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// IsNotFound classifies both transport-level 404s and NotFound API codes.
func IsNotFound(err error) bool {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// PutFile uploads the file at path. It returns the number of bytes sent.
func PutFile(ctx context.Context, store ObjectStore, bucket, key, path, contentType string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if err := store.Put(ctx, bucket, key, f, contentType); err != nil {
		return 0, err
	}
	return info.Size(), nil
}
