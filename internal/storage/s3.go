package storage

import (
	"alcyxob/navistream/internal/config"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config" // Alias config to avoid clash
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// s3Storage implements the FileStorage interface using an S3-compatible backend.
type s3Storage struct {
	client     *s3.Client
	bucketName string
	baseURL    string
	log        zerolog.Logger
}

// NewS3Storage creates a new S3 storage service instance.
// The SDK's own retryer is limited to a single attempt; retry policy belongs to the caller.
func NewS3Storage(ctx context.Context, cfg config.S3Config, logger zerolog.Logger) (FileStorage, error) {
	// Custom resolver for S3-compatible endpoints (MinIO, Spaces)
	endpoint := endpointURL(cfg)
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if endpoint != "" {
			return aws.Endpoint{
				PartitionID:   "aws",
				URL:           endpoint,
				SigningRegion: cfg.Region,
			}, nil
		}
		// Fall back to default AWS endpoint resolution
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	opts := []func(*awsCfg.LoadOptions) error{
		awsCfg.WithRegion(cfg.Region),
		awsCfg.WithEndpointResolverWithOptions(customResolver),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsCfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsSDKConfig, err := awsCfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsSDKConfig, func(o *s3.Options) {
		o.UsePathStyle = true // required by MinIO and most S3-compatible services
		o.RetryMaxAttempts = 1
	})

	logger = logger.With().Str("component", "s3_storage").Str("bucket", cfg.BucketName).Logger()
	logger.Info().Str("endpoint", endpoint).Msg("S3 storage initialized")

	return &s3Storage{
		client:     s3Client,
		bucketName: cfg.BucketName,
		baseURL:    publicBaseURL(cfg),
		log:        logger,
	}, nil
}

// endpointURL adds a scheme to a bare host:port endpoint, chosen by UseSSL.
// An endpoint that already carries a scheme is used as is.
func endpointURL(cfg config.S3Config) string {
	if cfg.Endpoint == "" {
		return ""
	}
	if strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint
	}
	if cfg.UseSSL {
		return "https://" + cfg.Endpoint
	}
	return "http://" + cfg.Endpoint
}

func publicBaseURL(cfg config.S3Config) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	if endpoint := endpointURL(cfg); endpoint != "" {
		return strings.TrimRight(endpoint, "/") + "/" + cfg.BucketName
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.BucketName, cfg.Region)
}

func (s *s3Storage) PutObject(ctx context.Context, objectKey string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(objectKey),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("key", objectKey).Msg("put object failed")
		return err
	}
	return nil
}

func (s *s3Storage) GetObject(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return out.Body, nil
}

// DeleteObject removes an object from the S3 bucket.
func (s *s3Storage) DeleteObject(ctx context.Context, objectKey string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		s.log.Error().Err(err).Str("key", objectKey).Msg("delete object failed")
		return err
	}
	s.log.Debug().Str("key", objectKey).Msg("deleted object")
	return nil
}

func (s *s3Storage) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			info := ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			objects = append(objects, info)
		}
	}
	return objects, nil
}

func (s *s3Storage) ObjectURL(objectKey string) string {
	return s.baseURL + "/" + objectKey
}
