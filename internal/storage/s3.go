package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"persona/internal/domain"
)

// S3Config holds S3/MinIO connection settings.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // leave empty for AWS S3
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	// PublicBaseURL overrides the URL returned for published objects, e.g. a
	// CDN in front of the bucket.
	PublicBaseURL string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads objects with a public-read ACL.
type S3Publisher struct {
	client  putObjectAPI
	bucket  string
	baseURL string
}

// NewS3Publisher builds a client from cfg and the default AWS credential
// chain; static keys take precedence when both are set.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("storage: s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = bucketURL(cfg.Bucket, region, endpoint, cfg.UsePathStyle)
	}
	return newS3Publisher(client, cfg.Bucket, baseURL), nil
}

func newS3Publisher(client putObjectAPI, bucket, baseURL string) *S3Publisher {
	return &S3Publisher{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

// Publish uploads data under key and returns its public URL.
func (p *S3Publisher) Publish(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPublishFailed, err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(cleanKey),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", domain.ErrPublishFailed, cleanKey, err)
	}
	return joinURL(p.baseURL, cleanKey), nil
}

func bucketURL(bucket, region, endpoint string, pathStyle bool) string {
	switch {
	case endpoint != "":
		return endpoint + "/" + bucket
	case pathStyle:
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s", region, bucket)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
}

var _ Publisher = (*S3Publisher)(nil)
