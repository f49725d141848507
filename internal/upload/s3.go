package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/pkordes/triptales/internal/domain"
)

// S3Config configures the S3-compatible backend (AWS S3, MinIO, R2, ...).
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional, for S3-compatible services
	AccessKey string
	SecretKey string

	// PublicURL is the base for returned image URLs. Defaults to the
	// path-style endpoint URL, or the virtual-hosted AWS URL without one.
	PublicURL string
}

// PutObjectAPI is the part of *s3.Client the backend uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Backend stores images as objects under the trips/ prefix. The object
// key doubles as the asset id.
type S3Backend struct {
	client    PutObjectAPI
	bucket    string
	publicURL string
	newKey    func(ext string) string
}

// NewS3Backend builds an S3 client from static credentials.
func NewS3Backend(cfg S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("access key and secret key are required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := s3.Options{
		Region: region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return NewS3BackendWithClient(s3.New(opts), cfg), nil
}

// NewS3BackendWithClient wires an existing client, mainly for tests.
func NewS3BackendWithClient(client PutObjectAPI, cfg S3Config) *S3Backend {
	publicURL := cfg.PublicURL
	switch {
	case publicURL != "":
	case cfg.Endpoint != "":
		publicURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &S3Backend{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		newKey: func(ext string) string {
			return "trips/" + uuid.NewString() + ext
		},
	}
}

// Put uploads obj under a fresh random key.
func (b *S3Backend) Put(ctx context.Context, obj Object) (domain.Asset, error) {
	key := b.newKey(Extension(obj.ContentType))

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(obj.Data),
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(int64(len(obj.Data))),
	})
	if err != nil {
		return domain.Asset{}, fmt.Errorf("s3: put %s: %w", key, err)
	}
	return domain.Asset{URL: b.publicURL + "/" + key, ID: key}, nil
}
