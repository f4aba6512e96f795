package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/ulaundry/laundry-api/internal/config"
	apperrors "github.com/ulaundry/laundry-api/internal/pkg/errors"
	"github.com/ulaundry/laundry-api/internal/service"
)

// MaxUploadSize caps avatar and item image uploads.
const MaxUploadSize = 5 << 20

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ErrUnsupportedFile is returned for uploads that are too large or not an image.
var ErrUnsupportedFile = fmt.Errorf("%w: unsupported file", apperrors.ErrValidation)

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps public images in an S3 compatible bucket.
type S3Store struct {
	api     objectAPI
	bucket  string
	baseURL string
}

// NewS3Store builds a client from the storage section. A custom endpoint switches to path-style addressing.
func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required for S3Store")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		// A BuildableClient lets LoadDefaultConfig apply AWS_CA_BUNDLE to its transport.
		awsconfig.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(30 * time.Second)),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		if endpoint != "" {
			baseURL = strings.TrimRight(endpoint, "/") + "/" + cfg.Bucket
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
		}
	}
	return newS3Store(client, cfg.Bucket, baseURL), nil
}

func newS3Store(api objectAPI, bucket, baseURL string) *S3Store {
	return &S3Store{api: api, bucket: bucket, baseURL: baseURL}
}

// Put uploads the file under prefix with a random name and returns its key and public URL.
func (s *S3Store) Put(ctx context.Context, prefix string, file service.Upload) (string, string, error) {
	if file.Size > MaxUploadSize {
		return "", "", fmt.Errorf("%w: file exceeds %d bytes", ErrUnsupportedFile, MaxUploadSize)
	}
	ext, ok := allowedContentTypes[strings.ToLower(file.ContentType)]
	if !ok {
		return "", "", fmt.Errorf("%w: content type %q", ErrUnsupportedFile, file.ContentType)
	}

	key := path.Join(strings.Trim(prefix, "/"), uuid.NewString()+ext)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file.Body,
		ContentType: aws.String(file.ContentType),
	}
	if file.Size > 0 {
		input.ContentLength = aws.Int64(file.Size)
	}
	if _, err := s.api.PutObject(ctx, input); err != nil {
		log.Printf("[S3Store] put %s failed: %v", key, err)
		return "", "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, s.baseURL + "/" + key, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
