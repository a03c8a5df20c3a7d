package s3

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"speech-backend/internal/shared/storage/object"
)

const defaultPresignExpires = time.Hour

// HeadAPI is the subset of the S3 client used to read object metadata.
type HeadAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// PresignAPI is the subset of the S3 presign client used to issue upload URLs.
type PresignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Store reads upload metadata from S3 and presigns uploads into one bucket.
type Store struct {
	client  HeadAPI
	presign PresignAPI
	bucket  string
	prefix  string
	expires time.Duration
}

// New creates an S3-backed store from a loaded AWS config.
func New(cfg aws.Config, bucket, prefix string, expires time.Duration) (*Store, error) {
	client := s3.NewFromConfig(cfg)
	return NewWithClients(client, s3.NewPresignClient(client), bucket, prefix, expires)
}

// NewWithClients creates a store around existing clients.
func NewWithClients(client HeadAPI, presign PresignAPI, bucket, prefix string, expires time.Duration) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if expires <= 0 {
		expires = defaultPresignExpires
	}
	return &Store{
		client:  client,
		presign: presign,
		bucket:  strings.TrimSpace(bucket),
		prefix:  normalizePrefix(prefix),
		expires: expires,
	}, nil
}

// Bucket returns the upload bucket.
func (s *Store) Bucket() string {
	return s.bucket
}

// Metadata returns the object's user metadata. S3 reports keys lowercased.
func (s *Store) Metadata(ctx context.Context, bucket, key string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if bucket == "" {
		bucket = s.bucket
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 head object bucket=%s key=%s: %w", bucket, key, err)
	}
	if out.Metadata == nil {
		return map[string]string{}, nil
	}
	return out.Metadata, nil
}

// PresignUpload signs a PUT of key into the upload bucket carrying the given metadata.
func (s *Store) PresignUpload(ctx context.Context, key, contentType string, metadata map[string]string) (object.PresignedUpload, error) {
	if s.presign == nil {
		return object.PresignedUpload{}, fmt.Errorf("s3 presigner not configured")
	}
	if s.bucket == "" {
		return object.PresignedUpload{}, fmt.Errorf("s3 bucket is required")
	}

	objectKey := applyPrefix(s.prefix, key)
	input := presignInput(s.bucket, objectKey, contentType, metadata)
	out, err := s.presign.PresignPutObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = s.expires
	})
	if err != nil {
		return object.PresignedUpload{}, fmt.Errorf("s3 presign put bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}

	headers := http.Header{}
	for name, values := range out.SignedHeader {
		if strings.EqualFold(name, "host") {
			continue
		}
		for _, v := range values {
			headers.Add(name, v)
		}
	}

	return object.PresignedUpload{
		URL:     out.URL,
		Method:  out.Method,
		Key:     objectKey,
		Headers: headers,
		Expires: s.expires,
	}, nil
}

func presignInput(bucket, key, contentType string, metadata map[string]string) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		Metadata: metadata,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	return input
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

var (
	_ object.MetadataReader  = (*Store)(nil)
	_ object.UploadPresigner = (*Store)(nil)
)
