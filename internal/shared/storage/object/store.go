package object

import (
	"context"
	"net/http"
	"time"
)

// PresignedUpload describes a signed PUT the client performs itself.
// Every header in Headers must be sent with the request or the signature fails.
type PresignedUpload struct {
	URL     string
	Method  string
	Key     string
	Headers http.Header
	Expires time.Duration
}

// MetadataReader reads the user metadata attached to a stored object.
type MetadataReader interface {
	Metadata(ctx context.Context, bucket, key string) (map[string]string, error)
}

// UploadPresigner issues direct-to-bucket upload URLs.
type UploadPresigner interface {
	PresignUpload(ctx context.Context, key, contentType string, metadata map[string]string) (PresignedUpload, error)
}
