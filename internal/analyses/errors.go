package analyses

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingMetadata means the uploaded object lacks the user or file_name metadata.
	ErrMissingMetadata = errors.New("missing upload metadata")
	// ErrInvalidEvent means a notification record carried no bucket or key.
	ErrInvalidEvent = errors.New("invalid upload notification")
)

// MissingMetadataError names the object and the metadata fields it lacks.
type MissingMetadataError struct {
	Key    string
	Fields []string
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("object %q is missing metadata %v", e.Key, e.Fields)
}

func (e *MissingMetadataError) Unwrap() error {
	return ErrMissingMetadata
}

// Error codes returned in HTTP error envelopes.
const (
	ErrorCodeUnauthorized = "unauthorized"
)
