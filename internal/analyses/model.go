package analyses

import (
	"net/url"
	"strings"
)

// Record statuses. A record only moves forward through them.
const (
	StatusTranscribing = "Transcribing"
	StatusTranscribed  = "Transcribed"
	StatusComplete     = "Complete"
	// StatusFailed is only written when fail-on-job-failure is enabled.
	StatusFailed = "Failed"
)

// Record is one uploaded audio file and the state of its transcription.
// The same snake_case names are used on the wire and in every store.
type Record struct {
	ID       string         `json:"id" dynamodbav:"id"`
	FileName string         `json:"file_name" dynamodbav:"file_name"`
	FileURL  string         `json:"file_url" dynamodbav:"file_url"`
	UserID   string         `json:"user_id" dynamodbav:"user_id"`
	Status   string         `json:"status" dynamodbav:"status"`
	Result   map[string]any `json:"result,omitempty" dynamodbav:"result,omitempty"`
}

// ObjectURL is the path-style address of an uploaded object, used as the transcription media URI.
func ObjectURL(bucket, key string) string {
	return "https://s3.amazonaws.com/" + bucket + "/" + escapeKey(key)
}

// escapeKey escapes each path segment of an object key, keeping the slashes.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
