package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"speech-backend/internal/analyses"
	"speech-backend/internal/queue"
)

// EventProcessor runs the analysis workflow for one upload notification.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event events.S3Event) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates the body is not an S3 event notification.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode notification"
	}
	return "decode notification: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrNoRecords indicates a notification without any object records.
type ErrNoRecords struct {
	Meta MessageMeta
}

func (e ErrNoRecords) Error() string { return "notification has no records" }

// ErrProcess indicates the workflow failed after the notification was parsed.
type ErrProcess struct {
	MessageID string
	Keys      []string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process notification"
	}
	return "process notification: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
// An s3:TestEvent yields queue.ErrTestEvent.
func ParseMessage(body string) (events.S3Event, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return events.S3Event{}, meta, ErrEmptyBody{Meta: meta}
	}

	event, err := queue.DecodeNotification([]byte(body))
	if err != nil {
		if errors.Is(err, queue.ErrTestEvent) {
			return events.S3Event{}, meta, err
		}
		return events.S3Event{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if len(event.Records) == 0 {
		return event, meta, ErrNoRecords{Meta: meta}
	}
	return event, meta, nil
}

// HandleMessage parses a queue payload and runs every record through the processor.
func HandleMessage(ctx context.Context, processor EventProcessor, messageID, body string) error {
	if processor == nil {
		return errors.New("analysis processor not configured")
	}

	event, _, err := ParseMessage(body)
	if err != nil {
		return err
	}

	ctx = analyses.WithRequestID(ctx, messageID)
	if err := processor.ProcessEvent(ctx, event); err != nil {
		return ErrProcess{MessageID: messageID, Keys: Keys(event), Err: err}
	}
	return nil
}

// Keys lists the object keys a notification refers to.
func Keys(event events.S3Event) []string {
	keys := make([]string, 0, len(event.Records))
	for _, rec := range event.Records {
		key := rec.S3.Object.URLDecodedKey
		if key == "" {
			key = rec.S3.Object.Key
		}
		keys = append(keys, key)
	}
	return keys
}

// Unrecoverable reports whether redelivering the message cannot succeed,
// so it should be deleted rather than retried.
func Unrecoverable(err error) bool {
	if err == nil {
		return false
	}
	var (
		empty     ErrEmptyBody
		decode    ErrDecode
		noRecords ErrNoRecords
	)
	switch {
	case errors.As(err, &empty), errors.As(err, &decode), errors.As(err, &noRecords):
		return true
	case errors.Is(err, queue.ErrTestEvent):
		return true
	case errors.Is(err, analyses.ErrMissingMetadata), errors.Is(err, analyses.ErrInvalidEvent):
		return true
	default:
		return false
	}
}
