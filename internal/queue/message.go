package queue

import (
	"encoding/json"
	"errors"

	"github.com/aws/aws-lambda-go/events"
)

// ErrTestEvent marks the s3:TestEvent S3 sends when a notification is first configured.
var ErrTestEvent = errors.New("s3 test event")

// snsEnvelope is the wrapper added when notifications fan out through SNS before SQS.
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

type testEvent struct {
	Event string `json:"Event"`
}

// DecodeNotification parses an S3 event notification from a queue message body.
// SNS-wrapped notifications are unwrapped first.
func DecodeNotification(body []byte) (events.S3Event, error) {
	var env snsEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Type == "Notification" && env.Message != "" {
		body = []byte(env.Message)
	}

	var probe testEvent
	if err := json.Unmarshal(body, &probe); err == nil && probe.Event == "s3:TestEvent" {
		return events.S3Event{}, ErrTestEvent
	}

	var event events.S3Event
	if err := json.Unmarshal(body, &event); err != nil {
		return events.S3Event{}, err
	}
	return event, nil
}
