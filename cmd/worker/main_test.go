package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"speech-backend/internal/analyses"
	"speech-backend/internal/queue"
)

const notification = `{"Records":[{"eventSource":"aws:s3","s3":{"bucket":{"name":"uploads"},"object":{"key":"memo_1.mp3"}}}]}`

type fakeConsumer struct {
	deleted []string
}

func (f *fakeConsumer) Receive(context.Context) ([]queue.Delivery, error) {
	return nil, nil
}

func (f *fakeConsumer) Delete(_ context.Context, d queue.Delivery) error {
	f.deleted = append(f.deleted, d.ReceiptHandle)
	return nil
}

type fakeProcessor struct {
	err   error
	calls int
}

func (f *fakeProcessor) ProcessEvent(context.Context, events.S3Event) error {
	f.calls++
	return f.err
}

func delivery(id, body string) queue.Delivery {
	return queue.Delivery{ID: id, Body: body, ReceiptHandle: "rh-" + id, ReceiveCount: 1}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	consumer := &fakeConsumer{}
	proc := &fakeProcessor{}

	handleMessage(context.Background(), consumer, proc, delivery("m1", notification))

	if proc.calls != 1 {
		t.Fatalf("expected processor call, got %d", proc.calls)
	}
	if len(consumer.deleted) != 1 || consumer.deleted[0] != "rh-m1" {
		t.Fatalf("expected delete, got %v", consumer.deleted)
	}
}

func TestWorkerDoesNotDeleteOnTransientFailure(t *testing.T) {
	consumer := &fakeConsumer{}
	proc := &fakeProcessor{err: errors.New("throttled")}

	handleMessage(context.Background(), consumer, proc, delivery("m2", notification))

	if len(consumer.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(consumer.deleted))
	}
}

func TestWorkerDeletesUnrecoverable(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
	}{
		{name: "invalid json", body: "{oops"},
		{name: "empty body", body: ""},
		{name: "test event", body: `{"Service":"Amazon S3","Event":"s3:TestEvent"}`},
		{name: "missing metadata", body: notification, err: &analyses.MissingMetadataError{Key: "memo_1.mp3", Fields: []string{"user"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consumer := &fakeConsumer{}
			handleMessage(context.Background(), consumer, &fakeProcessor{err: tt.err}, delivery("m3", tt.body))
			if len(consumer.deleted) != 1 {
				t.Fatalf("expected delete, got %d", len(consumer.deleted))
			}
		})
	}
}

func TestBoundMaxWait(t *testing.T) {
	tests := []struct {
		name       string
		configured time.Duration
		visibility int
		want       time.Duration
	}{
		{name: "unlimited is capped", configured: 0, visibility: 1200, want: 19 * time.Minute},
		{name: "too long is capped", configured: time.Hour, visibility: 1200, want: 19 * time.Minute},
		{name: "shorter is kept", configured: 10 * time.Minute, visibility: 1200, want: 10 * time.Minute},
		{name: "tiny visibility halves", configured: 0, visibility: 30, want: 15 * time.Second},
		{name: "no visibility", configured: 0, visibility: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := boundMaxWait(tt.configured, tt.visibility); got != tt.want {
				t.Fatalf("boundMaxWait(%s, %d) = %s, want %s", tt.configured, tt.visibility, got, tt.want)
			}
		})
	}
}
