package main

// Build the SQS-triggered Lambda binary (S3 notifications routed through a queue):
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"speech-backend/internal/bootstrap"
	"speech-backend/internal/shared/config"
	"speech-backend/internal/shared/metrics"
	"speech-backend/internal/shared/telemetry"
	"speech-backend/internal/workerproc"
)

var (
	initOnce  sync.Once
	initErr   error
	processor workerproc.EventProcessor
)

func initApp(ctx context.Context) {
	app, err := bootstrap.Build(ctx, config.Load())
	if err != nil {
		initErr = err
		return
	}
	processor = app.Processor
}

// handleBatch reports failed messages individually so only they are redelivered.
// Messages that can never succeed are dropped instead of reported.
func handleBatch(ctx context.Context, p workerproc.EventProcessor, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncQueueMessage("received")
		err := workerproc.HandleMessage(ctx, p, record.MessageId, record.Body)
		switch {
		case err == nil:
			metrics.IncQueueMessage("completed")
		case workerproc.Unrecoverable(err):
			metrics.IncQueueMessage("deleted_unrecoverable")
			telemetry.Warn("lambda_worker.dropped", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
		default:
			metrics.IncQueueMessage("failed")
			telemetry.Error("lambda_worker.failed", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(func() { initApp(ctx) })
	if initErr != nil {
		telemetry.Error("lambda_worker.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return handleBatch(ctx, processor, event), nil
}

func main() {
	lambda.Start(handler)
}
