package main

// Build the S3-triggered Lambda binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-analyze

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"speech-backend/internal/analyses"
	"speech-backend/internal/bootstrap"
	"speech-backend/internal/shared/config"
	"speech-backend/internal/shared/telemetry"
	"speech-backend/internal/workerproc"
)

const acceptedBody = "File accepted for processing"

// response mirrors the proxy-style result the function has always returned.
type response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

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

func handle(ctx context.Context, p workerproc.EventProcessor, event events.S3Event) (response, error) {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		ctx = analyses.WithRequestID(ctx, lc.AwsRequestID)
	}
	telemetry.Info("lambda_analyze.received", map[string]any{
		"records": len(event.Records),
		"keys":    workerproc.Keys(event),
	})
	if err := p.ProcessEvent(ctx, event); err != nil {
		return response{}, err
	}
	return response{StatusCode: 200, Body: acceptedBody}, nil
}

func handler(ctx context.Context, event events.S3Event) (response, error) {
	initOnce.Do(func() { initApp(ctx) })
	if initErr != nil {
		telemetry.Error("lambda_analyze.bootstrap_failed", map[string]any{"error": initErr.Error()})
		return response{}, initErr
	}
	return handle(ctx, processor, event)
}

func main() {
	lambda.Start(handler)
}
