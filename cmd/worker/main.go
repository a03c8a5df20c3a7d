package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"speech-backend/internal/bootstrap"
	"speech-backend/internal/queue"
	"speech-backend/internal/shared/config"
	"speech-backend/internal/shared/metrics"
	"speech-backend/internal/shared/telemetry"
	"speech-backend/internal/workerproc"
)

const (
	defaultVisibilitySeconds  = 1200
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
	receiveErrorBackoff       = 2 * time.Second
)

// visibilityMargin is left after polling for the transcript fetch and the final writes.
const visibilityMargin = time.Minute

func main() {
	cfg := config.Load()
	if strings.TrimSpace(cfg.SQSQueueURL) == "" {
		log.Fatal("SPEECH_SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("SPEECH_SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := envInt("SPEECH_WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("SPEECH_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	cfg.Transcribe.MaxWait = boundMaxWait(cfg.Transcribe.MaxWait, visibilitySeconds)

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	consumer, err := queue.NewSQSConsumer(app.AWS, cfg.SQSQueueURL, visibilitySeconds)
	if err != nil {
		log.Fatalf("sqs consumer: %v", err)
	}

	telemetry.Info("worker.started", map[string]any{
		"queue_url":          cfg.SQSQueueURL,
		"concurrency":        concurrency,
		"visibility_seconds": visibilitySeconds,
		"max_wait":           cfg.Transcribe.MaxWait.String(),
	})

	sem := make(chan struct{}, max(1, concurrency))
	var wg sync.WaitGroup

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		deliveries, err := consumer.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
				break pollLoop
			case <-time.After(receiveErrorBackoff):
			}
			continue
		}

		for _, d := range deliveries {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncQueueMessage("received")
			wg.Add(1)
			go func(d queue.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				// Processing outlives the shutdown signal so in-flight jobs can finish.
				handleMessage(context.WithoutCancel(ctx), consumer, app.Processor, d)
			}(d)
		}
	}

	telemetry.Info("worker.shutdown", map[string]any{"timeout": shutdownTimeout.String()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", map[string]any{})
	}
}

func handleMessage(ctx context.Context, consumer queue.Consumer, processor workerproc.EventProcessor, d queue.Delivery) {
	err := workerproc.HandleMessage(ctx, processor, d.ID, d.Body)
	switch {
	case err == nil:
		if deleteMessage(ctx, consumer, d) {
			telemetry.Info("worker.message.completed", baseFields(d))
			metrics.IncQueueMessage("completed")
		}
	case errors.Is(err, queue.ErrTestEvent):
		if deleteMessage(ctx, consumer, d) {
			telemetry.Info("worker.message.test_event", baseFields(d))
			metrics.IncQueueMessage("skipped")
		}
	case workerproc.Unrecoverable(err):
		fields := baseFields(d)
		meta := workerproc.ComputeMeta(d.Body)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.message.unrecoverable", fields)
		if deleteMessage(ctx, consumer, d) {
			metrics.IncQueueMessage("deleted_unrecoverable")
		}
	default:
		fields := baseFields(d)
		var procErr workerproc.ErrProcess
		if errors.As(err, &procErr) {
			fields["keys"] = procErr.Keys
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.message.failed", fields)
		metrics.IncQueueMessage("failed")
	}
}

func deleteMessage(ctx context.Context, consumer queue.Consumer, d queue.Delivery) bool {
	if err := consumer.Delete(ctx, d); err != nil {
		fields := baseFields(d)
		fields["error"] = err.Error()
		telemetry.Error("worker.message.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(d queue.Delivery) map[string]any {
	return map[string]any{
		"sqs_message_id": d.ID,
		"receive_count":  d.ReceiveCount,
	}
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

// boundMaxWait keeps a message's transcription wait inside its visibility
// timeout so SQS does not redeliver a record that is still being polled.
func boundMaxWait(configured time.Duration, visibilitySeconds int) time.Duration {
	if visibilitySeconds <= 0 {
		return configured
	}
	visibility := time.Duration(visibilitySeconds) * time.Second
	limit := visibility - visibilityMargin
	if limit <= 0 {
		limit = visibility / 2
	}
	if configured <= 0 || configured > limit {
		return limit
	}
	return configured
}
