package analyses

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"speech-backend/internal/shared/metrics"
	"speech-backend/internal/shared/telemetry"
	"speech-backend/internal/transcription"
)

// ObjectInspector reads the caller-attached metadata of an uploaded object.
type ObjectInspector interface {
	Metadata(ctx context.Context, bucket, key string) (map[string]string, error)
}

// Transcriber runs a transcription job to a terminal state.
type Transcriber interface {
	Run(ctx context.Context, mediaURI, jobName string) (transcription.Job, error)
}

// ResultFetcher retrieves the parsed transcript of a finished job.
type ResultFetcher interface {
	Fetch(ctx context.Context, job transcription.Job) (map[string]any, error)
}

// Processor turns upload notifications into analysis records:
// Transcribing, then Transcribed once the job ends, then Complete with the transcript.
type Processor struct {
	Objects     ObjectInspector
	Transcriber Transcriber
	Fetcher     ResultFetcher
	Store       Store
	// FailOnJobFailure writes StatusFailed for a FAILED job instead of
	// continuing to Transcribed and attempting the fetch.
	FailOnJobFailure bool
	Now              func() time.Time
}

// ProcessEvent handles the records of one notification in order and stops at the first error.
func (p *Processor) ProcessEvent(ctx context.Context, event events.S3Event) error {
	for i, rec := range event.Records {
		if err := p.ProcessRecord(ctx, rec); err != nil {
			if len(event.Records) > 1 {
				return fmt.Errorf("record %d of %d: %w", i+1, len(event.Records), err)
			}
			return err
		}
	}
	return nil
}

// ProcessRecord handles a single notification record.
func (p *Processor) ProcessRecord(ctx context.Context, rec events.S3EventRecord) error {
	loc, err := LocationFromEvent(rec)
	if err != nil {
		metrics.IncAnalysisFailed("event")
		return err
	}
	return p.Process(ctx, loc)
}

// Process runs the full workflow for one uploaded object.
func (p *Processor) Process(ctx context.Context, loc Location) error {
	startedAt := p.now()

	meta, err := p.Objects.Metadata(ctx, loc.Bucket, loc.Key)
	if err != nil {
		metrics.IncAnalysisFailed("metadata")
		return fmt.Errorf("read metadata for %s: %w", loc.Key, err)
	}
	upload, err := NewUpload(loc, meta)
	if err != nil {
		metrics.IncAnalysisFailed("metadata")
		telemetry.Warn("analysis.rejected", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"bucket":      loc.Bucket,
			"analysis_id": loc.Key,
			"error":       err.Error(),
		})
		return err
	}

	record := upload.Record()
	if err := p.put(ctx, record, ""); err != nil {
		return p.fail(ctx, record, "store", err)
	}
	metrics.IncAnalysisStarted()

	job, err := p.Transcriber.Run(ctx, record.FileURL, record.ID)
	if err != nil {
		return p.fail(ctx, record, "transcribe", err)
	}

	if job.Failed() {
		if p.FailOnJobFailure {
			prev := record.Status
			record.Status = StatusFailed
			if err := p.put(ctx, record, prev); err != nil {
				return p.fail(ctx, record, "store", err)
			}
			metrics.IncAnalysisFailed("job")
			telemetry.Error("analysis.job_failed", map[string]any{
				"request_id":     requestIDFromContext(ctx),
				"analysis_id":    record.ID,
				"user_id":        record.UserID,
				"failure_reason": job.FailureReason,
			})
			return nil
		}
		telemetry.Warn("analysis.job_failed", map[string]any{
			"request_id":     requestIDFromContext(ctx),
			"analysis_id":    record.ID,
			"user_id":        record.UserID,
			"failure_reason": job.FailureReason,
			"continuing":     true,
		})
	}

	record.Status = StatusTranscribed
	if err := p.put(ctx, record, StatusTranscribing); err != nil {
		return p.fail(ctx, record, "store", err)
	}

	result, err := p.Fetcher.Fetch(ctx, job)
	if err != nil {
		return p.fail(ctx, record, "fetch", err)
	}

	record.Result = result
	record.Status = StatusComplete
	if err := p.put(ctx, record, StatusTranscribed); err != nil {
		return p.fail(ctx, record, "store", err)
	}

	elapsed := p.now().Sub(startedAt)
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDuration(elapsed)
	telemetry.Info("analysis.complete", map[string]any{
		"request_id":       requestIDFromContext(ctx),
		"analysis_id":      record.ID,
		"user_id":          record.UserID,
		"transcript_chars": len(transcription.TranscriptText(result)),
		"duration_ms":      float64(elapsed.Microseconds()) / 1000.0,
	})
	return nil
}

func (p *Processor) put(ctx context.Context, record Record, from string) error {
	if err := p.Store.Put(ctx, record); err != nil {
		return fmt.Errorf("write %s record %s: %w", record.Status, record.ID, err)
	}
	transition := "->" + record.Status
	if from != "" {
		transition = from + transition
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       record.ID,
		"user_id":           record.UserID,
		"status":            record.Status,
		"status_transition": transition,
	})
	return nil
}

// fail logs and counts a failure. The record keeps its last written status.
func (p *Processor) fail(ctx context.Context, record Record, phase string, err error) error {
	metrics.IncAnalysisFailed(phase)
	telemetry.Error("analysis.failed", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": record.ID,
		"user_id":     record.UserID,
		"status":      record.Status,
		"phase":       phase,
		"error":       sanitizeError(err),
	})
	return err
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
