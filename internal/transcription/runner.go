package transcription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"

	"speech-backend/internal/shared/metrics"
	"speech-backend/internal/shared/telemetry"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMediaFormat  = types.MediaFormatMp3
	DefaultLanguageCode = types.LanguageCodeEnUs
)

var (
	// ErrPollTimeout is returned when MaxWait elapses before the job finishes.
	ErrPollTimeout = errors.New("transcription job did not finish in time")
	// ErrEmptyJob is returned when the service answers without a job description.
	ErrEmptyJob = errors.New("transcription job not returned")
)

// TranscribeAPI is the subset of the Transcribe client used by Runner.
type TranscribeAPI interface {
	StartTranscriptionJob(ctx context.Context, params *transcribe.StartTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, params *transcribe.GetTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error)
}

// Runner submits a transcription job and polls it until it is COMPLETED or FAILED.
type Runner struct {
	Client       TranscribeAPI
	Interval     time.Duration
	MaxWait      time.Duration // zero means no limit other than ctx
	MediaFormat  types.MediaFormat
	LanguageCode types.LanguageCode
	// Sleep waits between status queries. Defaults to a ctx-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run starts a job named jobName for mediaURI and blocks until it is terminal.
// A FAILED job is returned as a descriptor, not an error.
func (r *Runner) Run(ctx context.Context, mediaURI, jobName string) (Job, error) {
	if err := r.Start(ctx, mediaURI, jobName); err != nil {
		return Job{}, err
	}
	return r.Wait(ctx, jobName)
}

// Start submits the job. A job that already exists under the same name is
// treated as started, so a redelivered notification resumes polling.
func (r *Runner) Start(ctx context.Context, mediaURI, jobName string) error {
	_, err := r.Client.StartTranscriptionJob(ctx, &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
		Media:                &types.Media{MediaFileUri: aws.String(mediaURI)},
		MediaFormat:          r.mediaFormat(),
		LanguageCode:         r.languageCode(),
	})
	if err != nil {
		var conflict *types.ConflictException
		if errors.As(err, &conflict) {
			telemetry.Warn("transcription.job_exists", map[string]any{
				"job_name": jobName,
			})
			return nil
		}
		return fmt.Errorf("start transcription job %s: %w", jobName, err)
	}
	telemetry.Info("transcription.job_started", map[string]any{
		"job_name":  jobName,
		"media_uri": mediaURI,
	})
	return nil
}

// Wait queries the job, then waits one interval between queries until it is terminal.
func (r *Runner) Wait(ctx context.Context, jobName string) (Job, error) {
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var waited time.Duration
	for polls := 1; ; polls++ {
		out, err := r.Client.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
			TranscriptionJobName: aws.String(jobName),
		})
		if err != nil {
			return Job{}, fmt.Errorf("get transcription job %s: %w", jobName, err)
		}
		if out == nil || out.TranscriptionJob == nil {
			return Job{}, fmt.Errorf("%w: %s", ErrEmptyJob, jobName)
		}

		job := jobFromOutput(jobName, out.TranscriptionJob)
		metrics.IncTranscriptionPoll(string(job.Status))
		if job.Terminal() {
			telemetry.Info("transcription.job_finished", map[string]any{
				"job_name":       jobName,
				"status":         string(job.Status),
				"polls":          polls,
				"waited_ms":      waited.Milliseconds(),
				"failure_reason": job.FailureReason,
			})
			return job, nil
		}

		if r.MaxWait > 0 && waited+interval > r.MaxWait {
			return job, fmt.Errorf("%w: %s still %s after %s", ErrPollTimeout, jobName, job.Status, waited)
		}
		if err := sleep(ctx, interval); err != nil {
			return job, fmt.Errorf("wait for transcription job %s: %w", jobName, err)
		}
		waited += interval
	}
}

func (r *Runner) mediaFormat() types.MediaFormat {
	if r.MediaFormat == "" {
		return DefaultMediaFormat
	}
	return r.MediaFormat
}

func (r *Runner) languageCode() types.LanguageCode {
	if r.LanguageCode == "" {
		return DefaultLanguageCode
	}
	return r.LanguageCode
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
