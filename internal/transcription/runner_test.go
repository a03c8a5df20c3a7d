package transcription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
)

type fakeTranscribe struct {
	startErr error
	getErr   error
	statuses []types.TranscriptionJobStatus
	started  []*transcribe.StartTranscriptionJobInput
	gets     int
	uri      string
	failure  string
}

func (f *fakeTranscribe) StartTranscriptionJob(_ context.Context, in *transcribe.StartTranscriptionJobInput, _ ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error) {
	f.started = append(f.started, in)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &transcribe.StartTranscriptionJobOutput{}, nil
}

func (f *fakeTranscribe) GetTranscriptionJob(_ context.Context, in *transcribe.GetTranscriptionJobInput, _ ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	idx := f.gets
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	f.gets++
	status := f.statuses[idx]
	tj := &types.TranscriptionJob{
		TranscriptionJobName:   in.TranscriptionJobName,
		TranscriptionJobStatus: status,
	}
	if status == types.TranscriptionJobStatusCompleted {
		tj.Transcript = &types.Transcript{TranscriptFileUri: aws.String(f.uri)}
	}
	if status == types.TranscriptionJobStatusFailed && f.failure != "" {
		tj.FailureReason = aws.String(f.failure)
	}
	return &transcribe.GetTranscriptionJobOutput{TranscriptionJob: tj}, nil
}

type sleepRecorder struct {
	waits []time.Duration
	err   error
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return s.err
}

func TestRunSubmitsJobWithFixedParameters(t *testing.T) {
	api := &fakeTranscribe{statuses: []types.TranscriptionJobStatus{types.TranscriptionJobStatusCompleted}, uri: "https://example.com/t.json"}
	sl := &sleepRecorder{}
	r := &Runner{Client: api, Sleep: sl.sleep}

	job, err := r.Run(context.Background(), "https://s3.amazonaws.com/bucket/abc123.mp3", "abc123.mp3")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(api.started) != 1 {
		t.Fatalf("expected one start call, got %d", len(api.started))
	}
	in := api.started[0]
	if aws.ToString(in.TranscriptionJobName) != "abc123.mp3" {
		t.Fatalf("job name = %q", aws.ToString(in.TranscriptionJobName))
	}
	if aws.ToString(in.Media.MediaFileUri) != "https://s3.amazonaws.com/bucket/abc123.mp3" {
		t.Fatalf("media uri = %q", aws.ToString(in.Media.MediaFileUri))
	}
	if in.MediaFormat != types.MediaFormatMp3 || in.LanguageCode != types.LanguageCodeEnUs {
		t.Fatalf("unexpected format/language: %s %s", in.MediaFormat, in.LanguageCode)
	}
	if job.TranscriptURI != "https://example.com/t.json" || job.Status != types.TranscriptionJobStatusCompleted {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestWaitImmediatelyTerminalQueriesOnceWithoutWaiting(t *testing.T) {
	api := &fakeTranscribe{statuses: []types.TranscriptionJobStatus{types.TranscriptionJobStatusCompleted}}
	sl := &sleepRecorder{}
	r := &Runner{Client: api, Interval: 5 * time.Second, Sleep: sl.sleep}

	if _, err := r.Wait(context.Background(), "job"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if api.gets != 1 {
		t.Fatalf("expected exactly one status query, got %d", api.gets)
	}
	if len(sl.waits) != 0 {
		t.Fatalf("expected no waits, got %v", sl.waits)
	}
}

func TestWaitPollsAtFixedIntervalUntilTerminal(t *testing.T) {
	api := &fakeTranscribe{statuses: []types.TranscriptionJobStatus{
		types.TranscriptionJobStatusQueued,
		types.TranscriptionJobStatusInProgress,
		types.TranscriptionJobStatusInProgress,
		types.TranscriptionJobStatusCompleted,
	}}
	sl := &sleepRecorder{}
	r := &Runner{Client: api, Sleep: sl.sleep}

	job, err := r.Wait(context.Background(), "job")
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if api.gets != 4 {
		t.Fatalf("expected 4 status queries, got %d", api.gets)
	}
	if len(sl.waits) != 3 {
		t.Fatalf("expected 3 waits, got %d", len(sl.waits))
	}
	for _, w := range sl.waits {
		if w != DefaultPollInterval {
			t.Fatalf("expected %s between queries, got %s", DefaultPollInterval, w)
		}
	}
	if !job.Terminal() || job.Failed() {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestWaitReturnsFailedJobAsDescriptor(t *testing.T) {
	api := &fakeTranscribe{
		statuses: []types.TranscriptionJobStatus{types.TranscriptionJobStatusInProgress, types.TranscriptionJobStatusFailed},
		failure:  "unsupported media",
	}
	sl := &sleepRecorder{}
	r := &Runner{Client: api, Sleep: sl.sleep}

	job, err := r.Wait(context.Background(), "job")
	if err != nil {
		t.Fatalf("expected FAILED to be returned without error, got %v", err)
	}
	if !job.Failed() || job.FailureReason != "unsupported media" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestWaitStopsOnCancellation(t *testing.T) {
	api := &fakeTranscribe{statuses: []types.TranscriptionJobStatus{types.TranscriptionJobStatusInProgress}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Runner{Client: api, Interval: time.Hour}

	_, err := r.Wait(ctx, "job")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if api.gets != 1 {
		t.Fatalf("expected one query before waiting, got %d", api.gets)
	}
}

func TestWaitHonoursMaxWait(t *testing.T) {
	api := &fakeTranscribe{statuses: []types.TranscriptionJobStatus{types.TranscriptionJobStatusInProgress}}
	sl := &sleepRecorder{}
	r := &Runner{Client: api, Interval: 5 * time.Second, MaxWait: 12 * time.Second, Sleep: sl.sleep}

	_, err := r.Wait(context.Background(), "job")
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if len(sl.waits) != 2 || api.gets != 3 {
		t.Fatalf("expected 2 waits and 3 queries, got %d waits %d queries", len(sl.waits), api.gets)
	}
}

func TestStartTreatsExistingJobAsStarted(t *testing.T) {
	api := &fakeTranscribe{
		startErr: &types.ConflictException{Message: aws.String("job name exists")},
		statuses: []types.TranscriptionJobStatus{types.TranscriptionJobStatusCompleted},
	}
	r := &Runner{Client: api, Sleep: (&sleepRecorder{}).sleep}

	if _, err := r.Run(context.Background(), "https://s3.amazonaws.com/b/k.mp3", "k.mp3"); err != nil {
		t.Fatalf("expected conflict to resume polling, got %v", err)
	}
	if api.gets != 1 {
		t.Fatalf("expected polling after conflict, got %d queries", api.gets)
	}
}

func TestStartPropagatesOtherErrors(t *testing.T) {
	boom := errors.New("throttled")
	api := &fakeTranscribe{startErr: boom, statuses: []types.TranscriptionJobStatus{types.TranscriptionJobStatusCompleted}}
	r := &Runner{Client: api}

	if _, err := r.Run(context.Background(), "uri", "job"); !errors.Is(err, boom) {
		t.Fatalf("expected start error, got %v", err)
	}
	if api.gets != 0 {
		t.Fatalf("expected no status queries after failed start")
	}
}
