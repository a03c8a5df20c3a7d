package analyses

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"

	"speech-backend/internal/transcription"
)

type fakeObjects struct {
	metadata map[string]map[string]string
	err      error
	calls    int
}

func (f *fakeObjects) Metadata(_ context.Context, bucket, key string) (map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.metadata[bucket+"/"+key], nil
}

type fakeTranscriber struct {
	status types.TranscriptionJobStatus
	uri    string
	err    error
	calls  []string
}

func (f *fakeTranscriber) Run(_ context.Context, mediaURI, jobName string) (transcription.Job, error) {
	f.calls = append(f.calls, jobName+"|"+mediaURI)
	if f.err != nil {
		return transcription.Job{}, f.err
	}
	status := f.status
	if status == "" {
		status = types.TranscriptionJobStatusCompleted
	}
	job := transcription.Job{Name: jobName, Status: status, MediaURI: mediaURI}
	if status == types.TranscriptionJobStatusCompleted {
		job.TranscriptURI = f.uri
	}
	return job, nil
}

type fakeFetcher struct {
	result map[string]any
	err    error
	jobs   []transcription.Job
}

func (f *fakeFetcher) Fetch(_ context.Context, job transcription.Job) (map[string]any, error) {
	f.jobs = append(f.jobs, job)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// recordingStore captures every Put in order on top of a MemoryStore.
type recordingStore struct {
	*MemoryStore
	mu   sync.Mutex
	puts []Record
	err  error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: NewMemoryStore()}
}

func (s *recordingStore) Put(ctx context.Context, r Record) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.puts = append(s.puts, cloneRecord(r))
	s.mu.Unlock()
	return s.MemoryStore.Put(ctx, r)
}

func s3Event(bucket string, keys ...string) events.S3Event {
	var ev events.S3Event
	for _, k := range keys {
		ev.Records = append(ev.Records, events.S3EventRecord{
			EventSource: "aws:s3",
			EventName:   "ObjectCreated:Put",
			S3: events.S3Entity{
				Bucket: events.S3Bucket{Name: bucket},
				Object: events.S3Object{Key: k, URLDecodedKey: k},
			},
		})
	}
	return ev
}
