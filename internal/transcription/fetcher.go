package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrNoTranscriptURI is returned when a job carries no result location.
	ErrNoTranscriptURI = errors.New("transcription job has no transcript uri")
	// ErrFetchStatus wraps non-2xx answers from the result location.
	ErrFetchStatus = errors.New("unexpected transcript response status")
	// ErrTranscriptBody is returned when the body is not exactly one JSON object.
	ErrTranscriptBody = errors.New("malformed transcript document")
)

// Fetcher downloads and parses the transcript document of a finished job.
type Fetcher struct {
	Client *http.Client
}

// NewFetcher returns a Fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{Client: &http.Client{Timeout: timeout}}
}

// Fetch issues one GET for job's transcript and decodes the JSON body. No retries.
func (f *Fetcher) Fetch(ctx context.Context, job Job) (map[string]any, error) {
	if job.TranscriptURI == "" {
		return nil, fmt.Errorf("%w: %s (status %s)", ErrNoTranscriptURI, job.Name, job.Status)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.TranscriptURI, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build transcript request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript %s: %w", job.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %d for %s: %s", ErrFetchStatus, resp.StatusCode, job.Name, snippet)
	}

	dec := json.NewDecoder(resp.Body)
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", job.Name, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: %s: empty document", ErrTranscriptBody, job.Name)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: %s: trailing data after document", ErrTranscriptBody, job.Name)
	}
	return out, nil
}

// TranscriptText returns results.transcripts[0].transcript from a parsed transcript document.
func TranscriptText(result map[string]any) string {
	results, _ := result["results"].(map[string]any)
	transcripts, _ := results["transcripts"].([]any)
	if len(transcripts) == 0 {
		return ""
	}
	first, _ := transcripts[0].(map[string]any)
	text, _ := first["transcript"].(string)
	return text
}
