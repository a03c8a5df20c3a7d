package transcription

import "github.com/aws/aws-sdk-go-v2/service/transcribe/types"

// Job describes a transcription job as last observed.
type Job struct {
	Name          string
	Status        types.TranscriptionJobStatus
	MediaURI      string
	TranscriptURI string
	FailureReason string
}

// Terminal reports whether the job has stopped changing.
func (j Job) Terminal() bool {
	return j.Status == types.TranscriptionJobStatusCompleted || j.Status == types.TranscriptionJobStatusFailed
}

// Failed reports whether the job ended FAILED.
func (j Job) Failed() bool {
	return j.Status == types.TranscriptionJobStatusFailed
}

func jobFromOutput(name string, tj *types.TranscriptionJob) Job {
	job := Job{Name: name}
	if tj == nil {
		return job
	}
	job.Status = tj.TranscriptionJobStatus
	if tj.TranscriptionJobName != nil {
		job.Name = *tj.TranscriptionJobName
	}
	if tj.Media != nil && tj.Media.MediaFileUri != nil {
		job.MediaURI = *tj.Media.MediaFileUri
	}
	if tj.Transcript != nil && tj.Transcript.TranscriptFileUri != nil {
		job.TranscriptURI = *tj.Transcript.TranscriptFileUri
	}
	if tj.FailureReason != nil {
		job.FailureReason = *tj.FailureReason
	}
	return job
}
