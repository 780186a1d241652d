package domain

import "time"

// JobKind enumerates supported transformation job categories.
type JobKind string

const (
	JobKindImageGenerate   JobKind = "image-generate"
	JobKindImageUpscale    JobKind = "image-upscale"
	JobKindImageRestore    JobKind = "image-restore"
	JobKindVideoGenerate   JobKind = "video-generate"
	JobKindAudioTranscribe JobKind = "audio-transcribe"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the internal record for one provider-side transformation.
//
// CreditsCost is captured from the pricing table at creation and never
// recomputed, so a pricing change mid-flight cannot alter what a user is
// charged. ProviderJobID stays empty until the provider accepts the job.
type Job struct {
	ID            string
	UserID        string
	Kind          JobKind
	Status        JobStatus
	ProviderJobID string
	CreditsCost   int64
	ResultRef     string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
