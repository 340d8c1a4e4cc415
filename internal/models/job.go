package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/studio/internal/shared"
)

// JobStatus tracks a generation attempt through idle → in-flight → success | failure.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// GenerationJob is one generation attempt recorded in the local journal.
type GenerationJob struct {
	ID          string
	Sequence    int
	Mode        MediaType
	Model       string
	Prompt      string
	Style       string
	Voice       string
	Status      JobStatus
	RecordID    *int64
	AssetPath   string
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var _ Model = (*GenerationJob)(nil)

// NewGenerationJob creates a pending job for the given request parameters.
func NewGenerationJob(mode MediaType, model, prompt, style, voice string) *GenerationJob {
	now := time.Now()
	return &GenerationJob{
		Mode:      mode,
		Model:     model,
		Prompt:    prompt,
		Style:     style,
		Voice:     voice,
		Status:    JobPending,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (j *GenerationJob) Key() string { return j.ID }

// Validate checks the fields the journal schema constrains.
func (j *GenerationJob) Validate() error {
	if !j.Mode.Valid() {
		return fmt.Errorf("%w: mode %q", shared.ErrInvalidMediaType, j.Mode)
	}
	if j.Model == "" {
		return fmt.Errorf("%w: model is required", shared.ErrInvalidInput)
	}
	switch j.Status {
	case JobPending, JobSucceeded, JobFailed:
	default:
		return fmt.Errorf("%w: status %q", shared.ErrInvalidInput, j.Status)
	}
	return nil
}

// Succeed marks the job complete with the record the server returned.
func (j *GenerationJob) Succeed(rec MediaRecord) {
	id := rec.ID
	j.RecordID = &id
	j.AssetPath = rec.Path
	j.finish(JobSucceeded, "")
}

// Fail marks the job complete with the user-facing error message.
func (j *GenerationJob) Fail(err error) {
	j.finish(JobFailed, err.Error())
}

func (j *GenerationJob) finish(status JobStatus, msg string) {
	now := time.Now()
	j.Status = status
	j.Error = msg
	j.CompletedAt = &now
	j.UpdatedAt = now
}
