package model

import "time"

type TryOnMode string

const (
	TryOnModeTop  TryOnMode = "top"
	TryOnModeFull TryOnMode = "full"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// TryOnJob is a queued image generation request. Input images are kept only
// until the job reaches a terminal state.
type TryOnJob struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"account_id"`
	Mode          TryOnMode  `json:"mode"`
	Status        JobStatus  `json:"status"`
	PersonImage   string     `json:"-"`
	ClothingImage string     `json:"-"`
	BottomImage   string     `json:"-"`
	ResultImage   string     `json:"result_image_base64,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreditsUsed   int64      `json:"credits_used"`
	Retries       int        `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func (j *TryOnJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
