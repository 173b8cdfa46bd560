// internal/model/job.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a print job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the job can no longer change
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobConfig carries per-job options
type JobConfig struct {
	Copies         int   `json:"copies,omitempty"`
	Priority       int   `json:"priority,omitempty"`
	RetryOnError   bool  `json:"retryOnError,omitempty"`
	AutoCut        *bool `json:"autoCut,omitempty"`
	OpenCashDrawer bool  `json:"openCashDrawer,omitempty"`
}

// ShouldAutoCut is true unless auto-cut was explicitly disabled
func (c JobConfig) ShouldAutoCut() bool {
	return c.AutoCut == nil || *c.AutoCut
}

// CopyCount returns the number of copies to print, at least one
func (c JobConfig) CopyCount() int {
	if c.Copies < 1 {
		return 1
	}
	return c.Copies
}

// WithoutAutoCut returns a copy of c with auto-cut disabled
func (c JobConfig) WithoutAutoCut() JobConfig {
	disabled := false
	c.AutoCut = &disabled
	return c
}

// PrintJob is one print submission
type PrintJob struct {
	ID          string     `json:"id"`
	PrinterID   string     `json:"printerId"`
	Content     []Content  `json:"-"`
	Config      JobConfig  `json:"config"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewPrintJob creates a pending job with a fresh identifier
func NewPrintJob(printerID string, content []Content, config JobConfig) *PrintJob {
	return &PrintJob{
		ID:        uuid.NewString(),
		PrinterID: printerID,
		Content:   content,
		Config:    config,
		Status:    JobStatusPending,
		CreatedAt: time.Now(),
	}
}

// Start moves a pending job to processing
func (j *PrintJob) Start() {
	if j.Status.IsTerminal() {
		return
	}
	j.Status = JobStatusProcessing
	j.Attempts++
}

// Complete marks the job completed
func (j *PrintJob) Complete() {
	if j.Status.IsTerminal() {
		return
	}
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
}

// Fail marks the job failed with the error text
func (j *PrintJob) Fail(err error) {
	if j.Status.IsTerminal() {
		return
	}
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	if err != nil {
		j.Error = err.Error()
	}
}
