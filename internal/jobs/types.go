package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeCleanDataset represents a dataset cleaning run.
	JobTypeCleanDataset JobType = "clean_dataset"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
)

// CleanDatasetJob represents one asynchronous cleaning run: acquire the raw
// source, run the pipeline, load the cleaned table into the store.
type CleanDatasetJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Source is where the raw table comes from: a gs:// URI, an http(s)
	// URL or a local path.
	Source string `json:"source"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RunID, RowsIn and RowsOut summarize the cleaning report once the
	// run finishes.
	RunID   string `json:"run_id,omitempty"`
	RowsIn  int    `json:"rows_in,omitempty"`
	RowsOut int    `json:"rows_out,omitempty"`
}

// GetID implements the Job interface.
func (j *CleanDatasetJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *CleanDatasetJob) GetType() JobType {
	return JobTypeCleanDataset
}

// GetStatus implements the Job interface.
func (j *CleanDatasetJob) GetStatus() JobStatus {
	return j.Status
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishCleanDataset publishes a dataset cleaning job.
	PublishCleanDataset(ctx context.Context, job *CleanDatasetJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue, calling the handler
	// for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job. Cleaning is deterministic,
// so a failed job is not retried: the same input would fail the same way.
type JobHandler func(ctx context.Context, job *CleanDatasetJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	SaveJob(ctx context.Context, job *CleanDatasetJob) error
	GetJob(ctx context.Context, jobID string) (*CleanDatasetJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*CleanDatasetJob, error)
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}
