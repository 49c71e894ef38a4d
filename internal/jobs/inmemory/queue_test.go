package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/card-etl/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.CleanDatasetJob {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Job %s never reached status %s", jobID, want)
	return nil
}

func TestQueue_PublishFillsDefaults(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, store)
	defer queue.Close()

	job := &jobs.CleanDatasetJob{Source: "data.csv"}
	if err := queue.PublishCleanDataset(context.Background(), job); err != nil {
		t.Fatalf("PublishCleanDataset failed: %v", err)
	}

	if job.JobID == "" {
		t.Error("Expected job ID to be assigned")
	}
	if job.Status != jobs.JobStatusPending {
		t.Errorf("Expected pending status, got %s", job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be stamped")
	}

	saved, err := store.GetJob(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("Expected job saved on publish: %v", err)
	}
	if saved.Source != "data.csv" {
		t.Errorf("Unexpected saved source: %s", saved.Source)
	}
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, store)
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handled := make(chan string, 1)
	handler := func(ctx context.Context, job *jobs.CleanDatasetJob) error {
		job.RowsOut = 7
		handled <- job.JobID
		return nil
	}

	if err := queue.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.CleanDatasetJob{Source: "data.csv"}
	if err := queue.PublishCleanDataset(ctx, job); err != nil {
		t.Fatalf("PublishCleanDataset failed: %v", err)
	}

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("Handler was never called")
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("Expected start and completion timestamps")
	}
	if done.RowsOut != 7 {
		t.Errorf("Expected handler mutation to be persisted, got %+v", done)
	}
}

func TestQueue_FailedJobIsNotRetried(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, store)
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 10)
	handler := func(ctx context.Context, job *jobs.CleanDatasetJob) error {
		calls <- struct{}{}
		return errors.New("source not found")
	}

	if err := queue.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.CleanDatasetJob{Source: "missing.csv"}
	if err := queue.PublishCleanDataset(ctx, job); err != nil {
		t.Fatalf("PublishCleanDataset failed: %v", err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.Error != "source not found" {
		t.Errorf("Expected error recorded, got %q", failed.Error)
	}

	// Give a would-be retry time to happen.
	time.Sleep(100 * time.Millisecond)
	if len(calls) != 1 {
		t.Errorf("Expected exactly 1 handler call, got %d", len(calls))
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	queue := NewQueue(10, NewStore())
	if err := queue.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	err := queue.PublishCleanDataset(context.Background(), &jobs.CleanDatasetJob{Source: "data.csv"})
	if err == nil {
		t.Error("Expected error publishing to a closed queue")
	}
}

func TestQueue_StopWaitsForInflight(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	handler := func(ctx context.Context, job *jobs.CleanDatasetJob) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		return nil
	}

	if err := queue.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.CleanDatasetJob{Source: "data.csv"}
	if err := queue.PublishCleanDataset(ctx, job); err != nil {
		t.Fatalf("PublishCleanDataset failed: %v", err)
	}

	<-started

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := queue.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	got, err := store.GetJob(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Status != jobs.JobStatusCompleted {
		t.Errorf("Expected in-flight job to finish before Stop returned, got %s", got.Status)
	}
}
