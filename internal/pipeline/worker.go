package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/newsloom/newsloom/internal/storage"
)

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// Worker processes rebuild and detection jobs from the SQLite job queue.
type Worker struct {
	jobs   JobStore
	runner *Runner
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 1s.
func NewWorker(jobs JobStore, runner *Runner, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		jobs:   jobs,
		runner: runner,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job. Returns true if a job was
// processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.jobs.ClaimNextJob([]string{storage.JobRebuildStorylines, storage.JobRunDetections})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", err)
		if failErr := w.jobs.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.jobs.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

type rebuildPayload struct {
	Incremental bool `json:"incremental"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	switch job.Type {
	case storage.JobRebuildStorylines:
		var payload rebuildPayload
		if job.PayloadJSON != "" {
			if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
				return fmt.Errorf("parsing payload: %w", err)
			}
		}
		summary, err := w.runner.Rebuild(ctx, payload.Incremental)
		if err != nil {
			return err
		}
		w.logger.Info("rebuild job complete",
			"job_id", job.ID,
			"storylines", summary.Storylines,
			"articles_grouped", summary.ArticlesGrouped,
			"edges_skipped", summary.EdgesSkipped,
		)
		return nil

	case storage.JobRunDetections:
		summary, err := w.runner.RunDetections(ctx)
		if err != nil {
			return err
		}
		w.logger.Info("detection job complete", "job_id", job.ID, "alerts_created", summary.AlertsCreated)
		return nil

	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}
