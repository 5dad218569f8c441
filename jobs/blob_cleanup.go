package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/inspectra-app/inspectra/internal/documents"
	"github.com/inspectra-app/inspectra/internal/lifecycle"
)

// BlobCleanupJob retries blob deletions that failed during an in-request
// reconcile. Returning the error lets asynq back off and reschedule.
type BlobCleanupJob struct {
	reaper *lifecycle.DocumentReaper
	logger *slog.Logger
}

// NewBlobCleanupJob constructs the job.
func NewBlobCleanupJob(reaper *lifecycle.DocumentReaper, logger *slog.Logger) *BlobCleanupJob {
	return &BlobCleanupJob{reaper: reaper, logger: logger}
}

// Handle processes TaskBlobCleanup tasks.
func (j *BlobCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload BlobCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := j.reaper.Retry(ctx, payload.DocumentID); err != nil {
		j.logger.Warn("blob cleanup retry",
			slog.String("document", payload.DocumentID.String()),
			slog.Any("error", err))
		return err
	}
	return nil
}

// OrphanLister is the slice of the documents repository the sweep needs.
type OrphanLister interface {
	ListUnreferenced(ctx context.Context, olderThan string, limit int) ([]documents.Document, error)
}

// OrphanSweepJob periodically collects documents nothing references
// anymore, catching blobs whose in-request reconcile and queued retries
// were both lost.
type OrphanSweepJob struct {
	docs   OrphanLister
	reaper *lifecycle.DocumentReaper
	logger *slog.Logger
}

// NewOrphanSweepJob constructs the job.
func NewOrphanSweepJob(docs OrphanLister, reaper *lifecycle.DocumentReaper, logger *slog.Logger) *OrphanSweepJob {
	return &OrphanSweepJob{docs: docs, reaper: reaper, logger: logger}
}

// Handle processes TaskOrphanSweep tasks.
func (j *OrphanSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	payload := OrphanSweepPayload{OlderThan: "24 hours", Limit: 100}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	orphans, err := j.docs.ListUnreferenced(ctx, payload.OlderThan, payload.Limit)
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		return nil
	}

	var pending int
	for _, doc := range orphans {
		if err := j.reaper.Retry(ctx, doc.ID); err != nil {
			pending++
			j.logger.Warn("orphan sweep",
				slog.String("document", doc.ID.String()),
				slog.Any("error", err))
		}
	}
	j.logger.Info("orphan sweep done",
		slog.Int("candidates", len(orphans)),
		slog.Int("pending", pending))
	return nil
}
