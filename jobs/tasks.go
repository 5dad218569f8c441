// Package jobs holds the asynq task definitions and the background worker.
package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBlobCleanup retries a blob delete that failed during reconcile.
	TaskBlobCleanup = "blob:cleanup"
	// TaskOrphanSweep scans for documents no attachment points at.
	TaskOrphanSweep = "blob:orphan_sweep"
)

// BlobCleanupPayload names the document whose blob still needs deleting.
type BlobCleanupPayload struct {
	DocumentID uuid.UUID `json:"documentId"`
}

// NewBlobCleanupTask constructs an asynq task for one pending cleanup.
func NewBlobCleanupTask(payload BlobCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBlobCleanup, data), nil
}

// OrphanSweepPayload bounds one sweep run. OlderThan is a Postgres
// interval such as "24 hours".
type OrphanSweepPayload struct {
	OlderThan string `json:"olderThan"`
	Limit     int    `json:"limit"`
}

// NewOrphanSweepTask constructs the periodic sweep task.
func NewOrphanSweepTask(olderThan string, limit int) (*asynq.Task, error) {
	data, err := json.Marshal(OrphanSweepPayload{OlderThan: olderThan, Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrphanSweep, data), nil
}
