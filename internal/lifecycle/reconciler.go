package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/inspectra-app/inspectra/internal/attachments"
	"github.com/inspectra-app/inspectra/internal/documents"
	"github.com/inspectra-app/inspectra/internal/platform/blob"
)

// DocumentStore is the slice of the documents repository the reaper needs.
type DocumentStore interface {
	Get(ctx context.Context, id uuid.UUID) (documents.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ReferenceLookup answers which attachments still cite a document.
type ReferenceLookup interface {
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]attachments.Attachment, error)
}

// CleanupQueue schedules a retry for a blob that could not be deleted now.
type CleanupQueue interface {
	EnqueueCleanup(ctx context.Context, documentID uuid.UUID) error
}

// DocumentReaper deletes orphaned documents best-effort: blob first, then
// the metadata row, and only when nothing references the document anymore.
// Failures are logged and absorbed; a dangling blob is an acceptable state,
// a failed primary mutation is not.
type DocumentReaper struct {
	docs   DocumentStore
	refs   ReferenceLookup
	blobs  blob.Store
	queue  CleanupQueue
	logger *slog.Logger
}

// NewDocumentReaper constructs a reaper. queue may be nil; failed blob
// deletes are then left to the orphan sweep alone.
func NewDocumentReaper(docs DocumentStore, refs ReferenceLookup, blobs blob.Store, queue CleanupQueue, logger *slog.Logger) *DocumentReaper {
	return &DocumentReaper{docs: docs, refs: refs, blobs: blobs, queue: queue, logger: logger}
}

// Reconcile processes candidate orphans. Safe to call repeatedly with the
// same ids. Failures are logged and, when a queue is configured, handed to
// the retry task.
func (r *DocumentReaper) Reconcile(ctx context.Context, documentIDs []uuid.UUID) {
	for _, id := range documentIDs {
		if err := r.reconcileOne(ctx, id); err != nil {
			r.logger.Warn("reconcile", slog.String("document", id.String()), slog.Any("error", err))
			if r.queue != nil {
				if qerr := r.queue.EnqueueCleanup(ctx, id); qerr != nil {
					r.logger.Warn("reconcile: enqueue retry", slog.String("document", id.String()), slog.Any("error", qerr))
				}
			}
		}
	}
}

// Retry attempts one document again and surfaces the failure so the job
// queue can back off and reschedule. Used by the worker, which must not
// enqueue on top of itself.
func (r *DocumentReaper) Retry(ctx context.Context, id uuid.UUID) error {
	return r.reconcileOne(ctx, id)
}

// reconcileOne returns nil when the document is gone, still referenced, or
// fully cleaned up. A non-nil error means cleanup is still pending.
func (r *DocumentReaper) reconcileOne(ctx context.Context, id uuid.UUID) error {
	doc, err := r.docs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load document: %w", err)
	}

	refs, err := r.refs.ListByDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("list references: %w", err)
	}
	if len(refs) > 0 {
		// Still cited elsewhere, e.g. the same certificate attached to a
		// second report section. Not an orphan.
		return nil
	}

	if err := r.blobs.Delete(ctx, doc.StorageKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
		// Metadata row stays until the blob is confirmed gone.
		return fmt.Errorf("delete blob %s: %w", doc.StorageKey, err)
	}

	if err := r.docs.Delete(ctx, id); err != nil && !errors.Is(err, documents.ErrNotFound) {
		r.logger.Warn("reconcile: delete metadata", slog.String("document", id.String()), slog.Any("error", err))
	}
	return nil
}
