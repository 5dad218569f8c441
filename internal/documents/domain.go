// Package documents manages uploaded file metadata and its pairing with the
// blob store. Metadata is the source of truth: a blob is written before its
// row exists and removed only after confirmed orphaning.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Document is the metadata row for one uploaded blob. Immutable once
// created except for deletion.
type Document struct {
	ID             uuid.UUID
	OrganizationID int64
	StorageKey     string
	FileName       string
	ContentType    string
	Size           int64
	OwnerID        int64
	CreatedAt      time.Time
}
