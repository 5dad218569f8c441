package attachments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrDocumentNotFound means the candidate id names neither a known
	// attachment nor a known document.
	ErrDocumentNotFound = errors.New("attachments: document not found")
	// ErrUnknownField means the field name is outside the closed enumeration.
	ErrUnknownField = errors.New("attachments: unknown field")
	// ErrNotFound indicates a missing attachment row.
	ErrNotFound = errors.New("attachments: not found")
)

// Repository persists attachment rows. CreateIfAbsent must be atomic:
// concurrent calls for the same (document, field, owner) yield one row.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Attachment, error)
	FindBySlot(ctx context.Context, documentID uuid.UUID, field Field, ownerID *int64) (Attachment, error)
	CreateIfAbsent(ctx context.Context, att Attachment) (Attachment, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]Attachment, error)
	ListByOwner(ctx context.Context, ownerID int64, fields ...Field) ([]Attachment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByOwner(ctx context.Context, ownerID int64, fields ...Field) ([]Attachment, error)
}

// DocumentLookup is the narrow collaborator checking document existence.
type DocumentLookup interface {
	DocumentExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Resolver turns an ambiguous caller-supplied id into the attachment id to
// persist. The candidate may already be an attachment id (a form re-saved
// without changing the file) or a document id (first upload or replacement).
type Resolver struct {
	repo Repository
	docs DocumentLookup
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository, docs DocumentLookup) *Resolver {
	return &Resolver{repo: repo, docs: docs}
}

// Resolve returns the attachment id for candidate bound to field/owner.
//
//  1. candidate already an attachment: returned unchanged, no new row;
//  2. candidate a document: an existing row for the same slot wins,
//     otherwise one row is created, racing creators converge on one id.
func (r *Resolver) Resolve(ctx context.Context, candidate uuid.UUID, field Field, ownerID *int64) (uuid.UUID, error) {
	if !KnownField(field) {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	existing, err := r.repo.Get(ctx, candidate)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return uuid.Nil, err
	}

	known, err := r.docs.DocumentExists(ctx, candidate)
	if err != nil {
		return uuid.Nil, err
	}
	if !known {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, candidate)
	}

	att, err := r.repo.CreateIfAbsent(ctx, Attachment{
		ID:         uuid.New(),
		DocumentID: candidate,
		FieldName:  field,
		OwnerID:    ownerID,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return att.ID, nil
}
