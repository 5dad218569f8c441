package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inspectra-app/inspectra/internal/shared"
)

// ErrNotFound indicates a missing document row. Shared with the rest of the
// repositories so one errors.Is check covers the not-found class.
var ErrNotFound = shared.ErrNotFound

// Repository provides PostgreSQL backed persistence for document metadata.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a metadata row. The blob must already be stored.
func (r *Repository) Create(ctx context.Context, doc Document) (Document, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO documents (id, organization_id, storage_key, file_name, content_type, size, owner_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 RETURNING id, organization_id, storage_key, file_name, content_type, size, owner_id, created_at`,
		doc.ID, doc.OrganizationID, doc.StorageKey, doc.FileName, doc.ContentType, doc.Size, doc.OwnerID)
	return scanDocument(row)
}

// Get fetches a document by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Document, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, organization_id, storage_key, file_name, content_type, size, owner_id, created_at
		   FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

// List returns an organization's documents, newest first.
func (r *Repository) List(ctx context.Context, orgID int64, limit, offset int) ([]Document, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, organization_id, storage_key, file_name, content_type, size, owner_id, created_at
		   FROM documents WHERE organization_id = $1
		  ORDER BY created_at DESC LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("documents: list: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Delete removes a metadata row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("documents: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DocumentExists implements the attachment resolver's lookup collaborator.
func (r *Repository) DocumentExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("documents: exists: %w", err)
	}
	return exists, nil
}

// ListUnreferenced returns documents no attachment points at, used by the
// orphan sweep. The grace interval keeps just-uploaded documents that have
// not been attached yet out of the sweep.
func (r *Repository) ListUnreferenced(ctx context.Context, olderThan string, limit int) ([]Document, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT d.id, d.organization_id, d.storage_key, d.file_name, d.content_type, d.size, d.owner_id, d.created_at
		   FROM documents d
		  WHERE NOT EXISTS (SELECT 1 FROM attachments a WHERE a.document_id = d.id)
		    AND d.created_at < NOW() - $1::interval
		  LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("documents: list unreferenced: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	err := row.Scan(&doc.ID, &doc.OrganizationID, &doc.StorageKey, &doc.FileName, &doc.ContentType, &doc.Size, &doc.OwnerID, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}
