package attachments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PGRepository provides PostgreSQL backed persistence for attachments.
//
// The table carries a unique index over (document_id, field_name,
// COALESCE(owner_id, 0)) so the conditional insert is a real dedup barrier,
// not a read-then-write.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a repository over the shared pool.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Get fetches an attachment by id.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (Attachment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, document_id, field_name, owner_id, created_at FROM attachments WHERE id = $1`, id)
	return scanAttachment(row)
}

// FindBySlot fetches the attachment occupying one semantic slot.
func (r *PGRepository) FindBySlot(ctx context.Context, documentID uuid.UUID, field Field, ownerID *int64) (Attachment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, document_id, field_name, owner_id, created_at
		   FROM attachments
		  WHERE document_id = $1 AND field_name = $2 AND COALESCE(owner_id, 0) = COALESCE($3, 0)`,
		documentID, field, ownerID)
	return scanAttachment(row)
}

// CreateIfAbsent inserts the attachment unless its slot is already occupied,
// in which case the existing row is returned. A lost race surfaces as a
// unique violation and resolves by re-reading the winner.
func (r *PGRepository) CreateIfAbsent(ctx context.Context, att Attachment) (Attachment, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO attachments (id, document_id, field_name, owner_id, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (document_id, field_name, COALESCE(owner_id, 0)) DO NOTHING
		 RETURNING id, document_id, field_name, owner_id, created_at`,
		att.ID, att.DocumentID, att.FieldName, att.OwnerID)

	created, err := scanAttachment(row)
	if err == nil {
		return created, nil
	}

	var pgErr *pgconn.PgError
	if errors.Is(err, ErrNotFound) || (errors.As(err, &pgErr) && pgErr.Code == uniqueViolation) {
		return r.FindBySlot(ctx, att.DocumentID, att.FieldName, att.OwnerID)
	}
	return Attachment{}, err
}

// ListByDocument returns every attachment referencing a document.
func (r *PGRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]Attachment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, document_id, field_name, owner_id, created_at FROM attachments WHERE document_id = $1`, documentID)
	if err != nil {
		return nil, fmt.Errorf("attachments: list by document: %w", err)
	}
	defer rows.Close()

	var out []Attachment
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, rows.Err()
}

// ListByOwner returns the attachments bound to one owning record,
// optionally restricted to specific slots.
func (r *PGRepository) ListByOwner(ctx context.Context, ownerID int64, fields ...Field) ([]Attachment, error) {
	query := `SELECT id, document_id, field_name, owner_id, created_at
		    FROM attachments WHERE owner_id = $1`
	args := []any{ownerID}
	if len(fields) > 0 {
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = string(f)
		}
		query += ` AND field_name = ANY($2)`
		args = append(args, names)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("attachments: list by owner: %w", err)
	}
	defer rows.Close()

	var out []Attachment
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, rows.Err()
}

// Delete removes one attachment row. Callers replacing a document
// reference drop the superseded row before reconciling its blob.
func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("attachments: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByOwner removes all attachments bound to one owning record and
// returns them so the caller can reconcile the referenced documents. When
// fields are given the delete is restricted to those slots; owner ids are
// only unique within a resource kind, and the field names carry the kind.
func (r *PGRepository) DeleteByOwner(ctx context.Context, ownerID int64, fields ...Field) ([]Attachment, error) {
	query := `DELETE FROM attachments WHERE owner_id = $1
		 RETURNING id, document_id, field_name, owner_id, created_at`
	args := []any{ownerID}
	if len(fields) > 0 {
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = string(f)
		}
		query = `DELETE FROM attachments WHERE owner_id = $1 AND field_name = ANY($2)
		 RETURNING id, document_id, field_name, owner_id, created_at`
		args = append(args, names)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("attachments: delete by owner: %w", err)
	}
	defer rows.Close()

	var out []Attachment
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, rows.Err()
}

func scanAttachment(row pgx.Row) (Attachment, error) {
	var att Attachment
	err := row.Scan(&att.ID, &att.DocumentID, &att.FieldName, &att.OwnerID, &att.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Attachment{}, ErrNotFound
		}
		return Attachment{}, err
	}
	return att, nil
}
