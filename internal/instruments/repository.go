package instruments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inspectra-app/inspectra/internal/shared"
)

// Repository provides PostgreSQL backed persistence for instruments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const instrumentColumns = `id, organization_id, name, serial_no, model,
	calibration_due, calibration_attachment_id, created_at, updated_at`

// Create inserts a new instrument row.
func (r *Repository) Create(ctx context.Context, in Instrument) (Instrument, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO instruments (organization_id, name, serial_no, model, calibration_due, calibration_attachment_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING `+instrumentColumns,
		in.OrganizationID, in.Name, in.SerialNo, in.Model, in.CalibrationDue, in.CalibrationAttachmentID)
	return scanInstrument(row)
}

// Get fetches one instrument by id.
func (r *Repository) Get(ctx context.Context, id int64) (Instrument, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+instrumentColumns+` FROM instruments WHERE id = $1`, id)
	return scanInstrument(row)
}

// List returns one organization's instruments plus the total row count.
func (r *Repository) List(ctx context.Context, orgID int64, limit, offset int) ([]Instrument, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM instruments WHERE organization_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("instruments: count: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+instrumentColumns+` FROM instruments
		  WHERE organization_id = $1 ORDER BY name LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("instruments: list: %w", err)
	}
	defer rows.Close()

	var out []Instrument
	for rows.Next() {
		in, err := scanInstrument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, in)
	}
	return out, total, rows.Err()
}

// Update rewrites the mutable fields.
func (r *Repository) Update(ctx context.Context, id int64, in Instrument) (Instrument, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE instruments SET name = $2, serial_no = $3, model = $4,
		        calibration_due = $5, calibration_attachment_id = $6, updated_at = NOW()
		  WHERE id = $1 RETURNING `+instrumentColumns,
		id, in.Name, in.SerialNo, in.Model, in.CalibrationDue, in.CalibrationAttachmentID)
	return scanInstrument(row)
}

// Delete removes an instrument row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM instruments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("instruments: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanInstrument(row pgx.Row) (Instrument, error) {
	var in Instrument
	err := row.Scan(&in.ID, &in.OrganizationID, &in.Name, &in.SerialNo, &in.Model,
		&in.CalibrationDue, &in.CalibrationAttachmentID, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Instrument{}, shared.ErrNotFound
		}
		return Instrument{}, err
	}
	return in, nil
}
