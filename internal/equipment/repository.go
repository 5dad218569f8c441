package equipment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inspectra-app/inspectra/internal/platform/db"
	"github.com/inspectra-app/inspectra/internal/shared"
)

// Repository provides PostgreSQL backed persistence for equipment and its
// maintenance log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const equipmentColumns = `id, organization_id, name, serial_no, manufacturer, location,
	photo_attachment_id, commissioned_at, created_at, updated_at`

// Create inserts a new equipment row.
func (r *Repository) Create(ctx context.Context, eq Equipment) (Equipment, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO equipment (organization_id, name, serial_no, manufacturer, location, photo_attachment_id, commissioned_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING `+equipmentColumns,
		eq.OrganizationID, eq.Name, eq.SerialNo, eq.Manufacturer, eq.Location, eq.PhotoAttachmentID, eq.CommissionedAt)
	return scanEquipment(row)
}

// Get fetches one equipment row by id.
func (r *Repository) Get(ctx context.Context, id int64) (Equipment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = $1`, id)
	return scanEquipment(row)
}

// List returns one organization's equipment plus the total row count.
func (r *Repository) List(ctx context.Context, orgID int64, limit, offset int) ([]Equipment, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM equipment WHERE organization_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("equipment: count: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+equipmentColumns+` FROM equipment
		  WHERE organization_id = $1 ORDER BY name LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("equipment: list: %w", err)
	}
	defer rows.Close()

	var out []Equipment
	for rows.Next() {
		eq, err := scanEquipment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, eq)
	}
	return out, total, rows.Err()
}

// Update rewrites the mutable fields.
func (r *Repository) Update(ctx context.Context, id int64, eq Equipment) (Equipment, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE equipment SET name = $2, serial_no = $3, manufacturer = $4, location = $5,
		        photo_attachment_id = $6, commissioned_at = $7, updated_at = NOW()
		  WHERE id = $1 RETURNING `+equipmentColumns,
		id, eq.Name, eq.SerialNo, eq.Manufacturer, eq.Location, eq.PhotoAttachmentID, eq.CommissionedAt)
	return scanEquipment(row)
}

// DeleteCascade removes the maintenance log and then the equipment row in
// a single transaction. Partial deletes never survive a crash.
func (r *Repository) DeleteCascade(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM daily_maintenance WHERE equipment_id = $1`, id); err != nil {
			return fmt.Errorf("equipment: delete maintenance: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM equipment WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("equipment: delete: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// AddMaintenance appends one log entry.
func (r *Repository) AddMaintenance(ctx context.Context, m DailyMaintenance) (DailyMaintenance, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO daily_maintenance (equipment_id, performed_by, performed_at, notes, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING id, equipment_id, performed_by, performed_at, notes, created_at`,
		m.EquipmentID, m.PerformedBy, m.PerformedAt, m.Notes)
	var out DailyMaintenance
	err := row.Scan(&out.ID, &out.EquipmentID, &out.PerformedBy, &out.PerformedAt, &out.Notes, &out.CreatedAt)
	if err != nil {
		return DailyMaintenance{}, fmt.Errorf("equipment: add maintenance: %w", err)
	}
	return out, nil
}

// ListMaintenance returns the log for one piece of equipment, newest first.
func (r *Repository) ListMaintenance(ctx context.Context, equipmentID int64) ([]DailyMaintenance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, equipment_id, performed_by, performed_at, notes, created_at
		   FROM daily_maintenance WHERE equipment_id = $1 ORDER BY performed_at DESC`,
		equipmentID)
	if err != nil {
		return nil, fmt.Errorf("equipment: list maintenance: %w", err)
	}
	defer rows.Close()

	var out []DailyMaintenance
	for rows.Next() {
		var m DailyMaintenance
		if err := rows.Scan(&m.ID, &m.EquipmentID, &m.PerformedBy, &m.PerformedAt, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanEquipment(row pgx.Row) (Equipment, error) {
	var eq Equipment
	err := row.Scan(&eq.ID, &eq.OrganizationID, &eq.Name, &eq.SerialNo, &eq.Manufacturer,
		&eq.Location, &eq.PhotoAttachmentID, &eq.CommissionedAt, &eq.CreatedAt, &eq.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Equipment{}, shared.ErrNotFound
		}
		return Equipment{}, err
	}
	return eq, nil
}
