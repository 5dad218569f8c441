package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inspectra-app/inspectra/internal/platform/db"
	"github.com/inspectra-app/inspectra/internal/shared"
)

// Repository provides PostgreSQL backed persistence for reports and the
// report_instruments join.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reportColumns = `id, organization_id, client_id, title, kind, payload, created_by, created_at, updated_at`

// Create inserts a report and its instrument citations in one transaction.
func (r *Repository) Create(ctx context.Context, rep Report) (Report, error) {
	var out Report
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO reports (organization_id, client_id, title, kind, payload, created_by, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING `+reportColumns,
			rep.OrganizationID, rep.ClientID, rep.Title, rep.Kind, rep.Payload, rep.CreatedBy)
		var err error
		out, err = scanReport(row)
		if err != nil {
			return err
		}
		return insertInstruments(ctx, tx, out.ID, rep.InstrumentIDs)
	})
	if err != nil {
		return Report{}, err
	}
	out.InstrumentIDs = rep.InstrumentIDs
	return out, nil
}

// Get fetches one report with its instrument ids.
func (r *Repository) Get(ctx context.Context, id int64) (Report, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	rep, err := scanReport(row)
	if err != nil {
		return Report{}, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT instrument_id FROM report_instruments WHERE report_id = $1 ORDER BY instrument_id`, id)
	if err != nil {
		return Report{}, fmt.Errorf("reports: instruments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var instrumentID int64
		if err := rows.Scan(&instrumentID); err != nil {
			return Report{}, err
		}
		rep.InstrumentIDs = append(rep.InstrumentIDs, instrumentID)
	}
	return rep, rows.Err()
}

// List returns one organization's reports plus the total row count.
func (r *Repository) List(ctx context.Context, orgID int64, limit, offset int) ([]Report, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reports WHERE organization_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("reports: count: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM reports
		  WHERE organization_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("reports: list: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rep)
	}
	return out, total, rows.Err()
}

// Update rewrites a report and replaces its instrument citations.
func (r *Repository) Update(ctx context.Context, id int64, rep Report) (Report, error) {
	var out Report
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`UPDATE reports SET client_id = $2, title = $3, kind = $4, payload = $5, updated_at = NOW()
			  WHERE id = $1 RETURNING `+reportColumns,
			id, rep.ClientID, rep.Title, rep.Kind, rep.Payload)
		var err error
		out, err = scanReport(row)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM report_instruments WHERE report_id = $1`, id); err != nil {
			return fmt.Errorf("reports: clear instruments: %w", err)
		}
		return insertInstruments(ctx, tx, id, rep.InstrumentIDs)
	})
	if err != nil {
		return Report{}, err
	}
	out.InstrumentIDs = rep.InstrumentIDs
	return out, nil
}

// Delete removes a report and its instrument citations in one transaction.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM report_instruments WHERE report_id = $1`, id); err != nil {
			return fmt.Errorf("reports: clear instruments: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("reports: delete: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func insertInstruments(ctx context.Context, tx pgx.Tx, reportID int64, instrumentIDs []int64) error {
	for _, instrumentID := range instrumentIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO report_instruments (report_id, instrument_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, reportID, instrumentID); err != nil {
			return fmt.Errorf("reports: cite instrument: %w", err)
		}
	}
	return nil
}

func scanReport(row pgx.Row) (Report, error) {
	var rep Report
	err := row.Scan(&rep.ID, &rep.OrganizationID, &rep.ClientID, &rep.Title, &rep.Kind,
		&rep.Payload, &rep.CreatedBy, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Report{}, shared.ErrNotFound
		}
		return Report{}, err
	}
	return rep, nil
}
