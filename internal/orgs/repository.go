package orgs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inspectra-app/inspectra/internal/shared"
)

// Repository provides PostgreSQL backed persistence for organizations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orgColumns = `id, name, registration_no, address, created_at, updated_at`

// Create inserts a new organization.
func (r *Repository) Create(ctx context.Context, org Organization) (Organization, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO organizations (name, registration_no, address, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW()) RETURNING `+orgColumns,
		org.Name, org.RegistrationNo, org.Address)
	return scanOrganization(row)
}

// Get fetches an organization by id.
func (r *Repository) Get(ctx context.Context, id int64) (Organization, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id)
	return scanOrganization(row)
}

// List returns all organizations ordered by name.
func (r *Repository) List(ctx context.Context) ([]Organization, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orgColumns+` FROM organizations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("orgs: list: %w", err)
	}
	defer rows.Close()

	var out []Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

// Update rewrites the mutable fields.
func (r *Repository) Update(ctx context.Context, id int64, org Organization) (Organization, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE organizations SET name = $2, registration_no = $3, address = $4, updated_at = NOW()
		  WHERE id = $1 RETURNING `+orgColumns,
		id, org.Name, org.RegistrationNo, org.Address)
	return scanOrganization(row)
}

// Delete removes an organization row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("orgs: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// OrganizationExists implements the scope resolver's lookup collaborator.
func (r *Repository) OrganizationExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM organizations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("orgs: exists: %w", err)
	}
	return exists, nil
}

func scanOrganization(row pgx.Row) (Organization, error) {
	var org Organization
	err := row.Scan(&org.ID, &org.Name, &org.RegistrationNo, &org.Address, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, shared.ErrNotFound
		}
		return Organization{}, err
	}
	return org, nil
}
