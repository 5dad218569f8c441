package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inspectra-app/inspectra/internal/shared"
)

// Repository provides PostgreSQL backed persistence for clients.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, organization_id, name, contact_name, email, phone, address, created_at, updated_at`

// Create inserts a new client.
func (r *Repository) Create(ctx context.Context, c Client) (Client, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO clients (organization_id, name, contact_name, email, phone, address, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING `+clientColumns,
		c.OrganizationID, c.Name, c.ContactName, c.Email, c.Phone, c.Address)
	return scanClient(row)
}

// Get fetches a client by id.
func (r *Repository) Get(ctx context.Context, id int64) (Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	return scanClient(row)
}

// List returns an organization's clients ordered by name.
func (r *Repository) List(ctx context.Context, orgID int64, limit, offset int) ([]Client, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE organization_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("clients: count: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE organization_id = $1 ORDER BY name LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("clients: list: %w", err)
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// ClientOrganization returns the tenant a client belongs to; the reports
// service uses it to refuse cross-tenant citations.
func (r *Repository) ClientOrganization(ctx context.Context, clientID int64) (int64, error) {
	var orgID int64
	err := r.pool.QueryRow(ctx, `SELECT organization_id FROM clients WHERE id = $1`, clientID).Scan(&orgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, fmt.Errorf("clients: organization: %w", err)
	}
	return orgID, nil
}

// Update rewrites the mutable fields.
func (r *Repository) Update(ctx context.Context, id int64, c Client) (Client, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE clients SET name = $2, contact_name = $3, email = $4, phone = $5, address = $6, updated_at = NOW()
		  WHERE id = $1 RETURNING `+clientColumns,
		id, c.Name, c.ContactName, c.Email, c.Phone, c.Address)
	return scanClient(row)
}

// Delete removes a client row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clients: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.ContactName, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, shared.ErrNotFound
		}
		return Client{}, err
	}
	return c, nil
}
