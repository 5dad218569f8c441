package clients

import (
	"context"
	"errors"
	"strings"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/lifecycle"
	"github.com/inspectra-app/inspectra/internal/shared"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, c Client) (Client, error)
	Get(ctx context.Context, id int64) (Client, error)
	List(ctx context.Context, orgID int64, limit, offset int) ([]Client, int, error)
	Update(ctx context.Context, id int64, c Client) (Client, error)
	Delete(ctx context.Context, id int64) error
}

// Service applies client business rules through the lifecycle coordinator.
type Service struct {
	store Store
	coord *lifecycle.Coordinator
}

// NewService constructs a Service.
func NewService(store Store, coord *lifecycle.Coordinator) *Service {
	return &Service{store: store, coord: coord}
}

// Create adds a client in the resolved organization. Admins may target
// another tenant via requestedOrg; tenants are bound to their own.
func (s *Service) Create(ctx context.Context, actor ability.Actor, requestedOrg *int64, c Client) (Client, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return Client{}, errors.New("clients: name required")
	}

	var created Client
	_, err := s.coord.Execute(ctx, lifecycle.Request{
		Actor:          actor,
		Action:         ability.ActionCreate,
		Kind:           ability.KindClient,
		RequestedOrgID: requestedOrg,
		Mutate: func(ctx context.Context, orgID int64) (lifecycle.Result, error) {
			c.OrganizationID = orgID
			var err error
			created, err = s.store.Create(ctx, c)
			return lifecycle.Result{}, err
		},
	})
	if err != nil {
		return Client{}, err
	}
	return created, nil
}

// Get fetches one client within the actor's scope.
func (s *Service) Get(ctx context.Context, actor ability.Actor, id int64) (Client, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Client{}, err
	}
	if !s.coord.Engine().Can(actor, ability.ActionRead, ability.InOrganization(ability.KindClient, c.OrganizationID)) {
		return Client{}, lifecycle.ErrForbidden
	}
	return c, nil
}

// List returns clients for the resolved organization.
func (s *Service) List(ctx context.Context, actor ability.Actor, requestedOrg *int64, page shared.Pagination) ([]Client, shared.Pagination, error) {
	orgID, err := s.coord.ResolveScope(ctx, actor, requestedOrg, ability.ActionRead, ability.KindClient)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	items, total, err := s.store.List(ctx, orgID, page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Update rewrites a client's details inside its own organization.
func (s *Service) Update(ctx context.Context, actor ability.Actor, id int64, c Client) (Client, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return Client{}, err
	}

	var updated Client
	_, err = s.coord.Execute(ctx, lifecycle.Request{
		Actor:        actor,
		Action:       ability.ActionUpdate,
		Kind:         ability.KindClient,
		SubjectOrgID: &existing.OrganizationID,
		Mutate: func(ctx context.Context, _ int64) (lifecycle.Result, error) {
			var err error
			updated, err = s.store.Update(ctx, id, c)
			return lifecycle.Result{}, err
		},
	})
	if err != nil {
		return Client{}, err
	}
	return updated, nil
}

// Delete removes a client unless reports still reference it.
func (s *Service) Delete(ctx context.Context, actor ability.Actor, id int64) error {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.coord.Execute(ctx, lifecycle.Request{
		Actor:        actor,
		Action:       ability.ActionDelete,
		Kind:         ability.KindClient,
		SubjectOrgID: &existing.OrganizationID,
		ResourceID:   id,
		GuardDelete:  true,
		Mutate: func(ctx context.Context, _ int64) (lifecycle.Result, error) {
			return lifecycle.Result{}, s.store.Delete(ctx, id)
		},
	})
	return err
}
