package orgs

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/lifecycle"
	"github.com/inspectra-app/inspectra/internal/shared"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, org Organization) (Organization, error)
	Get(ctx context.Context, id int64) (Organization, error)
	List(ctx context.Context) ([]Organization, error)
	Update(ctx context.Context, id int64, org Organization) (Organization, error)
	Delete(ctx context.Context, id int64) error
}

// Service applies organization business rules through the lifecycle
// coordinator. Creating and deleting tenants is admin-only and scope-free;
// deletion is blocked while any child resource remains.
type Service struct {
	store  Store
	coord  *lifecycle.Coordinator
	audit  shared.Auditor
	logger *slog.Logger
}

// NewService constructs a Service. audit may be nil.
func NewService(store Store, coord *lifecycle.Coordinator, audit shared.Auditor, logger *slog.Logger) *Service {
	return &Service{store: store, coord: coord, audit: audit, logger: logger}
}

// Create provisions a new tenant.
func (s *Service) Create(ctx context.Context, actor ability.Actor, org Organization) (Organization, error) {
	org.Name = strings.TrimSpace(org.Name)
	if org.Name == "" {
		return Organization{}, errors.New("orgs: name required")
	}

	var created Organization
	_, err := s.coord.Execute(ctx, lifecycle.Request{
		Actor:     actor,
		Action:    ability.ActionCreate,
		Kind:      ability.KindOrganization,
		ScopeFree: true,
		Mutate: func(ctx context.Context, _ int64) (lifecycle.Result, error) {
			var err error
			created, err = s.store.Create(ctx, org)
			return lifecycle.Result{}, err
		},
	})
	if err != nil {
		return Organization{}, err
	}
	s.recordAudit(ctx, actor, "org.create", created.ID)
	return created, nil
}

// Get fetches one organization within the actor's scope.
func (s *Service) Get(ctx context.Context, actor ability.Actor, id int64) (Organization, error) {
	org, err := s.store.Get(ctx, id)
	if err != nil {
		return Organization{}, err
	}
	if !s.coord.Engine().Can(actor, ability.ActionRead, ability.InOrganization(ability.KindOrganization, org.ID)) {
		return Organization{}, lifecycle.ErrForbidden
	}
	return org, nil
}

// List returns the organizations visible to the actor: all of them for
// admins, the home organization for everyone else.
func (s *Service) List(ctx context.Context, actor ability.Actor) ([]Organization, error) {
	if actor.IsAdmin() {
		return s.store.List(ctx)
	}
	if actor.HomeOrganizationID == nil {
		return nil, nil
	}
	org, err := s.store.Get(ctx, *actor.HomeOrganizationID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return []Organization{org}, nil
}

// Update rewrites an organization's details within the actor's scope.
func (s *Service) Update(ctx context.Context, actor ability.Actor, id int64, org Organization) (Organization, error) {
	org.Name = strings.TrimSpace(org.Name)
	if org.Name == "" {
		return Organization{}, errors.New("orgs: name required")
	}

	var updated Organization
	_, err := s.coord.Execute(ctx, lifecycle.Request{
		Actor:        actor,
		Action:       ability.ActionUpdate,
		Kind:         ability.KindOrganization,
		SubjectOrgID: &id,
		Mutate: func(ctx context.Context, orgID int64) (lifecycle.Result, error) {
			var err error
			updated, err = s.store.Update(ctx, orgID, org)
			return lifecycle.Result{}, err
		},
	})
	if err != nil {
		return Organization{}, err
	}
	s.recordAudit(ctx, actor, "org.update", updated.ID)
	return updated, nil
}

// Delete removes a tenant. The dependency guard blocks the delete while any
// user, client, report, document, equipment, instrument, storage, valve,
// bomb, or company unit still references it.
func (s *Service) Delete(ctx context.Context, actor ability.Actor, id int64) error {
	_, err := s.coord.Execute(ctx, lifecycle.Request{
		Actor:       actor,
		Action:      ability.ActionDelete,
		Kind:        ability.KindOrganization,
		ScopeFree:   true,
		ResourceID:  id,
		GuardDelete: true,
		Mutate: func(ctx context.Context, _ int64) (lifecycle.Result, error) {
			return lifecycle.Result{}, s.store.Delete(ctx, id)
		},
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "org.delete", id)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor ability.Actor, action string, id int64) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{ActorID: actor.ID, Action: action, Entity: "organization", EntityID: strconv.FormatInt(id, 10)}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
