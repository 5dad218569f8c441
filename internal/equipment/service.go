package equipment

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/attachments"
	"github.com/inspectra-app/inspectra/internal/lifecycle"
	"github.com/inspectra-app/inspectra/internal/shared"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, eq Equipment) (Equipment, error)
	Get(ctx context.Context, id int64) (Equipment, error)
	List(ctx context.Context, orgID int64, limit, offset int) ([]Equipment, int, error)
	Update(ctx context.Context, id int64, eq Equipment) (Equipment, error)
	DeleteCascade(ctx context.Context, id int64) error
	AddMaintenance(ctx context.Context, m DailyMaintenance) (DailyMaintenance, error)
	ListMaintenance(ctx context.Context, equipmentID int64) ([]DailyMaintenance, error)
}

// Service applies equipment business rules through the lifecycle
// coordinator. Photo changes route the caller-supplied id through the
// attachment resolver so re-saves and replacements behave the same.
type Service struct {
	store    Store
	coord    *lifecycle.Coordinator
	resolver *attachments.Resolver
	atts     attachments.Repository
}

// NewService constructs a Service.
func NewService(store Store, coord *lifecycle.Coordinator, resolver *attachments.Resolver, atts attachments.Repository) *Service {
	return &Service{store: store, coord: coord, resolver: resolver, atts: atts}
}

// Input carries caller-editable equipment fields. PhotoCandidate is an
// attachment id or a document id; nil leaves the current photo alone.
type Input struct {
	Name           string
	SerialNo       string
	Manufacturer   string
	Location       string
	PhotoCandidate *uuid.UUID
}

// Create adds equipment in the resolved organization.
func (s *Service) Create(ctx context.Context, actor ability.Actor, requestedOrg *int64, in Input) (Equipment, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Equipment{}, errors.New("equipment: name required")
	}

	var created Equipment
	_, err := s.coord.Execute(ctx, lifecycle.Request{
		Actor:          actor,
		Action:         ability.ActionCreate,
		Kind:           ability.KindEquipment,
		RequestedOrgID: requestedOrg,
		Mutate: func(ctx context.Context, orgID int64) (lifecycle.Result, error) {
			eq := Equipment{
				OrganizationID: orgID,
				Name:           in.Name,
				SerialNo:       in.SerialNo,
				Manufacturer:   in.Manufacturer,
				Location:       in.Location,
			}
			var err error
			created, err = s.store.Create(ctx, eq)
			if err != nil {
				return lifecycle.Result{}, err
			}
			if in.PhotoCandidate != nil {
				attID, err := s.resolver.Resolve(ctx, *in.PhotoCandidate, attachments.FieldEquipmentPhoto, &created.ID)
				if err != nil {
					return lifecycle.Result{}, err
				}
				created.PhotoAttachmentID = &attID
				created, err = s.store.Update(ctx, created.ID, created)
				if err != nil {
					return lifecycle.Result{}, err
				}
			}
			return lifecycle.Result{}, nil
		},
	})
	if err != nil {
		return Equipment{}, err
	}
	return created, nil
}

// Get fetches one equipment row within the actor's scope.
func (s *Service) Get(ctx context.Context, actor ability.Actor, id int64) (Equipment, error) {
	eq, err := s.store.Get(ctx, id)
	if err != nil {
		return Equipment{}, err
	}
	if !s.coord.Engine().Can(actor, ability.ActionRead, ability.InOrganization(ability.KindEquipment, eq.OrganizationID)) {
		return Equipment{}, lifecycle.ErrForbidden
	}
	return eq, nil
}

// List returns equipment for the resolved organization.
func (s *Service) List(ctx context.Context, actor ability.Actor, requestedOrg *int64, page shared.Pagination) ([]Equipment, shared.Pagination, error) {
	orgID, err := s.coord.ResolveScope(ctx, actor, requestedOrg, ability.ActionRead, ability.KindEquipment)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	items, total, err := s.store.List(ctx, orgID, page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Update rewrites equipment details. A changed photo resolves the new
// reference first, then drops the superseded attachment row so the old
// document can be reconciled after commit.
func (s *Service) Update(ctx context.Context, actor ability.Actor, id int64, in Input) (Equipment, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return Equipment{}, err
	}

	var updated Equipment
	_, err = s.coord.Execute(ctx, lifecycle.Request{
		Actor:        actor,
		Action:       ability.ActionUpdate,
		Kind:         ability.KindEquipment,
		SubjectOrgID: &existing.OrganizationID,
		Mutate: func(ctx context.Context, _ int64) (lifecycle.Result, error) {
			eq := existing
			eq.Name = in.Name
			eq.SerialNo = in.SerialNo
			eq.Manufacturer = in.Manufacturer
			eq.Location = in.Location

			var result lifecycle.Result
			if in.PhotoCandidate != nil {
				attID, err := s.resolver.Resolve(ctx, *in.PhotoCandidate, attachments.FieldEquipmentPhoto, &id)
				if err != nil {
					return lifecycle.Result{}, err
				}
				if existing.PhotoAttachmentID != nil && *existing.PhotoAttachmentID != attID {
					old, err := s.atts.Get(ctx, *existing.PhotoAttachmentID)
					if err != nil && !errors.Is(err, attachments.ErrNotFound) {
						return lifecycle.Result{}, err
					}
					if err == nil {
						if err := s.atts.Delete(ctx, old.ID); err != nil {
							return lifecycle.Result{}, err
						}
						result.ReplacedDocuments = append(result.ReplacedDocuments, old.DocumentID)
					}
				}
				eq.PhotoAttachmentID = &attID
			}

			var err error
			updated, err = s.store.Update(ctx, id, eq)
			return result, err
		},
	})
	if err != nil {
		return Equipment{}, err
	}
	return updated, nil
}

// Delete removes equipment and its maintenance log in one transaction.
// The maintenance edge is the declared cascade exception, so the
// dependency guard does not block it.
func (s *Service) Delete(ctx context.Context, actor ability.Actor, id int64) error {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.coord.Execute(ctx, lifecycle.Request{
		Actor:        actor,
		Action:       ability.ActionDelete,
		Kind:         ability.KindEquipment,
		SubjectOrgID: &existing.OrganizationID,
		ResourceID:   id,
		GuardDelete:  true,
		Mutate: func(ctx context.Context, _ int64) (lifecycle.Result, error) {
			if err := s.store.DeleteCascade(ctx, id); err != nil {
				return lifecycle.Result{}, err
			}
			removed, err := s.atts.DeleteByOwner(ctx, id, attachments.FieldEquipmentPhoto)
			if err != nil {
				return lifecycle.Result{}, err
			}
			var result lifecycle.Result
			for _, att := range removed {
				result.ReplacedDocuments = append(result.ReplacedDocuments, att.DocumentID)
			}
			return result, nil
		},
	})
	return err
}

// AddMaintenance appends a log entry to equipment the actor can update.
func (s *Service) AddMaintenance(ctx context.Context, actor ability.Actor, equipmentID int64, entry DailyMaintenance) (DailyMaintenance, error) {
	eq, err := s.store.Get(ctx, equipmentID)
	if err != nil {
		return DailyMaintenance{}, err
	}
	if !s.coord.Engine().Can(actor, ability.ActionUpdate, ability.InOrganization(ability.KindDailyMaintenance, eq.OrganizationID)) {
		return DailyMaintenance{}, lifecycle.ErrForbidden
	}
	entry.EquipmentID = equipmentID
	entry.PerformedBy = actor.ID
	return s.store.AddMaintenance(ctx, entry)
}

// ListMaintenance returns the log for equipment the actor can read.
func (s *Service) ListMaintenance(ctx context.Context, actor ability.Actor, equipmentID int64) ([]DailyMaintenance, error) {
	eq, err := s.store.Get(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	if !s.coord.Engine().Can(actor, ability.ActionRead, ability.InOrganization(ability.KindDailyMaintenance, eq.OrganizationID)) {
		return nil, lifecycle.ErrForbidden
	}
	return s.store.ListMaintenance(ctx, equipmentID)
}
